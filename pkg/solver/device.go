package solver

import (
	"fmt"
	"strings"

	"github.com/klauspost/cpuid"
)

// DeviceKind is the class of hardware a solver call runs on
type DeviceKind int

const (
	ScalarCPU DeviceKind = iota
	VectorCPU
	IntegratedAccelerator
	DiscreteAccelerator
)

func (k DeviceKind) String() string {
	switch k {
	case DiscreteAccelerator:
		return "discrete"
	case IntegratedAccelerator:
		return "integrated"
	case VectorCPU:
		return "cpu-vector"
	default:
		return "cpu"
	}
}

// ExecContext is the execution context held by one adapter for its
// lifetime. Nothing outside the adapter reads it.
type ExecContext struct {
	Kind DeviceKind

	// Name identifies the device, e.g. an accelerator name reported by the
	// solver or the CPU brand
	Name string

	// Features lists the vector instruction sets available on the CPU
	Features []string
}

// String renders the context the way it is passed to precompiled solvers:
// kind, then device name when there is one
func (c ExecContext) String() string {
	if c.Name == "" {
		return c.Kind.String()
	}
	return c.Kind.String() + ":" + c.Name
}

// cpuFeatures reports the vector extensions the solver may use on this CPU
func cpuFeatures() []string {
	var out []string
	if cpuid.CPU.AVX512F() {
		out = append(out, "avx512f")
	}
	if cpuid.CPU.AVX2() {
		out = append(out, "avx2")
	}
	if cpuid.CPU.FMA3() {
		out = append(out, "fma3")
	}
	return out
}

// SelectDevice picks the execution context in preference order: discrete
// accelerator, integrated accelerator, vectorized CPU, scalar CPU.
// Accelerators are only known through the solver's own probe. A non-empty
// override ("discrete", "integrated", "cpu-vector", "cpu") forces a kind and
// fails when that kind is unavailable.
func SelectDevice(probe DeviceProber, override string) (ExecContext, error) {
	var discrete, integrated []string
	if probe != nil {
		discrete, integrated = probe.Devices()
	}
	features := cpuFeatures()

	candidates := make([]ExecContext, 0, 4)
	if len(discrete) > 0 {
		candidates = append(candidates, ExecContext{Kind: DiscreteAccelerator, Name: discrete[0], Features: features})
	}
	if len(integrated) > 0 {
		candidates = append(candidates, ExecContext{Kind: IntegratedAccelerator, Name: integrated[0], Features: features})
	}
	if len(features) > 0 {
		candidates = append(candidates, ExecContext{Kind: VectorCPU, Name: strings.Join(features, "+"), Features: features})
	}
	candidates = append(candidates, ExecContext{Kind: ScalarCPU, Features: features})

	if override == "" || override == "auto" {
		return candidates[0], nil
	}
	for _, c := range candidates {
		if c.Kind.String() == override {
			return c, nil
		}
	}
	return ExecContext{}, fmt.Errorf("device %q is not available on this host", override)
}
