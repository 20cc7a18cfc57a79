package solver

import (
	"fmt"
	"log"
	"math"

	"github.com/pbnjay/memory"

	"fdd/internal/fdderr"
	"fdd/internal/models"
)

// Hyper holds the hyperparameters of one solver call
type Hyper struct {
	MaxIterations int
	Levels        int
	Lambda        float64
	Nu            float64
	Tolerance     float64
}

// Validate checks the hyperparameters before they reach the solver
func (h Hyper) Validate() error {
	switch {
	case h.MaxIterations < 1:
		return fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration, "iteration budget %d must be positive", h.MaxIterations)
	case h.MaxIterations > math.MaxInt32:
		return fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration, "iteration budget %d overflows int32", h.MaxIterations)
	case h.Levels < 2:
		return fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration, "need at least 2 levels, got %d", h.Levels)
	case h.Levels > math.MaxInt32:
		return fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration, "level count %d overflows int32", h.Levels)
	case h.Lambda < 0 || h.Nu < 0 || h.Tolerance < 0:
		return fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration,
			"lambda %v, nu %v and tolerance %v must be non-negative", h.Lambda, h.Nu, h.Tolerance)
	}
	return nil
}

// Adapter packages grid data for a Solver and unpacks its output. It owns
// the execution context selected at construction.
type Adapter struct {
	solver Solver
	ctx    ExecContext
	logf   func(format string, args ...interface{})
}

// NewAdapter selects the execution context for s once and returns an
// adapter holding both. device forces a device kind; empty selects
// automatically.
func NewAdapter(s Solver, device string) (*Adapter, error) {
	if s == nil {
		return nil, fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration, "no solver: %w", fdderr.ErrSolverArtifact)
	}
	probe, _ := s.(DeviceProber)
	ctx, err := SelectDevice(probe, device)
	if err != nil {
		return nil, fdderr.New(fdderr.StageSolver, fdderr.Configuration, err)
	}
	return &Adapter{solver: s, ctx: ctx, logf: log.Printf}, nil
}

// SetLogger replaces the function used for contract warnings. A nil logf
// silences them.
func (a *Adapter) SetLogger(logf func(format string, args ...interface{})) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	a.logf = logf
}

// Context returns the execution context of the adapter
func (a *Adapter) Context() ExecContext {
	return a.ctx
}

// RequiredMemory estimates the bytes held during one call over a grid of
// the given number of cells: the float32 buffers exchanged with the solver
// plus their float64 copies on this side
func RequiredMemory(cells, channels, levels int) uint64 {
	return uint64(cells) * uint64(channels+levels) * (4 + 8)
}

// CheckMemory fails with a configuration error when the buffers of one call
// cannot fit in physical memory. Hosts that do not report their memory are
// not checked.
func (a *Adapter) CheckMemory(cells, channels, levels int) error {
	total := memory.TotalMemory()
	if total == 0 {
		return nil
	}
	need := RequiredMemory(cells, channels, levels)
	if need > total {
		return fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration,
			"grid of %d cells with %d levels needs %d MB, host has %d MB",
			cells, levels, need/1024/1024, total/1024/1024)
	}
	return nil
}

// Solve runs the solver on the grid values, shaped grid shape + [channels],
// and returns the multi-level field shaped grid shape + [levels]. Solver
// failures surface as external routine failures; no partial output is
// returned.
func (a *Adapter) Solve(values models.Field, h Hyper) (*models.SolverOutput, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if len(values.Shape) < 2 {
		return nil, fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration,
			"field shape %v lacks a channel axis", values.Shape)
	}

	req := Request{
		Field:         toFloat32(values.Data),
		Shape:         append([]int(nil), values.Shape...),
		MaxIterations: int32(h.MaxIterations),
		Levels:        int32(h.Levels),
		Lambda:        float32(h.Lambda),
		Nu:            float32(h.Nu),
		Tolerance:     float32(h.Tolerance),
	}

	resp, err := a.solver.Solve(a.ctx, req)
	if err != nil {
		return nil, fdderr.New(fdderr.StageSolver, fdderr.ExternalRoutineFailure, err)
	}

	gridShape := values.Shape[:len(values.Shape)-1]
	outShape := append(append([]int(nil), gridShape...), h.Levels)
	if want := models.ShapeSize(outShape); len(resp.V) != want {
		return nil, fdderr.New(fdderr.StageSolver, fdderr.ExternalRoutineFailure,
			fmt.Errorf("solver returned %d values, want %d for shape %v", len(resp.V), want, outShape))
	}
	if resp.Iterations < 0 || int(resp.Iterations) > h.MaxIterations {
		return nil, fdderr.New(fdderr.StageSolver, fdderr.ExternalRoutineFailure,
			fmt.Errorf("solver reported %d iterations with a budget of %d", resp.Iterations, h.MaxIterations))
	}

	out := &models.SolverOutput{
		V:          models.Field{Shape: outShape, Data: toFloat64(resp.V)},
		Energy:     toFloat64(resp.Energy),
		Gap:        toFloat64(resp.Gap),
		Iterations: int(resp.Iterations),
	}
	if i := firstIncrease(out.Energy); i >= 0 {
		a.logf("solver: energy increased at iteration %d (%g -> %g)", i, out.Energy[i-1], out.Energy[i])
	}
	return out, nil
}

// firstIncrease returns the first index at which the trace goes up, or -1
func firstIncrease(trace []float64) int {
	for i := 1; i < len(trace); i++ {
		if trace[i] > trace[i-1] {
			return i
		}
	}
	return -1
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
