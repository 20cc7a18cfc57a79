package solver

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"

	"fdd/internal/fdderr"
)

// ArtifactName is the file name of the precompiled solver, looked up in a
// "solver" directory next to the executable
const ArtifactName = "primal_dual.so"

// SolveFunc is the primitive signature exported as "Solve" by a solver
// artifact: field, shape, max iterations, levels, lambda, nu, tolerance and
// the execution context string in; multi-level field, energy trace, gap
// trace and iterations run out.
type SolveFunc = func(field []float32, shape []int, maxIter, levels int32,
	lambda, nu, tol float32, device string) (v, energy, gap []float32, iterations int32, err error)

// DevicesFunc is the optional "Devices" export of a solver artifact
type DevicesFunc = func() (discrete, integrated []string)

// DefaultArtifactPath returns the fixed artifact location relative to the
// running executable
func DefaultArtifactPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "solver", ArtifactName), nil
}

// artifact is a solver loaded from a Go plugin
type artifact struct {
	path    string
	solve   SolveFunc
	devices DevicesFunc
}

// Load opens the precompiled solver at path. An empty path means
// DefaultArtifactPath. Any failure is a configuration error: a missing or
// unreadable artifact is fatal at construction time.
func Load(path string) (Solver, error) {
	if path == "" {
		var err error
		path, err = DefaultArtifactPath()
		if err != nil {
			return nil, fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration, "%v: %w", err, fdderr.ErrSolverArtifact)
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration,
			"cannot read %s: %v: %w", path, err, fdderr.ErrSolverArtifact)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration,
			"cannot open %s: %v: %w", path, err, fdderr.ErrSolverArtifact)
	}

	sym, err := p.Lookup("Solve")
	if err != nil {
		return nil, fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration,
			"%s: %v: %w", path, err, fdderr.ErrSolverArtifact)
	}
	solve, ok := sym.(SolveFunc)
	if !ok {
		return nil, fdderr.Errorf(fdderr.StageSolver, fdderr.Configuration,
			"%s: Solve has type %T: %w", path, sym, fdderr.ErrSolverArtifact)
	}

	a := &artifact{path: path, solve: solve}
	if sym, err := p.Lookup("Devices"); err == nil {
		if devices, ok := sym.(DevicesFunc); ok {
			a.devices = devices
		}
	}
	return a, nil
}

// Solve implements Solver
func (a *artifact) Solve(ctx ExecContext, req Request) (Response, error) {
	v, energy, gap, it, err := a.solve(req.Field, req.Shape, req.MaxIterations, req.Levels,
		req.Lambda, req.Nu, req.Tolerance, ctx.String())
	if err != nil {
		return Response{}, err
	}
	return Response{V: v, Energy: energy, Gap: gap, Iterations: it}, nil
}

// Devices implements DeviceProber
func (a *artifact) Devices() (discrete, integrated []string) {
	if a.devices == nil {
		return nil, nil
	}
	return a.devices()
}

func (a *artifact) String() string {
	return a.path
}
