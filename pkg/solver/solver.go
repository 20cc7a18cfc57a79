// Package solver is the boundary to the external energy-minimization
// routine. The routine itself is a precompiled artifact; this package only
// defines its contract, loads it, picks the execution context it runs in,
// and converts between grid data and its fixed-shape buffers.
package solver

// Request is the input of one solver call
type Request struct {
	// Field holds the grid values in row-major order, shaped Shape
	Field []float32

	// Shape is the grid shape followed by the channel axis
	Shape []int

	// MaxIterations caps the number of iterations
	MaxIterations int32

	// Levels is the number of discrete levels of the output field
	Levels int32

	// Lambda weights smoothness, Nu penalizes jumps
	Lambda float32
	Nu     float32

	// Tolerance stops the iteration once the convergence gap falls below it
	Tolerance float32
}

// Response is the output of one solver call
type Response struct {
	// V is the multi-level field, shaped grid shape + [Levels]
	V []float32

	// Energy and Gap are the per-iteration diagnostics
	Energy []float32
	Gap    []float32

	// Iterations is the number of iterations actually run
	Iterations int32
}

// Solver minimizes the free-discontinuity energy over a grid. An
// implementation must be deterministic for identical inputs, produce a
// non-increasing energy trace, and stop after MaxIterations iterations or
// once the gap is below Tolerance, whichever comes first.
type Solver interface {
	Solve(ctx ExecContext, req Request) (Response, error)
}

// Func adapts a plain function to the Solver interface
type Func func(ctx ExecContext, req Request) (Response, error)

// Solve calls f
func (f Func) Solve(ctx ExecContext, req Request) (Response, error) {
	return f(ctx, req)
}

// DeviceProber is implemented by solvers that can report the accelerators
// they are able to run on
type DeviceProber interface {
	Devices() (discrete, integrated []string)
}
