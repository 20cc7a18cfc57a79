// Package fdd runs free-discontinuity detection on scattered observations.
//
// The pipeline consists of several steps:
// 1. Normalizing coordinates and outcomes to the unit frame
// 2. Rasterizing the samples onto a regular grid
// 3. Minimizing the free-discontinuity energy with the external solver
// 4. Extracting the scalar field from the multi-level solver output
// 5. Thresholding its gradient and mapping boundary cells to jump records
//
// Steps 1 and 2 depend only on the configuration and the observations and
// are computed once into a State. Steps 3 to 5 make up Run, which can be
// repeated and never changes the State.
package fdd

import (
	"fmt"
	"log"

	"fdd/internal/fdderr"
	"fdd/internal/models"
	"fdd/pkg/boundary"
	"fdd/pkg/config"
	"fdd/pkg/grid"
	"fdd/pkg/isosurface"
	"fdd/pkg/normalize"
	"fdd/pkg/solver"
	"fdd/pkg/threshold"
)

// runSteps is the number of steps reported by Run
const runSteps = 3

// ProgressCallback is a function that reports progress through the pipeline.
// It receives the current step, the total number of steps and a message.
type ProgressCallback func(step, total int, message string)

// State is the part of a model derived from configuration and observations
// before any solver call
type State struct {
	// Norm holds the observations in the unit frame
	Norm *normalize.Normalized

	// Grid is the rasterized form of Norm
	Grid *grid.Grid
}

// Derive normalizes obs and rasterizes it as cfg asks
func Derive(cfg *config.Config, obs models.Observations) (*State, error) {
	norm, err := normalize.Normalize(obs, cfg.Model.Rectangle)
	if err != nil {
		return nil, err
	}

	var g *grid.Grid
	switch cfg.Grid.Mode {
	case config.GridPoints:
		g, err = grid.RasterizePoints(norm, grid.PointsOptions{
			Resolution: cfg.Grid.Resolution,
			Qtile:      cfg.Grid.Qtile,
			Gridded:    cfg.Grid.Gridded,
			Seed:       cfg.Grid.Seed,
			NumCores:   cfg.Processing.NumCores,
		})
	default:
		g, err = grid.Rasterize(norm, grid.Options{
			Resolution: cfg.Grid.Resolution,
			NumCores:   cfg.Processing.NumCores,
		})
	}
	if err != nil {
		return nil, err
	}
	return &State{Norm: norm, Grid: g}, nil
}

// Result holds everything one run produces
type Result struct {
	// U is the reconstructed scalar field on the grid, values in [0,1). The
	// level index counts from the level before the crossing, so U sits 1/L
	// below a field that counts from the level after it. Jump sizes are
	// differences and do not depend on the offset.
	U models.Field

	// Jumps holds one record per boundary cell with a valid neighbour
	Jumps models.JumpRecords

	// Mask marks the boundary cells
	Mask models.Mask

	// Threshold is the gradient norm above which cells are boundary cells
	Threshold float64

	// Energy, Gap and Iterations are the solver diagnostics
	Energy     []float64
	Gap        []float64
	Iterations int

	// Device is the execution context the solver ran in
	Device string
}

// Model couples an immutable configuration and the derived state with a
// solver adapter
type Model struct {
	cfg      config.Config
	state    *State
	adapter  *solver.Adapter
	progress ProgressCallback
}

// New validates cfg, derives the state from obs and prepares the solver. The
// configuration is copied; later changes to cfg do not affect the model.
func New(cfg *config.Config, obs models.Observations, s solver.Solver) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	state, err := Derive(cfg, obs)
	if err != nil {
		return nil, err
	}
	return FromState(cfg, state, s)
}

// FromState builds a model on an already derived state. Several models may
// share one state since runs only read it.
func FromState(cfg *config.Config, state *State, s solver.Solver) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter, err := solver.NewAdapter(s, cfg.Solver.Device)
	if err != nil {
		return nil, err
	}
	if err := adapter.CheckMemory(state.Grid.Size(), state.Grid.Channels, cfg.Model.Level); err != nil {
		return nil, err
	}

	m := &Model{cfg: *cfg, state: state, adapter: adapter}
	if cfg.Output.Verbose {
		m.progress = func(step, total int, message string) {
			log.Printf("Step %d/%d: %s", step, total, message)
		}
	} else {
		m.progress = func(int, int, string) {}
		adapter.SetLogger(nil)
	}
	return m, nil
}

// SetProgressCallback replaces the step reporter. A nil callback silences it.
func (m *Model) SetProgressCallback(cb ProgressCallback) {
	if cb == nil {
		cb = func(int, int, string) {}
	}
	m.progress = cb
}

// State returns the derived state of the model
func (m *Model) State() *State {
	return m.state
}

// Config returns a copy of the model configuration
func (m *Model) Config() config.Config {
	return m.cfg
}

// Device returns the execution context selected for the solver
func (m *Model) Device() solver.ExecContext {
	return m.adapter.Context()
}

// Run solves on the grid, extracts the scalar field and maps its boundary.
// Any failure aborts the run; no partial result is returned.
func (m *Model) Run() (*Result, error) {
	g := m.state.Grid

	m.progress(1, runSteps, fmt.Sprintf("Solving on %v grid (%d levels, %s)...", g.Shape, m.cfg.Model.Level, m.adapter.Context()))
	out, err := m.adapter.Solve(g.Values, solver.Hyper{
		MaxIterations: m.cfg.Model.Iter,
		Levels:        m.cfg.Model.Level,
		Lambda:        m.cfg.Model.Lambda,
		Nu:            m.cfg.Model.Nu,
		Tolerance:     m.cfg.Model.Tol,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to solve: %w", err)
	}

	m.progress(2, runSteps, "Extracting isosurface...")
	u, err := isosurface.Extract(out.V, m.cfg.Model.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to extract isosurface: %w", err)
	}

	m.progress(3, runSteps, "Mapping boundary...")
	mask, jumps, thr, err := m.Boundary(u)
	if err != nil {
		return nil, fmt.Errorf("failed to map boundary: %w", err)
	}

	return &Result{
		U:          u,
		Jumps:      jumps,
		Mask:       mask,
		Threshold:  thr,
		Energy:     out.Energy,
		Gap:        out.Gap,
		Iterations: out.Iterations,
		Device:     m.adapter.Context().String(),
	}, nil
}

// Boundary thresholds the gradient norm of u with the configured policy and
// maps the resulting mask to jump records
func (m *Model) Boundary(u models.Field) (models.Mask, models.JumpRecords, float64, error) {
	if got, want := u.Size(), m.state.Grid.Size(); got != want {
		return models.Mask{}, nil, 0, fdderr.Errorf(fdderr.StageBoundary, fdderr.Configuration,
			"field has %d cells, grid has %d: %w", got, want, fdderr.ErrLengthMismatch)
	}

	norm := threshold.GradientNorm(u)
	thr, err := threshold.Select(m.cfg.Model.PickNu, norm, m.cfg.Model.Nu, m.cfg.Model.HistogramBins)
	if err != nil {
		return models.Mask{}, nil, 0, err
	}

	mask := boundary.Mask(norm, thr)
	jumps, err := boundary.NewMapper(m.state.Grid, m.state.Norm).Map(mask, u)
	if err != nil {
		return models.Mask{}, nil, 0, err
	}
	return mask, jumps, thr, nil
}

// Trial runs one model on a shared state. It is what a hyperparameter
// search calls per candidate configuration; it reads nothing but its
// arguments.
func Trial(cfg *config.Config, state *State, s solver.Solver) (*Result, error) {
	m, err := FromState(cfg, state, s)
	if err != nil {
		return nil, err
	}
	m.SetProgressCallback(nil)
	return m.Run()
}
