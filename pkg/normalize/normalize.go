// Package normalize rescales raw observations into the unit reference frame
// used by the grid and the solver.
package normalize

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"fdd/internal/fdderr"
	"fdd/internal/models"
)

// Normalized holds observations shifted to start at zero and scaled to a
// maximum of one, together with what is needed to map back.
type Normalized struct {
	// Y and X are the rescaled copies
	Y [][]float64
	X [][]float64

	// Raw is the untouched input
	Raw models.Observations

	// XMin and XScale map normalized coordinates back: raw = x*XScale + XMin
	XMin   []float64
	XScale []float64

	// YMin and YScale do the same for outcomes
	YMin   []float64
	YScale []float64

	// YMax is the per-channel maximum of the raw outcomes, used to express
	// jump sizes in observation units
	YMax []float64

	// Rectangle is set when all axes share one scale
	Rectangle bool
}

// Validate checks the shape invariants of an observation set
func Validate(obs models.Observations) error {
	if len(obs.Y) != len(obs.X) {
		return fdderr.Errorf(fdderr.StageInput, fdderr.Configuration,
			"%d outcomes for %d coordinates: %w", len(obs.Y), len(obs.X), fdderr.ErrLengthMismatch)
	}
	if len(obs.Y) == 0 {
		return fdderr.Errorf(fdderr.StageInput, fdderr.Configuration, "no samples")
	}
	d, c := obs.Dims(), obs.Channels()
	if d == 0 || c == 0 {
		return fdderr.Errorf(fdderr.StageInput, fdderr.Configuration, "empty coordinate or outcome vectors")
	}
	for i := range obs.X {
		if len(obs.X[i]) != d {
			return fdderr.Errorf(fdderr.StageInput, fdderr.Configuration,
				"sample %d has %d coordinates, want %d: %w", i, len(obs.X[i]), d, fdderr.ErrLengthMismatch)
		}
		if len(obs.Y[i]) != c {
			return fdderr.Errorf(fdderr.StageInput, fdderr.Configuration,
				"sample %d has %d outcome channels, want %d: %w", i, len(obs.Y[i]), c, fdderr.ErrLengthMismatch)
		}
	}
	return nil
}

// Normalize rescales obs so that every coordinate axis spans [0,1] (or, in
// rectangle mode, so the largest axis does and proportions are kept) and
// every outcome channel spans [0,1]. A constant axis or channel cannot be
// scaled and fails with a configuration error wrapping ErrDivisionByZero.
func Normalize(obs models.Observations, rectangle bool) (*Normalized, error) {
	if err := Validate(obs); err != nil {
		return nil, err
	}

	n := &Normalized{Raw: obs, Rectangle: rectangle}

	var err error
	n.X, n.XMin, n.XScale, err = rescale(obs.X, rectangle, "coordinate axis")
	if err != nil {
		return nil, err
	}
	n.Y, n.YMin, n.YScale, err = rescale(obs.Y, false, "outcome channel")
	if err != nil {
		return nil, err
	}

	n.YMax = make([]float64, obs.Channels())
	for c := range n.YMax {
		n.YMax[c] = floats.Max(column(obs.Y, c))
	}
	return n, nil
}

// rescale shifts every column to start at zero and divides it by its
// maximum, or by the maximum over all columns when shared is set
func rescale(rows [][]float64, shared bool, what string) (out [][]float64, mins, scales []float64, err error) {
	cols := len(rows[0])
	mins = make([]float64, cols)
	scales = make([]float64, cols)
	shifted := make([][]float64, cols)

	for c := 0; c < cols; c++ {
		col := column(rows, c)
		mins[c] = floats.Min(col)
		floats.AddConst(-mins[c], col)
		scales[c] = floats.Max(col)
		shifted[c] = col
	}

	if shared {
		global := floats.Max(scales)
		for c := range scales {
			scales[c] = global
		}
	}

	for c, s := range scales {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, nil, nil, fdderr.Errorf(fdderr.StageNormalize, fdderr.Configuration,
				"%s %d has range %v: %w", what, c, s, fdderr.ErrDivisionByZero)
		}
		floats.Scale(1/s, shifted[c])
	}

	out = make([][]float64, len(rows))
	for i := range rows {
		out[i] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			out[i][c] = shifted[c][i]
		}
	}
	return out, mins, scales, nil
}

func column(rows [][]float64, c int) []float64 {
	col := make([]float64, len(rows))
	for i, r := range rows {
		col[i] = r[c]
	}
	return col
}

// DenormalizeX maps a normalized coordinate back to raw coordinate space
func (n *Normalized) DenormalizeX(p []float64) []float64 {
	out := make([]float64, len(p))
	for d, v := range p {
		out[d] = v*n.XScale[d] + n.XMin[d]
	}
	return out
}

// DenormalizeY maps a normalized outcome back to raw outcome units
func (n *Normalized) DenormalizeY(y []float64) []float64 {
	out := make([]float64, len(y))
	for c, v := range y {
		out[c] = v*n.YScale[c] + n.YMin[c]
	}
	return out
}

// Dequantization is the factor that turns a field value into raw outcome
// units for jump sizes: the raw outcome maximum, taken over all channels
// for vector outcomes.
func (n *Normalized) Dequantization() float64 {
	return floats.Max(n.YMax)
}

// Dims returns the coordinate dimension
func (n *Normalized) Dims() int {
	return len(n.XMin)
}

// Channels returns the outcome dimension
func (n *Normalized) Channels() int {
	return len(n.YMin)
}

// Len returns the number of samples
func (n *Normalized) Len() int {
	return len(n.Y)
}

// XMax returns the per-axis maximum of the normalized coordinates. It is 1
// on every axis except in rectangle mode.
func (n *Normalized) XMax() []float64 {
	out := make([]float64, n.Dims())
	for d := range out {
		out[d] = floats.Max(column(n.X, d))
	}
	return out
}
