// Package isosurface turns the multi-level solver output into a scalar field
// by locating, per cell, the sub-level position where the profile crosses 0.5.
package isosurface

import (
	"fdd/internal/fdderr"
	"fdd/internal/models"
)

// Threshold is the level value the profile is cut at
const Threshold = 0.5

// Interpolate returns the position of the 0.5 crossing between level k (value
// uk0) and level k+1 (value uk1), scaled by the number of levels l
func Interpolate(k int, uk0, uk1 float64, l int) float64 {
	return (float64(k) + (Threshold-uk0)/(uk1-uk0)) / float64(l)
}

// Extract reduces v, shaped grid shape + [levels], to a field of grid shape.
// Only the first crossing of each profile counts; later ones are ignored. A
// profile without a crossing is a numeric degeneracy.
func Extract(v models.Field, levels int) (models.Field, error) {
	if len(v.Shape) < 2 || v.Shape[len(v.Shape)-1] != levels {
		return models.Field{}, fdderr.Errorf(fdderr.StageIsosurface, fdderr.Configuration,
			"field shape %v does not end in %d levels", v.Shape, levels)
	}
	if levels < 2 {
		return models.Field{}, fdderr.Errorf(fdderr.StageIsosurface, fdderr.Configuration,
			"need at least 2 levels, got %d", levels)
	}

	gridShape := append([]int(nil), v.Shape[:len(v.Shape)-1]...)
	out := models.NewField(gridShape...)
	idx := make([]int, len(gridShape))

	for cell := range out.Data {
		profile := v.Data[cell*levels : (cell+1)*levels]
		k := firstCrossing(profile)
		if k < 0 {
			return models.Field{}, fdderr.Errorf(fdderr.StageIsosurface, fdderr.NumericDegeneracy,
				"cell %v: %w", models.Unravel(gridShape, cell, idx), fdderr.ErrNoCrossing)
		}
		uk0, uk1 := profile[k], profile[k+1]
		if uk1 == uk0 {
			return models.Field{}, fdderr.Errorf(fdderr.StageIsosurface, fdderr.NumericDegeneracy,
				"cell %v level %d: %w", models.Unravel(gridShape, cell, idx), k, fdderr.ErrZeroDenominator)
		}
		out.Data[cell] = Interpolate(k, uk0, uk1, levels)
	}
	return out, nil
}

// firstCrossing returns the first k with profile[k] > 0.5 >= profile[k+1],
// or -1. NaN never satisfies either comparison.
func firstCrossing(profile []float64) int {
	for k := 0; k+1 < len(profile); k++ {
		if profile[k] > Threshold && profile[k+1] <= Threshold {
			return k
		}
	}
	return -1
}
