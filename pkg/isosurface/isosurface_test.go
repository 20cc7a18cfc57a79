package isosurface

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdd/internal/fdderr"
	"fdd/internal/models"
)

// liftedProfile returns a profile that is 1 up to level k, then value, then 0
func liftedProfile(levels, k int, value float64) []float64 {
	p := make([]float64, levels)
	for i := 0; i <= k; i++ {
		p[i] = 1
	}
	if k+1 < levels {
		p[k+1] = value
	}
	return p
}

func fieldOf(profiles ...[]float64) models.Field {
	levels := len(profiles[0])
	f := models.NewField(len(profiles), levels)
	for i, p := range profiles {
		copy(f.Data[i*levels:], p)
	}
	return f
}

func TestInterpolate(t *testing.T) {
	assert.InDelta(t, 0.5/4, Interpolate(0, 1, 0, 4), 1e-12)
	assert.InDelta(t, (2+0.5)/4, Interpolate(2, 0.75, 0.25, 4), 1e-12)
	// crossing exactly on the lower level
	assert.InDelta(t, 2.0/4, Interpolate(1, 1, 0.5, 4), 1e-12)
}

func TestExtractRange(t *testing.T) {
	const levels = 8
	var profiles [][]float64
	for k := 0; k < levels-1; k++ {
		profiles = append(profiles, liftedProfile(levels, k, 0), liftedProfile(levels, k, 0.5))
	}
	u, err := Extract(fieldOf(profiles...), levels)
	require.NoError(t, err)
	require.Equal(t, []int{len(profiles)}, u.Shape)

	for i, value := range u.Data {
		assert.GreaterOrEqual(t, value, 0.0, "cell %d", i)
		assert.Less(t, value, 1.0, "cell %d", i)
	}
	assert.InDelta(t, float64(levels-1)/levels, u.Data[len(u.Data)-1], 1e-12)
}

func TestExtractMonotone(t *testing.T) {
	const levels = 16
	// profiles ordered by increasing lifted value
	var profiles [][]float64
	for k := 0; k < levels-1; k++ {
		for _, next := range []float64{0, 0.2, 0.4, 0.5} {
			profiles = append(profiles, liftedProfile(levels, k, next))
		}
	}
	u, err := Extract(fieldOf(profiles...), levels)
	require.NoError(t, err)
	for i := 1; i < len(u.Data); i++ {
		assert.LessOrEqual(t, u.Data[i-1], u.Data[i], "cells %d and %d", i-1, i)
	}
}

func TestExtractFirstCrossingOnly(t *testing.T) {
	// crosses down at 1, back up at 3, down again at 4
	profile := []float64{1, 0.9, 0.1, 0.8, 0.7, 0.2}
	u, err := Extract(fieldOf(profile), len(profile))
	require.NoError(t, err)
	assert.InDelta(t, Interpolate(1, 0.9, 0.1, 6), u.Data[0], 1e-12)
}

func TestExtractShape(t *testing.T) {
	v := models.NewField(2, 3, 4)
	for cell := 0; cell < 6; cell++ {
		copy(v.Data[cell*4:], liftedProfile(4, cell%3, 0))
	}
	u, err := Extract(v, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, u.Shape)
	assert.InDelta(t, (2+0.5)/4, u.At(1, 2), 1e-12)
}

func TestExtractNoCrossing(t *testing.T) {
	tests := []struct {
		name    string
		profile []float64
	}{
		{"all above", []float64{1, 1, 0.9, 0.6}},
		{"all below", []float64{0.5, 0.2, 0.1, 0}},
		{"rising", []float64{0, 0.3, 0.6, 1}},
		{"nan", []float64{1, math.NaN(), 0, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			good := liftedProfile(4, 1, 0)
			_, err := Extract(fieldOf(good, tc.profile), 4)
			require.Error(t, err)
			assert.ErrorIs(t, err, fdderr.ErrNumericDegeneracy)
			assert.ErrorIs(t, err, fdderr.ErrNoCrossing)
			assert.Contains(t, err.Error(), "cell [1]")
		})
	}
}

func TestExtractShapeMismatch(t *testing.T) {
	_, err := Extract(models.NewField(3, 4), 5)
	assert.ErrorIs(t, err, fdderr.ErrConfiguration)

	_, err = Extract(models.NewField(3, 1), 1)
	assert.ErrorIs(t, err, fdderr.ErrConfiguration)
}
