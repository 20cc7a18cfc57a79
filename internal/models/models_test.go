package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetUnravelRoundTrip(t *testing.T) {
	shape := []int{3, 4, 2}
	idx := make([]int, 3)
	for flat := 0; flat < ShapeSize(shape); flat++ {
		Unravel(shape, flat, idx)
		assert.Equal(t, flat, Offset(shape, idx))
	}
	assert.Equal(t, []int{8, 2, 1}, Strides(shape))
}

func TestFieldAtSet(t *testing.T) {
	f := NewField(2, 3)
	f.Set(5, 1, 2)
	assert.Equal(t, 5.0, f.At(1, 2))
	assert.Equal(t, 5.0, f.Data[5])
	assert.Equal(t, 6, f.Size())
}

func TestMaskCount(t *testing.T) {
	m := NewMask(2, 2)
	m.Data[1] = true
	m.Data[3] = true
	assert.Equal(t, 2, m.Count())
}

func TestObservationsDims(t *testing.T) {
	obs := Observations{
		Y: [][]float64{{1, 2}, {3, 4}},
		X: [][]float64{{0, 0, 0}, {1, 1, 1}},
	}
	assert.Equal(t, 2, obs.Len())
	assert.Equal(t, 3, obs.Dims())
	assert.Equal(t, 2, obs.Channels())
	assert.Equal(t, 0, Observations{}.Dims())
}

func TestJumpRecordSizes(t *testing.T) {
	j := JumpRecords{{Size: 1}, {Size: -0.5}}
	assert.Equal(t, []float64{1, -0.5}, j.Sizes())
}
