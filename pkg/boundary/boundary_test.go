package boundary

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdd/internal/fdderr"
	"fdd/internal/models"
	"fdd/pkg/grid"
	"fdd/pkg/normalize"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// frame returns a normalization that maps x to x*scale+offset on every axis
// and has the given raw outcome maximum
func frame(dims int, offset, scale, ymax float64) *normalize.Normalized {
	n := &normalize.Normalized{
		XMin:   make([]float64, dims),
		XScale: make([]float64, dims),
		YMin:   []float64{0},
		YScale: []float64{ymax},
		YMax:   []float64{ymax},
	}
	for d := 0; d < dims; d++ {
		n.XMin[d], n.XScale[d] = offset, scale
	}
	return n
}

func lineGrid(cells int, points map[int][][]float64) *grid.Grid {
	g := &grid.Grid{
		Shape:      []int{cells},
		Channels:   1,
		Resolution: 1 / float64(cells),
		Counts:     make([]int, cells),
		Points:     make([][][]float64, cells),
	}
	for c, pts := range points {
		g.Points[c] = pts
		g.Counts[c] = len(pts)
	}
	return g
}

func TestMask(t *testing.T) {
	norm := models.Field{Shape: []int{2, 2}, Data: []float64{0.1, 0.5, 0.49, 0.7}}
	m := Mask(norm, 0.5)
	assert.Equal(t, []int{2, 2}, m.Shape)
	assert.Equal(t, []bool{false, true, false, true}, m.Data)
	assert.Equal(t, 2, m.Count())
}

func TestMapSingleJump(t *testing.T) {
	g := lineGrid(4, map[int][][]float64{
		1: {{0.3}, {0.4}},
		2: {{0.6}},
	})
	u := models.Field{Shape: []int{4}, Data: []float64{0.2, 0.2, 0.8, 0.8}}
	mask := models.Mask{Shape: []int{4}, Data: []bool{false, true, false, false}}

	jumps, err := NewMapper(g, frame(1, 0, 1, 2)).Map(mask, u)
	require.NoError(t, err)

	want := models.JumpRecords{{Location: []float64{0.475}, From: 0.4, To: 1.6, Size: 1.2}}
	if diff := cmp.Diff(want, jumps, approx); diff != "" {
		t.Errorf("jumps mismatch (-want +got):\n%s", diff)
	}
}

func TestMapThickBoundary(t *testing.T) {
	g := lineGrid(5, map[int][][]float64{
		0: {{0.1}}, 1: {{0.3}}, 2: {{0.5}}, 3: {{0.7}}, 4: {{0.9}},
	})
	u := models.Field{Shape: []int{5}, Data: []float64{0, 0.25, 0.5, 0.75, 1}}

	tests := []struct {
		name  string
		mask  []bool
		cells []float64 // From of every emitted record
	}{
		{"adjacent boundary cells", []bool{false, true, true, false, false}, []float64{0.5}},
		{"last cell clipped", []bool{false, false, false, false, true}, nil},
		{"all boundary", []bool{true, true, true, true, true}, nil},
		{"two separate", []bool{true, false, false, true, false}, []float64{0, 0.75}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mask := models.Mask{Shape: []int{5}, Data: tc.mask}
			jumps, err := NewMapper(g, frame(1, 0, 1, 1)).Map(mask, u)
			require.NoError(t, err)

			var from []float64
			for _, j := range jumps {
				from = append(from, j.From)
			}
			assert.Equal(t, tc.cells, from)
		})
	}
}

func TestMapFallsBackToCellCoordinate(t *testing.T) {
	// no samples anywhere; raw x = 2*x + 10
	g := lineGrid(4, nil)
	u := models.Field{Shape: []int{4}, Data: []float64{0, 0, 0.5, 0.5}}
	mask := models.Mask{Shape: []int{4}, Data: []bool{false, true, false, false}}

	jumps, err := NewMapper(g, frame(1, 10, 2, 1)).Map(mask, u)
	require.NoError(t, err)
	require.Len(t, jumps, 1)
	// cell 1 at 0.25 -> 10.5, cell 2 at 0.5 -> 11
	assert.InDelta(t, 10.75, jumps[0].Location[0], 1e-12)
}

func TestMapTwoDimensional(t *testing.T) {
	g := &grid.Grid{
		Shape:      []int{2, 2},
		Channels:   1,
		Resolution: 0.5,
		Counts:     []int{1, 1, 2, 0},
		Points: [][][]float64{
			{{0.1, 0.1}},
			{{0.2, 0.8}},
			{{0.7, 0.2}, {0.9, 0.4}},
			nil,
		},
	}
	u := models.Field{Shape: []int{2, 2}, Data: []float64{0, 0.4, 0.6, 1}}
	mask := models.Mask{Shape: []int{2, 2}, Data: []bool{true, false, false, false}}

	jumps, err := NewMapper(g, frame(2, 0, 1, 3)).Map(mask, u)
	require.NoError(t, err)

	// to points: (0.7,0.2), (0.9,0.4) from (1,0) and (0.2,0.8) from (0,1)
	want := models.JumpRecords{{
		Location: []float64{(0.1 + 0.6) / 2, (0.1 + 1.4/3) / 2},
		From:     0,
		To:       1.5,
		Size:     1.5,
	}}
	if diff := cmp.Diff(want, jumps, approx); diff != "" {
		t.Errorf("jumps mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRecordInvariants(t *testing.T) {
	const side = 6
	g := &grid.Grid{
		Shape:      []int{side, side},
		Channels:   1,
		Resolution: 1.0 / side,
		Counts:     make([]int, side*side),
		Points:     make([][][]float64, side*side),
	}
	u := models.NewField(side, side)
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			if i+j >= side {
				u.Set(0.75, i, j)
			} else {
				u.Set(0.25, i, j)
			}
		}
	}
	norm := frame(2, 0, 1, 4)

	// boundary cells sit on the low side of the diagonal step
	mask := models.NewMask(side, side)
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			mask.Data[i*side+j] = i+j == side-1
		}
	}

	jumps, err := NewMapper(g, norm).Map(mask, u)
	require.NoError(t, err)
	require.Len(t, jumps, side)

	for k, j := range jumps {
		assert.InDelta(t, j.To-j.From, j.Size, 1e-12)
		assert.InDelta(t, 1.0, j.From, 1e-12, "record %d", k)
		assert.InDelta(t, 3.0, j.To, 1e-12, "record %d", k)
		// row-major discovery order: i increases
		if k > 0 {
			assert.Greater(t, j.Location[0], jumps[k-1].Location[0])
		}
	}
}

func TestMapShapeMismatch(t *testing.T) {
	g := lineGrid(4, nil)
	u := models.NewField(4)
	mask := models.NewMask(5)

	_, err := NewMapper(g, frame(1, 0, 1, 1)).Map(mask, u)
	assert.ErrorIs(t, err, fdderr.ErrConfiguration)
	assert.ErrorIs(t, err, fdderr.ErrLengthMismatch)
}
