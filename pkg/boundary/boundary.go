// Package boundary marks boundary cells of the reconstructed field and maps
// them back to jump records in the coordinate space of the observations.
package boundary

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"fdd/internal/fdderr"
	"fdd/internal/models"
	"fdd/pkg/grid"
	"fdd/pkg/normalize"
)

// Mask marks every cell whose gradient norm reaches threshold
func Mask(norm models.Field, threshold float64) models.Mask {
	m := models.NewMask(norm.Shape...)
	for i, v := range norm.Data {
		m.Data[i] = v >= threshold
	}
	return m
}

// Mapper turns boundary cells into jump records. It needs the grid the field
// was solved on, for the raw coordinates assigned to every cell, and the
// normalization, for the dequantization factor and coordinate fallback.
type Mapper struct {
	grid *grid.Grid
	norm *normalize.Normalized
}

// NewMapper returns a mapper over g and norm
func NewMapper(g *grid.Grid, norm *normalize.Normalized) *Mapper {
	return &Mapper{grid: g, norm: norm}
}

// Map emits one record per boundary cell that has at least one forward
// neighbour outside the boundary. Cells inside thick boundary regions emit
// nothing. Records come out in row-major order of their cells.
func (m *Mapper) Map(mask models.Mask, u models.Field) (models.JumpRecords, error) {
	if !slices.Equal(mask.Shape, u.Shape) || !slices.Equal(u.Shape, m.grid.Shape) {
		return nil, fdderr.New(fdderr.StageBoundary, fdderr.Configuration,
			fmt.Errorf("mask %v, field %v and grid %v shapes differ: %w", mask.Shape, u.Shape, m.grid.Shape, fdderr.ErrLengthMismatch))
	}

	scale := m.norm.Dequantization()
	strides := models.Strides(u.Shape)
	idx := make([]int, len(u.Shape))
	neighbours := make([]int, 0, len(u.Shape))

	var jumps models.JumpRecords
	for cell, boundary := range mask.Data {
		if !boundary {
			continue
		}
		models.Unravel(u.Shape, cell, idx)

		neighbours = neighbours[:0]
		for d := range idx {
			if idx[d] == u.Shape[d]-1 {
				// clipped onto the cell itself, which is masked
				continue
			}
			if next := cell + strides[d]; !mask.Data[next] {
				neighbours = append(neighbours, next)
			}
		}
		if len(neighbours) == 0 {
			continue
		}

		from := m.points(cell)
		var to [][]float64
		toValue := 0.0
		for _, nb := range neighbours {
			to = append(to, m.points(nb)...)
			toValue += u.Data[nb]
		}
		toValue /= float64(len(neighbours))

		location := centroid(from)
		for d, c := range centroid(to) {
			location[d] = (location[d] + c) / 2
		}

		jump := models.JumpRecord{
			Location: location,
			From:     u.Data[cell] * scale,
			To:       toValue * scale,
		}
		jump.Size = jump.To - jump.From
		jumps = append(jumps, jump)
	}
	return jumps, nil
}

// points returns the raw coordinates assigned to cell, or the cell's own
// coordinate in raw space when no sample landed there
func (m *Mapper) points(cell int) [][]float64 {
	if pts := m.grid.Points[cell]; len(pts) > 0 {
		return pts
	}
	idx := models.Unravel(m.grid.Shape, cell, nil)
	return [][]float64{m.norm.DenormalizeX(m.grid.CellCoord(idx))}
}

// centroid returns the per-axis mean of pts
func centroid(pts [][]float64) []float64 {
	dims := len(pts[0])
	flat := make([]float64, 0, len(pts)*dims)
	for _, p := range pts {
		flat = append(flat, p...)
	}
	a := mat.NewDense(len(pts), dims, flat)

	out := make([]float64, dims)
	for d := range out {
		out[d] = stat.Mean(mat.Col(nil, d, a), nil)
	}
	return out
}
