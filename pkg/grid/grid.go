// Package grid bins scattered normalized samples into a regular
// D-dimensional grid of equal-sided cells.
package grid

import (
	"math"
	"runtime"
	"sync"

	"fdd/internal/fdderr"
	"fdd/internal/models"
	"fdd/pkg/normalize"
)

// axisEpsilon absorbs floating error when counting grid lines, so that an
// axis of length 1 at resolution 1/k has exactly k lines
const axisEpsilon = 1e-9

// Grid is the rasterized form of a normalized observation set
type Grid struct {
	// Shape is the number of cells along every axis
	Shape []int

	// Channels is the outcome dimension; scalar outcomes have one channel
	Channels int

	// Resolution is the side length of a cell, shared by all axes
	Resolution float64

	// Values holds the outcome of every cell, shaped Shape + [Channels]
	Values models.Field

	// Counts is the number of samples assigned to every cell, flat
	// row-major
	Counts []int

	// Points holds the raw coordinates of the samples assigned to every
	// cell, flat row-major. Cells without samples have no entry.
	Points [][][]float64

	// Filled is the number of empty cells filled by nearest neighbour
	Filled int
}

// Options controls rasterization
type Options struct {
	// Resolution is the cell side length. Zero derives 1/floor(sqrt(n)).
	Resolution float64

	// NumCores bounds the workers used for nearest-neighbour queries
	NumCores int
}

// DefaultResolution returns 1/floor(sqrt(n)), which gives an integer number
// of cells per unit interval
func DefaultResolution(n int) float64 {
	k := math.Floor(math.Sqrt(float64(n)))
	if k < 1 {
		k = 1
	}
	return 1 / k
}

// Size returns the number of cells
func (g *Grid) Size() int {
	return models.ShapeSize(g.Shape)
}

// Dims returns the grid dimension D
func (g *Grid) Dims() int {
	return len(g.Shape)
}

// CellCoord returns the normalized coordinate of the cell at idx, which is
// idx scaled by the resolution
func (g *Grid) CellCoord(idx []int) []float64 {
	out := make([]float64, len(idx))
	for d, i := range idx {
		out[d] = float64(i) * g.Resolution
	}
	return out
}

// Value returns the outcome vector of the cell at flat offset cell
func (g *Grid) Value(cell int) []float64 {
	return g.Values.Data[cell*g.Channels : (cell+1)*g.Channels]
}

// CellOf returns the multi-index of the cell holding normalized
// coordinate x
func (g *Grid) CellOf(x []float64) []int {
	idx := make([]int, len(x))
	for d, v := range x {
		i := int(math.Floor(v / g.Resolution))
		if i < 0 {
			i = 0
		}
		if i > g.Shape[d]-1 {
			i = g.Shape[d] - 1
		}
		idx[d] = i
	}
	return idx
}

// newGrid allocates the cells covering [0, xmax] along every axis
func newGrid(xmax []float64, channels int, resolution float64) (*Grid, error) {
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return nil, fdderr.Errorf(fdderr.StageGrid, fdderr.Configuration, "invalid resolution %v", resolution)
	}

	shape := make([]int, len(xmax))
	for d, m := range xmax {
		lines := int(math.Ceil(m/resolution - axisEpsilon))
		if lines < 1 {
			lines = 1
		}
		shape[d] = lines
	}

	size := models.ShapeSize(shape)
	return &Grid{
		Shape:      shape,
		Channels:   channels,
		Resolution: resolution,
		Values:     models.NewField(append(append([]int(nil), shape...), channels)...),
		Counts:     make([]int, size),
		Points:     make([][][]float64, size),
	}, nil
}

// Rasterize averages the samples of norm into grid cells and fills cells
// that received no sample with the outcome of the nearest sample
func Rasterize(norm *normalize.Normalized, opts Options) (*Grid, error) {
	resolution := opts.Resolution
	if resolution == 0 {
		resolution = DefaultResolution(norm.Len())
	}

	g, err := newGrid(norm.XMax(), norm.Channels(), resolution)
	if err != nil {
		return nil, err
	}

	// Accumulate running sums and counts
	for i, x := range norm.X {
		cell := models.Offset(g.Shape, g.CellOf(x))
		sum := g.Value(cell)
		for c, y := range norm.Y[i] {
			sum[c] += y
		}
		g.Counts[cell]++
		g.Points[cell] = append(g.Points[cell], norm.Raw.X[i])
	}

	var empty []int
	for cell, count := range g.Counts {
		if count == 0 {
			empty = append(empty, cell)
			continue
		}
		sum := g.Value(cell)
		for c := range sum {
			sum[c] /= float64(count)
		}
	}

	if len(empty) > 0 {
		g.fillNearest(norm, empty, opts.NumCores)
	}
	return g, nil
}

// fillNearest assigns every cell in cells the outcome of the normalized
// sample closest to the cell coordinate. Queries are split across workers;
// every worker writes a disjoint set of cells.
func (g *Grid) fillNearest(norm *normalize.Normalized, cells []int, numCores int) {
	ix := newIndex(norm.X)

	forEachChunk(len(cells), numCores, func(start, end int) {
		idx := make([]int, g.Dims())
		for _, cell := range cells[start:end] {
			models.Unravel(g.Shape, cell, idx)
			nearest, _ := ix.nearest(g.CellCoord(idx))
			copy(g.Value(cell), norm.Y[nearest])
		}
	})
	g.Filled = len(cells)
}

// forEachChunk splits [0,n) into at most workers contiguous ranges and runs
// fn on each in its own goroutine
func forEachChunk(n, workers int, fn func(start, end int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if n < 100 || workers == 1 {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	perWorker := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * perWorker
		end := start + perWorker
		if end > n {
			end = n
		}
		if start >= n {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
