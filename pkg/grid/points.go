package grid

import (
	"math"
	"sort"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"

	"fdd/internal/fdderr"
	"fdd/internal/models"
	"fdd/pkg/normalize"
)

// maxQuantileSample caps the number of samples used to estimate spacing
const maxQuantileSample = 1000

// PointsOptions controls nearest-sample rasterization
type PointsOptions struct {
	// Resolution is the cell side length. Zero derives it from the spacing
	// of the samples.
	Resolution float64

	// Qtile is the quantile of nearest-neighbour distances used for the
	// derived resolution
	Qtile float64

	// Gridded means the samples already lie on a lattice, so the spacing
	// quantile is used as is. Otherwise it is scaled by sqrt(2), since a
	// sample falls near the middle of its cell on average.
	Gridded bool

	// Seed fixes the subsample drawn for large inputs
	Seed uint32

	// NumCores bounds the workers used for nearest-neighbour queries
	NumCores int
}

// SpacingResolution estimates a cell size from the qtile quantile of the
// distances between every sample and its closest neighbour. Inputs above
// maxQuantileSample samples are subsampled. Distances are capped at 1, the
// extent of the unit frame.
func SpacingResolution(norm *normalize.Normalized, qtile float64, gridded bool, seed uint32) (float64, error) {
	if qtile < 0 || qtile > 1 {
		return 0, fdderr.Errorf(fdderr.StageGrid, fdderr.Configuration, "quantile %v outside [0,1]", qtile)
	}

	sample := norm.X
	if len(sample) > maxQuantileSample {
		sample = subsample(norm.X, maxQuantileSample, seed)
	}

	distances := make([]float64, len(sample))
	if len(sample) < 2 {
		distances = []float64{1}
	} else {
		ix := newIndex(sample)
		for i, x := range sample {
			distances[i] = math.Min(ix.secondNearestDistance(x), 1)
		}
	}
	sort.Float64s(distances)
	q := stat.Quantile(qtile, stat.LinInterp, distances, nil)

	resolution := q
	if !gridded {
		resolution = 2 * q / math.Sqrt2
	}
	if !(resolution > 0) {
		return 0, fdderr.Errorf(fdderr.StageGrid, fdderr.Configuration,
			"sample spacing quantile %v gives resolution %v", qtile, resolution)
	}
	return resolution, nil
}

// subsample draws k distinct rows of x with a seeded partial Fisher-Yates
// shuffle
func subsample(x [][]float64, k int, seed uint32) [][]float64 {
	// a zero state would make fastrand pick a random seed
	if seed == 0 {
		seed = 1
	}
	var rng fastrand.RNG
	rng.Seed(seed)

	perm := make([]int, len(x))
	for i := range perm {
		perm[i] = i
	}
	out := make([][]float64, k)
	for i := 0; i < k; i++ {
		j := i + int(rng.Uint32n(uint32(len(perm)-i)))
		perm[i], perm[j] = perm[j], perm[i]
		out[i] = x[perm[i]]
	}
	return out
}

// RasterizePoints assigns every grid cell the outcome and raw coordinate of
// the sample closest to the cell coordinate, without averaging
func RasterizePoints(norm *normalize.Normalized, opts PointsOptions) (*Grid, error) {
	resolution := opts.Resolution
	if resolution == 0 {
		var err error
		resolution, err = SpacingResolution(norm, opts.Qtile, opts.Gridded, opts.Seed)
		if err != nil {
			return nil, err
		}
	}

	g, err := newGrid(norm.XMax(), norm.Channels(), resolution)
	if err != nil {
		return nil, err
	}

	ix := newIndex(norm.X)
	forEachChunk(g.Size(), opts.NumCores, func(start, end int) {
		idx := make([]int, g.Dims())
		for cell := start; cell < end; cell++ {
			models.Unravel(g.Shape, cell, idx)
			nearest, _ := ix.nearest(g.CellCoord(idx))
			copy(g.Value(cell), norm.Y[nearest])
			g.Points[cell] = [][]float64{norm.Raw.X[nearest]}
			g.Counts[cell] = 1
		}
	})
	return g, nil
}
