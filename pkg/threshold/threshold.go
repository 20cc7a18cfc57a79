// Package threshold computes the gradient magnitude of the reconstructed
// field and picks the magnitude above which a cell is a boundary cell.
package threshold

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fdd/internal/fdderr"
	"fdd/internal/models"
)

// Policy names accepted by Select
const (
	PolicyKMeans = "kmeans"
	PolicyFixed  = "fixed"
)

// DefaultBins is the histogram size used by the k-means policy
const DefaultBins = 10

// maxRounds caps the Lloyd iterations of the two-cluster split
const maxRounds = 100

// ForwardDifferences returns the forward difference of u along every axis,
// shaped u.Shape + [D]. The difference at the far edge of an axis is zero.
func ForwardDifferences(u models.Field) models.Field {
	dims := len(u.Shape)
	out := models.NewField(append(append([]int(nil), u.Shape...), dims)...)
	strides := models.Strides(u.Shape)
	idx := make([]int, dims)

	for cell, value := range u.Data {
		models.Unravel(u.Shape, cell, idx)
		for d := 0; d < dims; d++ {
			if idx[d] < u.Shape[d]-1 {
				out.Data[cell*dims+d] = u.Data[cell+strides[d]] - value
			}
		}
	}
	return out
}

// GradientNorm returns the Euclidean norm of the forward differences of u at
// every cell
func GradientNorm(u models.Field) models.Field {
	diff := ForwardDifferences(u)
	dims := len(u.Shape)
	out := models.NewField(u.Shape...)
	for cell := range out.Data {
		out.Data[cell] = floats.Norm(diff.Data[cell*dims:(cell+1)*dims], 2)
	}
	return out
}

// Fixed returns the threshold implied by the jump penalty nu
func Fixed(nu float64) float64 {
	return math.Sqrt(nu)
}

// KMeans splits the histogram of the gradient norm into two clusters of
// (bin upper edge, count) points. The cluster holding the fullest bin is the
// smooth background; the threshold is the largest upper edge among its bins,
// so every cell above the background is a boundary candidate.
//
// Bins are placed at their upper edge rather than their center. The
// threshold then lands exactly on the boundary between the background and
// the first bin outside it.
func KMeans(norm models.Field, bins int) (float64, error) {
	if bins < 2 {
		return 0, fdderr.Errorf(fdderr.StageThreshold, fdderr.Configuration, "need at least 2 histogram bins, got %d", bins)
	}
	if len(norm.Data) == 0 {
		return 0, fdderr.Errorf(fdderr.StageThreshold, fdderr.NumericDegeneracy, "empty gradient field: %w", fdderr.ErrSingleCluster)
	}

	data := append([]float64(nil), norm.Data...)
	sort.Float64s(data)
	lo, hi := data[0], data[len(data)-1]
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(hi, 0) {
		return 0, fdderr.Errorf(fdderr.StageThreshold, fdderr.NumericDegeneracy, "gradient norm is not finite")
	}
	if lo == hi {
		return 0, fdderr.Errorf(fdderr.StageThreshold, fdderr.NumericDegeneracy,
			"constant gradient norm %g: %w", lo, fdderr.ErrSingleCluster)
	}

	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)
	dividers := append([]float64(nil), edges...)
	// stat.Histogram excludes the last divider
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, data, nil)

	labels, err := twoMeans(edges[1:], counts)
	if err != nil {
		return 0, err
	}

	background := labels[floats.MaxIdx(counts)]
	threshold := math.Inf(-1)
	for i, l := range labels {
		if l == background {
			threshold = math.Max(threshold, edges[i+1])
		}
	}
	return threshold, nil
}

// twoMeans runs Lloyd's algorithm with two clusters over the points
// (x[i], y[i]). The first centroid starts at the point with the largest y,
// the second at the point farthest from it, so the result is deterministic.
func twoMeans(x, y []float64) ([]int, error) {
	n := len(x)
	first := floats.MaxIdx(y)
	second, far := -1, 0.0
	for i := 0; i < n; i++ {
		if d := math.Hypot(x[i]-x[first], y[i]-y[first]); d > far {
			second, far = i, d
		}
	}
	if second < 0 {
		return nil, fdderr.Errorf(fdderr.StageThreshold, fdderr.NumericDegeneracy,
			"all histogram points coincide: %w", fdderr.ErrSingleCluster)
	}

	centers := [2][2]float64{{x[first], y[first]}, {x[second], y[second]}}
	labels := make([]int, n)
	for round := 0; round < maxRounds; round++ {
		changed := round == 0
		for i := 0; i < n; i++ {
			d0 := math.Hypot(x[i]-centers[0][0], y[i]-centers[0][1])
			d1 := math.Hypot(x[i]-centers[1][0], y[i]-centers[1][1])
			l := 0
			if d1 < d0 {
				l = 1
			}
			if labels[i] != l {
				labels[i], changed = l, true
			}
		}
		if !changed {
			break
		}

		var sum [2][2]float64
		var size [2]int
		for i, l := range labels {
			sum[l][0] += x[i]
			sum[l][1] += y[i]
			size[l]++
		}
		for c := 0; c < 2; c++ {
			if size[c] == 0 {
				return nil, fdderr.Errorf(fdderr.StageThreshold, fdderr.NumericDegeneracy,
					"cluster %d emptied: %w", c, fdderr.ErrSingleCluster)
			}
			centers[c] = [2]float64{sum[c][0] / float64(size[c]), sum[c][1] / float64(size[c])}
		}
	}
	return labels, nil
}

// Select returns the threshold chosen by policy for the gradient norm field
func Select(policy string, norm models.Field, nu float64, bins int) (float64, error) {
	switch policy {
	case PolicyFixed:
		if nu < 0 {
			return 0, fdderr.Errorf(fdderr.StageThreshold, fdderr.Configuration, "negative nu %g", nu)
		}
		return Fixed(nu), nil
	case PolicyKMeans, "":
		if bins == 0 {
			bins = DefaultBins
		}
		return KMeans(norm, bins)
	default:
		return 0, fdderr.New(fdderr.StageThreshold, fdderr.Configuration, fmt.Errorf("unknown threshold policy %q", policy))
	}
}
