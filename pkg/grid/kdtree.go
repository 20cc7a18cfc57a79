package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Point is a D-dimensional sample coordinate that remembers which sample
// it came from
type Point struct {
	Coord []float64
	Index int
}

// Compare implements the kdtree.Comparable interface
func (p Point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point)
	return p.Coord[d] - q.Coord[d]
}

// Dims returns the number of dimensions for the KD-tree
func (p Point) Dims() int { return len(p.Coord) }

// Distance returns the squared Euclidean distance between two points
func (p Point) Distance(c kdtree.Comparable) float64 {
	q := c.(Point)
	sum := 0.0
	for d, v := range p.Coord {
		diff := v - q.Coord[d]
		sum += diff * diff
	}
	return sum
}

// Points is a collection of Point that satisfies kdtree.Interface
type Points []Point

func (p Points) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points) Len() int                              { return len(p) }
func (p Points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points
type pointPlane struct {
	Points
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.Points[i].Coord[p.Dim] < p.Points[j].Coord[p.Dim]
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points: p.Points[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points[i], p.Points[j] = p.Points[j], p.Points[i]
}

// index is a nearest-neighbour index over a set of coordinates
type index struct {
	tree *kdtree.Tree
}

// newIndex builds a KD-tree over coords; coords itself is not reordered
func newIndex(coords [][]float64) *index {
	points := make(Points, len(coords))
	for i, c := range coords {
		points[i] = Point{Coord: c, Index: i}
	}
	return &index{tree: kdtree.New(points, true)}
}

// nearest returns the index of the coordinate closest to q and its
// Euclidean distance
func (ix *index) nearest(q []float64) (int, float64) {
	got, dist := ix.tree.Nearest(Point{Coord: q, Index: -1})
	if got == nil {
		return -1, math.Inf(1)
	}
	return got.(Point).Index, math.Sqrt(dist)
}

// secondNearestDistance returns the distance from q to its second closest
// coordinate, which for a q taken from the indexed set is the distance to
// its closest other member
func (ix *index) secondNearestDistance(q []float64) float64 {
	keeper := kdtree.NewNKeeper(2)
	ix.tree.NearestSet(keeper, Point{Coord: q, Index: -1})

	found := 0
	worst := 0.0
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		found++
		if item.Dist > worst {
			worst = item.Dist
		}
	}
	if found < 2 {
		return math.Inf(1)
	}
	return math.Sqrt(worst)
}
