package models

// Observations is the raw input of a run: one outcome vector and one
// coordinate per sample.
type Observations struct {
	// Y holds the outcome of each sample. Scalar outcomes are stored as
	// length-1 vectors.
	Y [][]float64

	// X holds the D-dimensional coordinate of each sample
	X [][]float64
}

// Len returns the number of samples
func (o Observations) Len() int {
	return len(o.Y)
}

// Dims returns the coordinate dimension D, or 0 for an empty set
func (o Observations) Dims() int {
	if len(o.X) == 0 {
		return 0
	}
	return len(o.X[0])
}

// Channels returns the outcome dimension C, or 0 for an empty set
func (o Observations) Channels() int {
	if len(o.Y) == 0 {
		return 0
	}
	return len(o.Y[0])
}

// Field is a dense row-major N-dimensional array
type Field struct {
	// Shape is the extent of each axis
	Shape []int

	// Data holds Size() values in row-major order
	Data []float64
}

// NewField allocates a zeroed field of the given shape
func NewField(shape ...int) Field {
	s := append([]int(nil), shape...)
	return Field{Shape: s, Data: make([]float64, ShapeSize(s))}
}

// Size returns the number of elements of the field
func (f Field) Size() int {
	return ShapeSize(f.Shape)
}

// At returns the value at the given multi-index
func (f Field) At(idx ...int) float64 {
	return f.Data[Offset(f.Shape, idx)]
}

// Set stores v at the given multi-index
func (f Field) Set(v float64, idx ...int) {
	f.Data[Offset(f.Shape, idx)] = v
}

// Mask is a dense row-major boolean array marking boundary cells
type Mask struct {
	Shape []int
	Data  []bool
}

// NewMask allocates an all-false mask of the given shape
func NewMask(shape ...int) Mask {
	s := append([]int(nil), shape...)
	return Mask{Shape: s, Data: make([]bool, ShapeSize(s))}
}

// Count returns the number of set cells
func (m Mask) Count() int {
	n := 0
	for _, b := range m.Data {
		if b {
			n++
		}
	}
	return n
}

// ShapeSize returns the product of the extents in shape
func ShapeSize(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Strides returns the row-major stride of every axis
func Strides(shape []int) []int {
	strides := make([]int, len(shape))
	step := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = step
		step *= shape[d]
	}
	return strides
}

// Offset converts a multi-index into a flat row-major offset
func Offset(shape []int, idx []int) int {
	if len(idx) != len(shape) {
		panic("models: index rank does not match shape")
	}
	off := 0
	for d, i := range idx {
		off = off*shape[d] + i
	}
	return off
}

// Unravel converts a flat row-major offset into a multi-index, writing into
// idx when it has the right length
func Unravel(shape []int, flat int, idx []int) []int {
	if len(idx) != len(shape) {
		idx = make([]int, len(shape))
	}
	for d := len(shape) - 1; d >= 0; d-- {
		idx[d] = flat % shape[d]
		flat /= shape[d]
	}
	return idx
}

// SolverOutput is what the external energy minimization returns for one run
type SolverOutput struct {
	// V is the multi-level field, shaped grid shape + [levels]
	V Field

	// Energy is the energy value after every iteration
	Energy []float64

	// Gap is the convergence gap after every iteration
	Gap []float64

	// Iterations is the number of iterations the solver actually ran
	Iterations int
}

// JumpRecord describes the discontinuity detected at one boundary cell
type JumpRecord struct {
	// Location is the estimated boundary point in raw coordinate space,
	// the midpoint between the jump-from and jump-to point means
	Location []float64

	// From is the field value on the boundary cell, in raw outcome units
	From float64

	// To is the mean field value on the non-boundary forward neighbours,
	// in raw outcome units
	To float64

	// Size is To minus From
	Size float64
}

// JumpRecords is the ordered set of jumps of one run
type JumpRecords []JumpRecord

// Sizes returns the jump size of every record
func (j JumpRecords) Sizes() []float64 {
	out := make([]float64, len(j))
	for i, r := range j {
		out[i] = r.Size
	}
	return out
}
