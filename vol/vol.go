// Package vol implements a dense n-dimensional volume of float64 samples
// stored in row-major order.
//
// Volumes are the in-memory form of voxel data read from NIFTI-1 and
// ANALYZE files. The package provides the axis flips, transposes and
// subvolume views needed to reorient volumes between coordinate frames.
package vol

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShapeMismatch is returned when a data slice does not match the
	// product of the requested shape.
	ErrShapeMismatch = errors.New("vol: data length does not match shape")

	// ErrBadAxis is returned when an axis index is out of range.
	ErrBadAxis = errors.New("vol: axis out of range")

	// ErrBadPermutation is returned when a transpose order is not a
	// permutation of the volume's axes.
	ErrBadPermutation = errors.New("vol: order is not a permutation of axes")
)

// Volume is a dense n-dimensional array of float64 samples.
// The zero value is an empty zero-dimensional volume.
type Volume struct {
	data    []float64
	shape   []int
	strides []int
}

// New creates a zero-filled volume with the given shape.
func New(shape ...int) *Volume {
	n := 1
	for _, s := range shape {
		n *= s
	}
	v := &Volume{
		data:  make([]float64, n),
		shape: append([]int(nil), shape...),
	}
	v.strides = rowMajorStrides(v.shape)
	return v
}

// FromSlice creates a volume backed by a copy of data, interpreted in
// row-major order with the given shape.
func FromSlice(data []float64, shape ...int) (*Volume, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d samples for shape %v", ErrShapeMismatch, len(data), shape)
	}
	v := New(shape...)
	copy(v.data, data)
	return v, nil
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// Rank returns the number of axes.
func (v *Volume) Rank() int {
	return len(v.shape)
}

// Shape returns a copy of the volume's shape.
func (v *Volume) Shape() []int {
	return append([]int(nil), v.shape...)
}

// Len returns the total number of samples.
func (v *Volume) Len() int {
	return len(v.data)
}

// Data returns the underlying sample slice in row-major order.
// The slice is shared with the volume; callers must not resize it.
func (v *Volume) Data() []float64 {
	return v.data
}

// offset computes the flat index for idx, panicking on rank mismatch or
// out-of-range indices. Index errors here are programming errors, like
// out-of-range slice indexing.
func (v *Volume) offset(idx []int) int {
	if len(idx) != len(v.shape) {
		panic(fmt.Sprintf("vol: %d indices for rank-%d volume", len(idx), len(v.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= v.shape[i] {
			panic(fmt.Sprintf("vol: index %d out of range [0,%d) on axis %d", x, v.shape[i], i))
		}
		off += x * v.strides[i]
	}
	return off
}

// At returns the sample at the given index.
func (v *Volume) At(idx ...int) float64 {
	return v.data[v.offset(idx)]
}

// Set stores a sample at the given index.
func (v *Volume) Set(value float64, idx ...int) {
	v.data[v.offset(idx)] = value
}

// FlipAxis returns a new volume with the given axis reversed,
// the n-dimensional analogue of reversing a slice.
func (v *Volume) FlipAxis(axis int) (*Volume, error) {
	if axis < 0 || axis >= len(v.shape) {
		return nil, fmt.Errorf("%w: axis %d of rank-%d volume", ErrBadAxis, axis, len(v.shape))
	}
	out := New(v.shape...)
	idx := make([]int, len(v.shape))
	src := make([]int, len(v.shape))
	for i := 0; i < len(v.data); i++ {
		copy(src, idx)
		src[axis] = v.shape[axis] - 1 - idx[axis]
		out.data[out.offset(idx)] = v.data[v.offset(src)]
		increment(idx, v.shape)
	}
	return out, nil
}

// Transpose returns a new volume with axes permuted by order: axis i of
// the result is axis order[i] of the receiver.
func (v *Volume) Transpose(order ...int) (*Volume, error) {
	if len(order) != len(v.shape) {
		return nil, fmt.Errorf("%w: got %v for rank %d", ErrBadPermutation, order, len(v.shape))
	}
	seen := make([]bool, len(order))
	for _, ax := range order {
		if ax < 0 || ax >= len(order) || seen[ax] {
			return nil, fmt.Errorf("%w: got %v", ErrBadPermutation, order)
		}
		seen[ax] = true
	}
	shape := make([]int, len(order))
	for i, ax := range order {
		shape[i] = v.shape[ax]
	}
	out := New(shape...)
	idx := make([]int, len(shape))
	src := make([]int, len(shape))
	for i := 0; i < len(out.data); i++ {
		for j, ax := range order {
			src[ax] = idx[j]
		}
		out.data[out.offset(idx)] = v.data[v.offset(src)]
		increment(idx, shape)
	}
	return out, nil
}

// Subvolume returns a copy of the region starting at lo (inclusive) with
// the given shape.
func (v *Volume) Subvolume(lo, shape []int) (*Volume, error) {
	if len(lo) != len(v.shape) || len(shape) != len(v.shape) {
		return nil, fmt.Errorf("%w: rank mismatch", ErrShapeMismatch)
	}
	for i := range lo {
		if lo[i] < 0 || shape[i] < 0 || lo[i]+shape[i] > v.shape[i] {
			return nil, fmt.Errorf("%w: region [%d,%d) on axis %d of extent %d",
				ErrShapeMismatch, lo[i], lo[i]+shape[i], i, v.shape[i])
		}
	}
	out := New(shape...)
	idx := make([]int, len(shape))
	src := make([]int, len(shape))
	for i := 0; i < len(out.data); i++ {
		for j := range idx {
			src[j] = lo[j] + idx[j]
		}
		out.data[out.offset(idx)] = v.data[v.offset(src)]
		increment(idx, shape)
	}
	return out, nil
}

// Collapse returns a copy with the given axis removed, keeping only the
// hyperplane at position at on that axis.
func (v *Volume) Collapse(axis, at int) (*Volume, error) {
	if axis < 0 || axis >= len(v.shape) {
		return nil, fmt.Errorf("%w: axis %d of rank-%d volume", ErrBadAxis, axis, len(v.shape))
	}
	if at < 0 || at >= v.shape[axis] {
		return nil, fmt.Errorf("%w: position %d on axis %d of extent %d",
			ErrBadAxis, at, axis, v.shape[axis])
	}
	shape := make([]int, 0, len(v.shape)-1)
	for i, s := range v.shape {
		if i != axis {
			shape = append(shape, s)
		}
	}
	out := New(shape...)
	idx := make([]int, len(shape))
	src := make([]int, len(v.shape))
	for i := 0; i < len(out.data); i++ {
		k := 0
		for j := range src {
			if j == axis {
				src[j] = at
			} else {
				src[j] = idx[k]
				k++
			}
		}
		out.data[out.offset(idx)] = v.data[v.offset(src)]
		increment(idx, shape)
	}
	return out, nil
}

// EqualApprox reports whether two volumes have the same shape and all
// samples within tol of each other.
func (v *Volume) EqualApprox(other *Volume, tol float64) bool {
	if len(v.shape) != len(other.shape) {
		return false
	}
	for i := range v.shape {
		if v.shape[i] != other.shape[i] {
			return false
		}
	}
	for i := range v.data {
		if math.Abs(v.data[i]-other.data[i]) > tol {
			return false
		}
	}
	return true
}

// increment advances a row-major multi-index within shape.
func increment(idx, shape []int) {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < shape[i] {
			return
		}
		idx[i] = 0
	}
}
