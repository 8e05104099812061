package coords

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrComposition is returned when two transforms cannot be composed
	// because their coordinate systems do not match.
	ErrComposition = errors.New("coords: coordinate systems do not compose")

	// ErrSingular is returned when a transform cannot be inverted.
	ErrSingular = errors.New("coords: singular transform")

	// ErrNotSquare is returned when inversion is requested on a
	// transform between spaces of different dimension.
	ErrNotSquare = errors.New("coords: transform is not square")

	// ErrMatrixShape is returned when a homogeneous matrix does not
	// match its coordinate systems, or its last row is not [0 ... 0 1].
	ErrMatrixShape = errors.New("coords: bad homogeneous matrix")

	// ErrPointShape is returned when a point array does not match the
	// transform's input dimension.
	ErrPointShape = errors.New("coords: point dimension mismatch")

	// ErrParamLength is returned when start/step/shape parameters have
	// mismatched lengths.
	ErrParamLength = errors.New("coords: parameter length mismatch")
)

// AffineTransform is an affine map from an input coordinate system of
// dimension m to an output coordinate system of dimension n, represented
// as an (n+1)x(m+1) homogeneous matrix whose last row is [0 ... 0 1].
// Transforms are immutable after construction.
type AffineTransform struct {
	matrix *mat.Dense
	in     CoordinateSystem
	out    CoordinateSystem
}

// NewAffineTransform creates a transform from a homogeneous matrix and a
// pair of coordinate systems. The matrix must be
// (out.Dim()+1) x (in.Dim()+1) with last row [0 ... 0 1].
func NewAffineTransform(matrix mat.Matrix, in, out CoordinateSystem) (*AffineTransform, error) {
	rows, cols := matrix.Dims()
	if rows != out.Dim()+1 || cols != in.Dim()+1 {
		return nil, fmt.Errorf("%w: %dx%d matrix for %d -> %d axes",
			ErrMatrixShape, rows, cols, in.Dim(), out.Dim())
	}
	for j := 0; j < cols; j++ {
		want := 0.0
		if j == cols-1 {
			want = 1.0
		}
		if matrix.At(rows-1, j) != want {
			return nil, fmt.Errorf("%w: last row is not [0 ... 0 1]", ErrMatrixShape)
		}
	}
	m := mat.NewDense(rows, cols, nil)
	m.Copy(matrix)
	return &AffineTransform{matrix: m, in: in, out: out}, nil
}

// Identity returns the identity transform on a coordinate system.
func Identity(cs CoordinateSystem) *AffineTransform {
	n := cs.Dim() + 1
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return &AffineTransform{matrix: m, in: cs, out: cs}
}

// FromStartStep builds a diagonal transform where output axis i equals
// start[i] + step[i] * input_i. shape gives the grid extent along each
// input axis and must have the same length as the axis lists; it is
// validated here so a mismatched grid fails at construction rather than
// at read time.
func FromStartStep(inNames, outNames []string, start, step []float64, shape []int) (*AffineTransform, error) {
	n := len(inNames)
	if len(outNames) != n || len(start) != n || len(step) != n || len(shape) != n {
		return nil, fmt.Errorf("%w: axes %d/%d, start %d, step %d, shape %d",
			ErrParamLength, len(inNames), len(outNames), len(start), len(step), len(shape))
	}
	in, err := NewCoordinateSystem("voxel", inNames, Float64)
	if err != nil {
		return nil, err
	}
	out, err := NewCoordinateSystem("world", outNames, Float64)
	if err != nil {
		return nil, err
	}
	m := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, step[i])
		m.Set(i, n, start[i])
	}
	m.Set(n, n, 1)
	return &AffineTransform{matrix: m, in: in, out: out}, nil
}

// Matrix returns a copy of the homogeneous matrix.
func (t *AffineTransform) Matrix() *mat.Dense {
	rows, cols := t.matrix.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Copy(t.matrix)
	return out
}

// In returns the input coordinate system.
func (t *AffineTransform) In() CoordinateSystem {
	return t.in
}

// Out returns the output coordinate system.
func (t *AffineTransform) Out() CoordinateSystem {
	return t.out
}

// Compose combines two transforms into the map that first applies inner
// and then outer. It requires outer's input system to equal inner's
// output system; the result maps inner.In() to outer.Out() with matrix
// outer.matrix * inner.matrix.
func Compose(outer, inner *AffineTransform) (*AffineTransform, error) {
	if !outer.in.Equal(inner.out) {
		return nil, fmt.Errorf("%w: %v does not match %v", ErrComposition, outer.in, inner.out)
	}
	var m mat.Dense
	m.Mul(outer.matrix, inner.matrix)
	return &AffineTransform{matrix: &m, in: inner.in, out: outer.out}, nil
}

// Inverse returns the inverse transform, with input and output systems
// swapped. The transform must be square and numerically invertible.
func (t *AffineTransform) Inverse() (*AffineTransform, error) {
	rows, cols := t.matrix.Dims()
	if rows != cols {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, rows, cols)
	}
	if det := mat.Det(t.matrix); det == 0 || math.IsNaN(det) {
		return nil, fmt.Errorf("%w: determinant is zero", ErrSingular)
	}
	var inv mat.Dense
	if err := inv.Inverse(t.matrix); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return &AffineTransform{matrix: &inv, in: t.out, out: t.in}, nil
}

// Apply maps an (m, k) array of input points to an (n, k) array of
// output points, one point per column.
func (t *AffineTransform) Apply(points *mat.Dense) (*mat.Dense, error) {
	rows, cols := t.matrix.Dims()
	n, m := rows-1, cols-1
	pr, pc := points.Dims()
	if pr != m {
		return nil, fmt.Errorf("%w: %d rows for %d input axes", ErrPointShape, pr, m)
	}
	linear := t.matrix.Slice(0, n, 0, m)
	var out mat.Dense
	out.Mul(linear, points)
	for i := 0; i < n; i++ {
		trans := t.matrix.At(i, m)
		for j := 0; j < pc; j++ {
			out.Set(i, j, out.At(i, j)+trans)
		}
	}
	return &out, nil
}

// ApplyPoint maps a single input point.
func (t *AffineTransform) ApplyPoint(point []float64) ([]float64, error) {
	rows, cols := t.matrix.Dims()
	n, m := rows-1, cols-1
	if len(point) != m {
		return nil, fmt.Errorf("%w: %d coordinates for %d input axes", ErrPointShape, len(point), m)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := t.matrix.At(i, m)
		for j := 0; j < m; j++ {
			v += t.matrix.At(i, j) * point[j]
		}
		out[i] = v
	}
	return out, nil
}

// EqualApprox reports whether two transforms connect equal coordinate
// systems through matrices equal within tol.
func (t *AffineTransform) EqualApprox(other *AffineTransform, tol float64) bool {
	if !t.in.Equal(other.in) || !t.out.Equal(other.out) {
		return false
	}
	return mat.EqualApprox(t.matrix, other.matrix, tol)
}

// String returns a readable description of the transform.
func (t *AffineTransform) String() string {
	return fmt.Sprintf("AffineTransform{%v -> %v, %v}", t.in, t.out, mat.Formatted(t.matrix))
}
