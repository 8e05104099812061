// Package orient analyzes and applies axis orientations of affine
// transforms.
//
// Given a voxel-to-world affine, the analyzer determines, for each input
// axis, the output axis it most nearly maps to and whether it runs in
// the same or the opposite direction. The resulting descriptor can be
// applied to a volume (flipping and transposing its axes) or turned back
// into the permutation/flip affine it implies.
package orient

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/voxelmap/go-nifti/vol"
)

var (
	// ErrDroppedAxis is returned when an orientation with dropped axes
	// is applied to data; a drop cannot be undone to reconstruct
	// samples.
	ErrDroppedAxis = errors.New("orient: orientation has dropped axes")

	// ErrRank is returned when a volume has fewer axes than the
	// orientation describes.
	ErrRank = errors.New("orient: volume rank below orientation length")
)

// rankTol is the relative singular value cutoff used to determine the
// effective rank of the rotation part of an affine.
const rankTol = 1e-12

// Axis describes how one input axis relates to the output axes: the
// index of the closest output axis and the direction sign, +1 when the
// axes run the same way and -1 when opposed. A dropped axis, one with no
// reconstructible counterpart in the other space, has Out == -1 and
// Sign == 0.
type Axis struct {
	Out  int
	Sign int
}

// Dropped reports whether the axis has no matching output axis.
func (a Axis) Dropped() bool {
	return a.Out < 0
}

// Orientation is a per-input-axis orientation descriptor. Each
// non-dropped output axis index appears at most once.
type Orientation []Axis

// Identity returns the orientation that maps each of n axes to itself
// with no flip.
func Identity(n int) Orientation {
	ornt := make(Orientation, n)
	for i := range ornt {
		ornt[i] = Axis{Out: i, Sign: 1}
	}
	return ornt
}

// FromAffine computes the orientation of the input axes of an
// (n+1)x(m+1) homogeneous affine in terms of its output axes.
//
// The linear sub-block is rescaled to unit column norms, then the
// nearest orthogonal matrix is found by polar decomposition (via SVD,
// keeping singular vectors above a relative cutoff to fix the effective
// rank). Each input axis in turn claims the output axis with the
// largest-magnitude entry in its column; a claimed output axis is
// removed from contention for later input axes. Ties therefore resolve
// in column order. Columns that are all zero, and axes beyond the rank
// of the sub-block, come back dropped.
func FromAffine(affine mat.Matrix) Orientation {
	rows, cols := affine.Dims()
	n, m := rows-1, cols-1

	// Rescale columns of the linear sub-block to unit norm. A zero
	// column stays zero and will come back as a dropped axis.
	rs := mat.NewDense(n, m, nil)
	for j := 0; j < m; j++ {
		var norm float64
		for i := 0; i < n; i++ {
			v := affine.At(i, j)
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			rs.Set(i, j, affine.At(i, j)/norm)
		}
	}

	r := nearestOrthogonal(rs)

	size := m
	if n > size {
		size = n
	}
	ornt := make(Orientation, size)
	for i := range ornt {
		ornt[i] = Axis{Out: -1}
	}
	for inAx := 0; inAx < m; inAx++ {
		outAx, best := -1, 0.0
		for i := 0; i < n; i++ {
			if v := math.Abs(r.At(i, inAx)); v > best {
				outAx, best = i, v
			}
		}
		if outAx < 0 {
			continue
		}
		sign := 1
		if r.At(outAx, inAx) < 0 {
			sign = -1
		}
		ornt[inAx] = Axis{Out: outAx, Sign: sign}
		// Zero the claimed output row so later input axes cannot
		// claim it again.
		for j := 0; j < m; j++ {
			r.Set(outAx, j, 0)
		}
	}
	return ornt
}

// nearestOrthogonal returns the closest shearless matrix to rs via
// polar decomposition, truncated to the effective rank of rs.
func nearestOrthogonal(rs *mat.Dense) *mat.Dense {
	n, m := rs.Dims()
	var svd mat.SVD
	if !svd.Factorize(rs, mat.SVDThin) {
		// A failed factorization leaves no usable directions; treat
		// every axis as dropped.
		return mat.NewDense(n, m, nil)
	}
	var p, q mat.Dense
	svd.UTo(&p)
	svd.VTo(&q)
	s := svd.Values(nil)

	keep := 0
	if len(s) > 0 && s[0] > 0 {
		for _, v := range s {
			if v/s[0] > rankTol {
				keep++
			}
		}
	}
	if keep == 0 {
		return mat.NewDense(n, m, nil)
	}
	var r mat.Dense
	r.Mul(p.Slice(0, n, 0, keep), q.Slice(0, m, 0, keep).T())
	out := mat.NewDense(n, m, nil)
	out.Copy(&r)
	return out
}

// ToAffine builds the homogeneous matrix determined by an orientation:
// a pure permutation/flip transform, dropping the axes the orientation
// drops. The result is (m+1)x(n+1) where n is the orientation length
// and m the number of kept axes.
func ToAffine(ornt Orientation) *mat.Dense {
	n := len(ornt)
	var kept []int
	for i, ax := range ornt {
		if !ax.Dropped() {
			kept = append(kept, i)
		}
	}
	m := len(kept)
	p := mat.NewDense(m+1, n+1, nil)
	p.Set(m, n, 1)
	for idx, i := range kept {
		p.Set(idx, ornt[i].Out, float64(ornt[i].Sign))
	}
	return p
}

// Apply transforms the first len(ornt) axes of a volume according to the
// orientation: axes with Sign == -1 are flipped, then axes are
// transposed so that axis i of the result is axis ornt[i].Out of the
// flipped volume. Orientations with dropped axes cannot be applied.
func Apply(v *vol.Volume, ornt Orientation) (*vol.Volume, error) {
	n := len(ornt)
	if v.Rank() < n {
		return nil, fmt.Errorf("%w: rank %d, orientation %d", ErrRank, v.Rank(), n)
	}
	for i, ax := range ornt {
		if ax.Dropped() {
			return nil, fmt.Errorf("%w: axis %d", ErrDroppedAxis, i)
		}
	}
	out := v
	var err error
	for i, ax := range ornt {
		if ax.Sign == -1 {
			out, err = out.FlipAxis(i)
			if err != nil {
				return nil, err
			}
		}
	}
	order := make([]int, v.Rank())
	for i := range order {
		order[i] = i
	}
	for i, ax := range ornt {
		order[i] = ax.Out
	}
	return out.Transpose(order...)
}

// Inverse returns the orientation that, passed to Apply, rearranges a
// volume oriented as o so its axes line up with the output axes. The
// transpose column becomes the inverse of the Out permutation, while
// each flip stays on the input axis that runs backwards. Orientations
// with dropped axes cannot be inverted; an output axis beyond the
// descriptor length leaves its slot dropped in the result.
func (o Orientation) Inverse() (Orientation, error) {
	inv := make(Orientation, len(o))
	for i := range inv {
		inv[i] = Axis{Out: -1}
	}
	for i, ax := range o {
		if ax.Dropped() {
			return nil, fmt.Errorf("%w: axis %d", ErrDroppedAxis, i)
		}
		if ax.Out < len(inv) {
			inv[ax.Out].Out = i
		}
	}
	for i, ax := range o {
		if !inv[i].Dropped() {
			inv[i].Sign = ax.Sign
		}
	}
	return inv, nil
}

// OrientationAffine returns the affine taking array coordinates in a
// volume transformed by Apply back to array coordinates in the original
// volume of the given shape: an undo-flip matrix (with the translation
// that reflects flipped axes about the grid center) composed with an
// undo-transpose permutation.
func OrientationAffine(ornt Orientation, shape []int) *mat.Dense {
	n := len(ornt)

	// Invert the transpose first, then the flips.
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return ornt[perm[a]].Out < ornt[perm[b]].Out
	})
	undoReorder := mat.NewDense(n+1, n+1, nil)
	for i, j := range perm {
		undoReorder.Set(i, j, 1)
	}
	undoReorder.Set(n, n, 1)

	undoFlip := mat.NewDense(n+1, n+1, nil)
	undoFlip.Set(n, n, 1)
	for i := 0; i < n; i++ {
		sign := float64(ornt[i].Sign)
		undoFlip.Set(i, i, sign)
		center := -float64(shape[i]-1) / 2
		undoFlip.Set(i, n, sign*center-center)
	}

	var out mat.Dense
	out.Mul(undoFlip, undoReorder)
	res := mat.NewDense(n+1, n+1, nil)
	res.Copy(&out)
	return res
}

// axisLabels are the canonical neurological axis direction letters for
// the first three output axes: (negative, positive) ends of left-right,
// posterior-anterior and inferior-superior.
var axisLabels = [3][2]byte{{'L', 'R'}, {'P', 'A'}, {'I', 'S'}}

// AxCodes returns the direction letters, such as "RAS" or "LPS", for
// the first three axes described by the orientation. Dropped axes show
// as '?'.
func AxCodes(ornt Orientation) string {
	n := len(ornt)
	if n > 3 {
		n = 3
	}
	codes := make([]byte, n)
	for i := 0; i < n; i++ {
		switch {
		case ornt[i].Dropped() || ornt[i].Out >= 3:
			codes[i] = '?'
		case ornt[i].Sign > 0:
			codes[i] = axisLabels[ornt[i].Out][1]
		default:
			codes[i] = axisLabels[ornt[i].Out][0]
		}
	}
	return string(codes)
}
