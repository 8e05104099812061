package nifti

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// This file ports the quaternion <-> matrix conversions of the NIFTI-1
// reference implementation (RW Cox's nifti1_io.c). The branch structure
// is kept exactly: alternate formulations diverge at the boundary cases
// (180 degree rotations, near-zero diagonal sums) and downstream
// consumers depend on the reference behavior there.

// QuaternToMatrix builds the 4x4 voxel-to-world transform from the
// quaternion parameters (qb, qc, qd), the offsets (qx, qy, qz), the grid
// spacings (dx, dy, dz; non-positive inputs are read as 1) and the
// handedness factor qfac. For qfac >= 0 the rotation is proper; for
// qfac < 0 the third axis is negated.
func QuaternToMatrix(qb, qc, qd, qx, qy, qz, dx, dy, dz, qfac float64) *mat.Dense {
	b, c, d := qb, qc, qd

	// a^2 + b^2 + c^2 + d^2 = 1 for a unit quaternion. a near zero
	// means a 180 degree rotation; normalize (b,c,d) and pin a to 0.
	a := 1.0 - (b*b + c*c + d*d)
	if a < 1e-7 {
		a = 1.0 / math.Sqrt(b*b+c*c+d*d)
		b *= a
		c *= a
		d *= a
		a = 0.0
	} else {
		a = math.Sqrt(a)
	}

	xd, yd, zd := dx, dy, dz
	if xd <= 0 {
		xd = 1
	}
	if yd <= 0 {
		yd = 1
	}
	if zd <= 0 {
		zd = 1
	}
	if qfac < 0 {
		zd = -zd
	}

	m := mat.NewDense(4, 4, nil)
	m.Set(0, 0, (a*a+b*b-c*c-d*d)*xd)
	m.Set(0, 1, 2*(b*c-a*d)*yd)
	m.Set(0, 2, 2*(b*d+a*c)*zd)
	m.Set(1, 0, 2*(b*c+a*d)*xd)
	m.Set(1, 1, (a*a+c*c-b*b-d*d)*yd)
	m.Set(1, 2, 2*(c*d-a*b)*zd)
	m.Set(2, 0, 2*(b*d-a*c)*xd)
	m.Set(2, 1, 2*(c*d+a*b)*yd)
	m.Set(2, 2, (a*a+d*d-c*c-b*b)*zd)
	m.Set(0, 3, qx)
	m.Set(1, 3, qy)
	m.Set(2, 3, qz)
	m.Set(3, 3, 1)
	return m
}

// MatrixToQuatern decomposes the 3x4 upper corner of a 4x4 transform
// into quaternion parameters, offsets, grid spacings and the qfac
// handedness factor. Non-orthogonal columns are orthogonalized through
// the polar decomposition first, so the result is the quaternion of the
// closest rotation; an improper rotation flips the third column and
// reports qfac = -1.
func MatrixToQuatern(m *mat.Dense) (qb, qc, qd, qx, qy, qz, dx, dy, dz, qfac float64) {
	qx, qy, qz = m.At(0, 3), m.At(1, 3), m.At(2, 3)

	r11, r12, r13 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	r21, r22, r23 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	r31, r32, r33 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	// Column lengths are the grid spacings.
	xd := math.Sqrt(r11*r11 + r21*r21 + r31*r31)
	yd := math.Sqrt(r12*r12 + r22*r22 + r32*r32)
	zd := math.Sqrt(r13*r13 + r23*r23 + r33*r33)

	// A zero-length column gets patched to a unit axis.
	if xd == 0 {
		r11, r21, r31, xd = 1, 0, 0, 1
	}
	if yd == 0 {
		r22, r12, r32, yd = 1, 0, 0, 1
	}
	if zd == 0 {
		r33, r13, r23, zd = 1, 0, 0, 1
	}
	dx, dy, dz = xd, yd, zd

	r11, r21, r31 = r11/xd, r21/xd, r31/xd
	r12, r22, r32 = r12/yd, r22/yd, r32/yd
	r13, r23, r33 = r13/zd, r23/zd, r33/zd

	// The columns are now normal but possibly not orthogonal; replace
	// the matrix with the closest orthogonal one.
	r11, r12, r13, r21, r22, r23, r31, r32, r33 = polar33(
		r11, r12, r13, r21, r22, r23, r31, r32, r33)

	det := r11*r22*r33 - r11*r32*r23 - r21*r12*r33 +
		r21*r32*r13 + r31*r12*r23 - r31*r22*r13

	if det > 0 {
		qfac = 1
	} else {
		qfac = -1
		r13, r23, r33 = -r13, -r23, -r33
	}

	var a, b, c, d float64
	a = r11 + r22 + r33 + 1

	if a > 0.5 { // simplest case
		a = 0.5 * math.Sqrt(a)
		b = 0.25 * (r32 - r23) / a
		c = 0.25 * (r13 - r31) / a
		d = 0.25 * (r21 - r12) / a
	} else { // trickier case: branch on the largest diagonal term
		xd = 1 + r11 - (r22 + r33) // 4*b*b
		yd = 1 + r22 - (r11 + r33) // 4*c*c
		zd = 1 + r33 - (r11 + r22) // 4*d*d
		switch {
		case xd > 1:
			b = 0.5 * math.Sqrt(xd)
			c = 0.25 * (r12 + r21) / b
			d = 0.25 * (r13 + r31) / b
			a = 0.25 * (r32 - r23) / b
		case yd > 1:
			c = 0.5 * math.Sqrt(yd)
			b = 0.25 * (r12 + r21) / c
			d = 0.25 * (r23 + r32) / c
			a = 0.25 * (r13 - r31) / c
		default:
			d = 0.5 * math.Sqrt(zd)
			b = 0.25 * (r13 + r31) / d
			c = 0.25 * (r23 + r32) / d
			a = 0.25 * (r21 - r12) / d
		}
		if a < 0 {
			b, c, d = -b, -c, -d
		}
	}

	return b, c, d, qx, qy, qz, dx, dy, dz, qfac
}

// polar33 returns the orthogonal matrix closest to the input 3x3
// matrix, via the polar decomposition U V^T of its SVD.
func polar33(r11, r12, r13, r21, r22, r23, r31, r32, r33 float64) (o11, o12, o13, o21, o22, o23, o31, o32, o33 float64) {
	q := mat.NewDense(3, 3, []float64{r11, r12, r13, r21, r22, r23, r31, r32, r33})
	var svd mat.SVD
	if !svd.Factorize(q, mat.SVDFull) {
		return r11, r12, r13, r21, r22, r23, r31, r32, r33
	}
	var u, v, p mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	p.Mul(&u, v.T())
	return p.At(0, 0), p.At(0, 1), p.At(0, 2),
		p.At(1, 0), p.At(1, 1), p.At(1, 2),
		p.At(2, 0), p.At(2, 1), p.At(2, 2)
}
