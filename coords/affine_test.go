package coords

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

var (
	voxels = MustSystem("voxel", []string{"i", "j", "k"}, Float64)
	world  = MustSystem("world", []string{"x", "y", "z"}, Float64)
)

func TestNewAffineTransform(t *testing.T) {
	m := mat.NewDense(4, 4, []float64{
		2, 0, 0, 10,
		0, 2, 0, 20,
		0, 0, 3, 30,
		0, 0, 0, 1,
	})
	at, err := NewAffineTransform(m, voxels, world)
	if err != nil {
		t.Fatal(err)
	}
	if !at.In().Equal(voxels) || !at.Out().Equal(world) {
		t.Error("coordinate systems not preserved")
	}
	// The matrix is copied, not aliased.
	m.Set(0, 0, 99)
	if at.Matrix().At(0, 0) != 2 {
		t.Error("transform aliases the caller's matrix")
	}

	bad := mat.NewDense(4, 4, nil)
	if _, err := NewAffineTransform(bad, voxels, world); !errors.Is(err, ErrMatrixShape) {
		t.Errorf("zero last row: err = %v, want ErrMatrixShape", err)
	}
	small := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if _, err := NewAffineTransform(small, voxels, world); !errors.Is(err, ErrMatrixShape) {
		t.Errorf("wrong size: err = %v, want ErrMatrixShape", err)
	}
}

func TestFromStartStep(t *testing.T) {
	at, err := FromStartStep(
		[]string{"i", "j", "k"}, []string{"x", "y", "z"},
		[]float64{10, 20, 30}, []float64{2, 2, 3}, []int{64, 64, 40})
	if err != nil {
		t.Fatal(err)
	}
	p, err := at.ApplyPoint([]float64{1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{12, 22, 33}
	for i := range want {
		if p[i] != want[i] {
			t.Errorf("point[%d] = %g, want %g", i, p[i], want[i])
		}
	}
	_, err = FromStartStep([]string{"i", "j"}, []string{"x", "y"},
		[]float64{0, 0}, []float64{1, 1}, []int{4})
	if !errors.Is(err, ErrParamLength) {
		t.Errorf("short shape: err = %v, want ErrParamLength", err)
	}
}

func TestCompose(t *testing.T) {
	scale, err := NewAffineTransform(mat.NewDense(4, 4, []float64{
		2, 0, 0, 0,
		0, 2, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 1,
	}), voxels, world)
	if err != nil {
		t.Fatal(err)
	}
	shift, err := NewAffineTransform(mat.NewDense(4, 4, []float64{
		1, 0, 0, 5,
		0, 1, 0, 6,
		0, 0, 1, 7,
		0, 0, 0, 1,
	}), world, world.Renamed("scanner"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := Compose(shift, scale)
	if err != nil {
		t.Fatal(err)
	}
	if !c.In().Equal(voxels) || c.Out().Name() != "scanner" {
		t.Errorf("composed systems = %v -> %v", c.In(), c.Out())
	}
	p, err := c.ApplyPoint([]float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{7, 10, 13}
	for i := range want {
		if p[i] != want[i] {
			t.Errorf("point[%d] = %g, want %g", i, p[i], want[i])
		}
	}
	if _, err := Compose(scale, shift); !errors.Is(err, ErrComposition) {
		t.Errorf("mismatched systems: err = %v, want ErrComposition", err)
	}
}

func TestInverse(t *testing.T) {
	at, err := NewAffineTransform(mat.NewDense(4, 4, []float64{
		0, -1, 0, 3,
		2, 0, 0, 5,
		0, 0, 3, 4,
		0, 0, 0, 1,
	}), voxels, world)
	if err != nil {
		t.Fatal(err)
	}
	inv, err := at.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	if !inv.In().Equal(world) || !inv.Out().Equal(voxels) {
		t.Error("inverse did not swap coordinate systems")
	}
	round, err := Compose(inv, at)
	if err != nil {
		t.Fatal(err)
	}
	if !round.EqualApprox(Identity(voxels), 1e-12) {
		t.Errorf("inv * at = %v, want identity", round)
	}

	sing, err := NewAffineTransform(mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 1,
	}), voxels, world)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sing.Inverse(); !errors.Is(err, ErrSingular) {
		t.Errorf("singular inverse: err = %v, want ErrSingular", err)
	}

	rect, err := NewAffineTransform(mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 0,
		0, 0, 1,
	}), MustSystem("plane", []string{"i", "j"}, Float64), world)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rect.Inverse(); !errors.Is(err, ErrNotSquare) {
		t.Errorf("rectangular inverse: err = %v, want ErrNotSquare", err)
	}
}

func TestApply(t *testing.T) {
	at, err := NewAffineTransform(mat.NewDense(4, 4, []float64{
		2, 0, 0, 1,
		0, 3, 0, 2,
		0, 0, 4, 3,
		0, 0, 0, 1,
	}), voxels, world)
	if err != nil {
		t.Fatal(err)
	}
	// Two points, one per column.
	pts := mat.NewDense(3, 2, []float64{
		0, 1,
		0, 1,
		0, 1,
	})
	out, err := at.Apply(pts)
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(3, 2, []float64{
		1, 3,
		2, 5,
		3, 7,
	})
	if !mat.EqualApprox(out, want, 1e-12) {
		t.Errorf("Apply = %v, want %v", mat.Formatted(out), mat.Formatted(want))
	}
	if _, err := at.Apply(mat.NewDense(2, 2, nil)); !errors.Is(err, ErrPointShape) {
		t.Errorf("wrong point rows: err = %v, want ErrPointShape", err)
	}
	if _, err := at.ApplyPoint([]float64{1, 2}); !errors.Is(err, ErrPointShape) {
		t.Errorf("short point: err = %v, want ErrPointShape", err)
	}
}

func TestRectangularApplyPoint(t *testing.T) {
	// A 2 -> 3 embedding: drop nothing, add a constant third output.
	plane := MustSystem("plane", []string{"i", "j"}, Float64)
	at, err := NewAffineTransform(mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 9,
		0, 0, 1,
	}), plane, world)
	if err != nil {
		t.Fatal(err)
	}
	p, err := at.ApplyPoint([]float64{4, 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 3 || p[0] != 4 || p[1] != 5 || p[2] != 9 {
		t.Errorf("ApplyPoint = %v, want [4 5 9]", p)
	}
}

func TestEqualApprox(t *testing.T) {
	a := Identity(voxels)
	b := Identity(voxels)
	if !a.EqualApprox(b, 0) {
		t.Error("identical identities compare unequal")
	}
	m := b.Matrix()
	m.Set(0, 3, 1e-9)
	c, err := NewAffineTransform(m, voxels, voxels)
	if err != nil {
		t.Fatal(err)
	}
	if !a.EqualApprox(c, 1e-6) {
		t.Error("EqualApprox(1e-6) = false, want true")
	}
	if a.EqualApprox(c, math.SmallestNonzeroFloat64) {
		t.Error("EqualApprox below tolerance = true, want false")
	}
	if a.EqualApprox(Identity(world), 1) {
		t.Error("different systems compare equal")
	}
}
