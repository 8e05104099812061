package coords

import (
	"errors"
	"testing"
)

func TestPromote(t *testing.T) {
	tests := []struct {
		a, b, want DType
	}{
		{Int32, Int64, Int64},
		{Int16, Complex64, Complex64},
		{Uint8, Int8, Uint8},
		{Float32, Float64, Float64},
		{Float64, Int16, Float64},
		{Complex64, Float64, Complex128},
		{Complex64, Int64, Complex128},
		{Complex64, Float32, Complex64},
		{Complex64, Complex128, Complex128},
	}
	for _, tc := range tests {
		if got := Promote(tc.a, tc.b); got != tc.want {
			t.Errorf("Promote(%s, %s) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
		if got := Promote(tc.b, tc.a); got != tc.want {
			t.Errorf("Promote(%s, %s) = %s, want %s", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestNewCoordinateSystem(t *testing.T) {
	cs, err := NewCoordinateSystem("voxels", []string{"i", "j", "k"}, Float64)
	if err != nil {
		t.Fatal(err)
	}
	if cs.Dim() != 3 || cs.Name() != "voxels" || cs.Axis(2) != "k" {
		t.Errorf("unexpected system %v", cs)
	}
	if _, err := NewCoordinateSystem("bad", []string{"i", "i"}, Float64); !errors.Is(err, ErrDuplicateAxis) {
		t.Errorf("duplicate axis: err = %v, want ErrDuplicateAxis", err)
	}
}

func TestIndex(t *testing.T) {
	cs := MustSystem("world", []string{"x", "y", "z"}, Float64)
	i, err := cs.Index("y")
	if err != nil || i != 1 {
		t.Errorf("Index(y) = %d, %v, want 1", i, err)
	}
	if _, err := cs.Index("t"); !errors.Is(err, ErrUnknownAxis) {
		t.Errorf("Index(t): err = %v, want ErrUnknownAxis", err)
	}
}

func TestEqual(t *testing.T) {
	a := MustSystem("world", []string{"x", "y"}, Float64)
	if !a.Equal(MustSystem("world", []string{"x", "y"}, Float64)) {
		t.Error("identical systems compare unequal")
	}
	if a.Equal(MustSystem("scanner", []string{"x", "y"}, Float64)) {
		t.Error("different names compare equal")
	}
	if a.Equal(MustSystem("world", []string{"y", "x"}, Float64)) {
		t.Error("different axis order compares equal")
	}
	if a.Equal(MustSystem("world", []string{"x", "y"}, Float32)) {
		t.Error("different dtypes compare equal")
	}
}

func TestReorder(t *testing.T) {
	cs := MustSystem("world", []string{"x", "y", "z"}, Float64)
	r, err := cs.Reorder(2, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Axes(); got[0] != "z" || got[1] != "x" || got[2] != "y" {
		t.Errorf("reordered axes = %v, want [z x y]", got)
	}
	// The receiver is unchanged.
	if cs.Axis(0) != "x" {
		t.Error("Reorder mutated the receiver")
	}
	if _, err := cs.Reorder(0, 1); !errors.Is(err, ErrBadOrder) {
		t.Errorf("short order: err = %v, want ErrBadOrder", err)
	}
	if _, err := cs.Reorder(0, 0, 1); !errors.Is(err, ErrBadOrder) {
		t.Errorf("repeated index: err = %v, want ErrBadOrder", err)
	}
}

func TestReorderByName(t *testing.T) {
	cs := MustSystem("world", []string{"x", "y", "z"}, Float64)
	r, err := cs.ReorderByName("y", "z", "x")
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Axes(); got[0] != "y" || got[1] != "z" || got[2] != "x" {
		t.Errorf("reordered axes = %v, want [y z x]", got)
	}
	if _, err := cs.ReorderByName("y", "z", "q"); !errors.Is(err, ErrUnknownAxis) {
		t.Errorf("unknown name: err = %v, want ErrUnknownAxis", err)
	}
}

func TestProduct(t *testing.T) {
	space := MustSystem("space", []string{"x", "y", "z"}, Float32)
	time := MustSystem("time", []string{"t"}, Int32)
	p, err := Product(space, time)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "space*time" {
		t.Errorf("product name = %q, want space*time", p.Name())
	}
	if p.Dim() != 4 || p.Axis(3) != "t" {
		t.Errorf("product axes = %v", p.Axes())
	}
	if p.DType() != Float32 {
		t.Errorf("product dtype = %s, want float32", p.DType())
	}
	clash := MustSystem("other", []string{"x"}, Float64)
	if _, err := Product(space, clash); !errors.Is(err, ErrDuplicateAxis) {
		t.Errorf("clashing product: err = %v, want ErrDuplicateAxis", err)
	}
	if _, err := Product(); !errors.Is(err, ErrEmptyProduct) {
		t.Errorf("empty product: err = %v, want ErrEmptyProduct", err)
	}
}
