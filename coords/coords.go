// Package coords implements named coordinate systems and affine
// transformations between them.
//
// A CoordinateSystem is an ordered set of named axes with a scalar
// coordinate type. An AffineTransform is a homogeneous matrix mapping
// points in one coordinate system to points in another, such as the
// voxel-to-world transform of a neuroimaging volume.
package coords

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateAxis is returned when a coordinate system is built
	// with repeated axis names.
	ErrDuplicateAxis = errors.New("coords: duplicate axis name")

	// ErrUnknownAxis is returned when an axis name is not part of a
	// coordinate system.
	ErrUnknownAxis = errors.New("coords: unknown axis")

	// ErrBadOrder is returned when a reorder sequence is not a
	// permutation of all axes.
	ErrBadOrder = errors.New("coords: order is not a permutation of axes")

	// ErrEmptyProduct is returned by Product when no systems are given.
	ErrEmptyProduct = errors.New("coords: product of no systems")
)

// Kind is the family of a coordinate scalar type.
type Kind int

const (
	// KindInt is the signed integer family.
	KindInt Kind = iota
	// KindUint is the unsigned integer family.
	KindUint
	// KindFloat is the floating point family.
	KindFloat
	// KindComplex is the complex family.
	KindComplex
)

// String returns the family name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DType is a non-compound numeric scalar type for coordinate values.
type DType struct {
	Kind Kind
	Bits int
}

// The coordinate scalar types.
var (
	Int8       = DType{KindInt, 8}
	Int16      = DType{KindInt, 16}
	Int32      = DType{KindInt, 32}
	Int64      = DType{KindInt, 64}
	Uint8      = DType{KindUint, 8}
	Uint16     = DType{KindUint, 16}
	Uint32     = DType{KindUint, 32}
	Uint64     = DType{KindUint, 64}
	Float32    = DType{KindFloat, 32}
	Float64    = DType{KindFloat, 64}
	Complex64  = DType{KindComplex, 64}
	Complex128 = DType{KindComplex, 128}
)

// String returns the type name, e.g. "float64".
func (d DType) String() string {
	return fmt.Sprintf("%s%d", d.Kind, d.Bits)
}

// Promote returns the common type two coordinate types promote to: the
// wider of the two families, at the wider of the two component widths.
// A complex type carries half its bits per component, so int16 and
// complex64 promote to complex64 while float64 and complex64 promote
// to complex128.
func Promote(a, b DType) DType {
	kind := a.Kind
	if b.Kind > kind {
		kind = b.Kind
	}
	ca, cb := a.Bits, b.Bits
	if a.Kind == KindComplex {
		ca /= 2
	}
	if b.Kind == KindComplex {
		cb /= 2
	}
	bits := ca
	if cb > bits {
		bits = cb
	}
	if kind == KindComplex {
		bits *= 2
	}
	return DType{Kind: kind, Bits: bits}
}

// CoordinateSystem is an ordered, named set of axes with a coordinate
// scalar type. Coordinate systems are immutable values; operations that
// change axes return new systems.
type CoordinateSystem struct {
	name  string
	axes  []string
	dtype DType
}

// NewCoordinateSystem creates a coordinate system. Axis names must be
// unique within the system.
func NewCoordinateSystem(name string, axes []string, dtype DType) (CoordinateSystem, error) {
	seen := make(map[string]bool, len(axes))
	for _, ax := range axes {
		if seen[ax] {
			return CoordinateSystem{}, fmt.Errorf("%w: %q", ErrDuplicateAxis, ax)
		}
		seen[ax] = true
	}
	return CoordinateSystem{
		name:  name,
		axes:  append([]string(nil), axes...),
		dtype: dtype,
	}, nil
}

// MustSystem is like NewCoordinateSystem but panics on error.
// It simplifies construction of systems with known-good axis names.
func MustSystem(name string, axes []string, dtype DType) CoordinateSystem {
	cs, err := NewCoordinateSystem(name, axes, dtype)
	if err != nil {
		panic(err)
	}
	return cs
}

// Name returns the system's name.
func (cs CoordinateSystem) Name() string {
	return cs.name
}

// Axes returns a copy of the ordered axis names.
func (cs CoordinateSystem) Axes() []string {
	return append([]string(nil), cs.axes...)
}

// Axis returns the name of axis i.
func (cs CoordinateSystem) Axis(i int) string {
	return cs.axes[i]
}

// Dim returns the number of axes.
func (cs CoordinateSystem) Dim() int {
	return len(cs.axes)
}

// DType returns the coordinate scalar type.
func (cs CoordinateSystem) DType() DType {
	return cs.dtype
}

// Index returns the position of the named axis, or an error if the axis
// is not part of the system.
func (cs CoordinateSystem) Index(axis string) (int, error) {
	for i, ax := range cs.axes {
		if ax == axis {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q in system %q", ErrUnknownAxis, axis, cs.name)
}

// Equal reports whether two systems have the same name, the same ordered
// axes, and the same coordinate type.
func (cs CoordinateSystem) Equal(other CoordinateSystem) bool {
	if cs.name != other.name || cs.dtype != other.dtype || len(cs.axes) != len(other.axes) {
		return false
	}
	for i := range cs.axes {
		if cs.axes[i] != other.axes[i] {
			return false
		}
	}
	return true
}

// String returns a readable description like "world: [x y z] float64".
func (cs CoordinateSystem) String() string {
	return fmt.Sprintf("%s: [%s] %s", cs.name, strings.Join(cs.axes, " "), cs.dtype)
}

// Renamed returns a copy of the system with a new name.
func (cs CoordinateSystem) Renamed(name string) CoordinateSystem {
	out := cs
	out.name = name
	out.axes = append([]string(nil), cs.axes...)
	return out
}

// Reorder returns a new system with axes permuted by order: axis i of the
// result is axis order[i] of the receiver. order must be a permutation of
// all axis indices.
func (cs CoordinateSystem) Reorder(order ...int) (CoordinateSystem, error) {
	if len(order) != len(cs.axes) {
		return CoordinateSystem{}, fmt.Errorf("%w: got %v for %d axes", ErrBadOrder, order, len(cs.axes))
	}
	seen := make([]bool, len(order))
	axes := make([]string, len(order))
	for i, j := range order {
		if j < 0 || j >= len(order) || seen[j] {
			return CoordinateSystem{}, fmt.Errorf("%w: got %v", ErrBadOrder, order)
		}
		seen[j] = true
		axes[i] = cs.axes[j]
	}
	out := cs
	out.axes = axes
	return out, nil
}

// ReorderByName is Reorder with the permutation given as axis names.
func (cs CoordinateSystem) ReorderByName(names ...string) (CoordinateSystem, error) {
	order := make([]int, len(names))
	for i, name := range names {
		j, err := cs.Index(name)
		if err != nil {
			return CoordinateSystem{}, err
		}
		order[i] = j
	}
	return cs.Reorder(order...)
}

// Product concatenates the axes of several systems into one, promoting
// the coordinate type across all of them. Axis names must remain unique
// across the combined system.
func Product(systems ...CoordinateSystem) (CoordinateSystem, error) {
	if len(systems) == 0 {
		return CoordinateSystem{}, ErrEmptyProduct
	}
	var axes []string
	var names []string
	dtype := systems[0].dtype
	for _, cs := range systems {
		axes = append(axes, cs.axes...)
		names = append(names, cs.name)
		dtype = Promote(dtype, cs.dtype)
	}
	return NewCoordinateSystem(strings.Join(names, "*"), axes, dtype)
}
