package nifti

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/voxelmap/go-nifti/coords"
	"github.com/voxelmap/go-nifti/orient"
	"github.com/voxelmap/go-nifti/vol"
)

var (
	// ErrGridMismatch is returned when an image's transform does not
	// match its data rank.
	ErrGridMismatch = errors.New("nifti: transform rank does not match data rank")

	// ErrBadSlice is returned for out-of-range slicing parameters.
	ErrBadSlice = errors.New("nifti: bad slice parameters")
)

// Axis name pools for voxel and world grids of up to seven dimensions.
var (
	voxelAxisNames = []string{"i", "j", "k", "l", "m", "n", "o"}
	worldAxisNames = []string{"x", "y", "z", "t", "u", "v", "w"}
)

// Image binds voxel data to the affine transform mapping its grid
// indices into world coordinates. The image owns its volume; the
// transform and its coordinate systems are immutable and may be shared.
type Image struct {
	data   *vol.Volume
	xform  *coords.AffineTransform
	header *Header
	dtype  DataType
	closer io.Closer
}

// NewImage creates an image from a volume and a voxel-to-world
// transform whose input dimension matches the volume rank. The sample
// type defaults to float32 for the write path.
func NewImage(data *vol.Volume, xform *coords.AffineTransform) (*Image, error) {
	if xform.In().Dim() != data.Rank() {
		return nil, fmt.Errorf("%w: %d-axis transform for rank-%d volume",
			ErrGridMismatch, xform.In().Dim(), data.Rank())
	}
	return &Image{data: data, xform: xform, dtype: DTFloat32}, nil
}

// NewImageAffine creates an image from a volume and a bare homogeneous
// matrix, naming the grid axes i,j,k,... and the world axes x,y,z,...
func NewImageAffine(data *vol.Volume, affine *mat.Dense) (*Image, error) {
	ndim := data.Rank()
	if ndim > len(voxelAxisNames) {
		return nil, fmt.Errorf("%w: rank %d", ErrGridMismatch, ndim)
	}
	in := coords.MustSystem("voxel", voxelAxisNames[:ndim], coords.Float64)
	out := coords.MustSystem("world", worldAxisNames[:ndim], coords.Float64)
	xform, err := coords.NewAffineTransform(affine, in, out)
	if err != nil {
		return nil, err
	}
	return NewImage(data, xform)
}

// Data returns the image's volume. The volume is owned by the image.
func (img *Image) Data() *vol.Volume {
	return img.data
}

// Transform returns the voxel-to-world transform.
func (img *Image) Transform() *coords.AffineTransform {
	return img.xform
}

// Affine returns a copy of the transform's homogeneous matrix.
func (img *Image) Affine() *mat.Dense {
	return img.xform.Matrix()
}

// Header returns the source header, or nil for an image constructed
// programmatically.
func (img *Image) Header() *Header {
	return img.header
}

// Shape returns the grid extents.
func (img *Image) Shape() []int {
	return img.data.Shape()
}

// DataType returns the on-disk sample type used when writing.
func (img *Image) DataType() DataType {
	return img.dtype
}

// SetDataType sets the on-disk sample type used when writing.
func (img *Image) SetDataType(d DataType) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %v", ErrBadDataType, d)
	}
	img.dtype = d
	return nil
}

// Close releases the file mapping backing a memory-mapped image. It is
// a no-op for in-core images.
func (img *Image) Close() error {
	if img.closer != nil {
		c := img.closer
		img.closer = nil
		return c.Close()
	}
	return nil
}

// Collapse returns a new image with the given grid axis removed,
// keeping the hyperplane at position at. The transform loses the
// corresponding matrix column, and the world position of the kept
// hyperplane moves into the translation.
func (img *Image) Collapse(axis, at int) (*Image, error) {
	shape := img.data.Shape()
	if axis < 0 || axis >= len(shape) || at < 0 || at >= shape[axis] {
		return nil, fmt.Errorf("%w: axis %d position %d of shape %v", ErrBadSlice, axis, at, shape)
	}
	data, err := img.data.Collapse(axis, at)
	if err != nil {
		return nil, err
	}

	m := img.xform.Matrix()
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols-1, nil)
	for i := 0; i < rows; i++ {
		jj := 0
		for j := 0; j < cols; j++ {
			if j == axis {
				continue
			}
			v := m.At(i, j)
			if j == cols-1 {
				v += m.At(i, axis) * float64(at)
			}
			out.Set(i, jj, v)
			jj++
		}
	}

	inAxes := img.xform.In().Axes()
	inAxes = append(inAxes[:axis:axis], inAxes[axis+1:]...)
	in, err := coords.NewCoordinateSystem(img.xform.In().Name(), inAxes, img.xform.In().DType())
	if err != nil {
		return nil, err
	}
	xform, err := coords.NewAffineTransform(out, in, img.xform.Out())
	if err != nil {
		return nil, err
	}
	sliced := &Image{data: data, xform: xform, header: img.header, dtype: img.dtype}
	return sliced, nil
}

// Subvolume returns a new image covering the region starting at lo with
// the given shape. The transform keeps its linear part; the origin of
// the region moves into the translation.
func (img *Image) Subvolume(lo, shape []int) (*Image, error) {
	data, err := img.data.Subvolume(lo, shape)
	if err != nil {
		return nil, err
	}
	m := img.xform.Matrix()
	rows, cols := m.Dims()
	for i := 0; i < rows-1; i++ {
		trans := m.At(i, cols-1)
		for j, off := range lo {
			trans += m.At(i, j) * float64(off)
		}
		m.Set(i, cols-1, trans)
	}
	xform, err := coords.NewAffineTransform(m, img.xform.In(), img.xform.Out())
	if err != nil {
		return nil, err
	}
	return &Image{data: data, xform: xform, header: img.header, dtype: img.dtype}, nil
}

// Orientation returns the orientation descriptor of the image's grid
// axes relative to the world axes.
func (img *Image) Orientation() orient.Orientation {
	return orient.FromAffine(img.xform.Matrix())
}

// Reoriented applies an orientation to the image: the volume's axes are
// flipped and transposed accordingly, and the transform is composed
// with the affine that maps the transformed grid back to the original
// one, so world coordinates of every sample are preserved.
func (img *Image) Reoriented(ornt orient.Orientation) (*Image, error) {
	data, err := orient.Apply(img.data, ornt)
	if err != nil {
		return nil, err
	}
	undo := orient.OrientationAffine(ornt, img.data.Shape())
	var m mat.Dense
	m.Mul(img.xform.Matrix(), undo)

	n := data.Rank()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i, ax := range ornt {
		order[i] = ax.Out
	}
	in, err := img.xform.In().Reorder(order...)
	if err != nil {
		return nil, err
	}
	dense := mat.NewDense(n+1, n+1, nil)
	dense.Copy(&m)
	xform, err := coords.NewAffineTransform(dense, in, img.xform.Out())
	if err != nil {
		return nil, err
	}
	return &Image{data: data, xform: xform, header: img.header, dtype: img.dtype}, nil
}

// Canonical reorients the image so its grid axes line up as closely as
// possible with the world axes, all running in the positive direction
// ("closest RAS" for a standard neurological world frame). The image's
// orientation says where each grid axis points, so the applied
// rearrangement is its inverse.
func (img *Image) Canonical() (*Image, error) {
	inv, err := img.Orientation().Inverse()
	if err != nil {
		return nil, err
	}
	return img.Reoriented(inv)
}
