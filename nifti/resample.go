package nifti

import (
	"errors"
	"fmt"
	"math"

	"github.com/voxelmap/go-nifti/coords"
	"github.com/voxelmap/go-nifti/vol"
)

// ErrResampleRank is returned when resampling is requested on a grid
// that is not three-dimensional.
var ErrResampleRank = errors.New("nifti: resampling requires a 3-dimensional grid")

// ResampledToGrid resamples a three-dimensional image onto the grid
// defined by a target voxel-to-world transform and shape. Each target
// voxel is mapped through the target transform and back through the
// inverse of the image's own transform, and the sample is interpolated
// trilinearly; points outside the source grid come back zero.
func (img *Image) ResampledToGrid(target *coords.AffineTransform, shape []int) (*Image, error) {
	if img.data.Rank() != 3 || len(shape) != 3 {
		return nil, fmt.Errorf("%w: source rank %d, target rank %d",
			ErrResampleRank, img.data.Rank(), len(shape))
	}
	inv, err := img.xform.Inverse()
	if err != nil {
		return nil, err
	}
	// Maps target grid indices to source grid indices.
	toSource, err := coords.Compose(inv, target)
	if err != nil {
		return nil, err
	}

	out := vol.New(shape...)
	pt := make([]float64, 3)
	for i := 0; i < shape[0]; i++ {
		for j := 0; j < shape[1]; j++ {
			for k := 0; k < shape[2]; k++ {
				pt[0], pt[1], pt[2] = float64(i), float64(j), float64(k)
				src, err := toSource.ApplyPoint(pt)
				if err != nil {
					return nil, err
				}
				out.Set(trilinear(img.data, src[0], src[1], src[2]), i, j, k)
			}
		}
	}
	res := &Image{data: out, xform: target, header: img.header, dtype: img.dtype}
	return res, nil
}

// ResampledToImg resamples the image onto another image's grid.
func (img *Image) ResampledToImg(target *Image) (*Image, error) {
	return img.ResampledToGrid(target.xform, target.Shape())
}

// trilinear interpolates a sample at a fractional grid position,
// returning 0 outside the grid.
func trilinear(v *vol.Volume, x, y, z float64) float64 {
	shape := v.Shape()
	x0, y0, z0 := math.Floor(x), math.Floor(y), math.Floor(z)
	fx, fy, fz := x-x0, y-y0, z-z0

	var sum float64
	for di := 0; di < 2; di++ {
		for dj := 0; dj < 2; dj++ {
			for dk := 0; dk < 2; dk++ {
				i, j, k := int(x0)+di, int(y0)+dj, int(z0)+dk
				if i < 0 || j < 0 || k < 0 || i >= shape[0] || j >= shape[1] || k >= shape[2] {
					continue
				}
				w := weight(fx, di) * weight(fy, dj) * weight(fz, dk)
				if w == 0 {
					continue
				}
				sum += w * v.At(i, j, k)
			}
		}
	}
	return sum
}

func weight(f float64, d int) float64 {
	if d == 1 {
		return f
	}
	return 1 - f
}
