package nifti

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/mat"

	"github.com/voxelmap/go-nifti/coords"
	"github.com/voxelmap/go-nifti/vol"
)

// ErrPairStream is returned when a stream decode encounters a
// two-file (.hdr/.img) header, whose voxel data lives elsewhere.
var ErrPairStream = fmt.Errorf("%w: two-file dataset cannot be decoded from a single stream", ErrFormat)

// Decode reads a complete single-file NIFTI-1 image from a stream. The
// stream must already be decompressed; DecodeFile handles gzip and
// two-file datasets.
func Decode(r io.Reader) (*Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeSingle(raw)
}

// DecodeFile reads a NIFTI-1 or ANALYZE image from the filesystem.
// Single-file .nii, two-file .hdr/.img pairs, and their gzip-compressed
// forms (.nii.gz, .hdr.gz/.img.gz) are all handled; two-file datasets
// may be named by either member.
func DecodeFile(path string) (*Image, error) {
	base, gzipped := splitGzExt(path)
	switch {
	case strings.HasSuffix(base, ".nii"):
		raw, err := readMaybeGzip(path, gzipped)
		if err != nil {
			return nil, err
		}
		return decodeSingle(raw)
	case strings.HasSuffix(base, ".hdr"), strings.HasSuffix(base, ".img"):
		stem := strings.TrimSuffix(base, ".hdr")
		stem = strings.TrimSuffix(stem, ".img")
		return decodePair(stem, gzipped)
	}
	return nil, fmt.Errorf("%w: unrecognized extension on %q", ErrFormat, path)
}

// splitGzExt strips a trailing .gz, reporting whether it was present.
func splitGzExt(path string) (string, bool) {
	if strings.HasSuffix(path, ".gz") {
		return strings.TrimSuffix(path, ".gz"), true
	}
	return path, false
}

func readMaybeGzip(path string, gzipped bool) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if gzipped {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("nifti: %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

func decodeSingle(raw []byte) (*Image, error) {
	h, order, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if !h.SingleFile() {
		return nil, ErrPairStream
	}
	offset := int(h.VoxOffset)
	if offset < HeaderSize {
		offset = VoxOffsetNII
	}
	return assembleImage(h, order, raw, offset)
}

func decodePair(stem string, gzipped bool) (*Image, error) {
	hdrPath, imgPath := stem+".hdr", stem+".img"
	if gzipped {
		hdrPath, imgPath = hdrPath+".gz", imgPath+".gz"
	}
	hdrRaw, err := readMaybeGzip(hdrPath, gzipped)
	if err != nil {
		return nil, err
	}
	h, order, err := DecodeHeader(hdrRaw)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	imgRaw, err := readMaybeGzip(imgPath, gzipped)
	if err != nil {
		return nil, err
	}
	// vox_offset is an offset into the .img file for pairs, usually 0.
	offset := int(h.VoxOffset)
	if offset < 0 {
		offset = 0
	}
	return assembleImage(h, order, imgRaw, offset)
}

// OpenFileMmap reads an uncompressed single-file .nii image through a
// memory mapping, avoiding a separate read buffer for the raw samples.
// The returned image must be closed to release the mapping. No
// concurrent-writer protocol is defined for the mapped file; callers
// must ensure at most one writer touches it.
func OpenFileMmap(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	mm, err := mapFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	raw := mm.Bytes()
	h, order, err := DecodeHeader(raw)
	if err != nil {
		mm.Close()
		return nil, err
	}
	if err := h.Validate(); err != nil {
		mm.Close()
		return nil, err
	}
	if !h.SingleFile() {
		mm.Close()
		return nil, ErrPairStream
	}
	offset := int(h.VoxOffset)
	if offset < HeaderSize {
		offset = VoxOffsetNII
	}
	img, err := assembleImage(h, order, raw, offset)
	if err != nil {
		mm.Close()
		return nil, err
	}
	img.closer = mm
	return img, nil
}

// assembleImage converts raw samples to a volume and binds it to the
// grid transform derived from the header.
func assembleImage(h *Header, order binary.ByteOrder, raw []byte, offset int) (*Image, error) {
	shape := h.Shape()
	n := 1
	for _, s := range shape {
		if s <= 0 || n > math.MaxInt/s {
			return nil, fmt.Errorf("%w: grid %v overflows sample count", ErrBadDim, shape)
		}
		n *= s
	}
	bits, err := h.Datatype.Bitpix()
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt/int(bits) {
		return nil, fmt.Errorf("%w: grid %v overflows data size", ErrBadDim, shape)
	}
	size := n * int(bits) / 8
	if offset < 0 || offset > len(raw) || size > len(raw)-offset {
		return nil, fmt.Errorf("%w: %d data bytes at offset %d in %d-byte buffer",
			ErrShortFile, size, offset, len(raw))
	}
	flat, err := decodeSamples(raw[offset:offset+size], h.Datatype, order, n)
	if err != nil {
		return nil, err
	}
	for i, v := range flat {
		flat[i] = h.PostRead(v)
	}
	data, err := volumeFromFileOrder(flat, shape)
	if err != nil {
		return nil, err
	}
	xform, err := h.Transform()
	if err != nil {
		return nil, err
	}
	return &Image{data: data, xform: xform, header: h, dtype: h.Datatype}, nil
}

// Transform builds the full voxel-to-world transform for the header's
// grid: the 4x4 spatial affine for the first three axes and diagonal
// spacings for any further (time, ...) axes, with toffset as the time
// translation.
func (h *Header) Transform() (*coords.AffineTransform, error) {
	ndim := h.NDim()
	if ndim < 1 || ndim > len(voxelAxisNames) {
		return nil, fmt.Errorf("%w: dim[0] = %d", ErrBadDim, ndim)
	}
	spatial, err := h.Affine()
	if err != nil {
		return nil, err
	}
	m := mat.NewDense(ndim+1, ndim+1, nil)
	m.Set(ndim, ndim, 1)
	ns := ndim
	if ns > 3 {
		ns = 3
	}
	for i := 0; i < ns; i++ {
		for j := 0; j < ns; j++ {
			m.Set(i, j, spatial.At(i, j))
		}
		m.Set(i, ndim, spatial.At(i, 3))
	}
	for i := 3; i < ndim; i++ {
		m.Set(i, i, float64(h.Pixdim[i+1]))
		if i == 3 {
			m.Set(i, ndim, float64(h.Toffset))
		}
	}
	in := coords.MustSystem("voxel", voxelAxisNames[:ndim], coords.Float64)
	out := coords.MustSystem("world", worldAxisNames[:ndim], coords.Float64)
	return coords.NewAffineTransform(m, in, out)
}

// decodeSamples unpacks n samples of the given type and byte order into
// float64s.
func decodeSamples(raw []byte, dtype DataType, order binary.ByteOrder, n int) ([]float64, error) {
	out := make([]float64, n)
	switch dtype {
	case DTUint8:
		for i := 0; i < n; i++ {
			out[i] = float64(raw[i])
		}
	case DTInt8:
		for i := 0; i < n; i++ {
			out[i] = float64(int8(raw[i]))
		}
	case DTInt16:
		for i := 0; i < n; i++ {
			out[i] = float64(int16(order.Uint16(raw[2*i:])))
		}
	case DTUint16:
		for i := 0; i < n; i++ {
			out[i] = float64(order.Uint16(raw[2*i:]))
		}
	case DTInt32:
		for i := 0; i < n; i++ {
			out[i] = float64(int32(order.Uint32(raw[4*i:])))
		}
	case DTUint32:
		for i := 0; i < n; i++ {
			out[i] = float64(order.Uint32(raw[4*i:]))
		}
	case DTInt64:
		for i := 0; i < n; i++ {
			out[i] = float64(int64(order.Uint64(raw[8*i:])))
		}
	case DTUint64:
		for i := 0; i < n; i++ {
			out[i] = float64(order.Uint64(raw[8*i:]))
		}
	case DTFloat32:
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(order.Uint32(raw[4*i:])))
		}
	case DTFloat64:
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
	default:
		return nil, fmt.Errorf("%w: code %d", ErrBadDataType, int16(dtype))
	}
	return out, nil
}

// volumeFromFileOrder builds a volume of the given shape from samples
// in NIFTI file order, where the first grid index varies fastest.
func volumeFromFileOrder(flat []float64, shape []int) (*vol.Volume, error) {
	rev := make([]int, len(shape))
	for i, s := range shape {
		rev[len(shape)-1-i] = s
	}
	v, err := vol.FromSlice(flat, rev...)
	if err != nil {
		return nil, err
	}
	order := make([]int, len(shape))
	for i := range order {
		order[i] = len(shape) - 1 - i
	}
	return v.Transpose(order...)
}

// fileOrderSamples flattens a volume into NIFTI file order.
func fileOrderSamples(v *vol.Volume) ([]float64, error) {
	n := v.Rank()
	order := make([]int, n)
	for i := range order {
		order[i] = n - 1 - i
	}
	rev, err := v.Transpose(order...)
	if err != nil {
		return nil, err
	}
	return rev.Data(), nil
}
