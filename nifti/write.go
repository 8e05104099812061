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
)

// Headers are written little-endian; readers of either order handle the
// files through the sizeof_hdr probe.
var writeOrder binary.ByteOrder = binary.LittleEndian

// Encode writes an image as a single-file .nii stream: the 348-byte
// header, four zero extension flag bytes, and the voxel samples.
func Encode(w io.Writer, img *Image) error {
	h, err := buildHeader(img, true)
	if err != nil {
		return err
	}
	hdr, err := h.Encode(writeOrder)
	if err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	// No extended header: the four extension bytes are zero.
	if _, err := w.Write(make([]byte, int(h.VoxOffset)-HeaderSize)); err != nil {
		return err
	}
	return writeSamples(w, img, h)
}

// EncodeFile writes an image to the filesystem, dispatching on the
// extension: .nii and .nii.gz single files, or .hdr/.img pairs
// (optionally gzipped) when named by either member.
func EncodeFile(path string, img *Image) error {
	base, gzipped := splitGzExt(path)
	switch {
	case strings.HasSuffix(base, ".nii"):
		return writeFileMaybeGzip(path, gzipped, func(w io.Writer) error {
			return Encode(w, img)
		})
	case strings.HasSuffix(base, ".hdr"), strings.HasSuffix(base, ".img"):
		stem := strings.TrimSuffix(base, ".hdr")
		stem = strings.TrimSuffix(stem, ".img")
		return encodePair(stem, gzipped, img)
	}
	return fmt.Errorf("%w: unrecognized extension on %q", ErrFormat, path)
}

func writeFileMaybeGzip(path string, gzipped bool, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if gzipped {
		zw := gzip.NewWriter(f)
		if err := write(zw); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return write(f)
}

func encodePair(stem string, gzipped bool, img *Image) error {
	h, err := buildHeader(img, false)
	if err != nil {
		return err
	}
	hdrPath, imgPath := stem+".hdr", stem+".img"
	if gzipped {
		hdrPath, imgPath = hdrPath+".gz", imgPath+".gz"
	}
	err = writeFileMaybeGzip(hdrPath, gzipped, func(w io.Writer) error {
		hdr, err := h.Encode(writeOrder)
		if err != nil {
			return err
		}
		_, err = w.Write(hdr)
		return err
	})
	if err != nil {
		return err
	}
	return writeFileMaybeGzip(imgPath, gzipped, func(w io.Writer) error {
		return writeSamples(w, img, h)
	})
}

// buildHeader derives the on-disk header for an image: the source
// header's descriptive fields are kept when present, and the grid,
// datatype and affine fields are rewritten from the image.
func buildHeader(img *Image, singleFile bool) (*Header, error) {
	var h Header
	if img.header != nil {
		h = *img.header
	} else {
		h = *NewHeader()
	}
	if err := h.SetShape(img.Shape()); err != nil {
		return nil, err
	}
	bits, err := img.dtype.Bitpix()
	if err != nil {
		return nil, err
	}
	h.Datatype = img.dtype
	h.Bitpix = bits

	m := img.xform.Matrix()
	ndim := img.data.Rank()
	space := XformCode(h.QformCode)
	if space == XformUnknown {
		space = XformScannerAnat
	}
	h.SetAffine(spatialAffine(m, ndim), space)
	for i := 3; i < ndim; i++ {
		h.Pixdim[i+1] = float32(m.At(i, i))
	}
	if ndim > 3 {
		h.Toffset = float32(m.At(3, ndim))
	}

	h.SizeofHdr = HeaderSize
	if singleFile {
		copy(h.Magic[:], MagicSingle)
		h.VoxOffset = VoxOffsetNII
	} else {
		copy(h.Magic[:], MagicPair)
		h.VoxOffset = 0
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}

// spatialAffine extracts the 4x4 spatial part of an (ndim+1)-square
// voxel-to-world matrix, padding with identity rows for grids of fewer
// than three dimensions.
func spatialAffine(m *mat.Dense, ndim int) *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		out.Set(i, i, 1)
	}
	ns := ndim
	if ns > 3 {
		ns = 3
	}
	for i := 0; i < ns; i++ {
		for j := 0; j < ns; j++ {
			out.Set(i, j, m.At(i, j))
		}
		out.Set(i, 3, m.At(i, ndim))
	}
	return out
}

func writeSamples(w io.Writer, img *Image, h *Header) error {
	flat, err := fileOrderSamples(img.data)
	if err != nil {
		return err
	}
	scaled := make([]float64, len(flat))
	for i, v := range flat {
		scaled[i] = h.PreWrite(v)
	}
	raw, err := encodeSamples(scaled, h.Datatype, writeOrder)
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// encodeSamples packs float64 samples into the given datatype and byte
// order. Integer types round to nearest.
func encodeSamples(flat []float64, dtype DataType, order binary.ByteOrder) ([]byte, error) {
	bits, err := dtype.Bitpix()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(flat)*int(bits)/8)
	switch dtype {
	case DTUint8:
		for i, v := range flat {
			out[i] = uint8(math.Round(v))
		}
	case DTInt8:
		for i, v := range flat {
			out[i] = byte(int8(math.Round(v)))
		}
	case DTInt16:
		for i, v := range flat {
			order.PutUint16(out[2*i:], uint16(int16(math.Round(v))))
		}
	case DTUint16:
		for i, v := range flat {
			order.PutUint16(out[2*i:], uint16(math.Round(v)))
		}
	case DTInt32:
		for i, v := range flat {
			order.PutUint32(out[4*i:], uint32(int32(math.Round(v))))
		}
	case DTUint32:
		for i, v := range flat {
			order.PutUint32(out[4*i:], uint32(math.Round(v)))
		}
	case DTInt64:
		for i, v := range flat {
			order.PutUint64(out[8*i:], uint64(int64(math.Round(v))))
		}
	case DTUint64:
		for i, v := range flat {
			order.PutUint64(out[8*i:], uint64(math.Round(v)))
		}
	case DTFloat32:
		for i, v := range flat {
			order.PutUint32(out[4*i:], math.Float32bits(float32(v)))
		}
	case DTFloat64:
		for i, v := range flat {
			order.PutUint64(out[8*i:], math.Float64bits(v))
		}
	default:
		return nil, fmt.Errorf("%w: code %d", ErrBadDataType, int16(dtype))
	}
	return out, nil
}
