// Package nifti provides reading and writing of NIFTI-1 and ANALYZE
// neuroimaging volume files.
//
// NIFTI-1 is the standard interchange format for volumetric brain
// imaging data. A file carries a fixed 348-byte binary header, in either
// byte order, describing the voxel grid, sample type, intensity scaling
// and the voxel-to-world affine (stored as a quaternion, a row matrix,
// or plain voxel spacings), followed by the voxel samples themselves.
// Headers and data may live in one .nii file or a .hdr/.img pair, and
// either may be gzip-compressed.
package nifti

import (
	"errors"
	"fmt"
)

// ErrFormat is the base error for malformed or unsupported headers.
// All header format errors wrap it.
var ErrFormat = errors.New("nifti: bad header")

// Format errors.
var (
	ErrBadSize     = fmt.Errorf("%w: sizeof_hdr is not 348 in either byte order", ErrFormat)
	ErrBadMagic    = fmt.Errorf("%w: magic is not \"ni1\" or \"n+1\"", ErrFormat)
	ErrBadDataType = fmt.Errorf("%w: unrecognized or unsupported datatype", ErrFormat)
	ErrBadBitpix   = fmt.Errorf("%w: bitpix does not match datatype", ErrFormat)
	ErrBadQfac     = fmt.Errorf("%w: pixdim[0] must be 0, 1 or -1", ErrFormat)
	ErrBadDim      = fmt.Errorf("%w: invalid dim field", ErrFormat)
	ErrBadPixdim   = fmt.Errorf("%w: spatial pixdim must be positive", ErrFormat)
	ErrShortFile   = fmt.Errorf("%w: file truncated", ErrFormat)
)

// DataType is a NIFTI-1 datatype code describing the sample type of the
// voxel data.
type DataType int16

// The datatype codes this package can read and write. Codes defined by
// the standard but with no corresponding numeric sample representation
// here (complex, RGB, 128-bit floats) are rejected at parse time.
const (
	DTUint8   DataType = 2
	DTInt16   DataType = 4
	DTInt32   DataType = 8
	DTFloat32 DataType = 16
	DTFloat64 DataType = 64
	DTInt8    DataType = 256
	DTUint16  DataType = 512
	DTUint32  DataType = 768
	DTInt64   DataType = 1024
	DTUint64  DataType = 1280
)

// dtypeInfo maps each supported datatype code to its bit width.
var dtypeInfo = map[DataType]int16{
	DTUint8:   8,
	DTInt16:   16,
	DTInt32:   32,
	DTFloat32: 32,
	DTFloat64: 64,
	DTInt8:    8,
	DTUint16:  16,
	DTUint32:  32,
	DTInt64:   64,
	DTUint64:  64,
}

// Bitpix returns the bits per voxel for the datatype, or an error for a
// code this package does not support.
func (d DataType) Bitpix() (int16, error) {
	bits, ok := dtypeInfo[d]
	if !ok {
		return 0, fmt.Errorf("%w: code %d", ErrBadDataType, int16(d))
	}
	return bits, nil
}

// Valid reports whether the datatype is supported.
func (d DataType) Valid() bool {
	_, ok := dtypeInfo[d]
	return ok
}

// String returns a readable name like "float32".
func (d DataType) String() string {
	switch d {
	case DTUint8:
		return "uint8"
	case DTInt16:
		return "int16"
	case DTInt32:
		return "int32"
	case DTFloat32:
		return "float32"
	case DTFloat64:
		return "float64"
	case DTInt8:
		return "int8"
	case DTUint16:
		return "uint16"
	case DTUint32:
		return "uint32"
	case DTInt64:
		return "int64"
	case DTUint64:
		return "uint64"
	}
	return fmt.Sprintf("DataType(%d)", int16(d))
}

// DataTypeFor returns the datatype code for a readable name, used by
// command line tools for output conversion.
func DataTypeFor(name string) (DataType, error) {
	for d := range dtypeInfo {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadDataType, name)
}

// XformCode describes what the qform or sform affine maps into.
type XformCode int16

// The NIFTI-1 transform codes.
const (
	XformUnknown     XformCode = 0
	XformScannerAnat XformCode = 1
	XformAlignedAnat XformCode = 2
	XformTalairach   XformCode = 3
	XformMNI152      XformCode = 4
)

// String returns the transform space name.
func (x XformCode) String() string {
	switch x {
	case XformUnknown:
		return "unknown"
	case XformScannerAnat:
		return "scanner"
	case XformAlignedAnat:
		return "aligned"
	case XformTalairach:
		return "talairach"
	case XformMNI152:
		return "mni152"
	}
	return fmt.Sprintf("XformCode(%d)", int16(x))
}

// Unit codes for the xyzt_units field. Spatial units live in the low
// three bits, temporal units in the next three.
const (
	UnitsUnknown = 0
	UnitsMeter   = 1
	UnitsMM      = 2
	UnitsMicron  = 3
	UnitsSec     = 8
	UnitsMsec    = 16
	UnitsUsec    = 24
	UnitsHz      = 32
	UnitsPPM     = 40
	UnitsRads    = 48
)

// Slice timing order codes for the slice_code field.
const (
	SliceUnknown = 0
	SliceSeqInc  = 1
	SliceSeqDec  = 2
	SliceAltInc  = 3
	SliceAltDec  = 4
	SliceAltInc2 = 5
	SliceAltDec2 = 6
)
