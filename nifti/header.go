package nifti

import (
	"encoding/binary"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/voxelmap/go-nifti/internal/bin"
)

const (
	// HeaderSize is the fixed size of the NIFTI-1/ANALYZE binary header.
	HeaderSize = 348

	// VoxOffsetNII is the voxel data offset for single-file .nii images:
	// the header, followed by the four extension flag bytes.
	VoxOffsetNII = 352

	// MagicPair marks a .hdr/.img two-file dataset.
	MagicPair = "ni1\x00"

	// MagicSingle marks a single-file .nii dataset.
	MagicSingle = "n+1\x00"
)

// Header is the fixed-layout NIFTI-1 header. Field names and sizes
// follow the standard's C struct; the on-disk byte order is discovered
// when decoding and chosen when encoding.
type Header struct {
	SizeofHdr     int32    // must be 348
	DataTypeName  [10]byte // unused ANALYZE compatibility field
	DBName        [18]byte // unused ANALYZE compatibility field
	Extents       int32    // unused
	SessionError  int16    // unused
	Regular       byte     // unused, conventionally 'r'
	DimInfo       byte     // MRI slice ordering
	Dim           [8]int16 // dim[0] = ndim, dim[1..7] = grid extents
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      DataType
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32 // pixdim[0] = qfac, pixdim[1..7] = spacings
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     int8
	XyztUnits     int8
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32 // unused
	Glmin         int32 // unused
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// field binds one header field to its byte offset and its generic
// decode/encode routines. The ordered table below is the single source
// of truth for the binary layout.
type field struct {
	name   string
	offset int
	size   int
	dec    func(r *bin.Reader, h *Header) error
	enc    func(w *bin.Writer, h *Header)
}

func i32Field(name string, offset int, p func(*Header) *int32) field {
	return field{name, offset, 4,
		func(r *bin.Reader, h *Header) error {
			v, err := r.ReadInt32()
			*p(h) = v
			return err
		},
		func(w *bin.Writer, h *Header) { w.WriteInt32(*p(h)) },
	}
}

func i16Field(name string, offset int, p func(*Header) *int16) field {
	return field{name, offset, 2,
		func(r *bin.Reader, h *Header) error {
			v, err := r.ReadInt16()
			*p(h) = v
			return err
		},
		func(w *bin.Writer, h *Header) { w.WriteInt16(*p(h)) },
	}
}

func i8Field(name string, offset int, p func(*Header) *int8) field {
	return field{name, offset, 1,
		func(r *bin.Reader, h *Header) error {
			v, err := r.ReadInt8()
			*p(h) = v
			return err
		},
		func(w *bin.Writer, h *Header) { w.WriteInt8(*p(h)) },
	}
}

func byteField(name string, offset int, p func(*Header) *byte) field {
	return field{name, offset, 1,
		func(r *bin.Reader, h *Header) error {
			v, err := r.ReadByte()
			*p(h) = v
			return err
		},
		func(w *bin.Writer, h *Header) { w.WriteByte(*p(h)) },
	}
}

func f32Field(name string, offset int, p func(*Header) *float32) field {
	return field{name, offset, 4,
		func(r *bin.Reader, h *Header) error {
			v, err := r.ReadFloat32()
			*p(h) = v
			return err
		},
		func(w *bin.Writer, h *Header) { w.WriteFloat32(*p(h)) },
	}
}

func bytesField(name string, offset int, p func(*Header) []byte) field {
	return field{name, offset, 0, // size fixed by the slice length
		func(r *bin.Reader, h *Header) error { return r.ReadBytesInto(p(h)) },
		func(w *bin.Writer, h *Header) { w.WriteBytes(p(h)) },
	}
}

func i16ArrField(name string, offset int, p func(*Header) []int16) field {
	return field{name, offset, 0,
		func(r *bin.Reader, h *Header) error {
			dst := p(h)
			for i := range dst {
				v, err := r.ReadInt16()
				if err != nil {
					return err
				}
				dst[i] = v
			}
			return nil
		},
		func(w *bin.Writer, h *Header) {
			for _, v := range p(h) {
				w.WriteInt16(v)
			}
		},
	}
}

func f32ArrField(name string, offset int, p func(*Header) []float32) field {
	return field{name, offset, 0,
		func(r *bin.Reader, h *Header) error {
			dst := p(h)
			for i := range dst {
				v, err := r.ReadFloat32()
				if err != nil {
					return err
				}
				dst[i] = v
			}
			return nil
		},
		func(w *bin.Writer, h *Header) {
			for _, v := range p(h) {
				w.WriteFloat32(v)
			}
		},
	}
}

// headerFields is the ordered field table of the 348-byte layout.
var headerFields = []field{
	i32Field("sizeof_hdr", 0, func(h *Header) *int32 { return &h.SizeofHdr }),
	bytesField("data_type", 4, func(h *Header) []byte { return h.DataTypeName[:] }),
	bytesField("db_name", 14, func(h *Header) []byte { return h.DBName[:] }),
	i32Field("extents", 32, func(h *Header) *int32 { return &h.Extents }),
	i16Field("session_error", 36, func(h *Header) *int16 { return &h.SessionError }),
	byteField("regular", 38, func(h *Header) *byte { return &h.Regular }),
	byteField("dim_info", 39, func(h *Header) *byte { return &h.DimInfo }),
	i16ArrField("dim", 40, func(h *Header) []int16 { return h.Dim[:] }),
	f32Field("intent_p1", 56, func(h *Header) *float32 { return &h.IntentP1 }),
	f32Field("intent_p2", 60, func(h *Header) *float32 { return &h.IntentP2 }),
	f32Field("intent_p3", 64, func(h *Header) *float32 { return &h.IntentP3 }),
	i16Field("intent_code", 68, func(h *Header) *int16 { return &h.IntentCode }),
	{
		name: "datatype", offset: 70, size: 2,
		dec: func(r *bin.Reader, h *Header) error {
			v, err := r.ReadInt16()
			h.Datatype = DataType(v)
			return err
		},
		enc: func(w *bin.Writer, h *Header) { w.WriteInt16(int16(h.Datatype)) },
	},
	i16Field("bitpix", 72, func(h *Header) *int16 { return &h.Bitpix }),
	i16Field("slice_start", 74, func(h *Header) *int16 { return &h.SliceStart }),
	f32ArrField("pixdim", 76, func(h *Header) []float32 { return h.Pixdim[:] }),
	f32Field("vox_offset", 108, func(h *Header) *float32 { return &h.VoxOffset }),
	f32Field("scl_slope", 112, func(h *Header) *float32 { return &h.SclSlope }),
	f32Field("scl_inter", 116, func(h *Header) *float32 { return &h.SclInter }),
	i16Field("slice_end", 120, func(h *Header) *int16 { return &h.SliceEnd }),
	i8Field("slice_code", 122, func(h *Header) *int8 { return &h.SliceCode }),
	i8Field("xyzt_units", 123, func(h *Header) *int8 { return &h.XyztUnits }),
	f32Field("cal_max", 124, func(h *Header) *float32 { return &h.CalMax }),
	f32Field("cal_min", 128, func(h *Header) *float32 { return &h.CalMin }),
	f32Field("slice_duration", 132, func(h *Header) *float32 { return &h.SliceDuration }),
	f32Field("toffset", 136, func(h *Header) *float32 { return &h.Toffset }),
	i32Field("glmax", 140, func(h *Header) *int32 { return &h.Glmax }),
	i32Field("glmin", 144, func(h *Header) *int32 { return &h.Glmin }),
	bytesField("descrip", 148, func(h *Header) []byte { return h.Descrip[:] }),
	bytesField("aux_file", 228, func(h *Header) []byte { return h.AuxFile[:] }),
	i16Field("qform_code", 252, func(h *Header) *int16 { return &h.QformCode }),
	i16Field("sform_code", 254, func(h *Header) *int16 { return &h.SformCode }),
	f32Field("quatern_b", 256, func(h *Header) *float32 { return &h.QuaternB }),
	f32Field("quatern_c", 260, func(h *Header) *float32 { return &h.QuaternC }),
	f32Field("quatern_d", 264, func(h *Header) *float32 { return &h.QuaternD }),
	f32Field("qoffset_x", 268, func(h *Header) *float32 { return &h.QoffsetX }),
	f32Field("qoffset_y", 272, func(h *Header) *float32 { return &h.QoffsetY }),
	f32Field("qoffset_z", 276, func(h *Header) *float32 { return &h.QoffsetZ }),
	f32ArrField("srow_x", 280, func(h *Header) []float32 { return h.SrowX[:] }),
	f32ArrField("srow_y", 296, func(h *Header) []float32 { return h.SrowY[:] }),
	f32ArrField("srow_z", 312, func(h *Header) []float32 { return h.SrowZ[:] }),
	bytesField("intent_name", 328, func(h *Header) []byte { return h.IntentName[:] }),
	bytesField("magic", 344, func(h *Header) []byte { return h.Magic[:] }),
}

func padSpaces(dst []byte) {
	for i := range dst {
		dst[i] = ' '
	}
}

// NewHeader returns a header populated with the standard single-file
// defaults: a 1x1x1x1 grid of unit spacings, unit scaling, and the
// "n+1" magic with voxel data at offset 352.
func NewHeader() *Header {
	h := &Header{
		SizeofHdr: HeaderSize,
		Regular:   'r',
		Dim:       [8]int16{4, 1, 1, 1, 1, 0, 0, 0},
		Pixdim:    [8]float32{1, 1, 1, 1, 1, 0, 0, 0},
		VoxOffset: VoxOffsetNII,
		SclSlope:  1,
	}
	padSpaces(h.DataTypeName[:])
	padSpaces(h.DBName[:])
	padSpaces(h.Descrip[:])
	padSpaces(h.AuxFile[:])
	padSpaces(h.IntentName[:])
	copy(h.Magic[:], MagicSingle)
	return h
}

// DetectByteOrder probes the sizeof_hdr field at the start of buf:
// whichever byte order makes it read 348 is the header's order.
func DetectByteOrder(buf []byte) (binary.ByteOrder, error) {
	if len(buf) < 4 {
		return nil, ErrShortFile
	}
	if binary.LittleEndian.Uint32(buf) == HeaderSize {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(buf) == HeaderSize {
		return binary.BigEndian, nil
	}
	return nil, ErrBadSize
}

// DecodeHeader parses the first 348 bytes of buf, detecting the byte
// order from the sizeof_hdr field. The returned header is not yet
// validated; call Validate before trusting its grid.
func DecodeHeader(buf []byte) (*Header, binary.ByteOrder, error) {
	order, err := DetectByteOrder(buf)
	if err != nil {
		return nil, nil, err
	}
	if len(buf) < HeaderSize {
		return nil, nil, fmt.Errorf("%w: %d of %d header bytes", ErrShortFile, len(buf), HeaderSize)
	}
	h := &Header{}
	r := bin.NewReader(buf[:HeaderSize], order)
	for _, f := range headerFields {
		if r.Pos() != f.offset {
			return nil, nil, fmt.Errorf("nifti: internal layout error at field %s: pos %d, offset %d",
				f.name, r.Pos(), f.offset)
		}
		if err := f.dec(r, h); err != nil {
			return nil, nil, fmt.Errorf("%w: field %s: %v", ErrShortFile, f.name, err)
		}
	}
	return h, order, nil
}

// Encode serializes the header to its 348-byte binary form in the given
// byte order.
func (h *Header) Encode(order binary.ByteOrder) ([]byte, error) {
	w := bin.NewWriterSize(order, HeaderSize)
	for _, f := range headerFields {
		if w.Len() != f.offset {
			return nil, fmt.Errorf("nifti: internal layout error at field %s: pos %d, offset %d",
				f.name, w.Len(), f.offset)
		}
		f.enc(w, h)
	}
	if w.Len() != HeaderSize {
		return nil, fmt.Errorf("nifti: internal layout error: encoded %d bytes", w.Len())
	}
	return w.Bytes(), nil
}

// Validate checks the header's structural invariants: the fixed size
// marker, a recognized magic, a supported datatype with matching
// bitpix, a sane dimension count and positive spatial spacings.
func (h *Header) Validate() error {
	if h.SizeofHdr != HeaderSize {
		return ErrBadSize
	}
	if magic := string(h.Magic[:]); magic != MagicPair && magic != MagicSingle {
		return fmt.Errorf("%w: got %q", ErrBadMagic, magic)
	}
	bits, err := h.Datatype.Bitpix()
	if err != nil {
		return err
	}
	if h.Bitpix != bits {
		return fmt.Errorf("%w: bitpix %d for %s", ErrBadBitpix, h.Bitpix, h.Datatype)
	}
	ndim := int(h.Dim[0])
	if ndim < 1 || ndim > 7 {
		return fmt.Errorf("%w: dim[0] = %d", ErrBadDim, ndim)
	}
	for i := 1; i <= ndim; i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("%w: dim[%d] = %d", ErrBadDim, i, h.Dim[i])
		}
	}
	if _, err := h.Qfac(); err != nil {
		return err
	}
	for i := 1; i <= ndim && i <= 3; i++ {
		if h.Pixdim[i] <= 0 {
			return fmt.Errorf("%w: pixdim[%d] = %g", ErrBadPixdim, i, h.Pixdim[i])
		}
	}
	return nil
}

// NDim returns the number of grid dimensions.
func (h *Header) NDim() int {
	return int(h.Dim[0])
}

// Shape returns the grid extents, one per dimension.
func (h *Header) Shape() []int {
	ndim := h.NDim()
	if ndim < 0 || ndim > 7 {
		return nil
	}
	shape := make([]int, ndim)
	for i := range shape {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// SetShape sets dim from a grid shape of up to seven extents.
func (h *Header) SetShape(shape []int) error {
	if len(shape) < 1 || len(shape) > 7 {
		return fmt.Errorf("%w: %d dimensions", ErrBadDim, len(shape))
	}
	h.Dim = [8]int16{}
	h.Dim[0] = int16(len(shape))
	for i, s := range shape {
		if s < 1 || s > 1<<15-1 {
			return fmt.Errorf("%w: extent %d on axis %d", ErrBadDim, s, i)
		}
		h.Dim[i+1] = int16(s)
	}
	return nil
}

// Qfac returns the handedness factor stored in pixdim[0]: +1 or -1,
// with the legacy value 0 read as +1.
func (h *Header) Qfac() (float64, error) {
	switch h.Pixdim[0] {
	case 0, 1:
		return 1, nil
	case -1:
		return -1, nil
	}
	return 0, fmt.Errorf("%w: got %g", ErrBadQfac, h.Pixdim[0])
}

// SingleFile reports whether the header describes a single-file .nii
// dataset rather than a .hdr/.img pair.
func (h *Header) SingleFile() bool {
	return string(h.Magic[:]) == MagicSingle
}

// Affine returns the 4x4 voxel-to-world spatial transform. When
// qform_code is positive the quaternion fields are decoded; otherwise a
// positive sform_code selects the srow fields directly; otherwise the
// transform is a plain diagonal of the spatial spacings.
func (h *Header) Affine() (*mat.Dense, error) {
	qfac, err := h.Qfac()
	if err != nil {
		return nil, err
	}
	if h.QformCode > 0 {
		return QuaternToMatrix(
			float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD),
			float64(h.QoffsetX), float64(h.QoffsetY), float64(h.QoffsetZ),
			float64(h.Pixdim[1]), float64(h.Pixdim[2]), float64(h.Pixdim[3]),
			qfac), nil
	}
	if h.SformCode > 0 {
		m := mat.NewDense(4, 4, nil)
		for j := 0; j < 4; j++ {
			m.Set(0, j, float64(h.SrowX[j]))
			m.Set(1, j, float64(h.SrowY[j]))
			m.Set(2, j, float64(h.SrowZ[j]))
		}
		m.Set(3, 3, 1)
		return m, nil
	}
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		m.Set(i, i, float64(h.Pixdim[i+1]))
	}
	m.Set(3, 3, 1)
	return m, nil
}

// SetAffine stores a 4x4 voxel-to-world transform into the header: the
// srow fields carry it exactly, and the quaternion fields carry its
// closest rotation+zoom decomposition. Both qform_code and sform_code
// are set to the given space code.
func (h *Header) SetAffine(m *mat.Dense, space XformCode) {
	qb, qc, qd, qx, qy, qz, dx, dy, dz, qfac := MatrixToQuatern(m)
	h.QuaternB, h.QuaternC, h.QuaternD = float32(qb), float32(qc), float32(qd)
	h.QoffsetX, h.QoffsetY, h.QoffsetZ = float32(qx), float32(qy), float32(qz)
	h.Pixdim[0] = float32(qfac)
	h.Pixdim[1], h.Pixdim[2], h.Pixdim[3] = float32(dx), float32(dy), float32(dz)
	h.QformCode = int16(space)
	for j := 0; j < 4; j++ {
		h.SrowX[j] = float32(m.At(0, j))
		h.SrowY[j] = float32(m.At(1, j))
		h.SrowZ[j] = float32(m.At(2, j))
	}
	h.SformCode = int16(space)
}

// PostRead maps a stored sample to its scaled value. A zero slope means
// no scaling is defined and samples pass through unchanged.
func (h *Header) PostRead(x float64) float64 {
	if h.SclSlope != 0 {
		return x*float64(h.SclSlope) + float64(h.SclInter)
	}
	return x
}

// PreWrite inverts PostRead, mapping a scaled value back to its stored
// sample.
func (h *Header) PreWrite(x float64) float64 {
	if h.SclSlope != 0 {
		return (x - float64(h.SclInter)) / float64(h.SclSlope)
	}
	return x
}

// SpaceUnits returns the spatial unit code from xyzt_units.
func (h *Header) SpaceUnits() int {
	return int(h.XyztUnits) & 0x07
}

// TimeUnits returns the temporal unit code from xyzt_units.
func (h *Header) TimeUnits() int {
	return int(h.XyztUnits) & 0x38
}

// SetUnits sets the packed xyzt_units field from spatial and temporal
// unit codes.
func (h *Header) SetUnits(space, time int) {
	h.XyztUnits = int8((space & 0x07) | (time & 0x38))
}

// DescripString returns the descrip field with trailing NULs and spaces
// removed.
func (h *Header) DescripString() string {
	return strings.TrimRight(string(h.Descrip[:]), " \x00")
}

// SetDescrip stores a description, truncated to the 80-byte field.
func (h *Header) SetDescrip(s string) {
	padSpaces(h.Descrip[:])
	copy(h.Descrip[:], s)
}

// IntentNameString returns the intent_name field with padding removed.
func (h *Header) IntentNameString() string {
	return strings.TrimRight(string(h.IntentName[:]), " \x00")
}

// String returns a one-line summary of the header's salient fields.
func (h *Header) String() string {
	return fmt.Sprintf("nifti.Header{shape %v, %s, pixdim %v, qform %s, sform %s, magic %q}",
		h.Shape(), h.Datatype, h.Pixdim[1:h.NDim()+1],
		XformCode(h.QformCode), XformCode(h.SformCode), string(h.Magic[:]))
}
