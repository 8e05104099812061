package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewHeaderValidates(t *testing.T) {
	h := NewHeader()
	h.Datatype = DTFloat32
	h.Bitpix = 32
	if err := h.Validate(); err != nil {
		t.Fatalf("default header does not validate: %v", err)
	}
	if !h.SingleFile() {
		t.Error("default header is not single-file")
	}
	if h.VoxOffset != VoxOffsetNII {
		t.Errorf("vox_offset = %g, want %d", h.VoxOffset, VoxOffsetNII)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader()
	h.Datatype = DTInt16
	h.Bitpix = 16
	if err := h.SetShape([]int{64, 64, 40}); err != nil {
		t.Fatal(err)
	}
	h.Pixdim = [8]float32{1, 2, 2, 3, 0, 0, 0, 0}
	h.SclSlope = 2.5
	h.SclInter = -3
	h.CalMax = 100
	h.Toffset = 1.25
	h.SetDescrip("test volume")
	h.QformCode = int16(XformScannerAnat)
	h.QuaternB = 0.5
	h.QoffsetX = -32

	orders := []struct {
		name  string
		order binary.ByteOrder
	}{
		{"little", binary.LittleEndian},
		{"big", binary.BigEndian},
	}
	for _, tc := range orders {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := h.Encode(tc.order)
			if err != nil {
				t.Fatal(err)
			}
			if len(buf) != HeaderSize {
				t.Fatalf("encoded %d bytes, want %d", len(buf), HeaderSize)
			}
			got, order, err := DecodeHeader(buf)
			if err != nil {
				t.Fatal(err)
			}
			if order != tc.order {
				t.Errorf("detected order %v, want %v", order, tc.order)
			}
			if *got != *h {
				t.Errorf("decoded header differs:\n got %+v\nwant %+v", got, h)
			}
			// Re-encoding must reproduce the bytes exactly.
			buf2, err := got.Encode(tc.order)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf, buf2) {
				t.Error("re-encoded bytes differ from the original")
			}
		})
	}
}

func TestDetectByteOrder(t *testing.T) {
	le := make([]byte, 4)
	binary.LittleEndian.PutUint32(le, HeaderSize)
	if order, err := DetectByteOrder(le); err != nil || order != binary.LittleEndian {
		t.Errorf("little-endian probe = %v, %v", order, err)
	}
	be := make([]byte, 4)
	binary.BigEndian.PutUint32(be, HeaderSize)
	if order, err := DetectByteOrder(be); err != nil || order != binary.BigEndian {
		t.Errorf("big-endian probe = %v, %v", order, err)
	}
	if _, err := DetectByteOrder([]byte{1, 2, 3, 4}); !errors.Is(err, ErrBadSize) {
		t.Errorf("garbage probe: err = %v, want ErrBadSize", err)
	}
	if _, err := DetectByteOrder([]byte{1, 2}); !errors.Is(err, ErrShortFile) {
		t.Errorf("short probe: err = %v, want ErrShortFile", err)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	h := NewHeader()
	h.Datatype = DTUint8
	h.Bitpix = 8
	buf, err := h.Encode(binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := DecodeHeader(buf[:200]); !errors.Is(err, ErrShortFile) {
		t.Errorf("truncated header: err = %v, want ErrShortFile", err)
	}
}

// A float32 volume with no rotation information falls back to a plain
// diagonal of the voxel spacings.
func TestPixdimFallbackAffine(t *testing.T) {
	h := NewHeader()
	h.Dim = [8]int16{3, 64, 64, 40, 0, 0, 0, 0}
	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.Pixdim = [8]float32{1, 2, 2, 3, 0, 0, 0, 0}
	h.QformCode = 0
	h.SformCode = 0
	if err := h.Validate(); err != nil {
		t.Fatal(err)
	}
	if got, want := h.Shape(), []int{64, 64, 40}; len(got) != 3 ||
		got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("Shape = %v, want %v", got, want)
	}
	m, err := h.Affine()
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(4, 4, []float64{
		2, 0, 0, 0,
		0, 2, 0, 0,
		0, 0, 3, 0,
		0, 0, 0, 1,
	})
	if !mat.EqualApprox(m, want, 1e-12) {
		t.Errorf("Affine = %v, want %v", mat.Formatted(m), mat.Formatted(want))
	}
}

func TestAffinePrecedence(t *testing.T) {
	h := NewHeader()
	h.Dim = [8]int16{3, 4, 4, 4, 0, 0, 0, 0}
	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.Pixdim = [8]float32{1, 2, 2, 2, 0, 0, 0, 0}

	// An sform alone wins over the pixdim fallback.
	h.SformCode = int16(XformAlignedAnat)
	h.SrowX = [4]float32{0, 0, 5, 10}
	h.SrowY = [4]float32{5, 0, 0, 20}
	h.SrowZ = [4]float32{0, 5, 0, 30}
	m, err := h.Affine()
	if err != nil {
		t.Fatal(err)
	}
	if m.At(0, 2) != 5 || m.At(0, 3) != 10 || m.At(1, 0) != 5 {
		t.Errorf("sform not selected: %v", mat.Formatted(m))
	}

	// A qform wins over the sform. Identity quaternion: the affine is
	// the spacing diagonal plus the offsets.
	h.QformCode = int16(XformScannerAnat)
	h.QoffsetX, h.QoffsetY, h.QoffsetZ = -1, -2, -3
	m, err = h.Affine()
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(4, 4, []float64{
		2, 0, 0, -1,
		0, 2, 0, -2,
		0, 0, 2, -3,
		0, 0, 0, 1,
	})
	if !mat.EqualApprox(m, want, 1e-6) {
		t.Errorf("qform affine = %v, want %v", mat.Formatted(m), mat.Formatted(want))
	}
}

func TestSetAffineRoundTrip(t *testing.T) {
	h := NewHeader()
	h.Dim = [8]int16{3, 4, 4, 4, 0, 0, 0, 0}
	h.Datatype = DTFloat32
	h.Bitpix = 32

	// A rotation about z by 90 degrees with anisotropic spacings.
	m := mat.NewDense(4, 4, []float64{
		0, -3, 0, 7,
		2, 0, 0, 8,
		0, 0, 4, 9,
		0, 0, 0, 1,
	})
	h.SetAffine(m, XformAlignedAnat)
	if h.QformCode != int16(XformAlignedAnat) || h.SformCode != int16(XformAlignedAnat) {
		t.Errorf("xform codes = %d, %d", h.QformCode, h.SformCode)
	}
	got, err := h.Affine()
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(got, m, 1e-5) {
		t.Errorf("qform round trip = %v, want %v", mat.Formatted(got), mat.Formatted(m))
	}
	// The srow fields carry the matrix exactly.
	if h.SrowX[1] != -3 || h.SrowY[0] != 2 || h.SrowZ[2] != 4 || h.SrowX[3] != 7 {
		t.Errorf("srow fields = %v %v %v", h.SrowX, h.SrowY, h.SrowZ)
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() *Header {
		h := NewHeader()
		h.Datatype = DTFloat32
		h.Bitpix = 32
		return h
	}
	tests := []struct {
		name string
		mod  func(*Header)
		want error
	}{
		{"bad size", func(h *Header) { h.SizeofHdr = 340 }, ErrBadSize},
		{"bad magic", func(h *Header) { copy(h.Magic[:], "bad\x00") }, ErrBadMagic},
		{"unknown datatype", func(h *Header) { h.Datatype = 32 }, ErrBadDataType},
		{"bitpix mismatch", func(h *Header) { h.Bitpix = 64 }, ErrBadBitpix},
		{"zero ndim", func(h *Header) { h.Dim[0] = 0 }, ErrBadDim},
		{"ndim too large", func(h *Header) { h.Dim[0] = 8 }, ErrBadDim},
		{"zero extent", func(h *Header) { h.Dim[2] = 0 }, ErrBadDim},
		{"bad qfac", func(h *Header) { h.Pixdim[0] = 2 }, ErrBadQfac},
		{"zero spacing", func(h *Header) { h.Pixdim[1] = 0 }, ErrBadPixdim},
		{"negative spacing", func(h *Header) { h.Pixdim[3] = -1 }, ErrBadPixdim},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := base()
			tc.mod(h)
			if err := h.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSetShape(t *testing.T) {
	h := NewHeader()
	if err := h.SetShape([]int{2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	if h.Dim != [8]int16{4, 2, 3, 4, 5, 0, 0, 0} {
		t.Errorf("dim = %v", h.Dim)
	}
	if err := h.SetShape(nil); !errors.Is(err, ErrBadDim) {
		t.Errorf("empty shape: err = %v, want ErrBadDim", err)
	}
	if err := h.SetShape([]int{1, 2, 3, 4, 5, 6, 7, 8}); !errors.Is(err, ErrBadDim) {
		t.Errorf("eight axes: err = %v, want ErrBadDim", err)
	}
	if err := h.SetShape([]int{1 << 16}); !errors.Is(err, ErrBadDim) {
		t.Errorf("oversized extent: err = %v, want ErrBadDim", err)
	}
}

func TestQfac(t *testing.T) {
	h := NewHeader()
	h.Pixdim[0] = 0
	if q, err := h.Qfac(); err != nil || q != 1 {
		t.Errorf("Qfac(0) = %g, %v, want 1", q, err)
	}
	h.Pixdim[0] = -1
	if q, err := h.Qfac(); err != nil || q != -1 {
		t.Errorf("Qfac(-1) = %g, %v, want -1", q, err)
	}
	h.Pixdim[0] = 0.5
	if _, err := h.Qfac(); !errors.Is(err, ErrBadQfac) {
		t.Errorf("Qfac(0.5): err = %v, want ErrBadQfac", err)
	}
}

func TestScaling(t *testing.T) {
	h := NewHeader()
	h.SclSlope = 2.5
	h.SclInter = -3
	if got := h.PostRead(4); got != 7 {
		t.Errorf("PostRead(4) = %g, want 7", got)
	}
	if got := h.PreWrite(7); got != 4 {
		t.Errorf("PreWrite(7) = %g, want 4", got)
	}
	h.SclSlope = 0
	if got := h.PostRead(4); got != 4 {
		t.Errorf("PostRead with zero slope = %g, want 4", got)
	}
	if got := h.PreWrite(4); got != 4 {
		t.Errorf("PreWrite with zero slope = %g, want 4", got)
	}
}

func TestUnits(t *testing.T) {
	h := NewHeader()
	h.SetUnits(UnitsMM, UnitsSec)
	if h.SpaceUnits() != UnitsMM {
		t.Errorf("SpaceUnits = %d, want %d", h.SpaceUnits(), UnitsMM)
	}
	if h.TimeUnits() != UnitsSec {
		t.Errorf("TimeUnits = %d, want %d", h.TimeUnits(), UnitsSec)
	}
}

func BenchmarkDecodeHeader(b *testing.B) {
	h := NewHeader()
	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.SetShape([]int{64, 64, 40})
	buf, err := h.Encode(binary.LittleEndian)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := DecodeHeader(buf); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeHeader(b *testing.B) {
	h := NewHeader()
	h.Datatype = DTFloat32
	h.Bitpix = 32
	h.SetShape([]int{64, 64, 40})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.Encode(binary.LittleEndian); err != nil {
			b.Fatal(err)
		}
	}
}

func TestDescrip(t *testing.T) {
	h := NewHeader()
	h.SetDescrip("generated by go-nifti")
	if got := h.DescripString(); got != "generated by go-nifti" {
		t.Errorf("DescripString = %q", got)
	}
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	h.SetDescrip(string(long))
	if got := h.DescripString(); len(got) != 80 {
		t.Errorf("truncated descrip length = %d, want 80", len(got))
	}
}
