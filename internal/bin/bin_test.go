package bin

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	orders := []struct {
		name  string
		order binary.ByteOrder
	}{
		{"little", binary.LittleEndian},
		{"big", binary.BigEndian},
	}
	for _, tc := range orders {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter(tc.order)
			w.WriteInt32(348)
			w.WriteInt16(-7)
			w.WriteUint16(40000)
			w.WriteFloat32(2.5)
			w.WriteFloat64(-1e-9)
			w.WriteByte('r')
			w.WriteInt8(-1)
			w.WriteString("n+1\x00", 4)

			r := NewReader(w.Bytes(), tc.order)
			if v, err := r.ReadInt32(); err != nil || v != 348 {
				t.Errorf("ReadInt32 = %d, %v, want 348", v, err)
			}
			if v, err := r.ReadInt16(); err != nil || v != -7 {
				t.Errorf("ReadInt16 = %d, %v, want -7", v, err)
			}
			if v, err := r.ReadUint16(); err != nil || v != 40000 {
				t.Errorf("ReadUint16 = %d, %v, want 40000", v, err)
			}
			if v, err := r.ReadFloat32(); err != nil || v != 2.5 {
				t.Errorf("ReadFloat32 = %g, %v, want 2.5", v, err)
			}
			if v, err := r.ReadFloat64(); err != nil || v != -1e-9 {
				t.Errorf("ReadFloat64 = %g, %v, want -1e-9", v, err)
			}
			if v, err := r.ReadByte(); err != nil || v != 'r' {
				t.Errorf("ReadByte = %c, %v, want r", v, err)
			}
			if v, err := r.ReadInt8(); err != nil || v != -1 {
				t.Errorf("ReadInt8 = %d, %v, want -1", v, err)
			}
			magic, err := r.ReadBytes(4)
			if err != nil || string(magic) != "n+1\x00" {
				t.Errorf("ReadBytes = %q, %v", magic, err)
			}
			if r.Len() != 0 {
				t.Errorf("Len = %d after full read, want 0", r.Len())
			}
		})
	}
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{1, 2}, binary.LittleEndian)
	if _, err := r.ReadInt32(); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("ReadInt32 on short buffer: err = %v, want ErrShortBuffer", err)
	}
	if err := r.Skip(-1); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("Skip(-1): err = %v, want ErrNegativeSize", err)
	}
	if err := r.Skip(3); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Skip beyond end: err = %v, want ErrShortBuffer", err)
	}
	if err := r.SetPos(5); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("SetPos beyond end: err = %v, want ErrShortBuffer", err)
	}
	if _, err := r.ReadBytes(-2); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("ReadBytes(-2): err = %v, want ErrNegativeSize", err)
	}
}

func TestReaderPositioning(t *testing.T) {
	r := NewReader([]byte{0, 1, 2, 3, 4, 5}, binary.BigEndian)
	if err := r.Skip(2); err != nil {
		t.Fatal(err)
	}
	if r.Pos() != 2 {
		t.Errorf("Pos = %d, want 2", r.Pos())
	}
	v, err := r.ReadUint16()
	if err != nil || v != 0x0203 {
		t.Errorf("ReadUint16 = %#x, %v, want 0x0203", v, err)
	}
	if err := r.SetPos(0); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 6 {
		t.Errorf("Len after SetPos(0) = %d, want 6", r.Len())
	}
}

func TestWriterByteLayout(t *testing.T) {
	w := NewWriter(binary.LittleEndian)
	w.WriteUint16(0x0102)
	w.WriteUint32(0x03040506)
	w.WriteUint64(0x0708090a0b0c0d0e)
	wantLE := []byte{
		0x02, 0x01,
		0x06, 0x05, 0x04, 0x03,
		0x0e, 0x0d, 0x0c, 0x0b, 0x0a, 0x09, 0x08, 0x07,
	}
	if got := w.Bytes(); string(got) != string(wantLE) {
		t.Errorf("little-endian layout = % x, want % x", got, wantLE)
	}

	w = NewWriter(binary.BigEndian)
	w.WriteUint16(0x0102)
	w.WriteUint32(0x03040506)
	w.WriteUint64(0x0708090a0b0c0d0e)
	wantBE := []byte{
		0x01, 0x02,
		0x03, 0x04, 0x05, 0x06,
		0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e,
	}
	if got := w.Bytes(); string(got) != string(wantBE) {
		t.Errorf("big-endian layout = % x, want % x", got, wantBE)
	}
}

func TestWriteStringTruncates(t *testing.T) {
	w := NewWriter(binary.LittleEndian)
	w.WriteString("abcdefgh", 4)
	if got := string(w.Bytes()); got != "abcd" {
		t.Errorf("WriteString truncation = %q, want abcd", got)
	}
	w = NewWriter(binary.LittleEndian)
	w.WriteString("ab", 4)
	if got := string(w.Bytes()); got != "ab\x00\x00" {
		t.Errorf("WriteString padding = %q, want ab\\x00\\x00", got)
	}
}
