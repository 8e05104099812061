package nifti

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func FuzzDecodeHeader(f *testing.F) {
	seed := NewHeader()
	seed.Datatype = DTFloat32
	seed.Bitpix = 32
	seed.SetShape([]int{4, 4, 4})
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		buf, err := seed.Encode(order)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(buf)
	}
	f.Add(make([]byte, HeaderSize))
	f.Add([]byte{0x5c, 0x01, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		h, order, err := DecodeHeader(data)
		if err != nil {
			return
		}
		// Anything that decodes must re-encode to the same bytes.
		out, err := h.Encode(order)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if !bytes.Equal(out, data[:HeaderSize]) {
			t.Error("re-encoded header differs from input")
		}
		// Validation must never panic, whatever it decides.
		_ = h.Validate()
	})
}
