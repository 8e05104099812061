// Package bin provides bounds-checked binary encoding and decoding
// utilities for reading and writing NIFTI-1 header data.
//
// Unlike most modern formats, NIFTI-1 headers may be stored in either
// byte order; the order is discovered by probing the sizeof_hdr field.
// Readers and writers here are therefore parameterized by a
// binary.ByteOrder rather than fixing one at the package level.
package bin

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read or write operation cannot
	// complete because there isn't enough space in the buffer.
	ErrShortBuffer = errors.New("bin: buffer too short")

	// ErrNegativeSize is returned when a size parameter is negative.
	ErrNegativeSize = errors.New("bin: negative size")
)

// Reader provides binary reading from a byte slice in a caller-chosen
// byte order. It maintains a read position and provides bounds checking
// on all operations.
type Reader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

// NewReader creates a Reader over data using the given byte order.
func NewReader(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{data: data, order: order}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Pos returns the current read position.
func (r *Reader) Pos() int {
	return r.pos
}

// Order returns the reader's byte order.
func (r *Reader) Order() binary.ByteOrder {
	return r.order
}

// SetPos sets the read position. Returns an error if the position is out
// of bounds.
func (r *Reader) SetPos(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return ErrShortBuffer
	}
	r.pos = pos
	return nil
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// ReadBytesInto reads len(dst) bytes into dst.
func (r *Reader) ReadBytesInto(dst []byte) error {
	n := len(dst)
	if r.pos+n > len(r.data) {
		return ErrShortBuffer
	}
	copy(dst, r.data[r.pos:r.pos+n])
	r.pos += n
	return nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadInt16 reads a signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads a 32-bit IEEE 754 float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadFloat64 reads a 64-bit IEEE 754 float.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// Writer provides binary writing to a growable byte slice in a
// caller-chosen byte order.
type Writer struct {
	data  []byte
	order binary.ByteOrder
}

// NewWriter creates an empty Writer using the given byte order.
func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order}
}

// NewWriterSize creates a Writer with a preallocated capacity.
func NewWriterSize(order binary.ByteOrder, capacity int) *Writer {
	return &Writer{data: make([]byte, 0, capacity), order: order}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.data
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.data)
}

// Order returns the writer's byte order.
func (w *Writer) Order() binary.ByteOrder {
	return w.order
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) error {
	w.data = append(w.data, b)
	return nil
}

// WriteInt8 writes a signed 8-bit integer.
func (w *Writer) WriteInt8(v int8) {
	w.data = append(w.data, byte(v))
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.data = append(w.data, b...)
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) {
	w.data = append(w.data, make([]byte, n)...)
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.data = append(w.data, b[:]...)
}

// WriteInt16 writes a signed 16-bit integer.
func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.data = append(w.data, b[:]...)
}

// WriteInt32 writes a signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteFloat32 writes a 32-bit IEEE 754 float.
func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.data = append(w.data, b[:]...)
}

// WriteFloat64 writes a 64-bit IEEE 754 float.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteString writes s into a fixed-width field of n bytes, padding with
// NULs. Strings longer than n are truncated.
func (w *Writer) WriteString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.data = append(w.data, b...)
}
