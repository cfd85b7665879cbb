// Package smbenc implements the little-endian binary codec shared by the SMB2
// message catalog, the NTLM messages and the DCE/RPC pipe messages.
//
// Reader and Writer accumulate the first error so that a fixed layout can be
// read or written in one sequence and checked once:
//
//	r := smbenc.NewReader(pkt)
//	size := r.ReadUint16()
//	flags := r.ReadUint32()
//	name := r.BytesAt(r.ReadFields())
//	if err := r.Err(); err != nil {
//		return err
//	}
package smbenc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var le = binary.LittleEndian

// ErrShortBuffer is returned when a read or a backpatch falls outside the buffer.
var ErrShortBuffer = errors.New("smbenc: short buffer")

// ErrUnexpectedValue is returned by the Expect family.
var ErrUnexpectedValue = errors.New("smbenc: unexpected value")

// Reader reads fixed-width little-endian values from a byte slice, either
// sequentially from a cursor or at absolute offsets.
type Reader struct {
	data []byte
	pos  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) fail(n, off int) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, off, len(r.data))
	}
}

func (r *Reader) span(off, n int) bool {
	if r.err != nil {
		return false
	}
	if off < 0 || n < 0 || off+n > len(r.data) || off+n < off {
		r.fail(n, off)
		return false
	}
	return true
}

func (r *Reader) ReadUint8() uint8 {
	if !r.span(r.pos, 1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *Reader) ReadUint16() uint16 {
	if !r.span(r.pos, 2) {
		return 0
	}
	v := le.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) ReadUint32() uint32 {
	if !r.span(r.pos, 4) {
		return 0
	}
	v := le.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) ReadUint64() uint64 {
	if !r.span(r.pos, 8) {
		return 0
	}
	v := le.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) []byte {
	if !r.span(r.pos, n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:])
	r.pos += n
	return b
}

// ReadInto fills p from the cursor.
func (r *Reader) ReadInto(p []byte) {
	if !r.span(r.pos, len(p)) {
		return
	}
	r.pos += copy(p, r.data[r.pos:])
}

// ReadFields reads a (length, max-length, offset) descriptor.
func (r *Reader) ReadFields() Fields {
	var f Fields
	f.Len = r.ReadUint16()
	f.MaxLen = r.ReadUint16()
	f.Offset = r.ReadUint32()
	return f
}

func (r *Reader) Skip(n int) {
	if !r.span(r.pos, n) {
		return
	}
	r.pos += n
}

// Seek moves the cursor to an absolute offset. Seeking to len(data) is allowed.
func (r *Reader) Seek(off int) {
	if !r.span(off, 0) {
		return
	}
	r.pos = off
}

func (r *Reader) ExpectUint16(want uint16) {
	at := r.pos
	v := r.ReadUint16()
	if r.err == nil && v != want {
		r.err = fmt.Errorf("%w: want 0x%04x, got 0x%04x at offset %d", ErrUnexpectedValue, want, v, at)
	}
}

func (r *Reader) ExpectUint32(want uint32) {
	at := r.pos
	v := r.ReadUint32()
	if r.err == nil && v != want {
		r.err = fmt.Errorf("%w: want 0x%08x, got 0x%08x at offset %d", ErrUnexpectedValue, want, v, at)
	}
}

func (r *Reader) ExpectBytes(want []byte) {
	at := r.pos
	v := r.ReadBytes(len(want))
	if r.err == nil && string(v) != string(want) {
		r.err = fmt.Errorf("%w: want %x, got %x at offset %d", ErrUnexpectedValue, want, v, at)
	}
}

func (r *Reader) Uint16At(off int) uint16 {
	if !r.span(off, 2) {
		return 0
	}
	return le.Uint16(r.data[off:])
}

func (r *Reader) Uint32At(off int) uint32 {
	if !r.span(off, 4) {
		return 0
	}
	return le.Uint32(r.data[off:])
}

func (r *Reader) Uint64At(off int) uint64 {
	if !r.span(off, 8) {
		return 0
	}
	return le.Uint64(r.data[off:])
}

// BytesAt returns a copy of n bytes at the absolute offset off.
func (r *Reader) BytesAt(off, n int) []byte {
	if !r.span(off, n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[off:])
	return b
}

// Field returns a copy of the payload f points at.
func (r *Reader) Field(f Fields) []byte {
	if f.Len == 0 {
		return nil
	}
	return r.BytesAt(int(f.Offset), int(f.Len))
}

// Window returns the unread bytes without copying.
func (r *Reader) Window() []byte {
	if r.err != nil || r.pos > len(r.data) {
		return nil
	}
	return r.data[r.pos:]
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Remaining() int {
	return max(len(r.data)-r.pos, 0)
}

func (r *Reader) Pos() int {
	return r.pos
}

func (r *Reader) Len() int {
	return len(r.data)
}
