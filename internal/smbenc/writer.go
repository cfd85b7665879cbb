package smbenc

import "fmt"

// Writer appends little-endian values to a growable buffer.
type Writer struct {
	buf []byte
	err error
}

// NewWriter returns a Writer with room for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = le.AppendUint16(w.buf, v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = le.AppendUint32(w.buf, v)
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = le.AppendUint64(w.buf, v)
}

func (w *Writer) WriteBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

func (w *Writer) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

// WriteFields writes a (length, max-length, offset) descriptor.
func (w *Writer) WriteFields(f Fields) {
	w.WriteUint16(f.Len)
	w.WriteUint16(f.MaxLen)
	w.WriteUint32(f.Offset)
}

// Pad appends zeros until Len is a multiple of align.
func (w *Writer) Pad(align int) {
	w.WriteZeros(Roundup(len(w.buf), align) - len(w.buf))
}

// PadTo appends zeros until Len reaches off. It never truncates.
func (w *Writer) PadTo(off int) {
	if off > len(w.buf) {
		w.WriteZeros(off - len(w.buf))
	}
}

func (w *Writer) PutUint16At(off int, v uint16) {
	if !w.span(off, 2) {
		return
	}
	le.PutUint16(w.buf[off:], v)
}

func (w *Writer) PutUint32At(off int, v uint32) {
	if !w.span(off, 4) {
		return
	}
	le.PutUint32(w.buf[off:], v)
}

// PutFieldsAt backpatches a descriptor written earlier as a placeholder.
func (w *Writer) PutFieldsAt(off int, f Fields) {
	if !w.span(off, 8) {
		return
	}
	le.PutUint16(w.buf[off:], f.Len)
	le.PutUint16(w.buf[off+2:], f.MaxLen)
	le.PutUint32(w.buf[off+4:], f.Offset)
}

// PutBytesAt overwrites len(p) bytes at off.
func (w *Writer) PutBytesAt(off int, p []byte) {
	if !w.span(off, len(p)) {
		return
	}
	copy(w.buf[off:], p)
}

func (w *Writer) span(off, n int) bool {
	if off < 0 || off+n > len(w.buf) {
		if w.err == nil {
			w.err = fmt.Errorf("%w: backpatch %d bytes at offset %d, have %d", ErrShortBuffer, n, off, len(w.buf))
		}
		return false
	}
	return true
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Err() error {
	return w.err
}
