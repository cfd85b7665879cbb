package smbenc

// Fields locates a variable-size payload relative to the start of the
// message that carries it.
type Fields struct {
	Len    uint16
	MaxLen uint16
	Offset uint32
}

// Layout assigns offsets to variable payloads placed back to back after a
// fixed section of base bytes.
type Layout struct {
	off int
}

func NewLayout(base int) *Layout {
	return &Layout{off: base}
}

// Add reserves room for p and returns its descriptor. An empty payload gets
// a zero descriptor with the current offset.
func (l *Layout) Add(p []byte) Fields {
	f := Fields{Len: uint16(len(p)), MaxLen: uint16(len(p)), Offset: uint32(l.off)}
	l.off += len(p)
	return f
}

// Align rounds the running offset up to align.
func (l *Layout) Align(align int) {
	l.off = Roundup(l.off, align)
}

func (l *Layout) Offset() int {
	return l.off
}

func Roundup(x, align int) int {
	return (x + (align - 1)) &^ (align - 1)
}
