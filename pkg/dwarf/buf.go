package dwarf

import (
	"encoding/binary"

	"github.com/go-delve/dwarfscan/pkg/dwarf/leb128"
)

// Buf is a bounds checked sequential reader over a window of a section.
// Offsets reported by Buf are always relative to the start of the
// section, not of the window. Every read that would go past the end of the
// window fails with UnexpectedEnd and leaves the cursor where it was.
type Buf struct {
	name  string
	order binary.ByteOrder
	win   []byte
	start uint64
	pos   int
}

// MakeBuf returns a cursor over data, which starts at offset base inside
// the section called name.
func MakeBuf(name string, order binary.ByteOrder, base uint64, data []byte) *Buf {
	return &Buf{name: name, order: order, win: data, start: base}
}

// Name returns the name of the section being read.
func (b *Buf) Name() string { return b.name }

// Order returns the byte order used for fixed width reads.
func (b *Buf) Order() binary.ByteOrder { return b.order }

// Off returns the current section offset.
func (b *Buf) Off() uint64 { return b.start + uint64(b.pos) }

// End returns the section offset one past the last byte of the window.
func (b *Buf) End() uint64 { return b.start + uint64(len(b.win)) }

// Len returns the number of unread bytes.
func (b *Buf) Len() int { return len(b.win) - b.pos }

// Empty returns true if everything has been read.
func (b *Buf) Empty() bool { return b.Len() == 0 }

// Seek moves the cursor to section offset off, which must lie inside the
// window (the end of the window is allowed).
func (b *Buf) Seek(off uint64) error {
	if off < b.start || off > b.End() {
		return Errorf(UnexpectedEnd, b.name, off, "seek outside of [%#x, %#x]", b.start, b.End())
	}
	b.pos = int(off - b.start)
	return nil
}

func (b *Buf) underflow(n int) error {
	return Errorf(UnexpectedEnd, b.name, b.Off(), "need %d bytes, have %d", n, b.Len())
}

// Bytes returns the next n bytes. The result aliases the section data.
func (b *Buf) Bytes(n int) ([]byte, error) {
	if n < 0 || n > b.Len() {
		return nil, b.underflow(n)
	}
	data := b.win[b.pos : b.pos+n : b.pos+n]
	b.pos += n
	return data, nil
}

// Skip advances the cursor by n bytes.
func (b *Buf) Skip(n int) error {
	_, err := b.Bytes(n)
	return err
}

// Slice returns a cursor over the next n bytes and advances b past them.
func (b *Buf) Slice(n int) (*Buf, error) {
	off := b.Off()
	data, err := b.Bytes(n)
	if err != nil {
		return nil, err
	}
	return &Buf{name: b.name, order: b.order, win: data, start: off}, nil
}

// Uint8 reads one byte.
func (b *Buf) Uint8() (uint8, error) {
	if b.Len() < 1 {
		return 0, b.underflow(1)
	}
	val := b.win[b.pos]
	b.pos++
	return val, nil
}

// Uint16 reads a 2 byte integer.
func (b *Buf) Uint16() (uint16, error) {
	data, err := b.Bytes(2)
	if err != nil {
		return 0, err
	}
	return b.order.Uint16(data), nil
}

// Uint32 reads a 4 byte integer.
func (b *Buf) Uint32() (uint32, error) {
	data, err := b.Bytes(4)
	if err != nil {
		return 0, err
	}
	return b.order.Uint32(data), nil
}

// Uint64 reads an 8 byte integer.
func (b *Buf) Uint64() (uint64, error) {
	data, err := b.Bytes(8)
	if err != nil {
		return 0, err
	}
	return b.order.Uint64(data), nil
}

// Uint reads an integer of size bytes, size must be 1, 2, 4 or 8.
func (b *Buf) Uint(size int) (uint64, error) {
	switch size {
	case 1:
		v, err := b.Uint8()
		return uint64(v), err
	case 2:
		v, err := b.Uint16()
		return uint64(v), err
	case 4:
		v, err := b.Uint32()
		return uint64(v), err
	case 8:
		return b.Uint64()
	}
	return 0, Errorf(MalformedHeader, b.name, b.Off(), "unsupported integer size %d", size)
}

// Addr reads a target address of size bytes.
func (b *Buf) Addr(size int) (uint64, error) {
	return b.Uint(size)
}

// Uleb reads an unsigned LEB128 value.
func (b *Buf) Uleb() (uint64, error) {
	v, n, err := leb128.DecodeUnsigned(b.win[b.pos:])
	if err != nil {
		return 0, b.varintError(err)
	}
	b.pos += n
	return v, nil
}

// Sleb reads a signed LEB128 value.
func (b *Buf) Sleb() (int64, error) {
	v, n, err := leb128.DecodeSigned(b.win[b.pos:])
	if err != nil {
		return 0, b.varintError(err)
	}
	b.pos += n
	return v, nil
}

func (b *Buf) varintError(err error) error {
	if err == leb128.ErrOverflow {
		return Errorf(VarintOverflow, b.name, b.Off(), "LEB128 value does not fit in 64 bits")
	}
	return Errorf(UnexpectedEnd, b.name, b.Off(), "truncated LEB128 value")
}

// CString returns the NUL terminated (C-like) string at the cursor. The
// terminal NUL is consumed but not returned. The result aliases the
// section data.
func (b *Buf) CString() ([]byte, error) {
	rest := b.win[b.pos:]
	for i := range rest {
		if rest[i] == 0 {
			s := rest[:i:i]
			b.pos += i + 1
			return s, nil
		}
	}
	return nil, Errorf(UnexpectedEnd, b.name, b.Off(), "unterminated string")
}
