// Package aranges reads the .debug_aranges section, a table mapping
// address ranges to the compilation unit that describes them.
package aranges

import (
	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/logflags"
)

// Size of a set header: unit_length(4) version(2) debug_info_offset(4)
// address_size(1) segment_selector_size(1).
const setHeaderSize = 12

// Set is the header of one set of ranges, all ranges of a set belong to
// the same compilation unit.
type Set struct {
	Offset      uint64
	Length      uint64
	Version     uint16
	UnitOffset  uint64
	AddrSize    int
	SegmentSize int
}

// End returns the .debug_aranges offset one past the end of the set.
func (s *Set) End() uint64 {
	return s.Offset + 4 + s.Length
}

// TupleSize returns the size of one (segment, address, length) tuple.
func (s *Set) TupleSize() int {
	return s.SegmentSize + 2*s.AddrSize
}

// Entry is one address range.
type Entry struct {
	UnitOffset uint64
	Segment    uint64
	Address    uint64
	Length     uint64
}

// End returns the first address past the range.
func (e Entry) End() uint64 {
	return e.Address + e.Length
}

// ParseSet parses the set header at off.
func ParseSet(sec *dwarf.Section, off uint64) (*Set, error) {
	buf, err := sec.Buf(off)
	if err != nil {
		return nil, err
	}
	malformed := func(err error, what string) error {
		return dwarf.Wrap(dwarf.MalformedHeader, sec.Name, off, err, "reading %s", what)
	}

	length, err := dwarf.ReadUnitLength(buf)
	if err != nil {
		if kind, _ := dwarf.KindOf(err); kind == dwarf.UnsupportedFormat {
			return nil, err
		}
		return nil, malformed(err, "unit_length")
	}
	s := &Set{Offset: off, Length: length}
	if length < setHeaderSize-4 {
		return nil, dwarf.Errorf(dwarf.MalformedHeader, sec.Name, off, "set length %#x shorter than its header", length)
	}
	if s.Version, err = buf.Uint16(); err != nil {
		return nil, malformed(err, "version")
	}
	if s.Version != 2 {
		return nil, dwarf.Errorf(dwarf.MalformedHeader, sec.Name, off, "aranges version %d", s.Version)
	}
	unitOff, err := buf.Uint32()
	if err != nil {
		return nil, malformed(err, "debug_info_offset")
	}
	s.UnitOffset = uint64(unitOff)
	addrSize, err := buf.Uint8()
	if err != nil {
		return nil, malformed(err, "address_size")
	}
	segSize, err := buf.Uint8()
	if err != nil {
		return nil, malformed(err, "segment_selector_size")
	}
	switch addrSize {
	case 1, 2, 4, 8:
		s.AddrSize = int(addrSize)
	default:
		return nil, dwarf.Errorf(dwarf.MalformedHeader, sec.Name, off, "address size %d", addrSize)
	}
	switch segSize {
	case 0, 1, 2, 4, 8:
		s.SegmentSize = int(segSize)
	default:
		return nil, dwarf.Errorf(dwarf.MalformedHeader, sec.Name, off, "segment selector size %d", segSize)
	}
	return s, nil
}

// tuples returns a cursor over the tuples of s, which start at the first
// multiple of the tuple size past the header.
func (s *Set) tuples(sec *dwarf.Section) *dwarf.Buf {
	start := uint64(setHeaderSize)
	if ts := uint64(s.TupleSize()); start%ts != 0 {
		start += ts - start%ts
	}
	if start > 4+s.Length {
		start = 4 + s.Length
	}
	return dwarf.MakeBuf(sec.Name, sec.Order, s.Offset+start, sec.Data[s.Offset+start:s.End()])
}

// Reader iterates over the ranges of every set of a .debug_aranges
// section.
type Reader struct {
	sec  *dwarf.Section
	next uint64
	set  *Set
	buf  *dwarf.Buf
	err  error
}

// NewReader returns a Reader positioned on the first set of sec.
func NewReader(sec *dwarf.Section) *Reader {
	return &Reader{sec: sec}
}

// Set returns the header of the set the last returned entry belongs to.
func (r *Reader) Set() *Set {
	return r.set
}

// Next returns the next range, or nil at the end of the section. The
// all-zero tuple closing a set is consumed but never returned. After an
// error Next keeps returning it.
func (r *Reader) Next() (*Entry, error) {
	if r.err != nil {
		return nil, r.err
	}
	for {
		if r.buf == nil {
			if r.next >= uint64(r.sec.Len()) {
				return nil, nil
			}
			set, err := ParseSet(r.sec, r.next)
			if err != nil {
				r.err = err
				return nil, err
			}
			r.set = set
			r.next = set.End()
			r.buf = set.tuples(r.sec)
			if logflags.Aranges() {
				logflags.ArangesLogger().Debugf("set at %#x for unit %#x, address size %d, segment size %d", set.Offset, set.UnitOffset, set.AddrSize, set.SegmentSize)
			}
		}

		if r.buf.Empty() {
			// set without terminator
			r.buf = nil
			continue
		}
		e, err := r.readTuple()
		if err != nil {
			r.err = err
			return nil, err
		}
		if e.Segment == 0 && e.Address == 0 && e.Length == 0 {
			r.buf = nil
			continue
		}
		return e, nil
	}
}

func (r *Reader) readTuple() (*Entry, error) {
	e := &Entry{UnitOffset: r.set.UnitOffset}
	var err error
	if r.set.SegmentSize > 0 {
		if e.Segment, err = r.buf.Uint(r.set.SegmentSize); err != nil {
			return nil, err
		}
	}
	if e.Address, err = r.buf.Addr(r.set.AddrSize); err != nil {
		return nil, err
	}
	if e.Length, err = r.buf.Addr(r.set.AddrSize); err != nil {
		return nil, err
	}
	return e, nil
}

// ReadAll returns every range of sec.
func ReadAll(sec *dwarf.Section) ([]Entry, error) {
	var r []Entry
	rdr := NewReader(sec)
	for {
		e, err := rdr.Next()
		if err != nil {
			return r, err
		}
		if e == nil {
			return r, nil
		}
		r = append(r, *e)
	}
}
