package dwarfbuilder

import (
	"bytes"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

// ArangeSet is one set of debug_aranges.
type ArangeSet struct {
	// Version defaults to 2.
	Version     uint16
	UnitOffset  dwarf.Offset
	SegmentSize int
	Tuples      []ArangeTuple
}

// ArangeTuple is one address range of an ArangeSet.
type ArangeTuple struct {
	Segment uint64
	Address uint64
	Length  uint64
}

// AddArangeSet appends a set to debug_aranges, with the builder's address
// size, and returns its offset. Tuples are aligned to the tuple size
// and the terminating tuple is added.
func (b *Builder) AddArangeSet(set ArangeSet) SecOffset {
	if set.Version == 0 {
		set.Version = 2
	}
	tupleSize := set.SegmentSize + 2*b.addrSize

	var body bytes.Buffer
	b.writeUint(&body, 2, uint64(set.Version))
	b.writeUint(&body, 4, uint64(set.UnitOffset))
	body.WriteByte(byte(b.addrSize))
	body.WriteByte(byte(set.SegmentSize))
	// the header is 12 bytes long counting unit_length
	for (body.Len()+4)%tupleSize != 0 {
		body.WriteByte(0)
	}
	writeTuple := func(t ArangeTuple) {
		if set.SegmentSize > 0 {
			b.writeUint(&body, set.SegmentSize, t.Segment)
		}
		b.writeUint(&body, b.addrSize, t.Address)
		b.writeUint(&body, b.addrSize, t.Length)
	}
	for _, t := range set.Tuples {
		writeTuple(t)
	}
	writeTuple(ArangeTuple{})

	off := SecOffset(b.aranges.Len())
	b.writeUint(&b.aranges, 4, uint64(body.Len()))
	b.aranges.Write(body.Bytes())
	return off
}

// RawAranges appends data to debug_aranges as is.
func (b *Builder) RawAranges(data ...byte) {
	b.aranges.Write(data)
}
