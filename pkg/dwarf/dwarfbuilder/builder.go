// Package dwarfbuilder provides a way to build DWARF sections with
// arbitrary contents.
package dwarfbuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

// Builder dwarf builder
type Builder struct {
	order    binary.ByteOrder
	addrSize int
	version  uint16

	info    bytes.Buffer
	abbrev  bytes.Buffer
	line    bytes.Buffer
	aranges bytes.Buffer
	str     bytes.Buffer
	strs    map[string]uint64

	// state of the unit being built
	unitOff  int
	inUnit   bool
	abbrevs  []tagDescr
	tagStack []*tagState
}

// Sections holds the contents of the sections produced by a Builder.
type Sections struct {
	Order   binary.ByteOrder
	Abbrev  []byte
	Info    []byte
	Line    []byte
	Aranges []byte
	Str     []byte
}

// Section returns the named section ready to be decoded.
func (s *Sections) Section(name string) *dwarf.Section {
	var data []byte
	switch name {
	case dwarf.AbbrevSection:
		data = s.Abbrev
	case dwarf.InfoSection:
		data = s.Info
	case dwarf.LineSection:
		data = s.Line
	case dwarf.ArangesSection:
		data = s.Aranges
	case dwarf.StrSection:
		data = s.Str
	}
	return dwarf.NewSection(name, data, s.Order)
}

// New creates a new DWARF builder producing little endian, version 4
// units with 8 byte addresses.
func New() *Builder {
	return NewWith(binary.LittleEndian, 8, 4)
}

// NewWith creates a new DWARF builder with the given byte order, address
// size and unit version.
func NewWith(order binary.ByteOrder, addrSize int, version uint16) *Builder {
	return &Builder{order: order, addrSize: addrSize, version: version, strs: make(map[string]uint64)}
}

// AddrSize returns the address size of the units being built.
func (b *Builder) AddrSize() int { return b.addrSize }

// Order returns the byte order of the sections being built.
func (b *Builder) Order() binary.ByteOrder { return b.order }

// BeginUnit starts a new compilation unit, with its own abbreviation
// table, and returns its offset in debug_info.
func (b *Builder) BeginUnit() dwarf.Offset {
	if b.inUnit {
		panic("BeginUnit with an open unit")
	}
	b.inUnit = true
	b.unitOff = b.info.Len()
	b.abbrevs = nil
	b.writeUint(&b.info, 4, 0) // length
	b.writeUint(&b.info, 2, uint64(b.version))
	b.writeUint(&b.info, 4, uint64(b.abbrev.Len())) // debug_abbrev_offset
	b.info.WriteByte(byte(b.addrSize))
	return dwarf.Offset(b.unitOff)
}

// EndUnit closes the current unit, writing its abbreviation table and
// patching its length.
func (b *Builder) EndUnit() error {
	if !b.inUnit {
		return fmt.Errorf("EndUnit without BeginUnit")
	}
	if len(b.tagStack) > 0 {
		return fmt.Errorf("unbalanced TagOpen/TagClose %d", len(b.tagStack))
	}
	b.inUnit = false
	b.writeAbbrevTable()
	info := b.info.Bytes()
	b.order.PutUint32(info[b.unitOff:], uint32(len(info)-b.unitOff-4))
	return nil
}

// Build closes b and returns all the dwarf sections.
func (b *Builder) Build() (*Sections, error) {
	if b.inUnit {
		if err := b.EndUnit(); err != nil {
			return nil, err
		}
	}
	return &Sections{
		Order:   b.order,
		Abbrev:  b.abbrev.Bytes(),
		Info:    b.info.Bytes(),
		Line:    b.line.Bytes(),
		Aranges: b.aranges.Bytes(),
		Str:     b.str.Bytes(),
	}, nil
}

// Str adds s to debug_str, if it isn't there already, and returns its
// offset.
func (b *Builder) Str(s string) StrOffset {
	if off, ok := b.strs[s]; ok {
		return StrOffset(off)
	}
	off := uint64(b.str.Len())
	b.str.WriteString(s)
	b.str.WriteByte(0)
	b.strs[s] = off
	return StrOffset(off)
}

// Raw appends data to debug_info as is, it can be used to produce
// malformed sections.
func (b *Builder) Raw(data ...byte) {
	b.info.Write(data)
}

func (b *Builder) writeUint(out *bytes.Buffer, size int, v uint64) {
	var buf [8]byte
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		b.order.PutUint16(buf[:], uint16(v))
	case 4:
		b.order.PutUint32(buf[:], uint32(v))
	case 8:
		b.order.PutUint64(buf[:], v)
	default:
		panic(fmt.Sprintf("bad integer size %d", size))
	}
	out.Write(buf[:size])
}
