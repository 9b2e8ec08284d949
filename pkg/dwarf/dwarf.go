// Package dwarf holds the pieces shared by every DWARF section decoder:
// the Section type, the bounds checked byte cursor Buf, form codes and the
// typed errors returned by all decoders.
//
// Only the 32-bit DWARF format, versions 2 through 4, is decoded. 64-bit
// DWARF and the DWARF 5 unit and line table layouts are reported as
// UnsupportedFormat.
package dwarf

import (
	"debug/dwarf"
	"encoding/binary"
	"math"
)

// Names of the sections decoded by this module, without the leading
// ".debug_" / "__debug_" prefix used by object file formats.
const (
	InfoSection    = "info"
	AbbrevSection  = "abbrev"
	LineSection    = "line"
	ArangesSection = "aranges"
	StrSection     = "str"
)

// Section is an immutable DWARF section together with the byte order of the
// object file it came from. Values decoded from a section (strings, blocks)
// alias Data and are only valid for as long as Data is.
type Section struct {
	Name  string
	Data  []byte
	Order binary.ByteOrder
}

// NewSection returns a section named name.
func NewSection(name string, data []byte, order binary.ByteOrder) *Section {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Section{Name: name, Data: data, Order: order}
}

// Len returns the size of the section in bytes.
func (sec *Section) Len() int {
	if sec == nil {
		return 0
	}
	return len(sec.Data)
}

// Buf returns a cursor positioned at off, spanning the rest of the section.
func (sec *Section) Buf(off uint64) (*Buf, error) {
	if off > uint64(len(sec.Data)) {
		return nil, Errorf(UnexpectedEnd, sec.Name, off, "offset past end of section (%#x bytes)", len(sec.Data))
	}
	return &Buf{name: sec.Name, order: sec.Order, win: sec.Data, pos: int(off)}, nil
}

// StringAt returns the NUL terminated string starting at off, without the
// terminator. The result aliases the section data.
func (sec *Section) StringAt(off uint64) ([]byte, error) {
	if sec == nil {
		return nil, Errorf(UnexpectedEnd, StrSection, off, "no string section")
	}
	b, err := sec.Buf(off)
	if err != nil {
		return nil, err
	}
	return b.CString()
}

// ReadUnitLength reads the initial length field of a unit header and
// checks that the unit fits in the remainder of b. The 64-bit DWARF escape
// (0xffffffff) and the reserved values 0xfffffff0-0xfffffffe are reported
// as UnsupportedFormat.
func ReadUnitLength(b *Buf) (uint64, error) {
	off := b.Off()
	l, err := b.Uint32()
	if err != nil {
		return 0, err
	}
	if l >= 0xfffffff0 {
		if l == 0xffffffff {
			return 0, Errorf(UnsupportedFormat, b.Name(), off, "64-bit DWARF")
		}
		return 0, Errorf(UnsupportedFormat, b.Name(), off, "reserved unit length %#x", l)
	}
	if uint64(l) > uint64(b.Len()) {
		return 0, Errorf(LengthOverflow, b.Name(), off, "unit length %#x exceeds the %#x bytes left", l, b.Len())
	}
	return uint64(l), nil
}

// UnitHeaderSize is the size of a 32-bit DWARF 2-4 unit header: unit
// length, version, abbreviation offset and address size.
const UnitHeaderSize = 11

// Largest tag, attribute and form codes representable by Tag, Attr and
// Form.
const (
	MaxTag  = math.MaxUint32
	MaxAttr = math.MaxUint32
	MaxForm = math.MaxUint16
)

// Tag, Attr and Offset are the debug/dwarf types, so that their String
// methods and constants can be used with values decoded here.
type (
	Tag    = dwarf.Tag
	Attr   = dwarf.Attr
	Offset = dwarf.Offset
)
