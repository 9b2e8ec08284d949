package reader

import (
	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/abbrev"
	"github.com/go-delve/dwarfscan/pkg/dwarf/attr"
)

// Size of a 32-bit DWARF 2-4 unit header: unit_length(4) version(2)
// debug_abbrev_offset(4) address_size(1).
const unitHeaderSize = dwarf.UnitHeaderSize

// Unit is the header of a compilation unit in .debug_info. It owns nothing
// but these scalars, entries are read lazily by a Cursor.
type Unit struct {
	// Offset of the unit header in .debug_info.
	Offset uint64
	// Length is the value of the unit_length field, which does not count
	// the length field itself.
	Length       uint64
	Version      uint16
	AbbrevOffset uint64
	AddrSize     int

	info *dwarf.Section
}

// ParseUnit parses the unit header at off in the .debug_info section info.
func ParseUnit(info *dwarf.Section, off uint64) (*Unit, error) {
	buf, err := info.Buf(off)
	if err != nil {
		return nil, err
	}
	length, err := dwarf.ReadUnitLength(buf)
	if err != nil {
		return nil, err
	}
	if length < unitHeaderSize-4 {
		return nil, dwarf.Errorf(dwarf.LengthOverflow, info.Name, off, "unit length %#x shorter than its header", length)
	}
	u := &Unit{Offset: off, Length: length, info: info}

	u.Version, err = buf.Uint16()
	if err != nil {
		return nil, err
	}
	switch u.Version {
	case 2, 3, 4:
		// ok
	case 5:
		return nil, dwarf.Errorf(dwarf.UnsupportedFormat, info.Name, off, "DWARF 5 unit header")
	default:
		return nil, dwarf.Errorf(dwarf.UnknownVersion, info.Name, off, "unit version %d", u.Version)
	}

	abbrevOff, err := buf.Uint32()
	if err != nil {
		return nil, err
	}
	u.AbbrevOffset = uint64(abbrevOff)

	addrSize, err := buf.Uint8()
	if err != nil {
		return nil, err
	}
	switch addrSize {
	case 1, 2, 4, 8:
		u.AddrSize = int(addrSize)
	default:
		return nil, dwarf.Errorf(dwarf.MalformedHeader, info.Name, off, "address size %d", addrSize)
	}

	return u, nil
}

// End returns the .debug_info offset one past the last byte of the unit.
func (u *Unit) End() uint64 {
	return u.Offset + 4 + u.Length
}

// EntriesOffset returns the .debug_info offset of the unit's first entry.
func (u *Unit) EntriesOffset() uint64 {
	return u.Offset + unitHeaderSize
}

// Context returns the attribute decoding context of the unit.
func (u *Unit) Context() attr.Context {
	return attr.Context{Version: u.Version, AddrSize: u.AddrSize, UnitOffset: u.Offset, UnitEnd: u.End()}
}

// Abbrevs parses the abbreviation table of the unit from .debug_abbrev.
func (u *Unit) Abbrevs(abbrevSec *dwarf.Section) (*abbrev.Table, error) {
	return abbrev.Parse(abbrevSec, u.AbbrevOffset)
}

// Entries returns a cursor over the entries of the unit, decoded with the
// abbreviation table tbl.
func (u *Unit) Entries(tbl *abbrev.Table) *Cursor {
	buf := dwarf.MakeBuf(u.info.Name, u.info.Order, u.EntriesOffset(), u.info.Data[u.EntriesOffset():u.End()])
	return &Cursor{unit: u, abbrevs: tbl, buf: buf, ctx: u.Context()}
}

// Units iterates over the unit headers of a .debug_info section.
type Units struct {
	info *dwarf.Section
	off  uint64
	err  error
}

// NewUnits returns an iterator over all units of info.
func NewUnits(info *dwarf.Section) *Units {
	return &Units{info: info}
}

// Next returns the next unit header, or nil when the section is
// exhausted. After an error Next keeps returning it: the length of a
// broken unit cannot be trusted to find the next one.
func (it *Units) Next() (*Unit, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.off >= uint64(it.info.Len()) {
		return nil, nil
	}
	u, err := ParseUnit(it.info, it.off)
	if err != nil {
		it.err = err
		return nil, err
	}
	it.off = u.End()
	return u, nil
}

// Seek moves the iterator to the unit header at off.
func (it *Units) Seek(off uint64) {
	it.off = off
	it.err = nil
}

// Off returns the offset of the unit header Next will read.
func (it *Units) Off() uint64 {
	return it.off
}
