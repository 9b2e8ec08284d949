// Package line decodes the line number programs of the .debug_line
// section and runs them to produce the address to source line table.
package line

import (
	"path"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

// Header is the header of a line number program.
type Header struct {
	// Offset of the program in .debug_line.
	Offset uint64
	// UnitLength does not count the length field itself.
	UnitLength     uint64
	Version        uint16
	HeaderLength   uint64
	MinInstrLength uint8
	// MaxOpPerInstr is only encoded by version 4, older versions behave as
	// if it was 1.
	MaxOpPerInstr uint8
	DefaultIsStmt bool
	LineBase      int8
	LineRange     uint8
	OpcodeBase    uint8
	// StdOpLengths[i] is the number of LEB128 operands of standard
	// opcode i+1.
	StdOpLengths []uint8

	// IncludeDirs[0] is the compilation directory, followed by the
	// include_directories table of the header. Relative directories are
	// joined to the compilation directory.
	IncludeDirs []string
	FileNames   []*FileEntry

	// AddrSize is the address size used by DW_LNE_set_address when the
	// operand length can not be trusted, 0 means "use the operand length".
	AddrSize int

	normalizeBackslash bool

	program *dwarf.Buf
}

// ParseOpts are the options of Parse.
type ParseOpts struct {
	// CompDir is the DW_AT_comp_dir attribute of the compilation unit
	// owning the program, relative paths are resolved against it.
	CompDir string
	// AddrSize is the address size of the owning unit.
	AddrSize int
	// NormalizeBackslash converts every backslash in file paths to a
	// forward slash.
	NormalizeBackslash bool
}

// Parse parses the header of the line number program at off in sec.
func Parse(sec *dwarf.Section, off uint64, opts ParseOpts) (*Header, error) {
	buf, err := sec.Buf(off)
	if err != nil {
		return nil, dwarf.Wrap(dwarf.MalformedHeader, sec.Name, off, err, "program offset out of range")
	}
	length, err := dwarf.ReadUnitLength(buf)
	if err != nil {
		if kind, _ := dwarf.KindOf(err); kind == dwarf.UnsupportedFormat {
			return nil, err
		}
		return nil, dwarf.Wrap(dwarf.MalformedHeader, sec.Name, off, err, "unit length")
	}
	unit, err := buf.Slice(int(length))
	if err != nil {
		return nil, dwarf.Wrap(dwarf.MalformedHeader, sec.Name, off, err, "unit length")
	}

	h := &Header{
		Offset:             off,
		UnitLength:         length,
		AddrSize:           opts.AddrSize,
		IncludeDirs:        []string{opts.CompDir},
		normalizeBackslash: opts.NormalizeBackslash,
	}
	if err := h.parsePrologue(unit); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) parsePrologue(unit *dwarf.Buf) error {
	malformed := func(err error, what string) error {
		return dwarf.Wrap(dwarf.MalformedHeader, unit.Name(), h.Offset, err, "reading %s", what)
	}

	var err error
	h.Version, err = unit.Uint16()
	if err != nil {
		return malformed(err, "version")
	}
	switch h.Version {
	case 2, 3, 4:
		// ok
	case 5:
		return dwarf.Errorf(dwarf.UnsupportedFormat, unit.Name(), h.Offset, "DWARF 5 line program header")
	default:
		return dwarf.Errorf(dwarf.UnknownVersion, unit.Name(), h.Offset, "line program version %d", h.Version)
	}

	hlen, err := unit.Uint32()
	if err != nil {
		return malformed(err, "header_length")
	}
	h.HeaderLength = uint64(hlen)
	if h.HeaderLength > uint64(unit.Len()) {
		return dwarf.Errorf(dwarf.MalformedHeader, unit.Name(), h.Offset, "header length %#x past the end of the program (%#x bytes left)", h.HeaderLength, unit.Len())
	}
	hdr, _ := unit.Slice(int(h.HeaderLength))
	h.program = unit

	if h.MinInstrLength, err = hdr.Uint8(); err != nil {
		return malformed(err, "minimum_instruction_length")
	}
	h.MaxOpPerInstr = 1
	if h.Version >= 4 {
		if h.MaxOpPerInstr, err = hdr.Uint8(); err != nil {
			return malformed(err, "maximum_operations_per_instruction")
		}
		if h.MaxOpPerInstr == 0 {
			return dwarf.Errorf(dwarf.MalformedHeader, unit.Name(), h.Offset, "maximum_operations_per_instruction is 0")
		}
	}
	isStmt, err := hdr.Uint8()
	if err != nil {
		return malformed(err, "default_is_stmt")
	}
	h.DefaultIsStmt = isStmt != 0
	lineBase, err := hdr.Uint8()
	if err != nil {
		return malformed(err, "line_base")
	}
	h.LineBase = int8(lineBase)
	if h.LineRange, err = hdr.Uint8(); err != nil {
		return malformed(err, "line_range")
	}
	if h.LineRange == 0 {
		return dwarf.Errorf(dwarf.MalformedHeader, unit.Name(), h.Offset, "line_range is 0")
	}
	if h.OpcodeBase, err = hdr.Uint8(); err != nil {
		return malformed(err, "opcode_base")
	}
	if h.OpcodeBase == 0 {
		return dwarf.Errorf(dwarf.MalformedHeader, unit.Name(), h.Offset, "opcode_base is 0")
	}
	lengths, err := hdr.Bytes(int(h.OpcodeBase) - 1)
	if err != nil {
		return malformed(err, "standard_opcode_lengths")
	}
	h.StdOpLengths = lengths

	if err := h.parseIncludeDirs(hdr); err != nil {
		return malformed(err, "include_directories")
	}
	if err := h.parseFileEntries(hdr); err != nil {
		return malformed(err, "file_names")
	}
	return nil
}

func (h *Header) parseIncludeDirs(buf *dwarf.Buf) error {
	for {
		dir, err := buf.CString()
		if err != nil {
			return err
		}
		if len(dir) == 0 {
			return nil
		}
		p := h.normalize(string(dir))
		if !pathIsAbs(p) && h.IncludeDirs[0] != "" {
			p = path.Join(h.IncludeDirs[0], p)
		}
		h.IncludeDirs = append(h.IncludeDirs, p)
	}
}

func (h *Header) parseFileEntries(buf *dwarf.Buf) error {
	for {
		entry, err := h.readFileEntry(buf)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		h.FileNames = append(h.FileNames, entry)
	}
}

// End returns the .debug_line offset one past the end of the program.
func (h *Header) End() uint64 {
	return h.Offset + 4 + h.UnitLength
}

// ProgramOffset returns the .debug_line offset of the first opcode.
func (h *Header) ProgramOffset() uint64 {
	return h.program.Off()
}

// File returns the entry of the header file table selected by the file
// register value i, or nil. Files defined by DW_LNE_define_file are only
// known to the StateMachine that ran them, see StateMachine.File.
func (h *Header) File(i uint64) *FileEntry {
	if i == 0 || i > uint64(len(h.FileNames)) {
		return nil
	}
	return h.FileNames[i-1]
}

// ParseAll parses the headers of every line number program in sec.
func ParseAll(sec *dwarf.Section, opts ParseOpts) ([]*Header, error) {
	var r []*Header
	for off := uint64(0); off < uint64(sec.Len()); {
		h, err := Parse(sec, off, opts)
		if err != nil {
			return r, err
		}
		r = append(r, h)
		off = h.End()
	}
	return r, nil
}
