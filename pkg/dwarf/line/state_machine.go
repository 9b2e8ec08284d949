package line

import (
	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/logflags"
)

// Row is one row of the line table.
type Row struct {
	Address       uint64
	OpIndex       uint64
	File          uint64
	Line          int
	Column        uint64
	IsStmt        bool
	BasicBlock    bool
	EndSequence   bool
	PrologueEnd   bool
	EpilogueBegin bool
	ISA           uint64
	Discriminator uint64
}

// Standard opcodes
const (
	DW_LNS_copy             = 1
	DW_LNS_advance_pc       = 2
	DW_LNS_advance_line     = 3
	DW_LNS_set_file         = 4
	DW_LNS_set_column       = 5
	DW_LNS_negate_stmt      = 6
	DW_LNS_set_basic_block  = 7
	DW_LNS_const_add_pc     = 8
	DW_LNS_fixed_advance_pc = 9
	DW_LNS_prologue_end     = 10
	DW_LNS_epilogue_begin   = 11
	DW_LNS_set_isa          = 12
)

// Extended opcodes
const (
	DW_LINE_end_sequence      = 1
	DW_LINE_set_address       = 2
	DW_LINE_define_file       = 3
	DW_LINE_set_discriminator = 4
)

// StateMachine runs a line number program. Its registers are owned by
// the StateMachine, any number of them can run over the same Header
// concurrently.
type StateMachine struct {
	hdr  *Header
	buf  *dwarf.Buf
	regs Row

	definedFiles []*FileEntry // files defined with DW_LINE_define_file
}

// NewStateMachine returns a StateMachine positioned on the first opcode of
// the program.
func (h *Header) NewStateMachine() *StateMachine {
	buf := *h.program
	sm := &StateMachine{hdr: h, buf: &buf}
	sm.reset()
	return sm
}

func (sm *StateMachine) reset() {
	sm.regs = Row{File: 1, Line: 1, IsStmt: sm.hdr.DefaultIsStmt}
}

// File returns the file entry selected by the file register value i,
// counting the files defined so far by the program after the ones in the
// header.
func (sm *StateMachine) File(i uint64) *FileEntry {
	if f := sm.hdr.File(i); f != nil {
		return f
	}
	j := i - 1 - uint64(len(sm.hdr.FileNames))
	if i == 0 || j >= uint64(len(sm.definedFiles)) {
		return nil
	}
	return sm.definedFiles[j]
}

// Off returns the .debug_line offset of the next opcode.
func (sm *StateMachine) Off() uint64 {
	return sm.buf.Off()
}

// NextRow executes opcodes until one of them emits a row and returns it.
// It returns nil once the end of the program is reached.
func (sm *StateMachine) NextRow() (*Row, error) {
	for !sm.buf.Empty() {
		off := sm.buf.Off()
		b, _ := sm.buf.Uint8()

		var (
			row *Row
			err error
		)
		switch {
		case b >= sm.hdr.OpcodeBase:
			row = sm.execSpecialOpcode(b)
		case b == 0:
			row, err = sm.execExtendedOpcode(off)
		default:
			row, err = sm.execStandardOpcode(b, off)
		}
		if err != nil {
			return nil, err
		}
		if row != nil {
			return row, nil
		}
	}
	return nil, nil
}

// emit returns a copy of the registers and resets the registers that only
// apply to one row.
func (sm *StateMachine) emit() *Row {
	row := sm.regs
	sm.regs.BasicBlock = false
	sm.regs.PrologueEnd = false
	sm.regs.EpilogueBegin = false
	sm.regs.Discriminator = 0
	return &row
}

// advance applies an operation advance to the address and op_index
// registers.
func (sm *StateMachine) advance(opAdvance uint64) {
	minInstr := uint64(sm.hdr.MinInstrLength)
	maxOps := uint64(sm.hdr.MaxOpPerInstr)
	if maxOps <= 1 {
		sm.regs.Address += minInstr * opAdvance
		return
	}
	opIndex := sm.regs.OpIndex + opAdvance
	sm.regs.Address += minInstr * (opIndex / maxOps)
	sm.regs.OpIndex = opIndex % maxOps
}

func (sm *StateMachine) execSpecialOpcode(b byte) *Row {
	adjusted := b - sm.hdr.OpcodeBase
	sm.advance(uint64(adjusted / sm.hdr.LineRange))
	sm.regs.Line += int(sm.hdr.LineBase) + int(adjusted%sm.hdr.LineRange)
	return sm.emit()
}

func (sm *StateMachine) execStandardOpcode(b byte, off uint64) (*Row, error) {
	buf := sm.buf
	switch b {
	case DW_LNS_copy:
		return sm.emit(), nil
	case DW_LNS_advance_pc:
		n, err := buf.Uleb()
		if err != nil {
			return nil, err
		}
		sm.advance(n)
	case DW_LNS_advance_line:
		n, err := buf.Sleb()
		if err != nil {
			return nil, err
		}
		sm.regs.Line += int(n)
	case DW_LNS_set_file:
		n, err := buf.Uleb()
		if err != nil {
			return nil, err
		}
		sm.regs.File = n
	case DW_LNS_set_column:
		n, err := buf.Uleb()
		if err != nil {
			return nil, err
		}
		sm.regs.Column = n
	case DW_LNS_negate_stmt:
		sm.regs.IsStmt = !sm.regs.IsStmt
	case DW_LNS_set_basic_block:
		sm.regs.BasicBlock = true
	case DW_LNS_const_add_pc:
		sm.advance(uint64((255 - sm.hdr.OpcodeBase) / sm.hdr.LineRange))
	case DW_LNS_fixed_advance_pc:
		n, err := buf.Uint16()
		if err != nil {
			return nil, err
		}
		sm.regs.Address += uint64(n)
		sm.regs.OpIndex = 0
	case DW_LNS_prologue_end:
		sm.regs.PrologueEnd = true
	case DW_LNS_epilogue_begin:
		sm.regs.EpilogueBegin = true
	case DW_LNS_set_isa:
		n, err := buf.Uleb()
		if err != nil {
			return nil, err
		}
		sm.regs.ISA = n
	default:
		// unknown standard opcode, read the number of arguments specified
		// in the prologue and do nothing with them
		opnum := sm.hdr.StdOpLengths[b-1]
		for i := 0; i < int(opnum); i++ {
			if _, err := buf.Uleb(); err != nil {
				return nil, err
			}
		}
		if logflags.Line() {
			logflags.LineLogger().Debugf("skipped unknown standard opcode %d (%d operands) at %#x", b, opnum, off)
		}
	}
	return nil, nil
}

func (sm *StateMachine) execExtendedOpcode(off uint64) (*Row, error) {
	length, err := sm.buf.Uleb()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, dwarf.Errorf(dwarf.MalformedOpcode, sm.buf.Name(), off, "extended opcode of length 0")
	}
	if length > uint64(sm.buf.Len()) {
		return nil, dwarf.Errorf(dwarf.MalformedOpcode, sm.buf.Name(), off, "extended opcode of length %d, %d bytes left", length, sm.buf.Len())
	}
	buf, _ := sm.buf.Slice(int(length))
	sub, _ := buf.Uint8()

	malformed := func(err error) (*Row, error) {
		return nil, dwarf.Wrap(dwarf.MalformedOpcode, buf.Name(), off, err, "extended opcode %d of length %d", sub, length)
	}

	switch sub {
	case DW_LINE_end_sequence:
		sm.regs.EndSequence = true
		row := sm.regs
		sm.reset()
		return &row, nil

	case DW_LINE_set_address:
		size := buf.Len()
		if sm.hdr.AddrSize != 0 && size > sm.hdr.AddrSize {
			size = sm.hdr.AddrSize
		}
		addr, err := buf.Addr(size)
		if err != nil {
			return malformed(err)
		}
		sm.regs.Address = addr
		sm.regs.OpIndex = 0

	case DW_LINE_define_file:
		entry, err := sm.hdr.readFileEntry(buf)
		if err != nil {
			return malformed(err)
		}
		if entry == nil {
			return malformed(nil)
		}
		sm.definedFiles = append(sm.definedFiles, entry)

	case DW_LINE_set_discriminator:
		n, err := buf.Uleb()
		if err != nil {
			return malformed(err)
		}
		sm.regs.Discriminator = n

	default:
		if logflags.Line() {
			logflags.LineLogger().Debugf("skipped unknown extended opcode %d (%d bytes) at %#x", sub, length, off)
		}
	}
	return nil, nil
}

// Location is a source position.
type Location struct {
	File    string
	Line    int
	Column  uint64
	Address uint64
}

func (sm *StateMachine) location(row *Row) Location {
	loc := Location{Line: row.Line, Column: row.Column, Address: row.Address}
	if f := sm.File(row.File); f != nil {
		loc.File = f.Path
	}
	return loc
}

// AllRows runs the whole program and returns every row it emits.
func (h *Header) AllRows() ([]Row, error) {
	var rows []Row
	sm := h.NewStateMachine()
	for {
		row, err := sm.NextRow()
		if err != nil {
			return rows, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, *row)
	}
}

// PCToLine returns the source position of pc. If no row has pc as its
// address the row with the closest address preceding pc in the same
// sequence is used.
func (h *Header) PCToLine(pc uint64) (Location, bool, error) {
	var (
		sm   = h.NewStateMachine()
		prev *Row
	)
	for {
		row, err := sm.NextRow()
		if err != nil {
			return Location{}, false, err
		}
		if row == nil {
			return Location{}, false, nil
		}
		if prev != nil && prev.Address <= pc && pc < row.Address {
			return sm.location(prev), true, nil
		}
		if row.EndSequence {
			prev = nil
			continue
		}
		if row.Address == pc {
			return sm.location(row), true, nil
		}
		prev = row
	}
}

// LineToPCs returns the addresses of the rows for file:lineno. Rows
// marked as statements are preferred, the other ones are only returned if
// no statement is found.
func (h *Header) LineToPCs(file string, lineno int) ([]uint64, error) {
	var (
		pcs      []uint64
		fallback []uint64
		sm       = h.NewStateMachine()
	)
	for {
		row, err := sm.NextRow()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		if row.EndSequence || row.Line != lineno {
			continue
		}
		if f := sm.File(row.File); f == nil || f.Path != file {
			continue
		}
		if row.IsStmt {
			pcs = append(pcs, row.Address)
		} else {
			fallback = append(fallback, row.Address)
		}
	}
	if len(pcs) == 0 {
		return fallback, nil
	}
	return pcs, nil
}
