package dwarfbuilder

import (
	"bytes"

	"github.com/go-delve/dwarfscan/pkg/dwarf/leb128"
)

// LineConfig describes the header of a line number program.
type LineConfig struct {
	Version        uint16
	MinInstrLength uint8
	MaxOpPerInstr  uint8
	DefaultIsStmt  bool
	LineBase       int8
	LineRange      uint8
	OpcodeBase     uint8
	StdOpLengths   []uint8
	IncludeDirs    []string
	Files          []LineFile
}

// LineFile is an entry of the file table.
type LineFile struct {
	Name    string
	DirIdx  uint64
	ModTime uint64
	Length  uint64
}

// DefaultLineConfig returns the header parameters used by most compilers
// for a version 4 program listing files.
func DefaultLineConfig(files ...LineFile) LineConfig {
	return LineConfig{
		Version:        4,
		MinInstrLength: 1,
		MaxOpPerInstr:  1,
		DefaultIsStmt:  true,
		LineBase:       -5,
		LineRange:      14,
		OpcodeBase:     13,
		StdOpLengths:   []uint8{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1},
		Files:          files,
	}
}

// LineProgram accumulates the opcodes of a line number program.
type LineProgram struct {
	b    *Builder
	cfg  LineConfig
	prog bytes.Buffer
}

// BeginLineProgram starts a new line number program, call End to add it
// to debug_line.
func (b *Builder) BeginLineProgram(cfg LineConfig) *LineProgram {
	return &LineProgram{b: b, cfg: cfg}
}

// Raw appends raw bytes to the program.
func (lp *LineProgram) Raw(data ...byte) *LineProgram {
	lp.prog.Write(data)
	return lp
}

// Op appends a standard opcode followed by operands encoded as unsigned
// LEB128.
func (lp *LineProgram) Op(op byte, operands ...uint64) *LineProgram {
	lp.prog.WriteByte(op)
	for _, x := range operands {
		leb128.EncodeUnsigned(&lp.prog, x)
	}
	return lp
}

// AdvanceLine appends a DW_LNS_advance_line.
func (lp *LineProgram) AdvanceLine(delta int64) *LineProgram {
	lp.prog.WriteByte(3)
	leb128.EncodeSigned(&lp.prog, delta)
	return lp
}

// FixedAdvancePC appends a DW_LNS_fixed_advance_pc.
func (lp *LineProgram) FixedAdvancePC(delta uint16) *LineProgram {
	lp.prog.WriteByte(9)
	var buf [2]byte
	lp.b.order.PutUint16(buf[:], delta)
	lp.prog.Write(buf[:])
	return lp
}

// Special appends the special opcode that advances the address by
// opAdvance operations and the line by lineDelta. It panics if no such
// opcode exists.
func (lp *LineProgram) Special(opAdvance uint64, lineDelta int) *LineProgram {
	adj := lineDelta - int(lp.cfg.LineBase)
	if adj < 0 || adj >= int(lp.cfg.LineRange) {
		panic("line delta out of range for a special opcode")
	}
	op := uint64(adj) + uint64(lp.cfg.LineRange)*opAdvance + uint64(lp.cfg.OpcodeBase)
	if op > 255 {
		panic("address advance out of range for a special opcode")
	}
	lp.prog.WriteByte(byte(op))
	return lp
}

// Extended appends an extended opcode with the given payload.
func (lp *LineProgram) Extended(sub byte, payload ...byte) *LineProgram {
	lp.prog.WriteByte(0)
	leb128.EncodeUnsigned(&lp.prog, uint64(len(payload)+1))
	lp.prog.WriteByte(sub)
	lp.prog.Write(payload)
	return lp
}

// SetAddress appends a DW_LNE_set_address with an address sized operand.
func (lp *LineProgram) SetAddress(addr uint64) *LineProgram {
	var buf bytes.Buffer
	lp.b.writeUint(&buf, lp.b.addrSize, addr)
	return lp.Extended(2, buf.Bytes()...)
}

// EndSequence appends a DW_LNE_end_sequence.
func (lp *LineProgram) EndSequence() *LineProgram {
	return lp.Extended(1)
}

// DefineFile appends a DW_LNE_define_file.
func (lp *LineProgram) DefineFile(f LineFile) *LineProgram {
	var buf bytes.Buffer
	writeLineFile(&buf, f)
	return lp.Extended(3, buf.Bytes()...)
}

func writeLineFile(out *bytes.Buffer, f LineFile) {
	out.WriteString(f.Name)
	out.WriteByte(0)
	leb128.EncodeUnsigned(out, f.DirIdx)
	leb128.EncodeUnsigned(out, f.ModTime)
	leb128.EncodeUnsigned(out, f.Length)
}

// End writes the program to debug_line and returns its offset.
func (lp *LineProgram) End() SecOffset {
	b := lp.b
	cfg := &lp.cfg

	var hdr bytes.Buffer
	hdr.WriteByte(cfg.MinInstrLength)
	if cfg.Version >= 4 {
		hdr.WriteByte(cfg.MaxOpPerInstr)
	}
	if cfg.DefaultIsStmt {
		hdr.WriteByte(1)
	} else {
		hdr.WriteByte(0)
	}
	hdr.WriteByte(byte(cfg.LineBase))
	hdr.WriteByte(cfg.LineRange)
	hdr.WriteByte(cfg.OpcodeBase)
	hdr.Write(cfg.StdOpLengths)
	for _, dir := range cfg.IncludeDirs {
		hdr.WriteString(dir)
		hdr.WriteByte(0)
	}
	hdr.WriteByte(0)
	for _, f := range cfg.Files {
		writeLineFile(&hdr, f)
	}
	hdr.WriteByte(0)

	off := SecOffset(b.line.Len())
	b.writeUint(&b.line, 4, uint64(2+4+hdr.Len()+lp.prog.Len()))
	b.writeUint(&b.line, 2, uint64(cfg.Version))
	b.writeUint(&b.line, 4, uint64(hdr.Len()))
	b.line.Write(hdr.Bytes())
	b.line.Write(lp.prog.Bytes())
	return off
}

// RawLine appends data to debug_line as is.
func (b *Builder) RawLine(data ...byte) {
	b.line.Write(data)
}
