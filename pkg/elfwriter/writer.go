// elfwriter is a package to write ELF files made only of sections, such as
// the separate debug info files produced by objcopy --only-keep-debug.
// This package is incomplete, only features needed to write 64-bit little
// endian files are implemented, notably missing:
// - program headers
// - symbol tables

package elfwriter

import (
	"debug/elf"
	"encoding/binary"
	"io"
)

const (
	ehsize    = 64
	shentsize = 64
)

// Writer writes ELF files.
type Writer struct {
	w        io.WriteSeeker
	Err      error
	Sections []*Section

	seekSectionHeader int64
	seekSectionNum    int64
}

// Section is a section written to the file.
type Section struct {
	elf.SectionHeader
	nameOff uint32
}

// New creates a new Writer and writes the file header.
func New(w io.WriteSeeker, fhdr *elf.FileHeader) *Writer {
	if seek, _ := w.Seek(0, io.SeekCurrent); seek != 0 {
		panic("can't write halfway through a file")
	}

	r := &Writer{w: w}

	if fhdr.Class != elf.ELFCLASS64 {
		panic("unsupported")
	}

	if fhdr.Data != elf.ELFDATA2LSB {
		panic("unsupported")
	}

	// e_ident
	r.Write([]byte{0x7f, 'E', 'L', 'F', byte(fhdr.Class), byte(fhdr.Data), byte(fhdr.Version), byte(fhdr.OSABI), byte(fhdr.ABIVersion), 0, 0, 0, 0, 0, 0, 0})

	r.u16(uint16(fhdr.Type))    // e_type
	r.u16(uint16(fhdr.Machine)) // e_machine
	r.u32(uint32(fhdr.Version)) // e_version
	r.u64(fhdr.Entry)           // e_entry
	r.u64(0)                    // e_phoff
	r.seekSectionHeader = r.Here()
	r.u64(0)      // e_shoff
	r.u32(0)      // e_flags
	r.u16(ehsize) // e_ehsize
	r.u16(0)      // e_phentsize
	r.u16(0)      // e_phnum
	r.u16(shentsize)
	r.seekSectionNum = r.Here()
	r.u16(0)                     // e_shnum
	r.u16(uint16(elf.SHN_UNDEF)) // e_shstrndx

	// Sanity check, size of file header should be the same as ehsize
	if sz, _ := w.Seek(0, io.SeekCurrent); sz != ehsize {
		panic("internal error, ELF header size")
	}

	return r
}

// WriteSection writes data at the current location and records a section
// header describing it.
func (w *Writer) WriteSection(name string, typ elf.SectionType, flags elf.SectionFlag, data []byte) *Section {
	w.Align(8)
	s := &Section{SectionHeader: elf.SectionHeader{
		Name:      name,
		Type:      typ,
		Flags:     flags,
		Offset:    uint64(w.Here()),
		Size:      uint64(len(data)),
		Addralign: 1,
	}}
	w.Write(data)
	w.Sections = append(w.Sections, s)
	return s
}

// WriteSectionHeaders writes the section name table and the section
// headers at the current location and patches the file header
// accordingly.
func (w *Writer) WriteSectionHeaders() {
	shstrtab := []byte{0}
	for _, s := range w.Sections {
		s.nameOff = uint32(len(shstrtab))
		shstrtab = append(shstrtab, s.Name...)
		shstrtab = append(shstrtab, 0)
	}
	strs := &Section{nameOff: uint32(len(shstrtab))}
	shstrtab = append(shstrtab, ".shstrtab"...)
	shstrtab = append(shstrtab, 0)
	strs.Name = ".shstrtab"
	strs.Type = elf.SHT_STRTAB
	strs.Offset = uint64(w.Here())
	strs.Size = uint64(len(shstrtab))
	strs.Addralign = 1
	w.Write(shstrtab)

	w.Align(8)
	shoff := w.Here()
	shnum := len(w.Sections) + 2 // null section and .shstrtab

	// Patch File Header
	w.w.Seek(w.seekSectionHeader, io.SeekStart)
	w.u64(uint64(shoff))
	w.w.Seek(w.seekSectionNum, io.SeekStart)
	w.u16(uint16(shnum))
	w.u16(uint16(shnum - 1))
	w.w.Seek(0, io.SeekEnd)

	w.Write(make([]byte, shentsize))
	for _, s := range append(w.Sections, strs) {
		w.u32(s.nameOff)
		w.u32(uint32(s.Type))
		w.u64(uint64(s.Flags))
		w.u64(s.Addr)
		w.u64(s.Offset)
		w.u64(s.Size)
		w.u32(s.Link)
		w.u32(s.Info)
		w.u64(s.Addralign)
		w.u64(s.Entsize)
	}
}

// Here returns the current seek offset from the start of the file.
func (w *Writer) Here() int64 {
	r, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil && w.Err == nil {
		w.Err = err
	}
	return r
}

// Align writes as many padding bytes as needed to make the current file
// offset a multiple of align.
func (w *Writer) Align(align int64) {
	off := w.Here()
	alignOff := (off + (align - 1)) &^ (align - 1)
	if alignOff-off > 0 {
		w.Write(make([]byte, alignOff-off))
	}
}

func (w *Writer) Write(buf []byte) {
	_, err := w.w.Write(buf)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

func (w *Writer) u16(n uint16) {
	err := binary.Write(w.w, binary.LittleEndian, n)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

func (w *Writer) u32(n uint32) {
	err := binary.Write(w.w, binary.LittleEndian, n)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}

func (w *Writer) u64(n uint64) {
	err := binary.Write(w.w, binary.LittleEndian, n)
	if err != nil && w.Err == nil {
		w.Err = err
	}
}
