// Package objfile loads the DWARF sections of ELF, Mach-O and PE
// executables.
package objfile

import (
	"bytes"
	"compress/zlib"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/debuginfo"
	"github.com/go-delve/dwarfscan/pkg/logflags"
)

// ErrUnknownFormat is returned for files that are not ELF, Mach-O or PE
// executables.
var ErrUnknownFormat = errors.New("unrecognized executable format")

var sectionNames = []string{dwarf.InfoSection, dwarf.AbbrevSection, dwarf.LineSection, dwarf.ArangesSection, dwarf.StrSection}

// File is an executable loaded in memory. Sections may alias a memory
// mapping of the file: every value borrowed from them is invalid after
// Close.
type File struct {
	Path   string
	Format string
	Order  binary.ByteOrder

	data     []byte
	release  func() error
	sections map[string]*dwarf.Section
}

// Open loads the executable at path.
func Open(path string) (*File, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	f, err := load(path, data)
	if err != nil {
		release()
		return nil, err
	}
	f.release = release
	return f, nil
}

// NewFile loads an executable from data, which must not be modified
// while the File is in use.
func NewFile(data []byte) (*File, error) {
	return load("", data)
}

func load(path string, data []byte) (*File, error) {
	f := &File{Path: path, data: data, sections: make(map[string]*dwarf.Section)}
	r := bytes.NewReader(data)

	if ef, err := elf.NewFile(r); err == nil {
		f.Format = "elf"
		f.Order = ef.ByteOrder
		err = f.loadSections(func(name string) ([]byte, error) { return f.elfSection(ef, name) })
		return f, err
	}
	if mf, err := macho.NewFile(r); err == nil {
		f.Format = "macho"
		f.Order = mf.ByteOrder
		err = f.loadSections(func(name string) ([]byte, error) { return getDebugSectionMacho(mf, name) })
		return f, err
	}
	if pf, err := pe.NewFile(r); err == nil {
		f.Format = "pe"
		f.Order = binary.LittleEndian
		err = f.loadSections(func(name string) ([]byte, error) { return getDebugSectionPE(pf, name) })
		return f, err
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

var errNoSection = errors.New("no such section")

func (f *File) loadSections(get func(name string) ([]byte, error)) error {
	for _, name := range sectionNames {
		data, err := get(name)
		if err != nil {
			if errors.Is(err, errNoSection) {
				if logflags.Loader() {
					logflags.LoaderLogger().Debugf("%s: no %s section", f.Format, name)
				}
				data = nil
			} else {
				return fmt.Errorf("could not read .debug_%s: %v", name, err)
			}
		}
		f.sections[name] = dwarf.NewSection(name, data, f.Order)
		if logflags.Loader() {
			logflags.LoaderLogger().Debugf("%s: .debug_%s %d bytes", f.Format, name, len(data))
		}
	}
	return nil
}

// Section returns the named debug section ("info", "abbrev", ...), empty
// if the executable does not have it.
func (f *File) Section(name string) *dwarf.Section {
	if sec, ok := f.sections[name]; ok {
		return sec
	}
	return dwarf.NewSection(name, nil, f.Order)
}

// HasDWARF returns true if the executable has entries to decode.
func (f *File) HasDWARF() bool {
	return f.Section(dwarf.InfoSection).Len() > 0
}

// DebugInfo returns a query layer over the sections of f.
func (f *File) DebugInfo(cfg debuginfo.Config) (*debuginfo.Data, error) {
	if !f.HasDWARF() {
		return nil, fmt.Errorf("%s: no debug information", f.Path)
	}
	return debuginfo.New(debuginfo.Sections{
		Info:    f.Section(dwarf.InfoSection),
		Abbrev:  f.Section(dwarf.AbbrevSection),
		Line:    f.Section(dwarf.LineSection),
		Aranges: f.Section(dwarf.ArangesSection),
		Str:     f.Section(dwarf.StrSection),
	}, cfg)
}

// Close releases the memory of f.
func (f *File) Close() error {
	f.sections = nil
	f.data = nil
	if f.release != nil {
		release := f.release
		f.release = nil
		return release()
	}
	return nil
}

// elfSection returns the contents of the specified debug section. Plain
// sections are borrowed from the file's data, compressed ones are
// decompressed.
// For example elfSection(f, "line") will return the contents of
// .debug_line, if .debug_line doesn't exist it will try to return the
// decompressed contents of .zdebug_line.
func (f *File) elfSection(ef *elf.File, name string) ([]byte, error) {
	sec := ef.Section(".debug_" + name)
	if sec != nil {
		if sec.Type == elf.SHT_NOBITS {
			return nil, errNoSection
		}
		if sec.Flags&elf.SHF_COMPRESSED == 0 && sec.Offset+sec.FileSize <= uint64(len(f.data)) {
			return f.data[sec.Offset : sec.Offset+sec.FileSize : sec.Offset+sec.FileSize], nil
		}
		return sec.Data()
	}
	sec = ef.Section(".zdebug_" + name)
	if sec == nil {
		return nil, errNoSection
	}
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

// getDebugSectionPE returns the data contents of the specified debug
// section, decompressing it if it is compressed.
func getDebugSectionPE(f *pe.File, name string) ([]byte, error) {
	sec := f.Section(".debug_" + name)
	if sec != nil {
		return peSectionData(sec)
	}
	sec = f.Section(".zdebug_" + name)
	if sec == nil {
		return nil, errNoSection
	}
	b, err := peSectionData(sec)
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

func peSectionData(sec *pe.Section) ([]byte, error) {
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	if 0 < sec.VirtualSize && sec.VirtualSize < sec.Size {
		b = b[:sec.VirtualSize]
	}
	return b, nil
}

// getDebugSectionMacho returns the data contents of the specified debug
// section, decompressing it if it is compressed.
// For example getDebugSectionMacho(f, "line") will return the contents of
// __debug_line, if __debug_line doesn't exist it will try to return the
// decompressed contents of __zdebug_line.
func getDebugSectionMacho(f *macho.File, name string) ([]byte, error) {
	sec := f.Section("__debug_" + name)
	if sec != nil {
		return sec.Data()
	}
	sec = f.Section("__zdebug_" + name)
	if sec == nil {
		return nil, errNoSection
	}
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

func decompressMaybe(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[:4]) != "ZLIB" {
		// not compressed
		return b, nil
	}

	dlen := binary.BigEndian.Uint64(b[4:12])
	dbuf := make([]byte, dlen)
	r, err := zlib.NewReader(bytes.NewBuffer(b[12:]))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, dbuf); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return dbuf, nil
}
