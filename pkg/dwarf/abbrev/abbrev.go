// Package abbrev parses the abbreviation tables of the .debug_abbrev
// section.
//
// An abbreviation declares the tag, the has-children flag and the ordered
// list of (attribute, form) pairs of every entry that references its code.
// Codes are only meaningful inside the table a compilation unit points to,
// a Table is therefore always parsed from, and scoped to, one offset.
package abbrev

import (
	"sort"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/logflags"
)

// Field is one attribute specification of an abbreviation.
type Field struct {
	Attr dwarf.Attr
	Form dwarf.Form
}

// Abbrev is a single abbreviation declaration.
type Abbrev struct {
	Code     uint64
	Tag      dwarf.Tag
	Children bool
	Fields   []Field
}

// Table maps abbreviation codes to declarations. A Table is never modified
// after Parse returns and can be shared between goroutines.
type Table struct {
	// Offset of the table inside .debug_abbrev.
	Offset uint64
	// Size in bytes, including the final terminator.
	Size uint64

	codes map[uint64]*Abbrev
}

// Parse parses the abbreviation table starting at off in sec.
func Parse(sec *dwarf.Section, off uint64) (*Table, error) {
	buf, err := sec.Buf(off)
	if err != nil {
		return nil, dwarf.Wrap(dwarf.MalformedAbbreviation, sec.Name, off, err, "table offset out of range")
	}

	tbl := &Table{Offset: off, codes: make(map[uint64]*Abbrev)}

	for {
		declOff := buf.Off()
		code, err := buf.Uleb()
		if err != nil {
			return nil, dwarf.Wrap(dwarf.MalformedAbbreviation, sec.Name, declOff, err, "reading code")
		}
		if code == 0 {
			break
		}
		if _, dup := tbl.codes[code]; dup {
			return nil, dwarf.Errorf(dwarf.DuplicateCode, sec.Name, declOff, "code %d declared twice in table at %#x", code, off)
		}

		a, err := parseDecl(buf, code)
		if err != nil {
			return nil, err
		}
		tbl.codes[code] = a
	}

	tbl.Size = buf.Off() - off

	if logflags.Abbrev() {
		logflags.AbbrevLogger().Debugf("parsed %d abbreviations at %#x (%d bytes)", len(tbl.codes), off, tbl.Size)
	}

	return tbl, nil
}

func parseDecl(buf *dwarf.Buf, code uint64) (*Abbrev, error) {
	off := buf.Off()
	tag, err := buf.Uleb()
	if err != nil {
		return nil, dwarf.Wrap(dwarf.MalformedAbbreviation, buf.Name(), off, err, "reading tag of code %d", code)
	}
	if tag == 0 {
		return nil, dwarf.Errorf(dwarf.MalformedAbbreviation, buf.Name(), off, "code %d has tag 0", code)
	}
	if tag > dwarf.MaxTag {
		return nil, dwarf.Errorf(dwarf.MalformedAbbreviation, buf.Name(), off, "code %d has tag %#x", code, tag)
	}

	off = buf.Off()
	children, err := buf.Uint8()
	if err != nil {
		return nil, dwarf.Wrap(dwarf.MalformedAbbreviation, buf.Name(), off, err, "reading children flag of code %d", code)
	}
	if children > 1 {
		return nil, dwarf.Errorf(dwarf.MalformedAbbreviation, buf.Name(), off, "code %d has children flag %#x", code, children)
	}

	a := &Abbrev{Code: code, Tag: dwarf.Tag(tag), Children: children == 1}

	for {
		off = buf.Off()
		at, err := buf.Uleb()
		if err != nil {
			return nil, dwarf.Wrap(dwarf.MalformedAbbreviation, buf.Name(), off, err, "reading attribute of code %d", code)
		}
		form, err := buf.Uleb()
		if err != nil {
			return nil, dwarf.Wrap(dwarf.MalformedAbbreviation, buf.Name(), off, err, "reading form of code %d", code)
		}
		if at == 0 && form == 0 {
			break
		}
		if at == 0 || form == 0 {
			return nil, dwarf.Errorf(dwarf.MalformedAbbreviation, buf.Name(), off, "code %d: bad attribute list terminator (%#x, %#x)", code, at, form)
		}
		if at > dwarf.MaxAttr {
			return nil, dwarf.Errorf(dwarf.MalformedAbbreviation, buf.Name(), off, "code %d: attribute %#x", code, at)
		}
		if form > dwarf.MaxForm {
			cause := dwarf.Errorf(dwarf.UnknownForm, buf.Name(), off, "form %#x", form)
			return nil, dwarf.Wrap(dwarf.MalformedAbbreviation, buf.Name(), off, cause, "code %d", code)
		}
		a.Fields = append(a.Fields, Field{Attr: dwarf.Attr(at), Form: dwarf.Form(form)})
	}

	return a, nil
}

// Get returns the abbreviation declared with code.
func (tbl *Table) Get(code uint64) (*Abbrev, bool) {
	a, ok := tbl.codes[code]
	return a, ok
}

// Len returns the number of abbreviations in the table.
func (tbl *Table) Len() int {
	return len(tbl.codes)
}

// Codes returns all codes in the table in ascending order.
func (tbl *Table) Codes() []uint64 {
	r := make([]uint64, 0, len(tbl.codes))
	for code := range tbl.codes {
		r = append(r, code)
	}
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return r
}
