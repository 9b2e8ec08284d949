// Package debuginfo ties the decoders of pkg/dwarf together: it walks
// units, caches their abbreviation tables and line program headers and
// answers address and source file queries.
package debuginfo

import (
	stddwarf "debug/dwarf"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/derekparker/trie"
	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/abbrev"
	"github.com/go-delve/dwarfscan/pkg/dwarf/aranges"
	"github.com/go-delve/dwarfscan/pkg/dwarf/attr"
	"github.com/go-delve/dwarfscan/pkg/dwarf/line"
	"github.com/go-delve/dwarfscan/pkg/dwarf/reader"
	"github.com/go-delve/dwarfscan/pkg/logflags"
)

// ErrNoUnit is returned when no compilation unit covers an address.
var ErrNoUnit = errors.New("no compilation unit for address")

// Sections are the debug sections of one executable. Only Info and Abbrev
// are required.
type Sections struct {
	Info    *dwarf.Section
	Abbrev  *dwarf.Section
	Line    *dwarf.Section
	Aranges *dwarf.Section
	Str     *dwarf.Section
}

// Config configures a Data.
type Config struct {
	// AbbrevCacheSize is the number of abbreviation tables kept in memory.
	AbbrevCacheSize int
	// LineCacheSize is the number of line program headers kept in memory.
	LineCacheSize int
	// NormalizeBackslash converts backslashes in file paths to slashes.
	NormalizeBackslash bool
}

const defaultCacheSize = 256

// Data answers queries over a set of debug sections. It is safe for
// concurrent use.
type Data struct {
	secs Sections
	cfg  Config

	abbrevCache *lru.Cache // abbrev offset -> *abbrev.Table
	lineCache   *lru.Cache // unit offset -> *line.Header

	indexOnce sync.Once
	index     *aranges.Index
	indexErr  error

	filesOnce sync.Once
	files     *trie.Trie
	filesErr  error
}

// New returns a Data reading secs.
func New(secs Sections, cfg Config) (*Data, error) {
	if secs.Info == nil || secs.Abbrev == nil {
		return nil, fmt.Errorf("debuginfo: missing %s or %s section", dwarf.InfoSection, dwarf.AbbrevSection)
	}
	if cfg.AbbrevCacheSize <= 0 {
		cfg.AbbrevCacheSize = defaultCacheSize
	}
	if cfg.LineCacheSize <= 0 {
		cfg.LineCacheSize = defaultCacheSize
	}
	d := &Data{secs: secs, cfg: cfg}
	var err error
	if d.abbrevCache, err = lru.New(cfg.AbbrevCacheSize); err != nil {
		return nil, err
	}
	if d.lineCache, err = lru.New(cfg.LineCacheSize); err != nil {
		return nil, err
	}
	return d, nil
}

// Sections returns the sections d reads.
func (d *Data) Sections() Sections {
	return d.secs
}

// Units returns an iterator over every unit.
func (d *Data) Units() *reader.Units {
	return reader.NewUnits(d.secs.Info)
}

// UnitAt parses the unit header at off.
func (d *Data) UnitAt(off uint64) (*reader.Unit, error) {
	return reader.ParseUnit(d.secs.Info, off)
}

// Abbrevs returns the abbreviation table of u.
func (d *Data) Abbrevs(u *reader.Unit) (*abbrev.Table, error) {
	if tbl, ok := d.abbrevCache.Get(u.AbbrevOffset); ok {
		return tbl.(*abbrev.Table), nil
	}
	if logflags.Cache() {
		logflags.CacheLogger().Debugf("abbreviation table cache miss %#x", u.AbbrevOffset)
	}
	tbl, err := u.Abbrevs(d.secs.Abbrev)
	if err != nil {
		return nil, err
	}
	d.abbrevCache.Add(u.AbbrevOffset, tbl)
	return tbl, nil
}

// Entries returns a cursor over the entries of u.
func (d *Data) Entries(u *reader.Unit) (*reader.Cursor, error) {
	tbl, err := d.Abbrevs(u)
	if err != nil {
		return nil, err
	}
	return u.Entries(tbl), nil
}

// Root returns the first entry of u, usually a DW_TAG_compile_unit. It
// returns nil for a unit without entries.
func (d *Data) Root(u *reader.Unit) (*reader.Entry, error) {
	c, err := d.Entries(u)
	if err != nil {
		return nil, err
	}
	return c.Next()
}

// String returns the string value of attribute a of e.
func (d *Data) String(e *reader.Entry, a dwarf.Attr) (string, bool) {
	v, ok := e.Val(a)
	if !ok {
		return "", false
	}
	var strs attr.StringResolver
	if d.secs.Str != nil {
		strs = d.secs.Str
	}
	s, err := v.Resolve(strs)
	if err != nil {
		return "", false
	}
	return string(s), true
}

// LineProgram returns the header of the line program of u, nil if u has
// no DW_AT_stmt_list.
func (d *Data) LineProgram(u *reader.Unit) (*line.Header, error) {
	if h, ok := d.lineCache.Get(u.Offset); ok {
		return h.(*line.Header), nil
	}
	if logflags.Cache() {
		logflags.CacheLogger().Debugf("line program cache miss for unit %#x", u.Offset)
	}
	root, err := d.Root(u)
	if err != nil || root == nil {
		return nil, err
	}
	v, ok := root.Val(stddwarf.AttrStmtList)
	if !ok {
		return nil, nil
	}
	off, ok := v.LineOffset()
	if !ok {
		return nil, dwarf.Errorf(dwarf.MalformedEntry, dwarf.InfoSection, uint64(root.Offset), "DW_AT_stmt_list of form %s", v.Form)
	}
	if d.secs.Line == nil {
		return nil, fmt.Errorf("unit at %#x has a line program but there is no %s section", u.Offset, dwarf.LineSection)
	}
	compDir, _ := d.String(root, stddwarf.AttrCompDir)
	h, err := line.Parse(d.secs.Line, off, line.ParseOpts{
		CompDir:            compDir,
		AddrSize:           u.AddrSize,
		NormalizeBackslash: d.cfg.NormalizeBackslash,
	})
	if err != nil {
		return nil, err
	}
	d.lineCache.Add(u.Offset, h)
	return h, nil
}

// Index returns the address index, built the first time it is needed
// from .debug_aranges or, when that section is missing or empty, from the
// DW_AT_low_pc/DW_AT_high_pc of each unit's root entry.
func (d *Data) Index() (*aranges.Index, error) {
	d.indexOnce.Do(func() {
		if d.secs.Aranges != nil && d.secs.Aranges.Len() > 0 {
			d.index, d.indexErr = aranges.NewIndex(d.secs.Aranges)
			return
		}
		var entries []aranges.Entry
		entries, d.indexErr = d.unitRanges()
		if d.indexErr == nil {
			d.index = aranges.BuildIndex(entries)
		}
	})
	return d.index, d.indexErr
}

func (d *Data) unitRanges() ([]aranges.Entry, error) {
	var r []aranges.Entry
	units := d.Units()
	for {
		u, err := units.Next()
		if err != nil {
			return nil, err
		}
		if u == nil {
			return r, nil
		}
		root, err := d.Root(u)
		if err != nil {
			return nil, err
		}
		if root == nil {
			continue
		}
		lowpc, ok := root.Val(stddwarf.AttrLowpc)
		if !ok {
			continue
		}
		highpc, ok := root.Val(stddwarf.AttrHighpc)
		if !ok {
			continue
		}
		e := aranges.Entry{UnitOffset: u.Offset, Address: lowpc.Uint()}
		if highpc.Class == attr.ClassAddress {
			if highpc.Uint() > e.Address {
				e.Length = highpc.Uint() - e.Address
			}
		} else {
			// DWARF 4 encodes high_pc as an offset from low_pc
			e.Length = highpc.Uint()
		}
		r = append(r, e)
	}
}

// UnitForPC returns the unit describing pc.
func (d *Data) UnitForPC(pc uint64) (*reader.Unit, error) {
	idx, err := d.Index()
	if err != nil {
		return nil, err
	}
	off, ok := idx.Lookup(pc)
	if !ok {
		return nil, fmt.Errorf("%w %#x", ErrNoUnit, pc)
	}
	return d.UnitAt(off)
}

// PCToLine returns the source position of pc.
func (d *Data) PCToLine(pc uint64) (line.Location, bool, error) {
	u, err := d.UnitForPC(pc)
	if err != nil {
		if errors.Is(err, ErrNoUnit) {
			return line.Location{}, false, nil
		}
		return line.Location{}, false, err
	}
	h, err := d.LineProgram(u)
	if err != nil || h == nil {
		return line.Location{}, false, err
	}
	return h.PCToLine(pc)
}

func (d *Data) loadFiles() (*trie.Trie, error) {
	d.filesOnce.Do(func() {
		t := trie.New()
		units := d.Units()
		for {
			u, err := units.Next()
			if err != nil {
				d.filesErr = err
				return
			}
			if u == nil {
				break
			}
			h, err := d.LineProgram(u)
			if err != nil {
				d.filesErr = err
				return
			}
			if h == nil {
				continue
			}
			for _, f := range h.FileNames {
				if _, ok := t.Find(f.Path); !ok {
					t.Add(f.Path, u.Offset)
				}
			}
		}
		d.files = t
	})
	return d.files, d.filesErr
}

// Files returns the sorted list of source files of every line program.
func (d *Data) Files() ([]string, error) {
	t, err := d.loadFiles()
	if err != nil {
		return nil, err
	}
	r := t.Keys()
	sort.Strings(r)
	return r, nil
}

// FindFiles returns the sorted list of source files starting with prefix.
func (d *Data) FindFiles(prefix string) ([]string, error) {
	t, err := d.loadFiles()
	if err != nil {
		return nil, err
	}
	r := t.PrefixSearch(prefix)
	sort.Strings(r)
	return r, nil
}

// FileUnit returns the offset of the first unit whose line program lists
// file.
func (d *Data) FileUnit(file string) (uint64, bool, error) {
	t, err := d.loadFiles()
	if err != nil {
		return 0, false, err
	}
	n, ok := t.Find(file)
	if !ok {
		return 0, false, nil
	}
	return n.Meta().(uint64), true, nil
}

// FuzzyFindFiles returns the source files matching pattern as a fuzzy
// search, shortest first.
func (d *Data) FuzzyFindFiles(pattern string) ([]string, error) {
	t, err := d.loadFiles()
	if err != nil {
		return nil, err
	}
	return t.FuzzySearch(pattern), nil
}
