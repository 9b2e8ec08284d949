// Package reader walks the entries of a compilation unit.
//
// The entry tree is stored in pre-order, every entry followed by its
// children and a null entry closing the children list. Cursor walks it
// front to back keeping an explicit nesting depth, entries are decoded one
// at a time and never linked into a tree.
package reader

import (
	stddwarf "debug/dwarf"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/abbrev"
	"github.com/go-delve/dwarfscan/pkg/dwarf/attr"
	"github.com/go-delve/dwarfscan/pkg/logflags"
)

// Field is one attribute of an entry.
type Field struct {
	Attr dwarf.Attr
	Val  attr.Value
}

// Entry is a debugging information entry.
type Entry struct {
	Offset   dwarf.Offset
	Tag      dwarf.Tag
	Children bool
	// Depth of the entry, the unit's root entry is at depth 0.
	Depth  int
	Fields []Field
}

// Val returns the value of attribute a.
func (e *Entry) Val(a dwarf.Attr) (attr.Value, bool) {
	for i := range e.Fields {
		if e.Fields[i].Attr == a {
			return e.Fields[i].Val, true
		}
	}
	return attr.Value{}, false
}

// Cursor performs a depth first walk over the entries of one unit.
type Cursor struct {
	unit    *Unit
	abbrevs *abbrev.Table
	buf     *dwarf.Buf
	ctx     attr.Context

	depth   int
	started bool
	done    bool

	last *Entry
}

// Unit returns the unit the cursor walks.
func (c *Cursor) Unit() *Unit { return c.unit }

// Depth returns the current nesting depth: the number of entries whose
// children list has been opened and not yet closed.
func (c *Cursor) Depth() int { return c.depth }

// Off returns the .debug_info offset of the next entry to be read.
func (c *Cursor) Off() uint64 { return c.buf.Off() }

// Next returns the next entry in pre-order, or nil once the root entry
// and all its descendants have been read. Null entries are consumed but
// never returned.
func (c *Cursor) Next() (*Entry, error) {
	for {
		if c.done {
			return nil, nil
		}
		if c.buf.Empty() {
			if c.started {
				return nil, dwarf.Errorf(dwarf.MalformedEntry, c.buf.Name(), c.buf.Off(), "unit ends at depth %d", c.depth)
			}
			// unit without entries
			c.done = true
			return nil, nil
		}

		off := c.buf.Off()
		code, err := c.buf.Uleb()
		if err != nil {
			return nil, err
		}

		if code == 0 {
			if c.depth == 0 {
				return nil, dwarf.Errorf(dwarf.MalformedEntry, c.buf.Name(), off, "null entry outside of a children list")
			}
			c.depth--
			if c.depth == 0 {
				c.done = true
			}
			continue
		}

		a, ok := c.abbrevs.Get(code)
		if !ok {
			return nil, dwarf.Errorf(dwarf.UnknownAbbreviationCode, c.buf.Name(), off, "code %d not in table at %#x", code, c.abbrevs.Offset)
		}

		e := &Entry{Offset: dwarf.Offset(off), Tag: a.Tag, Children: a.Children, Depth: c.depth}
		if len(a.Fields) > 0 {
			e.Fields = make([]Field, len(a.Fields))
		}
		for i, f := range a.Fields {
			v, _, err := attr.Decode(f.Form, c.buf, c.ctx)
			if err != nil {
				return nil, err
			}
			e.Fields[i] = Field{Attr: f.Attr, Val: v}
		}

		c.started = true
		if a.Children {
			c.depth++
		} else if c.depth == 0 {
			c.done = true
		}
		c.last = e

		if logflags.Info() {
			logflags.InfoLogger().Debugf("entry %#x %s depth=%d children=%v", off, a.Tag, e.Depth, a.Children)
		}
		return e, nil
	}
}

// SkipChildren skips the children of the entry last returned by Next, if
// it has any. DW_AT_sibling is used when present.
func (c *Cursor) SkipChildren() error {
	e := c.last
	if e == nil || !e.Children || c.done || c.depth != e.Depth+1 {
		return nil
	}

	if e.Depth == 0 {
		c.done = true
		return nil
	}

	if sib, ok := e.Val(stddwarf.AttrSibling); ok {
		if off, ok := sib.Offset(); ok && uint64(off) > uint64(e.Offset) && uint64(off) <= c.buf.End() {
			if err := c.buf.Seek(uint64(off)); err == nil {
				c.depth = e.Depth
				return nil
			}
		}
	}

	for c.depth > e.Depth && !c.done {
		if _, err := c.Next(); err != nil {
			return err
		}
	}
	return nil
}

// Seek moves the cursor to the entry at .debug_info offset off, which must
// belong to the cursor's unit. Subsequent calls to Next walk the subtree
// rooted at that entry.
func (c *Cursor) Seek(off dwarf.Offset) error {
	if err := c.buf.Seek(uint64(off)); err != nil {
		return err
	}
	c.depth = 0
	c.started = false
	c.done = false
	c.last = nil
	return nil
}

// AttrField returns the field of e for attribute a, or nil.
func (e *Entry) AttrField(a dwarf.Attr) *Field {
	for i := range e.Fields {
		if e.Fields[i].Attr == a {
			return &e.Fields[i]
		}
	}
	return nil
}
