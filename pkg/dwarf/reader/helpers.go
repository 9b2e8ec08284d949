package reader

import (
	stddwarf "debug/dwarf"
	"errors"
	"fmt"

	"github.com/go-delve/dwarfscan/pkg/dwarf/attr"
)

// ErrEntryNotFound is returned by FindEntryNamed.
var ErrEntryNotFound = errors.New("no entry found")

// Name returns the DW_AT_name of e, resolving indirect strings with strs.
func (e *Entry) Name(strs attr.StringResolver) (string, bool) {
	v, ok := e.Val(stddwarf.AttrName)
	if !ok {
		return "", false
	}
	s, err := v.Resolve(strs)
	if err != nil {
		return "", false
	}
	return string(s), true
}

// NextType moves the cursor to the next entry describing a type.
func (c *Cursor) NextType() (*Entry, error) {
	for entry, err := c.Next(); entry != nil || err != nil; entry, err = c.Next() {
		if err != nil {
			return nil, err
		}

		switch entry.Tag {
		case stddwarf.TagArrayType, stddwarf.TagBaseType, stddwarf.TagClassType, stddwarf.TagStructType, stddwarf.TagUnionType, stddwarf.TagConstType, stddwarf.TagVolatileType, stddwarf.TagRestrictType, stddwarf.TagEnumerationType, stddwarf.TagPointerType, stddwarf.TagSubroutineType, stddwarf.TagTypedef, stddwarf.TagUnspecifiedType:
			return entry, nil
		}
	}

	return nil, nil
}

// NextPackageVariable moves the cursor to the next entry that describes a
// package variable. Any TagVariable entry that is not inside a subprogram
// and is marked external is considered a package variable.
func (c *Cursor) NextPackageVariable() (*Entry, error) {
	for entry, err := c.Next(); entry != nil || err != nil; entry, err = c.Next() {
		if err != nil {
			return nil, err
		}

		if entry.Tag == stddwarf.TagVariable {
			if ext, ok := entry.Val(stddwarf.AttrExternal); ok && ext.Bool() {
				return entry, nil
			}
		}

		// Ignore everything inside sub programs
		if entry.Tag == stddwarf.TagSubprogram {
			if err := c.SkipChildren(); err != nil {
				return nil, err
			}
		}
	}

	// No more items
	return nil, nil
}

// FindEntryNamed returns the first entry with the given tag and name
// found after the cursor's position.
func (c *Cursor) FindEntryNamed(tag stddwarf.Tag, name string, strs attr.StringResolver) (*Entry, error) {
	for entry, err := c.Next(); entry != nil || err != nil; entry, err = c.Next() {
		if err != nil {
			return nil, err
		}
		if entry.Tag != tag {
			continue
		}
		if n, ok := entry.Name(strs); ok && n == name {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q in unit at %#x", ErrEntryNotFound, tag, name, c.unit.Offset)
}
