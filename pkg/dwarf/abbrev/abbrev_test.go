package abbrev_test

import (
	stddwarf "debug/dwarf"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/abbrev"
	"github.com/go-delve/dwarfscan/pkg/dwarf/dwarfbuilder"
)

func section(data ...[]byte) *dwarf.Section {
	var all []byte
	for _, d := range data {
		all = append(all, d...)
	}
	return dwarf.NewSection(dwarf.AbbrevSection, all, binary.LittleEndian)
}

func TestParseSingle(t *testing.T) {
	sec := section(dwarfbuilder.AbbrevTable(
		[]uint64{1, uint64(stddwarf.TagCompileUnit), 0, uint64(stddwarf.AttrName), uint64(dwarf.FormString)},
	), []byte{0})

	tbl, err := abbrev.Parse(sec, 0)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, uint64(len(sec.Data)), tbl.Size)

	a, ok := tbl.Get(1)
	require.True(t, ok)
	require.Equal(t, stddwarf.TagCompileUnit, a.Tag)
	require.False(t, a.Children)
	require.Equal(t, []abbrev.Field{{Attr: stddwarf.AttrName, Form: dwarf.FormString}}, a.Fields)

	_, ok = tbl.Get(2)
	require.False(t, ok)
}

func TestParseScopedToOffset(t *testing.T) {
	first := append(dwarfbuilder.AbbrevTable(
		[]uint64{1, uint64(stddwarf.TagCompileUnit), 1},
		[]uint64{2, uint64(stddwarf.TagVariable), 0, uint64(stddwarf.AttrName), uint64(dwarf.FormString)},
	), 0)
	second := append(dwarfbuilder.AbbrevTable(
		[]uint64{1, uint64(stddwarf.TagSubprogram), 0},
	), 0)
	sec := section(first, second)

	tbl1, err := abbrev.Parse(sec, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, tbl1.Codes())

	tbl2, err := abbrev.Parse(sec, uint64(len(first)))
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, tbl2.Codes())
	a, _ := tbl2.Get(1)
	require.Equal(t, stddwarf.TagSubprogram, a.Tag)
}

func TestParseErrors(t *testing.T) {
	tag := uint64(stddwarf.TagCompileUnit)
	for _, tc := range []struct {
		name string
		data []byte
		kind dwarf.ErrorKind
	}{
		{"duplicate", append(dwarfbuilder.AbbrevTable([]uint64{1, tag, 0}, []uint64{1, tag, 0}), 0), dwarf.DuplicateCode},
		{"tag zero", append(dwarfbuilder.AbbrevTable([]uint64{1, 0, 0}), 0), dwarf.MalformedAbbreviation},
		{"children flag", append(dwarfbuilder.AbbrevTable([]uint64{1, tag, 2}), 0), dwarf.MalformedAbbreviation},
		{"half terminator", []byte{1, byte(tag), 0, 0x03, 0x00, 0, 0, 0}, dwarf.MalformedAbbreviation},
		{"missing terminator", []byte{1, byte(tag), 0, 0x03, 0x08}, dwarf.MalformedAbbreviation},
		{"empty", []byte{}, dwarf.MalformedAbbreviation},
		{"wide tag", append(dwarfbuilder.AbbrevTable([]uint64{1, 1 << 32, 0}), 0), dwarf.MalformedAbbreviation},
		{"wide attribute", append(dwarfbuilder.AbbrevTable([]uint64{1, tag, 0, 1<<32 | 3, uint64(dwarf.FormString)}), 0), dwarf.MalformedAbbreviation},
		{"wide form", append(dwarfbuilder.AbbrevTable([]uint64{1, tag, 0, 3, 0x10000 | uint64(dwarf.FormString)}), 0), dwarf.MalformedAbbreviation},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := abbrev.Parse(section(tc.data), 0)
			require.Error(t, err)
			kind, ok := dwarf.KindOf(err)
			require.True(t, ok, "not a decode error: %v", err)
			require.Equal(t, tc.kind, kind, "%v", err)
			require.True(t, kind.Structural())
		})
	}
}

func TestParseTruncatedWrapsEnd(t *testing.T) {
	_, err := abbrev.Parse(section([]byte{1, 0x11}), 0)
	require.True(t, errors.Is(err, dwarf.ErrMalformedAbbreviation))
	require.True(t, errors.Is(err, dwarf.ErrUnexpectedEnd))
}

func TestParseWideForm(t *testing.T) {
	// the low 16 bits are DW_FORM_string
	sec := section(dwarfbuilder.AbbrevTable(
		[]uint64{1, uint64(stddwarf.TagVariable), 0, uint64(stddwarf.AttrName), 0x10008},
	), []byte{0})
	_, err := abbrev.Parse(sec, 0)
	require.True(t, errors.Is(err, dwarf.ErrMalformedAbbreviation), "%v", err)
	require.True(t, errors.Is(err, dwarf.ErrUnknownForm), "%v", err)
}
