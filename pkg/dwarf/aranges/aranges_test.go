package aranges

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/dwarfbuilder"
)

func buildSection(t *testing.T, addrSize int, sets ...dwarfbuilder.ArangeSet) *dwarf.Section {
	t.Helper()
	b := dwarfbuilder.NewWith(binary.LittleEndian, addrSize, 4)
	for _, set := range sets {
		b.AddArangeSet(set)
	}
	secs, err := b.Build()
	require.NoError(t, err)
	return secs.Section(dwarf.ArangesSection)
}

func TestReadSets(t *testing.T) {
	sec := buildSection(t, 8,
		dwarfbuilder.ArangeSet{UnitOffset: 0, Tuples: []dwarfbuilder.ArangeTuple{
			{Address: 0x1000, Length: 0x100},
			{Address: 0x2000, Length: 0x10},
		}},
		dwarfbuilder.ArangeSet{UnitOffset: 0x80, Tuples: []dwarfbuilder.ArangeTuple{
			{Address: 0x3000, Length: 0x20},
		}},
		dwarfbuilder.ArangeSet{UnitOffset: 0x100},
	)

	rdr := NewReader(sec)
	var got []Entry
	for {
		e, err := rdr.Next()
		require.NoError(t, err)
		if e == nil {
			break
		}
		require.NotEqual(t, Entry{UnitOffset: e.UnitOffset}, *e, "terminator returned")
		require.Equal(t, e.UnitOffset, rdr.Set().UnitOffset)
		got = append(got, *e)
	}
	require.Equal(t, []Entry{
		{UnitOffset: 0, Address: 0x1000, Length: 0x100},
		{UnitOffset: 0, Address: 0x2000, Length: 0x10},
		{UnitOffset: 0x80, Address: 0x3000, Length: 0x20},
	}, got)
}

func TestTuplePadding(t *testing.T) {
	for _, tc := range []struct {
		addrSize, segSize int
		firstTuple        uint64
	}{
		{8, 0, 16},
		{4, 0, 16},
		{2, 0, 12},
		{8, 4, 20},
		{8, 8, 24},
		{4, 1, 18},
	} {
		sec := buildSection(t, tc.addrSize, dwarfbuilder.ArangeSet{
			UnitOffset:  0x40,
			SegmentSize: tc.segSize,
			Tuples:      []dwarfbuilder.ArangeTuple{{Segment: 1, Address: 0x10, Length: 0x20}},
		})
		set, err := ParseSet(sec, 0)
		require.NoError(t, err)
		require.Equal(t, tc.addrSize, set.AddrSize)
		require.Equal(t, tc.segSize, set.SegmentSize)
		require.Equal(t, tc.firstTuple, set.tuples(sec).Off(), "addr %d seg %d", tc.addrSize, tc.segSize)

		entries, err := ReadAll(sec)
		require.NoError(t, err)
		expected := Entry{UnitOffset: 0x40, Address: 0x10, Length: 0x20}
		if tc.segSize > 0 {
			expected.Segment = 1
		}
		require.Equal(t, []Entry{expected}, entries)
	}
}

func TestHeaderErrors(t *testing.T) {
	good := buildSection(t, 8, dwarfbuilder.ArangeSet{Tuples: []dwarfbuilder.ArangeTuple{{Address: 1, Length: 1}}}).Data
	patch := func(off int, b byte) []byte {
		data := append([]byte{}, good...)
		data[off] = b
		return data
	}
	for _, tc := range []struct {
		name string
		data []byte
		kind dwarf.ErrorKind
	}{
		{"version", patch(4, 3), dwarf.MalformedHeader},
		{"address size", patch(10, 3), dwarf.MalformedHeader},
		{"segment size", patch(11, 3), dwarf.MalformedHeader},
		{"length", good[:len(good)-1], dwarf.MalformedHeader},
		{"64-bit", []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0}, dwarf.UnsupportedFormat},
		{"short", []byte{2, 0, 0, 0, 2, 0}, dwarf.MalformedHeader},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rdr := NewReader(dwarf.NewSection(dwarf.ArangesSection, tc.data, binary.LittleEndian))
			e, err := rdr.Next()
			require.Nil(t, e)
			kind, ok := dwarf.KindOf(err)
			require.True(t, ok, "%v", err)
			require.Equal(t, tc.kind, kind, "%v", err)
			require.True(t, kind.Structural())
		})
	}
}

func TestTruncatedTuple(t *testing.T) {
	// header + padding + 12 of the 16 bytes of a tuple
	data := make([]byte, 28)
	binary.LittleEndian.PutUint32(data, 24)
	binary.LittleEndian.PutUint16(data[4:], 2)
	data[10] = 8
	data[16] = 1
	_, err := ReadAll(dwarf.NewSection(dwarf.ArangesSection, data, binary.LittleEndian))
	require.True(t, errors.Is(err, dwarf.ErrUnexpectedEnd), "%v", err)
}

func TestIndex(t *testing.T) {
	sec := buildSection(t, 8,
		dwarfbuilder.ArangeSet{UnitOffset: 0, Tuples: []dwarfbuilder.ArangeTuple{
			{Address: 0x2000, Length: 0x10},
			{Address: 0x1000, Length: 0x100},
			{Address: 0x1080, Length: 0x100},
			{Address: 0x5000, Length: 0},
		}},
		dwarfbuilder.ArangeSet{UnitOffset: 0x80, Tuples: []dwarfbuilder.ArangeTuple{
			{Address: 0x3000, Length: 0x20},
			{Address: 0x1180, Length: 0x80},
		}},
	)
	idx, err := NewIndex(sec)
	require.NoError(t, err)

	require.Equal(t, [][2]uint64{{0x1000, 0x1180}, {0x2000, 0x2010}}, idx.Ranges(0))
	require.Equal(t, [][2]uint64{{0x1180, 0x1200}, {0x3000, 0x3020}}, idx.Ranges(0x80))
	require.Equal(t, []uint64{0, 0x80}, idx.Units())

	for _, tc := range []struct {
		pc   uint64
		unit uint64
		ok   bool
	}{
		{0x0fff, 0, false},
		{0x1000, 0, true},
		{0x10ff, 0, true},
		{0x117f, 0, true},
		{0x1180, 0x80, true},
		{0x1200, 0, false},
		{0x2008, 0, true},
		{0x301f, 0x80, true},
		{0x3020, 0, false},
		{0x5000, 0, false},
	} {
		unit, ok := idx.Lookup(tc.pc)
		require.Equal(t, tc.ok, ok, "%#x", tc.pc)
		if ok {
			require.Equal(t, tc.unit, unit, "%#x", tc.pc)
		}
	}
}

func TestNormalizeRanges(t *testing.T) {
	require.Nil(t, normalizeRanges([][2]uint64{{5, 5}, {7, 3}}))
	require.Equal(t, [][2]uint64{{1, 10}}, normalizeRanges([][2]uint64{{4, 10}, {1, 4}, {2, 3}}))
}

func TestIndexOverlappingUnits(t *testing.T) {
	entries := []Entry{{UnitOffset: 0, Address: 0x1000, Length: 0x1000}}
	for i := uint64(0); i < 64; i++ {
		entries = append(entries, Entry{UnitOffset: 0x100 + i, Address: 0x1000 + i*0x10, Length: 0x8})
	}
	entries = append(entries, Entry{UnitOffset: 0x200, Address: 0x4000, Length: 0x10})
	idx := BuildIndex(entries)

	require.Len(t, idx.maxEnd, len(idx.ranges))
	for i := 1; i < len(idx.maxEnd); i++ {
		require.True(t, idx.maxEnd[i] >= idx.maxEnd[i-1])
		require.True(t, idx.maxEnd[i] >= idx.ranges[i].end)
	}

	for _, tc := range []struct {
		pc   uint64
		unit uint64
		ok   bool
	}{
		{0x1004, 0x100, true},
		{0x1008, 0, true},
		{0x13f4, 0x13f, true},
		{0x1ff0, 0, true},
		{0x2000, 0, false},
		{0x3fff, 0, false},
		{0x4008, 0x200, true},
		{0x4010, 0, false},
	} {
		unit, ok := idx.Lookup(tc.pc)
		require.Equal(t, tc.ok, ok, "%#x", tc.pc)
		if ok {
			require.Equal(t, tc.unit, unit, "%#x", tc.pc)
		}
	}
}
