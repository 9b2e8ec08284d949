package debuginfo

import (
	stddwarf "debug/dwarf"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/dwarfbuilder"
)

// buildProgram returns the sections of a program made of two units:
// /src/main.c covering [0x1000, 0x1020) and /src/lib/util.c covering
// [0x2000, 0x2010).
func buildProgram(t *testing.T, withAranges bool) Sections {
	b := dwarfbuilder.New()

	lp := b.BeginLineProgram(dwarfbuilder.DefaultLineConfig(
		dwarfbuilder.LineFile{Name: "main.c"},
		dwarfbuilder.LineFile{Name: "defs.h"},
	))
	// 0x1000 main.c:5, 0x1008 main.c:6, 0x1010 defs.h:16
	lp.SetAddress(0x1000).AdvanceLine(4).Op(1)
	lp.Special(8, 1)
	lp.Op(4, 2).AdvanceLine(9).Special(8, 1)
	lp.Op(2, 16).EndSequence()
	mainLines := lp.End()

	cfg := dwarfbuilder.DefaultLineConfig(dwarfbuilder.LineFile{Name: "util.c", DirIdx: 1})
	cfg.IncludeDirs = []string{"lib"}
	lp = b.BeginLineProgram(cfg)
	// 0x2000 util.c:100
	lp.SetAddress(0x2000).AdvanceLine(99).Op(1)
	lp.Op(2, 16).EndSequence()
	utilLines := lp.End()

	mainUnit := b.BeginUnit()
	b.AddCompileUnit("main.c", "/src", mainLines, 0x1000, 0x1020)
	b.AddSubprogram("main", 0x1000, 0x1020)
	b.TagClose()
	b.TagClose()
	require.NoError(t, b.EndUnit())

	utilUnit := b.BeginUnit()
	b.TagOpen(stddwarf.TagCompileUnit, "lib/util.c")
	b.Attr(stddwarf.AttrCompDir, b.Str("/src"))
	b.Attr(stddwarf.AttrStmtList, dwarfbuilder.SecOffset(utilLines))
	b.Attr(stddwarf.AttrLowpc, dwarfbuilder.Address(0x2000))
	b.Attr(stddwarf.AttrHighpc, uint32(0x10))
	b.TagClose()
	require.NoError(t, b.EndUnit())

	// a unit without a line program
	b.BeginUnit()
	b.TagOpen(stddwarf.TagPartialUnit, "partial")
	b.TagClose()

	if withAranges {
		b.AddArangeSet(dwarfbuilder.ArangeSet{UnitOffset: mainUnit, Tuples: []dwarfbuilder.ArangeTuple{{Address: 0x1000, Length: 0x20}}})
		b.AddArangeSet(dwarfbuilder.ArangeSet{UnitOffset: utilUnit, Tuples: []dwarfbuilder.ArangeTuple{{Address: 0x2000, Length: 0x10}}})
	}

	secs, err := b.Build()
	require.NoError(t, err)
	return Sections{
		Info:    secs.Section(dwarf.InfoSection),
		Abbrev:  secs.Section(dwarf.AbbrevSection),
		Line:    secs.Section(dwarf.LineSection),
		Aranges: secs.Section(dwarf.ArangesSection),
		Str:     secs.Section(dwarf.StrSection),
	}
}

func newData(t *testing.T, withAranges bool) *Data {
	d, err := New(buildProgram(t, withAranges), Config{})
	require.NoError(t, err)
	return d
}

func TestPCToLine(t *testing.T) {
	for _, withAranges := range []bool{true, false} {
		d := newData(t, withAranges)
		for _, tc := range []struct {
			pc   uint64
			file string
			line int
			ok   bool
		}{
			{0x1000, "/src/main.c", 5, true},
			{0x1007, "/src/main.c", 5, true},
			{0x1008, "/src/main.c", 6, true},
			{0x1011, "/src/defs.h", 16, true},
			{0x1020, "", 0, false},
			{0x2004, "/src/lib/util.c", 100, true},
			{0x4000, "", 0, false},
		} {
			loc, ok, err := d.PCToLine(tc.pc)
			require.NoError(t, err)
			require.Equal(t, tc.ok, ok, "%#x aranges=%v", tc.pc, withAranges)
			if ok {
				require.Equal(t, tc.file, loc.File, "%#x", tc.pc)
				require.Equal(t, tc.line, loc.Line, "%#x", tc.pc)
			}
		}

		_, err := d.UnitForPC(0x4000)
		require.True(t, errors.Is(err, ErrNoUnit))
	}
}

func TestCaches(t *testing.T) {
	d := newData(t, true)
	u, err := d.Units().Next()
	require.NoError(t, err)

	tbl1, err := d.Abbrevs(u)
	require.NoError(t, err)
	tbl2, err := d.Abbrevs(u)
	require.NoError(t, err)
	require.Same(t, tbl1, tbl2)

	h1, err := d.LineProgram(u)
	require.NoError(t, err)
	h2, err := d.LineProgram(u)
	require.NoError(t, err)
	require.Same(t, h1, h2)
	require.Equal(t, "/src", h1.IncludeDirs[0])
}

func TestLineProgramMissing(t *testing.T) {
	d := newData(t, true)
	units := d.Units()
	for i := 0; i < 3; i++ {
		u, err := units.Next()
		require.NoError(t, err)
		h, err := d.LineProgram(u)
		require.NoError(t, err)
		if i == 2 {
			require.Nil(t, h)
			root, err := d.Root(u)
			require.NoError(t, err)
			name, ok := d.String(root, stddwarf.AttrName)
			require.True(t, ok)
			require.Equal(t, "partial", name)
		} else {
			require.NotNil(t, h)
		}
	}
}

func TestFiles(t *testing.T) {
	d := newData(t, true)
	files, err := d.Files()
	require.NoError(t, err)
	require.Equal(t, []string{"/src/defs.h", "/src/lib/util.c", "/src/main.c"}, files)

	files, err = d.FindFiles("/src/lib")
	require.NoError(t, err)
	require.Equal(t, []string{"/src/lib/util.c"}, files)

	files, err = d.FindFiles("/nope")
	require.NoError(t, err)
	require.Empty(t, files)

	files, err = d.FuzzyFindFiles("util")
	require.NoError(t, err)
	require.Equal(t, []string{"/src/lib/util.c"}, files)

	off, ok, err := d.FileUnit("/src/defs.h")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), off)
}

func TestConcurrentQueries(t *testing.T) {
	d := newData(t, false)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pc := uint64(0x1000)
			if i%2 == 1 {
				pc = 0x2000
			}
			_, ok, err := d.PCToLine(pc)
			if err == nil && !ok {
				err = errors.New("address not found")
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New(Sections{}, Config{})
	require.Error(t, err)
}
