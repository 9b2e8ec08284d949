package cmds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/aranges"
	"github.com/go-delve/dwarfscan/pkg/dwarf/attr"
	"github.com/go-delve/dwarfscan/pkg/dwarf/debuginfo"
	"github.com/go-delve/dwarfscan/pkg/dwarf/reader"
)

// dumpInfo prints the entries of every unit, or only of the unit at
// unitOff if it is not negative. Entries deeper than maxDepth are not
// printed when maxDepth is not negative.
func dumpInfo(p *printer, d *debuginfo.Data, unitOff int64, maxDepth int) error {
	units := d.Units()
	if unitOff >= 0 {
		units.Seek(uint64(unitOff))
	}
	for {
		u, err := units.Next()
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		p.printf("unit %#x: version %d, abbrev_offset %#x, address_size %d, length %#x\n", u.Offset, u.Version, u.AbbrevOffset, u.AddrSize, u.Length)
		if err := dumpUnit(p, d, u, maxDepth); err != nil {
			return err
		}
		if unitOff >= 0 {
			return nil
		}
	}
}

func dumpUnit(p *printer, d *debuginfo.Data, u *reader.Unit, maxDepth int) error {
	c, err := d.Entries(u)
	if err != nil {
		return err
	}
	strs := d.Sections().Str
	for {
		e, err := c.Next()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		indent := strings.Repeat("  ", e.Depth+1)
		p.printf("%s<%#x> %s\n", indent, e.Offset, p.tag(e.Tag))
		for _, f := range e.Fields {
			p.printf("%s  %s %s\n", indent, p.attr(f.Attr), formatValue(f.Val, strs))
		}
		if maxDepth >= 0 && e.Depth >= maxDepth && e.Children {
			if err := c.SkipChildren(); err != nil {
				return err
			}
		}
	}
}

func formatValue(v attr.Value, strs *dwarf.Section) string {
	if v.Class == attr.ClassStringOffset && strs.Len() > 0 {
		s, err := v.Resolve(strs)
		if err != nil {
			return fmt.Sprintf("<%s: %v>", v, err)
		}
		return strconv.Quote(string(s))
	}
	return v.String()
}

// dumpLines prints every row of every unit's line program.
func dumpLines(p *printer, d *debuginfo.Data) error {
	units := d.Units()
	for {
		u, err := units.Next()
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}
		h, err := d.LineProgram(u)
		if err != nil {
			return err
		}
		if h == nil {
			continue
		}
		p.printf("line program %#x (unit %#x): version %d, %d files, opcodes at %#x\n", h.Offset, u.Offset, h.Version, len(h.FileNames), h.ProgramOffset())
		sm := h.NewStateMachine()
		for {
			row, err := sm.NextRow()
			if err != nil {
				return err
			}
			if row == nil {
				break
			}
			file := "??"
			if fe := sm.File(row.File); fe != nil {
				file = p.path(fe.Path)
			}
			var flags []string
			if row.IsStmt {
				flags = append(flags, "is_stmt")
			}
			if row.BasicBlock {
				flags = append(flags, "basic_block")
			}
			if row.PrologueEnd {
				flags = append(flags, "prologue_end")
			}
			if row.EpilogueBegin {
				flags = append(flags, "epilogue_begin")
			}
			if row.EndSequence {
				flags = append(flags, "end_sequence")
			}
			p.printf("  %#016x %s:%d:%d %s\n", row.Address, file, row.Line, row.Column, strings.Join(flags, " "))
		}
	}
}

// dumpAranges prints every address range entry.
func dumpAranges(p *printer, d *debuginfo.Data) error {
	sec := d.Sections().Aranges
	if sec.Len() == 0 {
		p.printf("no address range table\n")
		return nil
	}
	r := aranges.NewReader(sec)
	var last *aranges.Set
	for {
		e, err := r.Next()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		if set := r.Set(); set != last {
			last = set
			p.printf("set %#x: unit %#x, address_size %d, segment_size %d\n", set.Offset, set.UnitOffset, set.AddrSize, set.SegmentSize)
		}
		p.printf("  [%#016x, %#016x)\n", e.Address, e.End())
	}
}

// addr2line prints the source position of every address in addrs.
func addr2line(p *printer, d *debuginfo.Data, addrs []string) error {
	for _, s := range addrs {
		pc, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q: %v", s, err)
		}
		loc, ok, err := d.PCToLine(pc)
		switch {
		case err != nil:
			p.errorf("%#x: %v", pc, err)
		case !ok:
			p.printf("%#x: ??:0\n", pc)
		default:
			p.printf("%#x: %s:%d\n", pc, p.path(loc.File), loc.Line)
		}
	}
	return nil
}

// listFiles prints the source files of d starting with prefix.
func listFiles(p *printer, d *debuginfo.Data, prefix string) error {
	var files []string
	var err error
	if prefix == "" {
		files, err = d.Files()
	} else {
		files, err = d.FindFiles(prefix)
	}
	if err != nil {
		return err
	}
	for _, f := range files {
		p.printf("%s\n", p.path(f))
	}
	return nil
}
