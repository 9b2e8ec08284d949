package dwarfbuilder

import (
	"bytes"
	stddwarf "debug/dwarf"
	"fmt"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
	"github.com/go-delve/dwarfscan/pkg/dwarf/leb128"
)

// Address represents a machine address, encoded as DW_FORM_addr.
type Address uint64

// StrOffset is an offset into debug_str, encoded as DW_FORM_strp.
type StrOffset uint32

// SecOffset is an offset into another section, encoded as
// DW_FORM_sec_offset.
type SecOffset uint32

// Ref is a unit relative reference, encoded as DW_FORM_ref4.
type Ref uint32

// Udata is encoded as DW_FORM_udata.
type Udata uint64

// Exprloc is a DWARF expression encoded as DW_FORM_exprloc.
type Exprloc []byte

// FlagPresent is encoded as DW_FORM_flag_present and takes no space in
// debug_info.
type FlagPresent struct{}

// Indirect is encoded as DW_FORM_indirect followed by Val encoded with
// Form.
type Indirect struct {
	Form dwarf.Form
	Val  interface{}
}

type tagDescr struct {
	tag stddwarf.Tag

	attr     []stddwarf.Attr
	form     []dwarf.Form
	children bool
}

type tagState struct {
	off     dwarf.Offset
	sibling int // position of the DW_AT_sibling value or -1
	tagDescr
}

// TagOpen starts a new DIE, call TagClose after adding all attributes and
// children elements. If name is not empty a DW_AT_name attribute is added.
func (b *Builder) TagOpen(tag stddwarf.Tag, name string) dwarf.Offset {
	if !b.inUnit {
		panic("TagOpen outside of a unit")
	}
	if len(b.tagStack) > 0 {
		b.tagStack[len(b.tagStack)-1].children = true
	}
	ts := &tagState{off: dwarf.Offset(b.info.Len()), sibling: -1}
	ts.tag = tag
	b.info.WriteByte(0)
	b.tagStack = append(b.tagStack, ts)
	if name != "" {
		b.Attr(stddwarf.AttrName, name)
	}
	return ts.off
}

// SetHasChildren sets the current DIE as having children (even if none are added).
func (b *Builder) SetHasChildren() {
	if len(b.tagStack) <= 0 {
		panic("SetHasChildren with no open tags")
	}
	b.tagStack[len(b.tagStack)-1].children = true
}

// TagClose closes the current DIE.
func (b *Builder) TagClose() {
	if len(b.tagStack) <= 0 {
		panic("TagClose with no open tags")
	}
	tag := b.tagStack[len(b.tagStack)-1]
	b.info.Bytes()[tag.off] = b.abbrevFor(tag.tagDescr)
	if tag.children {
		b.info.WriteByte(0)
	}
	if tag.sibling >= 0 {
		b.order.PutUint32(b.info.Bytes()[tag.sibling:], uint32(b.info.Len()-b.unitOff))
	}
	b.tagStack = b.tagStack[:len(b.tagStack)-1]
}

// AttrSibling adds a DW_AT_sibling attribute to the current DIE, its value
// is filled in by TagClose.
func (b *Builder) AttrSibling() {
	tag := b.curTag()
	tag.sibling = b.info.Len()
	b.AttrForm(stddwarf.AttrSibling, dwarf.FormRef4, uint32(0))
}

// Attr adds an attribute to the current DIE, the form is chosen from the
// type of val.
func (b *Builder) Attr(attr stddwarf.Attr, val interface{}) {
	var form dwarf.Form
	switch x := val.(type) {
	case string:
		form = dwarf.FormString
	case StrOffset:
		form = dwarf.FormStrp
	case SecOffset:
		form = dwarf.FormSecOffset
	case Ref:
		form = dwarf.FormRef4
	case dwarf.Offset:
		form = dwarf.FormRefAddr
	case Address:
		form = dwarf.FormAddr
	case bool:
		form = dwarf.FormFlag
	case FlagPresent:
		form = dwarf.FormFlagPresent
	case uint8:
		form = dwarf.FormData1
	case uint16:
		form = dwarf.FormData2
	case uint32:
		form = dwarf.FormData4
	case uint64:
		form = dwarf.FormData8
	case Udata:
		form = dwarf.FormUdata
	case int, int64:
		form = dwarf.FormSdata
	case []byte:
		form = dwarf.FormBlock4
	case Exprloc:
		form = dwarf.FormExprloc
	case Indirect:
		form = dwarf.FormIndirect
	default:
		panic(fmt.Sprintf("unknown value type %T", x))
	}
	b.AttrForm(attr, form, val)
}

// AttrForm adds an attribute to the current DIE encoding val with the
// specified form.
func (b *Builder) AttrForm(attr stddwarf.Attr, form dwarf.Form, val interface{}) {
	tag := b.curTag()
	if tag.children {
		panic("Can't add attributes after adding children")
	}
	tag.attr = append(tag.attr, attr)
	tag.form = append(tag.form, form)
	b.writeValue(form, val)
}

func (b *Builder) curTag() *tagState {
	if len(b.tagStack) <= 0 {
		panic("Attr with no open tags")
	}
	return b.tagStack[len(b.tagStack)-1]
}

func (b *Builder) writeValue(form dwarf.Form, val interface{}) {
	out := &b.info
	switch form {
	case dwarf.FormString:
		out.WriteString(val.(string))
		out.WriteByte(0)
	case dwarf.FormAddr:
		b.writeUint(out, b.addrSize, toUint(val))
	case dwarf.FormData1, dwarf.FormRef1, dwarf.FormFlag:
		b.writeUint(out, 1, toUint(val))
	case dwarf.FormData2, dwarf.FormRef2:
		b.writeUint(out, 2, toUint(val))
	case dwarf.FormData4, dwarf.FormRef4, dwarf.FormStrp, dwarf.FormSecOffset:
		b.writeUint(out, 4, toUint(val))
	case dwarf.FormData8, dwarf.FormRef8, dwarf.FormRefSig8:
		b.writeUint(out, 8, toUint(val))
	case dwarf.FormRefAddr:
		if b.version <= 2 {
			b.writeUint(out, b.addrSize, toUint(val))
		} else {
			b.writeUint(out, 4, toUint(val))
		}
	case dwarf.FormUdata, dwarf.FormRefUdata:
		leb128.EncodeUnsigned(out, toUint(val))
	case dwarf.FormSdata:
		leb128.EncodeSigned(out, toInt(val))
	case dwarf.FormFlagPresent:
	case dwarf.FormBlock1, dwarf.FormBlock2, dwarf.FormBlock4, dwarf.FormBlock, dwarf.FormExprloc:
		data := toBytes(val)
		switch form {
		case dwarf.FormBlock1:
			b.writeUint(out, 1, uint64(len(data)))
		case dwarf.FormBlock2:
			b.writeUint(out, 2, uint64(len(data)))
		case dwarf.FormBlock4:
			b.writeUint(out, 4, uint64(len(data)))
		default:
			leb128.EncodeUnsigned(out, uint64(len(data)))
		}
		out.Write(data)
	case dwarf.FormIndirect:
		ind := val.(Indirect)
		leb128.EncodeUnsigned(out, uint64(ind.Form))
		b.writeValue(ind.Form, ind.Val)
	default:
		panic(fmt.Sprintf("can not encode form %v", form))
	}
}

func toUint(val interface{}) uint64 {
	switch x := val.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int:
		return uint64(x)
	case int64:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case Address:
		return uint64(x)
	case StrOffset:
		return uint64(x)
	case SecOffset:
		return uint64(x)
	case Ref:
		return uint64(x)
	case Udata:
		return uint64(x)
	case dwarf.Offset:
		return uint64(x)
	}
	panic(fmt.Sprintf("can not convert %T to an unsigned integer", val))
}

func toInt(val interface{}) int64 {
	switch x := val.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	}
	return int64(toUint(val))
}

func toBytes(val interface{}) []byte {
	switch x := val.(type) {
	case []byte:
		return x
	case Exprloc:
		return x
	}
	panic(fmt.Sprintf("can not convert %T to a block", val))
}

func sameTagDescr(a, b tagDescr) bool {
	if a.tag != b.tag {
		return false
	}
	if len(a.attr) != len(b.attr) {
		return false
	}
	if a.children != b.children {
		return false
	}
	for i := range a.attr {
		if a.attr[i] != b.attr[i] {
			return false
		}
		if a.form[i] != b.form[i] {
			return false
		}
	}
	return true
}

// abbrevFor returns an abbrev for the given entry description. If no abbrev
// for tag already exist a new one is created.
func (b *Builder) abbrevFor(tag tagDescr) byte {
	for abbrev, descr := range b.abbrevs {
		if sameTagDescr(descr, tag) {
			return byte(abbrev + 1)
		}
	}
	if len(b.abbrevs) >= 0x7f {
		panic("too many abbreviations in one unit")
	}
	b.abbrevs = append(b.abbrevs, tag)
	return byte(len(b.abbrevs))
}

func (b *Builder) writeAbbrevTable() {
	abbrev := &b.abbrev
	for i := range b.abbrevs {
		leb128.EncodeUnsigned(abbrev, uint64(i+1))
		leb128.EncodeUnsigned(abbrev, uint64(b.abbrevs[i].tag))
		if b.abbrevs[i].children {
			abbrev.WriteByte(0x01)
		} else {
			abbrev.WriteByte(0x00)
		}
		for j := range b.abbrevs[i].attr {
			leb128.EncodeUnsigned(abbrev, uint64(b.abbrevs[i].attr[j]))
			leb128.EncodeUnsigned(abbrev, uint64(b.abbrevs[i].form[j]))
		}
		leb128.EncodeUnsigned(abbrev, 0)
		leb128.EncodeUnsigned(abbrev, 0)
	}
	abbrev.WriteByte(0)
}

// AbbrevTable encodes a list of raw abbreviation declarations, each one is
// given as code, tag, children and then attribute/form pairs. The table
// terminator is not added.
func AbbrevTable(decls ...[]uint64) []byte {
	var buf bytes.Buffer
	for _, decl := range decls {
		for i, v := range decl {
			if i == 2 {
				buf.WriteByte(byte(v))
				continue
			}
			leb128.EncodeUnsigned(&buf, v)
		}
		buf.Write([]byte{0, 0})
	}
	return buf.Bytes()
}

// AddCompileUnit adds a DW_TAG_compile_unit to debug_info, must call
// TagClose after adding all children.
// Will write DW_AT_name, DW_AT_comp_dir, DW_AT_stmt_list, DW_AT_low_pc and
// DW_AT_high_pc.
func (b *Builder) AddCompileUnit(name, compDir string, stmtList SecOffset, lowpc, highpc uint64) dwarf.Offset {
	r := b.TagOpen(stddwarf.TagCompileUnit, name)
	b.Attr(stddwarf.AttrCompDir, compDir)
	if b.version < 4 {
		b.Attr(stddwarf.AttrStmtList, uint32(stmtList))
	} else {
		b.Attr(stddwarf.AttrStmtList, stmtList)
	}
	b.Attr(stddwarf.AttrLowpc, Address(lowpc))
	b.Attr(stddwarf.AttrHighpc, Address(highpc))
	return r
}

// AddSubprogram adds a subprogram declaration to debug_info, must call
// TagClose after adding all local variables and parameters.
// Will write an abbrev corresponding to a DW_TAG_subprogram, followed by a
// DW_AT_lowpc and a DW_AT_highpc.
func (b *Builder) AddSubprogram(fnname string, lowpc, highpc uint64) dwarf.Offset {
	r := b.TagOpen(stddwarf.TagSubprogram, fnname)
	b.Attr(stddwarf.AttrLowpc, Address(lowpc))
	b.Attr(stddwarf.AttrHighpc, Address(highpc))
	return r
}

// AddVariable adds a new variable entry to debug_info.
// Will write a DW_TAG_variable, followed by a DW_AT_type and a
// DW_AT_location.
func (b *Builder) AddVariable(varname string, typ Ref, loc []byte) dwarf.Offset {
	r := b.TagOpen(stddwarf.TagVariable, varname)
	b.Attr(stddwarf.AttrType, typ)
	b.Attr(stddwarf.AttrLocation, Exprloc(loc))
	b.TagClose()
	return r
}

// AddBaseType adds a new base type entry to debug_info.
// Will write a DW_TAG_base_type, followed by a DW_AT_encoding and a
// DW_AT_byte_size.
func (b *Builder) AddBaseType(typename string, encoding uint8, byteSz uint16) dwarf.Offset {
	r := b.TagOpen(stddwarf.TagBaseType, typename)
	b.Attr(stddwarf.AttrEncoding, encoding)
	b.Attr(stddwarf.AttrByteSize, byteSz)
	b.TagClose()
	return r
}

// RefTo converts an absolute debug_info offset returned by TagOpen into a
// reference relative to the current unit.
func (b *Builder) RefTo(off dwarf.Offset) Ref {
	return Ref(int(off) - b.unitOff)
}
