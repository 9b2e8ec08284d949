// Package attr decodes DWARF attribute values.
//
// Every form decodes into a Value, a tagged union whose Class says which
// accessor is meaningful. Strings and blocks alias the section the value
// was read from.
package attr

import (
	"fmt"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

// Class is the encoding family of a Value.
type Class uint8

const (
	ClassUnknown Class = iota
	// ClassConstant is an unsigned constant (DW_FORM_data1/2/4/8, DW_FORM_udata).
	ClassConstant
	// ClassSigned is a signed constant (DW_FORM_sdata).
	ClassSigned
	// ClassAddress is a target address (DW_FORM_addr).
	ClassAddress
	// ClassFlag is a boolean (DW_FORM_flag, DW_FORM_flag_present).
	ClassFlag
	// ClassBlock is a length prefixed block of bytes (DW_FORM_block*, DW_FORM_exprloc).
	ClassBlock
	// ClassString is a string stored inline (DW_FORM_string).
	ClassString
	// ClassStringOffset is an offset into .debug_str (DW_FORM_strp).
	ClassStringOffset
	// ClassSecOffset is an offset into another section (DW_FORM_sec_offset).
	ClassSecOffset
	// ClassReference is a unit relative entry reference, already rebased to
	// a .debug_info offset (DW_FORM_ref1/2/4/8, DW_FORM_ref_udata).
	ClassReference
	// ClassReferenceAddr is a .debug_info offset (DW_FORM_ref_addr).
	ClassReferenceAddr
	// ClassReferenceSig is a type unit signature (DW_FORM_ref_sig8).
	ClassReferenceSig
)

var classNames = [...]string{
	ClassUnknown:       "unknown",
	ClassConstant:      "constant",
	ClassSigned:        "signed",
	ClassAddress:       "address",
	ClassFlag:          "flag",
	ClassBlock:         "block",
	ClassString:        "string",
	ClassStringOffset:  "strp",
	ClassSecOffset:     "secoffset",
	ClassReference:     "reference",
	ClassReferenceAddr: "refaddr",
	ClassReferenceSig:  "refsig",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Value is a decoded attribute value.
type Value struct {
	// Form is the form the value was encoded with, after resolving
	// DW_FORM_indirect.
	Form  dwarf.Form
	Class Class

	u uint64
	i int64
	b []byte
}

// Uint returns the value of constant, address, flag, offset and reference
// classes. Signed constants are returned reinterpreted as unsigned.
func (v Value) Uint() uint64 {
	if v.Class == ClassSigned {
		return uint64(v.i)
	}
	return v.u
}

// Int returns the value of a signed constant, or any other integer value
// reinterpreted as signed.
func (v Value) Int() int64 {
	if v.Class == ClassSigned {
		return v.i
	}
	return int64(v.u)
}

// Bool returns the value of a flag.
func (v Value) Bool() bool {
	return v.Class == ClassFlag && v.u != 0
}

// Bytes returns the contents of a block or inline string. The result
// aliases the section data.
func (v Value) Bytes() []byte {
	return v.b
}

// Str returns the contents of an inline string.
func (v Value) Str() (string, bool) {
	if v.Class != ClassString {
		return "", false
	}
	return string(v.b), true
}

// Offset returns the .debug_info offset of a reference.
func (v Value) Offset() (dwarf.Offset, bool) {
	switch v.Class {
	case ClassReference, ClassReferenceAddr:
		return dwarf.Offset(v.u), true
	}
	return 0, false
}

// LineOffset returns the .debug_line offset stored in a DW_AT_stmt_list
// value. DWARF 2 and 3 producers have no DW_FORM_sec_offset and use
// DW_FORM_data4 or DW_FORM_data8 instead.
func (v Value) LineOffset() (uint64, bool) {
	switch v.Form {
	case dwarf.FormSecOffset, dwarf.FormData4, dwarf.FormData8:
		return v.u, true
	}
	return 0, false
}

// StringResolver resolves DW_FORM_strp offsets into .debug_str.
// *dwarf.Section implements it.
type StringResolver interface {
	StringAt(off uint64) ([]byte, error)
}

// Resolve returns the contents of a string value, looking up indirect
// strings with strs.
func (v Value) Resolve(strs StringResolver) ([]byte, error) {
	switch v.Class {
	case ClassString:
		return v.b, nil
	case ClassStringOffset:
		if strs == nil {
			return nil, fmt.Errorf("no string table to resolve offset %#x", v.u)
		}
		return strs.StringAt(v.u)
	}
	return nil, fmt.Errorf("%s value is not a string", v.Form)
}

func (v Value) String() string {
	switch v.Class {
	case ClassConstant, ClassSecOffset, ClassStringOffset, ClassReferenceSig:
		return fmt.Sprintf("%#x", v.u)
	case ClassSigned:
		return fmt.Sprintf("%d", v.i)
	case ClassAddress:
		return fmt.Sprintf("%#x", v.u)
	case ClassFlag:
		return fmt.Sprintf("%t", v.u != 0)
	case ClassBlock:
		return fmt.Sprintf("% x", v.b)
	case ClassString:
		return fmt.Sprintf("%q", v.b)
	case ClassReference, ClassReferenceAddr:
		return fmt.Sprintf("<%#x>", v.u)
	}
	return "<unknown>"
}
