package attr

import (
	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

// Context is the per-unit information some forms need to be decoded.
type Context struct {
	// Version of the unit, DW_FORM_ref_addr is address sized in version 2
	// and offset sized afterwards.
	Version uint16
	// AddrSize is the size of a target address in bytes.
	AddrSize int
	// UnitOffset is the .debug_info offset of the unit header, unit
	// relative references are rebased on it.
	UnitOffset uint64
	// UnitEnd is the .debug_info offset one past the end of the unit.
	UnitEnd uint64
}

// Decode decodes one value of form at the position of buf. It returns the
// value and the number of bytes consumed.
func Decode(form dwarf.Form, buf *dwarf.Buf, ctx Context) (Value, int, error) {
	start := buf.Off()
	v, err := decode(form, buf, ctx, false)
	if err != nil {
		// leave the cursor at the start of the value
		buf.Seek(start)
		return Value{}, 0, err
	}
	return v, int(buf.Off() - start), nil
}

func decode(form dwarf.Form, buf *dwarf.Buf, ctx Context, indirect bool) (Value, error) {
	off := buf.Off()
	v := Value{Form: form}
	var err error

	switch form {
	case dwarf.FormAddr:
		v.Class = ClassAddress
		v.u, err = buf.Addr(ctx.AddrSize)

	case dwarf.FormData1, dwarf.FormData2, dwarf.FormData4, dwarf.FormData8:
		v.Class = ClassConstant
		v.u, err = buf.Uint(dataSize(form))

	case dwarf.FormUdata:
		v.Class = ClassConstant
		v.u, err = buf.Uleb()

	case dwarf.FormSdata:
		v.Class = ClassSigned
		v.i, err = buf.Sleb()

	case dwarf.FormFlag:
		var f uint8
		f, err = buf.Uint8()
		v.Class = ClassFlag
		if f != 0 {
			v.u = 1
		}

	case dwarf.FormFlagPresent:
		// implicit, takes no space
		v.Class = ClassFlag
		v.u = 1

	case dwarf.FormBlock1, dwarf.FormBlock2, dwarf.FormBlock4, dwarf.FormBlock, dwarf.FormExprloc:
		var n uint64
		switch form {
		case dwarf.FormBlock1:
			n, err = buf.Uint(1)
		case dwarf.FormBlock2:
			n, err = buf.Uint(2)
		case dwarf.FormBlock4:
			n, err = buf.Uint(4)
		default:
			n, err = buf.Uleb()
		}
		if err != nil {
			return v, err
		}
		if n > uint64(buf.Len()) {
			return v, dwarf.Errorf(dwarf.UnexpectedEnd, buf.Name(), off, "%s of %d bytes, %d left", form, n, buf.Len())
		}
		v.Class = ClassBlock
		v.b, err = buf.Bytes(int(n))

	case dwarf.FormString:
		v.Class = ClassString
		v.b, err = buf.CString()

	case dwarf.FormStrp:
		v.Class = ClassStringOffset
		v.u, err = buf.Uint(4)

	case dwarf.FormSecOffset:
		v.Class = ClassSecOffset
		v.u, err = buf.Uint(4)

	case dwarf.FormRef1, dwarf.FormRef2, dwarf.FormRef4, dwarf.FormRef8, dwarf.FormRefUdata:
		var rel uint64
		if form == dwarf.FormRefUdata {
			rel, err = buf.Uleb()
		} else {
			rel, err = buf.Uint(refSize(form))
		}
		if err != nil {
			return v, err
		}
		v.Class = ClassReference
		v.u = ctx.UnitOffset + rel
		first := ctx.UnitOffset + dwarf.UnitHeaderSize
		if ctx.UnitEnd != 0 && (rel < dwarf.UnitHeaderSize || v.u < first || v.u >= ctx.UnitEnd) {
			return v, dwarf.Errorf(dwarf.MalformedEntry, buf.Name(), off, "%s %#x points outside of the entries of unit [%#x, %#x)", form, rel, first, ctx.UnitEnd)
		}

	case dwarf.FormRefAddr:
		v.Class = ClassReferenceAddr
		if ctx.Version <= 2 {
			v.u, err = buf.Addr(ctx.AddrSize)
		} else {
			v.u, err = buf.Uint(4)
		}

	case dwarf.FormRefSig8:
		v.Class = ClassReferenceSig
		v.u, err = buf.Uint64()

	case dwarf.FormIndirect:
		if indirect {
			return v, dwarf.Errorf(dwarf.InvalidIndirection, buf.Name(), off, "DW_FORM_indirect resolves to DW_FORM_indirect")
		}
		var f uint64
		f, err = buf.Uleb()
		if err != nil {
			return v, err
		}
		if f > dwarf.MaxForm {
			return v, dwarf.Errorf(dwarf.UnknownForm, buf.Name(), off, "indirect form %#x", f)
		}
		return decode(dwarf.Form(f), buf, ctx, true)

	default:
		return v, dwarf.Errorf(dwarf.UnknownForm, buf.Name(), off, "%s", form)
	}

	return v, err
}

func dataSize(form dwarf.Form) int {
	switch form {
	case dwarf.FormData1:
		return 1
	case dwarf.FormData2:
		return 2
	case dwarf.FormData4:
		return 4
	}
	return 8
}

func refSize(form dwarf.Form) int {
	switch form {
	case dwarf.FormRef1:
		return 1
	case dwarf.FormRef2:
		return 2
	case dwarf.FormRef4:
		return 4
	}
	return 8
}
