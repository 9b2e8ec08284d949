package dwarf

import "fmt"

// Form represents a DWARF form kind (see Figure 20, page 160 and following,
// DWARF v4)
type Form uint16

const (
	FormAddr        Form = 0x01 // address
	FormBlock2      Form = 0x03 // block
	FormBlock4      Form = 0x04 // block
	FormData2       Form = 0x05 // constant
	FormData4       Form = 0x06 // constant
	FormData8       Form = 0x07 // constant
	FormString      Form = 0x08 // string
	FormBlock       Form = 0x09 // block
	FormBlock1      Form = 0x0a // block
	FormData1       Form = 0x0b // constant
	FormFlag        Form = 0x0c // flag
	FormSdata       Form = 0x0d // constant
	FormStrp        Form = 0x0e // string
	FormUdata       Form = 0x0f // constant
	FormRefAddr     Form = 0x10 // reference
	FormRef1        Form = 0x11 // reference
	FormRef2        Form = 0x12 // reference
	FormRef4        Form = 0x13 // reference
	FormRef8        Form = 0x14 // reference
	FormRefUdata    Form = 0x15 // reference
	FormIndirect    Form = 0x16 // (see Section 7.5.3)
	FormSecOffset   Form = 0x17 // lineptr, loclistptr, macptr, rangelistptr
	FormExprloc     Form = 0x18 // exprloc
	FormFlagPresent Form = 0x19 // flag
	FormRefSig8     Form = 0x20 // reference
)

var formNames = map[Form]string{
	FormAddr:        "DW_FORM_addr",
	FormBlock2:      "DW_FORM_block2",
	FormBlock4:      "DW_FORM_block4",
	FormData2:       "DW_FORM_data2",
	FormData4:       "DW_FORM_data4",
	FormData8:       "DW_FORM_data8",
	FormString:      "DW_FORM_string",
	FormBlock:       "DW_FORM_block",
	FormBlock1:      "DW_FORM_block1",
	FormData1:       "DW_FORM_data1",
	FormFlag:        "DW_FORM_flag",
	FormSdata:       "DW_FORM_sdata",
	FormStrp:        "DW_FORM_strp",
	FormUdata:       "DW_FORM_udata",
	FormRefAddr:     "DW_FORM_ref_addr",
	FormRef1:        "DW_FORM_ref1",
	FormRef2:        "DW_FORM_ref2",
	FormRef4:        "DW_FORM_ref4",
	FormRef8:        "DW_FORM_ref8",
	FormRefUdata:    "DW_FORM_ref_udata",
	FormIndirect:    "DW_FORM_indirect",
	FormSecOffset:   "DW_FORM_sec_offset",
	FormExprloc:     "DW_FORM_exprloc",
	FormFlagPresent: "DW_FORM_flag_present",
	FormRefSig8:     "DW_FORM_ref_sig8",
}

func (f Form) String() string {
	if s, ok := formNames[f]; ok {
		return s
	}
	return fmt.Sprintf("DW_FORM_%#x", uint16(f))
}
