package dwarf

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a decoding failure.
type ErrorKind uint8

const (
	// UnexpectedEnd means a read would go past the end of the buffer.
	UnexpectedEnd ErrorKind = iota + 1
	// VarintOverflow means a LEB128 value does not fit in 64 bits.
	VarintOverflow
	// DuplicateCode means an abbreviation table declares the same code twice.
	DuplicateCode
	// MalformedAbbreviation means an abbreviation declaration is inconsistent.
	MalformedAbbreviation
	// UnsupportedFormat is returned for 64-bit DWARF and DWARF 5 layouts.
	UnsupportedFormat
	// UnknownVersion means a header declares a version this package does not know.
	UnknownVersion
	// LengthOverflow means a declared length exceeds the bytes available.
	LengthOverflow
	// UnknownAbbreviationCode means an entry references a code missing from its unit's table.
	UnknownAbbreviationCode
	// MalformedEntry means an entry's attribute values are internally inconsistent.
	MalformedEntry
	// UnknownForm means an attribute uses a form code this package does not know.
	UnknownForm
	// InvalidIndirection means DW_FORM_indirect resolved to DW_FORM_indirect again.
	InvalidIndirection
	// MalformedHeader means a line program or aranges header is inconsistent.
	MalformedHeader
	// MalformedOpcode means a line program opcode cannot be decoded.
	MalformedOpcode
)

var kindNames = [...]string{
	UnexpectedEnd:           "unexpected end of data",
	VarintOverflow:          "varint overflow",
	DuplicateCode:           "duplicate abbreviation code",
	MalformedAbbreviation:   "malformed abbreviation",
	UnsupportedFormat:       "unsupported format",
	UnknownVersion:          "unknown version",
	LengthOverflow:          "length overflow",
	UnknownAbbreviationCode: "unknown abbreviation code",
	MalformedEntry:          "malformed entry",
	UnknownForm:             "unknown form",
	InvalidIndirection:      "invalid form indirection",
	MalformedHeader:         "malformed header",
	MalformedOpcode:         "malformed opcode",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Structural returns true for errors found in headers or abbreviation
// tables. After a structural error nothing else in the same unit can be
// trusted; the other kinds are reported where a single value failed to
// decode.
func (k ErrorKind) Structural() bool {
	switch k {
	case DuplicateCode, MalformedAbbreviation, UnsupportedFormat, UnknownVersion, LengthOverflow, MalformedHeader:
		return true
	}
	return false
}

// DecodeError describes a failure to decode DWARF data.
type DecodeError struct {
	Kind    ErrorKind
	Section string
	Offset  uint64
	Err     string
	// Cause is the lower level error that triggered this one, if any.
	Cause error
}

func (e *DecodeError) Error() string {
	s := "dwarf: " + e.Kind.String()
	if e.Section != "" {
		s += fmt.Sprintf(" in %s at %#x", e.Section, e.Offset)
	}
	if e.Err != "" {
		s += ": " + e.Err
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *DecodeError of the same kind, so that
// errors.Is(err, dwarf.ErrUnknownForm) works regardless of position.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf returns a *DecodeError of the given kind.
func Errorf(kind ErrorKind, section string, off uint64, format string, args ...interface{}) error {
	return &DecodeError{Kind: kind, Section: section, Offset: off, Err: fmt.Sprintf(format, args...)}
}

// Wrap returns a *DecodeError of the given kind caused by err.
func Wrap(kind ErrorKind, section string, off uint64, err error, format string, args ...interface{}) error {
	return &DecodeError{Kind: kind, Section: section, Offset: off, Err: fmt.Sprintf(format, args...), Cause: err}
}

// KindOf returns the kind of err if it is, or wraps, a *DecodeError.
func KindOf(err error) (ErrorKind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// Sentinel values for use with errors.Is.
var (
	ErrUnexpectedEnd           = &DecodeError{Kind: UnexpectedEnd}
	ErrVarintOverflow          = &DecodeError{Kind: VarintOverflow}
	ErrDuplicateCode           = &DecodeError{Kind: DuplicateCode}
	ErrMalformedAbbreviation   = &DecodeError{Kind: MalformedAbbreviation}
	ErrUnsupportedFormat       = &DecodeError{Kind: UnsupportedFormat}
	ErrUnknownVersion          = &DecodeError{Kind: UnknownVersion}
	ErrLengthOverflow          = &DecodeError{Kind: LengthOverflow}
	ErrUnknownAbbreviationCode = &DecodeError{Kind: UnknownAbbreviationCode}
	ErrMalformedEntry          = &DecodeError{Kind: MalformedEntry}
	ErrUnknownForm             = &DecodeError{Kind: UnknownForm}
	ErrInvalidIndirection      = &DecodeError{Kind: InvalidIndirection}
	ErrMalformedHeader         = &DecodeError{Kind: MalformedHeader}
	ErrMalformedOpcode         = &DecodeError{Kind: MalformedOpcode}
)
