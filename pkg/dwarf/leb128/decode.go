package leb128

import (
	"errors"
)

var (
	// ErrTruncated is returned when the input ends before the last byte
	// of a value, i.e. every byte read had its continuation bit set.
	ErrTruncated = errors.New("leb128: truncated value")
	// ErrOverflow is returned when the encoded value does not fit in 64 bits.
	ErrOverflow = errors.New("leb128: value overflows 64 bits")
)

// DecodeUnsigned decodes an unsigned Little Endian Base 128
// represented number from the start of buf. It returns the value and the
// number of bytes consumed.
func DecodeUnsigned(buf []byte) (uint64, int, error) {
	var (
		result uint64
		shift  uint
	)

	for i, b := range buf {
		low := uint64(b & 0x7f)
		switch {
		case shift < 63:
			result |= low << shift
		case shift == 63:
			if low > 1 {
				return 0, 0, ErrOverflow
			}
			result |= low << shift
		default:
			// Padding past 64 bits is only allowed if it carries no data.
			if low != 0 {
				return 0, 0, ErrOverflow
			}
		}

		// If high order bit is 0 this is the last byte.
		if b&0x80 == 0 {
			return result, i + 1, nil
		}

		shift += 7
	}

	return 0, 0, ErrTruncated
}

// DecodeSigned decodes a signed Little Endian Base 128
// represented number from the start of buf. It returns the value and the
// number of bytes consumed.
func DecodeSigned(buf []byte) (int64, int, error) {
	var (
		result int64
		shift  uint
	)

	for i, b := range buf {
		low := int64(b & 0x7f)
		switch {
		case shift < 63:
			result |= low << shift
		case shift == 63:
			// Bit 63 plus six bits of sign extension.
			if low != 0 && low != 0x7f {
				return 0, 0, ErrOverflow
			}
			result |= low << shift
		default:
			ext := int64(0)
			if result < 0 {
				ext = 0x7f
			}
			if low != ext {
				return 0, 0, ErrOverflow
			}
		}
		shift += 7

		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}

	return 0, 0, ErrTruncated
}
