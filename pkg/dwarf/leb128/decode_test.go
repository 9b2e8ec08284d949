package leb128

import (
	"testing"
)

func TestDecodeUnsigned(t *testing.T) {
	n, c, err := DecodeUnsigned([]byte{0xE5, 0x8E, 0x26, 0xff})
	if err != nil {
		t.Fatal(err)
	}
	if n != 624485 {
		t.Fatal("Number was not decoded properly, got: ", n, c)
	}

	if c != 3 {
		t.Fatal("Count not returned correctly")
	}
}

func TestDecodeSigned(t *testing.T) {
	n, c, err := DecodeSigned([]byte{0x9b, 0xf1, 0x59})
	if err != nil {
		t.Fatal(err)
	}
	if n != -624485 {
		t.Fatal("Number was not decoded properly, got: ", n, c)
	}
	if c != 3 {
		t.Fatal("Count not returned correctly")
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, _, err := DecodeUnsigned([]byte{0x80, 0x80}); err != ErrTruncated {
		t.Errorf("unsigned: expected ErrTruncated, got %v", err)
	}
	if _, _, err := DecodeSigned([]byte{0xff}); err != ErrTruncated {
		t.Errorf("signed: expected ErrTruncated, got %v", err)
	}
	if _, _, err := DecodeUnsigned(nil); err != ErrTruncated {
		t.Errorf("empty: expected ErrTruncated, got %v", err)
	}
}

func TestDecodeLimits(t *testing.T) {
	maxu := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	n, c, err := DecodeUnsigned(maxu)
	if err != nil || n != ^uint64(0) || c != 10 {
		t.Errorf("max uint64: got %#x %d %v", n, c, err)
	}

	maxu[9] = 0x02
	if _, _, err := DecodeUnsigned(maxu); err != ErrOverflow {
		t.Errorf("expected ErrOverflow, got %v", err)
	}

	// Redundant zero padding past 64 bits is fine.
	padded := []byte{0x81, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00}
	if n, c, err := DecodeUnsigned(padded); err != nil || n != 1 || c != 11 {
		t.Errorf("padded: got %d %d %v", n, c, err)
	}

	mins := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7f}
	if n, _, err := DecodeSigned(mins); err != nil || n != -1<<63 {
		t.Errorf("min int64: got %d %v", n, err)
	}

	mins[9] = 0x3f
	if _, _, err := DecodeSigned(mins); err != ErrOverflow {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}
