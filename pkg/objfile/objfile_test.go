package objfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

func zlibSection(t *testing.T, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("ZLIB")
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], uint64(len(data)))
	buf.Write(sz[:])
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompressMaybe(t *testing.T) {
	plain := []byte("not compressed at all")
	out, err := decompressMaybe(plain)
	require.NoError(t, err)
	require.Equal(t, plain, out)

	payload := bytes.Repeat([]byte{0x11, 0x00, 0x01}, 100)
	out, err = decompressMaybe(zlibSection(t, payload))
	require.NoError(t, err)
	require.Equal(t, payload, out)

	// declared size larger than the stream
	bad := zlibSection(t, payload)
	binary.BigEndian.PutUint64(bad[4:12], uint64(len(payload)+10))
	_, err = decompressMaybe(bad)
	require.Error(t, err)
}

func TestOpenUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("this is not an executable file"), 0600))
	_, err := Open(path)
	require.True(t, errors.Is(err, ErrUnknownFormat), "got %v", err)

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestOpenSelf(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skip("no executable path:", err)
	}
	f, err := Open(exe)
	require.NoError(t, err)
	defer f.Close()

	require.Contains(t, []string{"elf", "macho", "pe"}, f.Format)
	require.NotNil(t, f.Order)
	if !f.HasDWARF() {
		t.Skip("test binary built without DWARF")
	}
	require.NotZero(t, f.Section(dwarf.AbbrevSection).Len())
	require.NotZero(t, f.Section(dwarf.LineSection).Len())

	// unknown names yield an empty section rather than nil
	sec := f.Section("macinfo")
	require.NotNil(t, sec)
	require.Zero(t, sec.Len())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
