package elfwriter

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.debug")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := New(fh, &elf.FileHeader{
		Class:   elf.ELFCLASS64,
		Data:    elf.ELFDATA2LSB,
		Version: elf.EV_CURRENT,
		Type:    elf.ET_EXEC,
		Machine: elf.EM_X86_64,
	})
	w.WriteSection(".debug_info", elf.SHT_PROGBITS, 0, []byte{1, 2, 3})
	w.WriteSection(".debug_str", elf.SHT_PROGBITS, elf.SHF_MERGE|elf.SHF_STRINGS, []byte("main\x00"))
	w.WriteSectionHeaders()
	if w.Err != nil {
		t.Fatal(w.Err)
	}
	if err := fh.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := elf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if f.Machine != elf.EM_X86_64 || f.Type != elf.ET_EXEC {
		t.Errorf("wrong file header %#v", f.FileHeader)
	}
	if len(f.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(f.Sections))
	}
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{".debug_info", []byte{1, 2, 3}},
		{".debug_str", []byte("main\x00")},
	} {
		sec := f.Section(tc.name)
		if sec == nil {
			t.Fatalf("section %s not found", tc.name)
		}
		data, err := sec.Data()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, tc.data) {
			t.Errorf("section %s: got %v expected %v", tc.name, data, tc.data)
		}
		if sec.Offset%8 != 0 {
			t.Errorf("section %s not aligned: %#x", tc.name, sec.Offset)
		}
	}
	if sec := f.Section(".debug_str"); sec.Flags != elf.SHF_MERGE|elf.SHF_STRINGS {
		t.Errorf("wrong flags %v", sec.Flags)
	}
}
