package line

import (
	"path"
	"strings"

	"github.com/go-delve/dwarfscan/pkg/dwarf"
)

// FileEntry file entry in File Name Table.
type FileEntry struct {
	// Name is the name as it appears in the table.
	Name string
	// Path is Name joined to its include directory, unless Name is
	// already absolute.
	Path        string
	DirIdx      uint64
	LastModTime uint64
	Length      uint64
}

// readFileEntry reads one file entry, it returns nil for the empty name
// terminating the file table.
func (h *Header) readFileEntry(buf *dwarf.Buf) (*FileEntry, error) {
	name, err := buf.CString()
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		return nil, nil
	}

	entry := &FileEntry{Name: h.normalize(string(name))}
	if entry.DirIdx, err = buf.Uleb(); err != nil {
		return nil, err
	}
	if entry.LastModTime, err = buf.Uleb(); err != nil {
		return nil, err
	}
	if entry.Length, err = buf.Uleb(); err != nil {
		return nil, err
	}

	entry.Path = entry.Name
	if !pathIsAbs(entry.Path) && entry.DirIdx < uint64(len(h.IncludeDirs)) {
		entry.Path = path.Join(h.IncludeDirs[entry.DirIdx], entry.Path)
	}
	return entry, nil
}

func (h *Header) normalize(p string) string {
	if h.normalizeBackslash {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}

// pathIsAbs returns true if this is an absolute path.
// We can not use path.IsAbs because it will not recognize windows paths as
// absolute. We also can not use filepath.Abs because we want this
// processing to be independent of the host operating system (we could be
// reading an executable file produced on windows on a unix machine or vice
// versa).
func pathIsAbs(s string) bool {
	if len(s) >= 1 && s[0] == '/' {
		return true
	}
	if len(s) >= 2 && s[1] == ':' && (('a' <= s[0] && s[0] <= 'z') || ('A' <= s[0] && s[0] <= 'Z')) {
		return true
	}
	return false
}
