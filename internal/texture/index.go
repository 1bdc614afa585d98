package texture

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Index is a read-only filesystem over an asset library directory that
// finds files by bare name, wherever they sit in the tree. It is the
// fallback for references a drop did not include.
type Index struct {
	root    string
	entries map[string]string // lower(basename) → full path
}

// BuildIndex walks dir and records every regular file. When two files share
// a name the first one found in lexical walk order wins.
func BuildIndex(dir string) (*Index, error) {
	idx := &Index{root: dir, entries: make(map[string]string)}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key := strings.ToLower(d.Name())
		if _, exists := idx.entries[key]; !exists {
			idx.entries[key] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// ResolvePath returns the filesystem path for a reference, or ("", false).
func (idx *Index) ResolvePath(ref string) (string, bool) {
	// Strip path prefix (e.g. "..\\textures\\Wood.PNG" → "wood.png")
	ref = strings.ReplaceAll(ref, "\\", "/")
	path, ok := idx.entries[strings.ToLower(filepath.Base(ref))]
	return path, ok
}

// Open implements fs.FS.
func (idx *Index) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	path, ok := idx.ResolvePath(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return os.Open(path)
}

// Len returns the number of indexed files.
func (idx *Index) Len() int {
	return len(idx.entries)
}
