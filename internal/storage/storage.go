package storage

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// FS is the image folder the fetchers write into and the delivery loop walks.
// Names are slash separated and relative to the folder.
type FS interface {
	HasFile(name string) bool
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	Walk(fn WalkFunc) error
}

// WalkFunc is called once per directory with the directory (relative to the
// folder, "." for the folder itself) and the names of the regular files in it.
// The callback may reorder files freely.
type WalkFunc func(dir string, files []string) error

// Folder is an FS rooted at a directory of an afero filesystem.
type Folder struct {
	fs   afero.Fs
	root string
}

// NewLocalFS creates the folder on disk if it does not exist yet.
func NewLocalFS(dir string) (*Folder, error) {
	return newFolder(afero.NewOsFs(), dir)
}

// NewInMemoryFS is an empty folder that lives only in memory.
func NewInMemoryFS() *Folder {
	f, _ := newFolder(afero.NewMemMapFs(), "/images")
	return f
}

func newFolder(fs afero.Fs, dir string) (*Folder, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Folder{fs: fs, root: filepath.Clean(dir)}, nil
}

// Root is the folder path.
func (f *Folder) Root() string {
	return f.root
}

func (f *Folder) path(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

// HasFile checks if a file exists.
func (f *Folder) HasFile(name string) bool {
	ok, err := afero.Exists(f.fs, f.path(name))
	return err == nil && ok
}

// WriteFile creates or overwrites a file, creating parent directories.
func (f *Folder) WriteFile(name string, data []byte) error {
	p := f.path(name)
	if err := f.fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return afero.WriteFile(f.fs, p, data, 0644)
}

// ReadFile reads a whole file.
func (f *Folder) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(f.fs, f.path(name))
}

// Walk visits the folder top-down. Sub-directories are entered in lexical
// order after the files of their parent have been handed to fn.
func (f *Folder) Walk(fn WalkFunc) error {
	return f.walk(".", fn)
}

func (f *Folder) walk(dir string, fn WalkFunc) error {
	entries, err := afero.ReadDir(f.fs, f.path(dir))
	if err != nil {
		return err
	}

	var files, dirs []string
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			dirs = append(dirs, entry.Name())
		case entry.Mode()&os.ModeType == 0:
			files = append(files, entry.Name())
		}
	}

	if err := fn(dir, files); err != nil {
		return err
	}

	sort.Strings(dirs)
	for _, sub := range dirs {
		if err := f.walk(filepath.ToSlash(filepath.Join(dir, sub)), fn); err != nil {
			return err
		}
	}
	return nil
}
