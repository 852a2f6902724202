// Implements read-only access to executables for the classifier and verifier
package filesystem

import (
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// File is the subset of *os.File needed to sniff and hash an executable.
type File interface {
	io.ReadCloser
	Stat() (fs.FileInfo, error)
}

// Binding opens files by absolute host-style path.
type Binding interface {
	Open(name string) (File, error)
	// Stat follows symlinks and never opens the file.
	Stat(name string) (fs.FileInfo, error)
}

var _ Binding = (*FS)(nil)

// Implement Binding to [io/fs.FS]
//
// Absolute names are rooted at the top of the FS, so "/usr/bin/qemu-arm-static"
// opens "usr/bin/qemu-arm-static".
type FS struct {
	fs.FS
}

func (fss FS) Open(name string) (File, error) {
	return fss.FS.Open(fsName(name))
}

func (fss FS) Stat(name string) (fs.FileInfo, error) {
	return fs.Stat(fss.FS, fsName(name))
}

func fsName(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
	if name == "" {
		return "."
	}
	return name
}
