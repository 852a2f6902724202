package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
)

var _ Binding = (*HostBind)(nil)

// Implementes Binding to local files, optionally below a directory (same to chroot)
type HostBind struct {
	Path string
}

// Host is the host root filesystem.
var Host = HostBind{"/"}

// HostPath returns where name lives on the host.
func (local HostBind) HostPath(name string) string {
	if local.Path == "" || local.Path == "/" {
		return filepath.Clean(name)
	}
	return filepath.Join(local.Path, filepath.Clean("/"+name))
}

func (local HostBind) Open(name string) (File, error) {
	return os.Open(local.HostPath(name))
}

func (local HostBind) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(local.HostPath(name))
}
