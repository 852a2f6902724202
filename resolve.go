package armexec

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

var ErrUnresolved = errors.New("cannot resolve executable path")

// Resolve returns the absolute, symlink-free path of name, like realpath(3).
// name must exist.
func Resolve(name string) (string, error) {
	if err := unix.Access(name, unix.F_OK); err != nil {
		return "", fmt.Errorf("%w: access %q: %w", ErrUnresolved, name, err)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnresolved, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnresolved, err)
	}
	return real, nil
}
