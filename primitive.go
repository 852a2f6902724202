package armexec

import "golang.org/x/sys/unix"

// Primitive is the real process-creation call the Gate delegates to. On
// success Execve does not return; on failure its error reaches the caller
// untouched.
type Primitive interface {
	Execve(path string, argv, envv []string) error
}

// PrimitiveFunc adapts a function to Primitive.
type PrimitiveFunc func(path string, argv, envv []string) error

func (fn PrimitiveFunc) Execve(path string, argv, envv []string) error { return fn(path, argv, envv) }

// NativePrimitive resolves to execve(2) issued directly by the Go runtime.
func NativePrimitive() (Primitive, error) { return PrimitiveFunc(unix.Exec), nil }
