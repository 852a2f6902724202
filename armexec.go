// Go-armexec runs 32-bit ARM programs on other hosts by putting a user-mode
// emulator in front of every execve that targets one.
//
// Original idea: the -q option of https://github.com/proot-me/proot
package armexec

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"sirherobrine23.com.br/go-bds/go-armexec/filesystem"
	"sirherobrine23.com.br/go-bds/go-armexec/internal/log"
)

var ErrNotRegular = errors.New("not a regular file")

// Class is the outcome of inspecting an executable.
type Class int

const (
	ClassNeither  Class = iota // Anything the gate leaves alone
	ClassTarget                // Executable for the configured foreign architecture
	ClassEmulator              // The emulator binary itself
)

func (c Class) String() string {
	switch c {
	case ClassTarget:
		return "target"
	case ClassEmulator:
		return "emulator"
	default:
		return "neither"
	}
}

// Action is what the gate does with an invocation.
type Action int

const (
	Passthrough Action = iota // Delegate unchanged
	Wrap                      // Run through the emulator, sanitized environment
	Sanitize                  // Same target and arguments, sanitized environment
)

func (a Action) String() string {
	switch a {
	case Wrap:
		return "wrap"
	case Sanitize:
		return "sanitize"
	default:
		return "passthrough"
	}
}

// Invocation is one execve request as the caller made it.
type Invocation struct {
	Path string   // Program path, possibly relative or a symlink
	Argv []string // Arguments, Argv[0] conventionally the program name
	Envv []string // Environment, "key=value"
}

// Decision is the single call the gate delegates to the primitive.
type Decision struct {
	Action Action
	Path   string
	Argv   []string
	Envv   []string

	Resolved string // Canonical target path, empty if resolution failed
	Class    Class

	// Why a check degraded to passthrough, for tracing only.
	Reason error
}

// Gate intercepts process creation. Create it with NewGate and do not copy it.
type Gate struct {
	// Target architecture and the emulator that runs it.
	Binfmt Binfmt

	// Files are read through this binding when classifying. Defaults to
	// the host root.
	Files filesystem.Binding

	// Environment variable removed from the child whenever the gate wraps
	// or recognizes the emulator, so the child does not load the shim
	// again. Defaults to PreloadVar.
	Strip string

	// Resolve returns the real primitive. It is called at most once per
	// Gate, on the first Exec.
	Resolve func() (Primitive, error)

	// Fatal runs when Resolve fails and must not return. Defaults to
	// logging the error and exiting with status 1.
	Fatal func(err error)

	primOnce sync.Once
	prim     Primitive
	primErr  error
}

// NewGate returns a gate for b that delegates to the native primitive.
func NewGate(b Binfmt) *Gate {
	return &Gate{
		Binfmt:  b,
		Files:   filesystem.Host,
		Strip:   PreloadVar,
		Resolve: NativePrimitive,
	}
}

// Exec delegates inv to the real primitive exactly once, rewritten per
// Decide. It only returns on failure, with the primitive's own error.
func (g *Gate) Exec(inv Invocation) error {
	prim := g.primitive()
	d := g.Decide(inv)
	g.trace(inv, d)
	return prim.Execve(d.Path, d.Argv, d.Envv)
}

// primitive is read-only after the first call.
func (g *Gate) primitive() Primitive {
	g.primOnce.Do(func() {
		resolve := g.Resolve
		if resolve == nil {
			resolve = NativePrimitive
		}
		g.prim, g.primErr = resolve()
		if g.primErr == nil && g.prim == nil {
			g.primErr = errors.New("resolver returned no primitive")
		}
	})
	if g.primErr != nil {
		g.fatal(fmt.Errorf("load original execve: %w", g.primErr))
	}
	return g.prim
}

func (g *Gate) fatal(err error) {
	if g.Fatal != nil {
		g.Fatal(err)
	}
	log.Error("fatal", "error", err)
	os.Exit(1)
}

// Decide classifies inv.Path and builds the call to delegate. Every failed
// check degrades to passthrough.
func (g *Gate) Decide(inv Invocation) Decision {
	d := Decision{
		Action: Passthrough,
		Path:   inv.Path,
		Argv:   inv.Argv,
		Envv:   inv.Envv,
	}

	resolved, err := Resolve(inv.Path)
	if err != nil {
		d.Reason = err
		return d
	}
	d.Resolved = resolved
	d.Class, d.Reason = g.Classify(resolved)

	switch d.Class {
	case ClassTarget:
		d.Action = Wrap
		d.Path = g.Binfmt.Emulator
		d.Argv = RebuildArgv(g.Binfmt.Emulator, resolved, inv.Argv)
		d.Envv = SanitizeEnv(inv.Envv, g.strip())
	case ClassEmulator:
		d.Action = Sanitize
		d.Envv = SanitizeEnv(inv.Envv, g.strip())
	}
	return d
}

// Classify inspects a resolved path. The header decides first; the digest
// is only consulted for files that are not target executables. The error
// explains a ClassNeither result and is informational.
func (g *Gate) Classify(name string) (Class, error) {
	files := g.Files
	if files == nil {
		files = filesystem.Host
	}

	// only regular files are read: opening a FIFO blocks until a writer appears
	info, err := files.Stat(name)
	if err != nil {
		return ClassNeither, err
	} else if !info.Mode().IsRegular() {
		return ClassNeither, fmt.Errorf("%w: %s is %v", ErrNotRegular, name, info.Mode().Type())
	}

	hdr, herr := ReadHeader(files, name)
	if herr == nil && g.Binfmt.Match(hdr) {
		return ClassTarget, nil
	}

	ok, verr := g.Binfmt.Verifier().Verify(files, name)
	if ok {
		return ClassEmulator, nil
	}
	return ClassNeither, errors.Join(herr, verr)
}

func (g *Gate) strip() string {
	if g.Strip == "" {
		return PreloadVar
	}
	return g.Strip
}

func (g *Gate) trace(inv Invocation, d Decision) {
	if !log.DebugEnabled() {
		return
	}
	log.Debug("execve",
		"path", log.Safe(inv.Path),
		"argv", log.SafeAll(inv.Argv),
		"envv", log.SafeAll(inv.Envv),
	)
	attrs := []any{
		"action", d.Action,
		"class", d.Class,
		"resolved", log.Safe(d.Resolved),
		"filename", log.Safe(d.Path),
		"argv", log.SafeAll(d.Argv),
	}
	if d.Action != Passthrough {
		attrs = append(attrs, "envv", log.SafeAll(d.Envv))
	}
	if d.Reason != nil {
		attrs = append(attrs, "reason", d.Reason)
	}
	log.Debug("delegate", attrs...)
}
