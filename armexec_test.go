package armexec

import (
	"bytes"
	"crypto/sha256"
	"debug/elf"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"sirherobrine23.com.br/go-bds/go-armexec/internal/log"
)

const testEmulator = "/usr/bin/qemu-arm-static"

type execCall struct {
	path string
	argv []string
	envv []string
}

// recorder is a Primitive that remembers what it was asked to run.
type recorder struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (r *recorder) Execve(path string, argv, envv []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, execCall{path, argv, envv})
	return r.err
}

func (r *recorder) last(t *testing.T) execCall {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.calls)
	return r.calls[len(r.calls)-1]
}

func newTestGate(digest string) (*Gate, *recorder) {
	rec := &recorder{err: unix.ENOEXEC}
	b := ARM32()
	b.Emulator = testEmulator
	b.Digest = digest
	g := NewGate(b)
	g.Resolve = func() (Primitive, error) { return rec, nil }
	return g, rec
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0755))
	return p
}

func realTempDir(t *testing.T) string {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func sum(data []byte) string {
	s := sha256.Sum256(data)
	return hex.EncodeToString(s[:])
}

func TestGateWrapsTarget(t *testing.T) {
	dir := realTempDir(t)
	armtool := writeFile(t, dir, "armtool", armExec())
	g, rec := newTestGate("")

	inv := Invocation{
		Path: armtool,
		Argv: []string{"armtool", "-v"},
		Envv: []string{"PATH=/usr/bin", "LD_PRELOAD=/lib/hook.so"},
	}
	err := g.Exec(inv)
	assert.Equal(t, unix.ENOEXEC, err)

	call := rec.last(t)
	assert.Equal(t, testEmulator, call.path)
	assert.Equal(t, []string{testEmulator, armtool, "-v"}, call.argv)
	assert.Equal(t, []string{"PATH=/usr/bin"}, call.envv)

	// caller buffers untouched
	assert.Equal(t, []string{"armtool", "-v"}, inv.Argv)
	assert.Equal(t, []string{"PATH=/usr/bin", "LD_PRELOAD=/lib/hook.so"}, inv.Envv)
}

func TestGateWrapsThroughSymlink(t *testing.T) {
	dir := realTempDir(t)
	real := writeFile(t, dir, "armtool-1.0", armExec())
	require.NoError(t, os.Symlink("armtool-1.0", filepath.Join(dir, "armtool")))
	t.Chdir(dir)

	g, _ := newTestGate("")
	d := g.Decide(Invocation{Path: "./armtool", Argv: []string{"armtool"}})
	assert.Equal(t, Wrap, d.Action)
	assert.Equal(t, ClassTarget, d.Class)
	assert.Equal(t, real, d.Resolved)
	assert.Equal(t, []string{testEmulator, real}, d.Argv)
	assert.Empty(t, d.Envv)
	assert.NotNil(t, d.Envv)
}

func TestGateEmulatorSanitizesOnly(t *testing.T) {
	dir := realTempDir(t)
	image := hostELF()
	emulator := writeFile(t, dir, "qemu-arm-static", image)
	g, rec := newTestGate(sum(image))

	inv := Invocation{
		Path: emulator,
		Argv: []string{"qemu-arm-static", "-L", "/usr/arm-linux-gnueabihf", "/bin/armtool"},
		Envv: []string{"LD_PRELOAD=/lib/hook.so", "TERM=xterm", "LD_PRELOAD=/lib/other.so"},
	}
	require.Error(t, g.Exec(inv))

	call := rec.last(t)
	assert.Equal(t, emulator, call.path)
	assert.Equal(t, inv.Argv, call.argv)
	assert.Equal(t, []string{"TERM=xterm"}, call.envv)

	d := g.Decide(inv)
	assert.Equal(t, Sanitize, d.Action)
	assert.Equal(t, ClassEmulator, d.Class)
}

func TestGateTargetBeatsDigest(t *testing.T) {
	dir := realTempDir(t)
	image := armExec()
	armtool := writeFile(t, dir, "armtool", image)

	for name, digest := range map[string]string{
		"mismatch": abcSHA256,
		"match":    sum(image),
	} {
		t.Run(name, func(t *testing.T) {
			g, _ := newTestGate(digest)
			d := g.Decide(Invocation{Path: armtool, Argv: []string{"armtool"}})
			assert.Equal(t, Wrap, d.Action)
			assert.Equal(t, []string{testEmulator, armtool}, d.Argv)
		})
	}
}

func TestGatePassthrough(t *testing.T) {
	dir := realTempDir(t)
	envv := []string{"PATH=/usr/bin", "LD_PRELOAD=/lib/hook.so"}
	fifo := filepath.Join(dir, "fifo")
	require.NoError(t, unix.Mkfifo(fifo, 0755))

	tests := map[string]string{
		"native":      writeFile(t, dir, "ls", hostELF()),
		"script":      writeFile(t, dir, "script.sh", []byte("#!/bin/sh\nexit 0\n")),
		"empty":       writeFile(t, dir, "empty", nil),
		"arm-object":  writeFile(t, dir, "obj.o", elfImage(elf.ELFCLASS32, elf.ELFDATA2LSB, elf.ET_REL, elf.EM_ARM, 512)),
		"directory":   dir,
		"fifo":        fifo,
		"nonexistent": "/nonexistent",
		"relative":    "does/not/exist",
	}

	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			g, rec := newTestGate(abcSHA256)
			inv := Invocation{Path: path, Argv: []string{filepath.Base(path), "-l"}, Envv: envv}
			assert.Equal(t, unix.ENOEXEC, g.Exec(inv))

			call := rec.last(t)
			assert.Equal(t, path, call.path)
			assert.Equal(t, inv.Argv, call.argv)
			assert.Equal(t, envv, call.envv)
		})
	}
}

func TestGateUnresolvedReason(t *testing.T) {
	g, _ := newTestGate("")
	d := g.Decide(Invocation{Path: "/nonexistent"})
	assert.Equal(t, Passthrough, d.Action)
	assert.ErrorIs(t, d.Reason, ErrUnresolved)
	assert.Empty(t, d.Resolved)
}

func TestGateSkipsNonRegular(t *testing.T) {
	dir := realTempDir(t)
	fifo := filepath.Join(dir, "fifo")
	require.NoError(t, unix.Mkfifo(fifo, 0755))

	g, _ := newTestGate(abcSHA256)
	for _, path := range []string{fifo, dir} {
		d := g.Decide(Invocation{Path: path, Argv: []string{path}})
		assert.Equal(t, Passthrough, d.Action, path)
		assert.Equal(t, ClassNeither, d.Class, path)
		assert.ErrorIs(t, d.Reason, ErrNotRegular, path)
	}
}

func TestGateTraceEscapesControlBytes(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.Init(log.Options{}) })

	dir := realTempDir(t)
	armtool := writeFile(t, dir, "armtool", armExec())
	g, _ := newTestGate("")
	inv := Invocation{
		Path: armtool,
		Argv: []string{"armtool", "a\x1bb"},
		Envv: []string{"LD_PRELOAD=/lib/hook.so", "TERM=xterm"},
	}
	require.Equal(t, unix.ENOEXEC, g.Exec(inv))

	out := buf.String()
	assert.Contains(t, out, "msg=execve")
	assert.Contains(t, out, "action=wrap")
	assert.Contains(t, out, `a\\x1bb`)
	assert.NotContains(t, out, "\x1b")
}

func TestGateResolvesPrimitiveOnce(t *testing.T) {
	dir := realTempDir(t)
	native := writeFile(t, dir, "ls", hostELF())

	rec := &recorder{}
	var resolved atomic.Int32
	g := NewGate(ARM32())
	g.Resolve = func() (Primitive, error) {
		resolved.Add(1)
		return rec, nil
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Exec(Invocation{Path: native, Argv: []string{"ls"}})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, resolved.Load())
	assert.Len(t, rec.calls, 16)
}

type fatalPanic struct{ err error }

func TestGateFatalWhenPrimitiveMissing(t *testing.T) {
	missing := errors.New("undefined symbol: execve")
	g := NewGate(ARM32())
	g.Resolve = func() (Primitive, error) { return nil, missing }
	g.Fatal = func(err error) { panic(fatalPanic{err}) }

	defer func() {
		r := recover()
		require.IsType(t, fatalPanic{}, r)
		assert.ErrorIs(t, r.(fatalPanic).err, missing)
	}()
	_ = g.Exec(Invocation{Path: "/nonexistent"})
	t.Fatal("Exec returned after a fatal resolution failure")
}

func TestPrimitiveErrorIsVerbatim(t *testing.T) {
	custom := &os.PathError{Op: "execve", Path: "/x", Err: unix.EACCES}
	g := NewGate(ARM32())
	g.Resolve = func() (Primitive, error) {
		return PrimitiveFunc(func(string, []string, []string) error { return custom }), nil
	}
	assert.Same(t, custom, g.Exec(Invocation{Path: "/nonexistent"}))
}

func TestClassAndActionStrings(t *testing.T) {
	assert.Equal(t, "target", ClassTarget.String())
	assert.Equal(t, "emulator", ClassEmulator.String())
	assert.Equal(t, "neither", ClassNeither.String())
	assert.Equal(t, "wrap", Wrap.String())
	assert.Equal(t, "sanitize", Sanitize.String())
	assert.Equal(t, "passthrough", Passthrough.String())
}
