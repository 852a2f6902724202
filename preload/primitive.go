//go:build linux && cgo

package main

/*
#cgo CFLAGS: -D_GNU_SOURCE
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <errno.h>
#include <stdlib.h>

typedef int (*execve_fn)(const char *, char *const *, char *const *);

static void *next_execve(void) {
	dlerror();
	return dlsym(RTLD_NEXT, "execve");
}

static const char *dl_error(void) { return dlerror(); }

static int call_execve(void *fn, const char *path, char **argv, char **envp) {
	return ((execve_fn)fn)(path, argv, envp);
}

static void set_errno(int e) { errno = e; }
static void die(int code) { _Exit(code); }
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
	"sirherobrine23.com.br/go-bds/go-armexec"
)

// realExecve is the next execve in link order, normally libc's.
type realExecve struct{ fn unsafe.Pointer }

func resolveExecve() (armexec.Primitive, error) {
	fn := C.next_execve()
	if fn == nil {
		if msg := C.dl_error(); msg != nil {
			return nil, errors.New(C.GoString(msg))
		}
		return nil, errors.New("execve: symbol not found")
	}
	return realExecve{fn}, nil
}

func (r realExecve) Execve(path string, argv, envv []string) error {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	cargv := cStrings(argv)
	defer freeStrings(cargv)
	cenvv := cStrings(envv)
	defer freeStrings(cenvv)

	rc, err := C.call_execve(r.fn, cpath, cargv, cenvv)
	if rc == 0 {
		return nil
	} else if err == nil {
		return unix.ENOEXEC
	}
	return err
}

// direct hands the caller's arrays to the real execve untouched.
func (r realExecve) direct(path *C.char, argv, envp **C.char) C.int {
	return C.call_execve(r.fn, path, argv, envp)
}

// cStrings returns a malloc'd NULL-terminated array of malloc'd strings.
func cStrings(s []string) **C.char {
	ptrSize := unsafe.Sizeof((*C.char)(nil))
	arr := (**C.char)(C.malloc(C.size_t(uintptr(len(s)+1) * ptrSize)))
	view := unsafe.Slice(arr, len(s)+1)
	for i, v := range s {
		view[i] = C.CString(v)
	}
	view[len(s)] = nil
	return arr
}

func freeStrings(arr **C.char) {
	for p := arr; *p != nil; p = (**C.char)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p))) {
		C.free(unsafe.Pointer(*p))
	}
	C.free(unsafe.Pointer(arr))
}

// goStrings copies a NULL-terminated C array. A NULL array is nil.
func goStrings(arr **C.char) []string {
	if arr == nil {
		return nil
	}
	var out []string
	for p := arr; *p != nil; p = (**C.char)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p))) {
		out = append(out, C.GoString(*p))
	}
	return out
}

func setErrno(err error) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		errno = unix.ENOEXEC
	}
	C.set_errno(C.int(errno))
}

func fatal(err error) {
	if inner := errors.Unwrap(err); inner != nil {
		err = inner
	}
	fmt.Fprintf(stderr, "[ERROR] Failed to load original execve: %v\n", err)
	C.die(1)
}
