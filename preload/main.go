//go:build linux && cgo

// Command preload builds the execve shim loaded with LD_PRELOAD:
//
//	go build -buildmode=c-shared -o libarmexec.so ./preload
//
// Every execve of a 32-bit ARM executable is rerouted through the emulator.
// Stamp the emulator's digest with "armexec digest --ldflags" so calls that
// already target the emulator are recognized.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"io"
	"os"
	"sync"

	"sirherobrine23.com.br/go-bds/go-armexec"
	"sirherobrine23.com.br/go-bds/go-armexec/internal/log"
)

var stderr io.Writer = os.Stderr

var (
	nextExecve = sync.OnceValues(resolveExecve)
	gate       = sync.OnceValue(func() *armexec.Gate {
		g := armexec.NewGate(armexec.ARM32())
		g.Resolve = nextExecve
		g.Fatal = fatal
		return g
	})
)

func init() {
	log.Init(log.Options{Stderr: os.Stderr})
}

//export execve
func execve(path *C.char, argv **C.char, envp **C.char) C.int {
	if path == nil {
		prim, err := nextExecve()
		if err != nil {
			fatal(err)
		}
		return prim.(realExecve).direct(path, argv, envp)
	}

	err := gate().Exec(armexec.Invocation{
		Path: C.GoString(path),
		Argv: goStrings(argv),
		Envv: goStrings(envp),
	})
	setErrno(err)
	return -1
}

func main() {}
