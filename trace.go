package armexec

import (
	"errors"
	"io"

	"sirherobrine23.com.br/go-bds/go-armexec/internal/log"
)

var ErrTraceUnsupported = errors.New("execve tracing is only supported on linux/amd64")

// TraceEvent is one execve observed in a traced tree, with what the gate
// would have done with it.
type TraceEvent struct {
	Tracee     *Tracee
	Invocation Invocation
	Decision   Decision
}

// Tracer runs a command under ptrace and reports every execve made by it
// or its descendants. It only observes: calls proceed unchanged.
type Tracer struct {
	// Gate decides each observed call. Its primitive is never used.
	Gate *Gate

	// Command and args to execute. Command[0] is looked up in PATH.
	Command []string

	// Env specifies the environment of the process.
	// Each entry is of the form "key=value".
	// If Env is nil, the new process uses the current process's
	// environment.
	Env []string

	// Set the initial working directory.
	Dir string

	// Stdin, Stdout and Stderr of the process. Nil means the tracer's own.
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// OnExec receives each observed call, on the tracing goroutine.
	// Defaults to logging it.
	OnExec func(TraceEvent)
}

func (tracer *Tracer) report(ev TraceEvent) {
	if tracer.OnExec != nil {
		tracer.OnExec(ev)
		return
	}
	log.Info("execve",
		"pid", ev.Tracee.PID,
		"vpid", ev.Tracee.VPID,
		"path", log.Safe(ev.Invocation.Path),
		"action", ev.Decision.Action,
		"class", ev.Decision.Class,
		"filename", log.Safe(ev.Decision.Path),
		"argv", log.SafeAll(ev.Decision.Argv),
	)
}
