//go:build linux && amd64

package armexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
	"sirherobrine23.com.br/go-bds/go-armexec/internal/log"
	"sirherobrine23.com.br/go-bds/go-armexec/kernel/ptrace"
)

const DefaultPtraceFlags = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_EXITKILL

// Limits on what is copied out of a tracee per execve.
const (
	maxTraceArgs   = 1 << 16
	maxTraceArgLen = 32 * 4096 // MAX_ARG_STRLEN
)

/*
Run starts the command stopped under ptrace, follows it and every
descendant until all have exited, and returns the command's exit status
(128+signal when killed). Cancelling ctx kills the command.

The loop reaps any child of the calling process, so nothing else in the
process should start children while a trace runs.
*/
func (tracer *Tracer) Run(ctx context.Context) (int, error) {
	if tracer.Gate == nil {
		return -1, errors.New("tracer has no gate")
	} else if len(tracer.Command) == 0 {
		return -1, errors.New("no command to trace")
	}

	// ptrace requests are only accepted from the thread that started the tracee
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command(tracer.Command[0], tracer.Command[1:]...)
	cmd.Env = tracer.Env
	cmd.Dir = tracer.Dir
	cmd.Stdin, cmd.Stdout, cmd.Stderr = tracer.Stdin, tracer.Stdout, tracer.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace: true, // Start process in traceable mode
	}

	if err := cmd.Start(); err != nil {
		return -1, err
	}
	// Process.Wait fails once the loop has reaped the pid; Wait is still
	// needed to drain non-file stdio.
	defer cmd.Wait()

	pid := cmd.Process.Pid
	stop := context.AfterFunc(ctx, func() { unix.Kill(pid, unix.SIGKILL) })
	defer stop()

	// The child stops with SIGTRAP once its first exec completed.
	var status unix.WaitStatus
	if err := wait4(pid, &status); err != nil {
		return -1, err
	} else if !status.Stopped() {
		return exitCode(status), nil
	}
	if err := unix.PtraceSetOptions(pid, DefaultPtraceFlags); err != nil {
		unix.Kill(pid, unix.SIGKILL)
		return -1, fmt.Errorf("ptrace options: %w", err)
	}

	tree := newTracees()
	root := tree.getTracee(pid, true)
	root.Execute = cmd.Path
	root.seen = true
	log.Debug("tracing", "pid", pid, "path", cmd.Path)

	if err := unix.PtraceSyscall(pid, 0); err != nil {
		unix.Kill(pid, unix.SIGKILL)
		return -1, fmt.Errorf("ptrace syscall: %w", err)
	}
	return tracer.eventLoop(tree, pid)
}

// Watch process and childs to new syscallers and process health
func (tracer *Tracer) eventLoop(tree *tracees, root int) (int, error) {
	exit := -1
	for tree.len() > 0 {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WALL, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			} else if err == unix.ECHILD {
				break
			}
			return exit, err
		}

		if status.Exited() || status.Signaled() {
			if pid == root {
				exit = exitCode(status)
			}
			tree.terminate(pid)
			continue
		} else if !status.Stopped() {
			continue
		}

		tracee := tree.getTracee(pid, true)
		signal := tracer.handleStop(tree, tracee, status)
		if err := unix.PtraceSyscall(pid, signal); err != nil && err != unix.ESRCH {
			return exit, fmt.Errorf("restart %d: %w", pid, err)
		}
	}
	return exit, nil
}

// handleStop returns the signal to deliver when restarting the tracee.
func (tracer *Tracer) handleStop(tree *tracees, tracee *Tracee, status unix.WaitStatus) int {
	sig := status.StopSignal()
	switch {
	case sig == unix.SIGTRAP|0x80:
		tracer.syscallStop(tracee)
		return 0

	case sig == unix.SIGTRAP && status.TrapCause() > 0:
		switch status.TrapCause() {
		case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK, unix.PTRACE_EVENT_CLONE:
			if msg, err := unix.PtraceGetEventMsg(tracee.PID); err == nil {
				tree.adopt(tracee, int(msg))
			}
		case unix.PTRACE_EVENT_EXEC:
			if exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", tracee.PID)); err == nil {
				tracee.Execute = exe
			}
		}
		return 0

	case sig == unix.SIGSTOP && !tracee.seen:
		tracee.seen = true
		return 0
	}

	tracee.seen = true
	return int(sig)
}

func (tracer *Tracer) syscallStop(tracee *Tracee) {
	regs, err := ptrace.Ptrace(tracee.PID).GetSyscall()
	if err != nil || regs.Syscall() != unix.SYS_EXECVE || !regs.Entering() {
		return
	}

	inv, err := peekExecve(ptrace.Ptrace(tracee.PID), regs)
	if err != nil {
		log.Warn("cannot read execve arguments", "pid", tracee.PID, "error", err)
		return
	}

	// relative paths are relative to the tracee, not to us
	decide := inv
	if !filepath.IsAbs(decide.Path) {
		if cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", tracee.PID)); err == nil {
			decide.Path = filepath.Join(cwd, decide.Path)
		}
	}
	d := tracer.Gate.Decide(decide)
	if d.Action != Wrap {
		d.Path = inv.Path
	}
	tracer.report(TraceEvent{Tracee: tracee, Invocation: inv, Decision: d})
}

func peekExecve(pid ptrace.Ptrace, regs *ptrace.Regs) (inv Invocation, err error) {
	if inv.Path, err = pid.PeekString(regs.Arg(0), unix.PathMax); err != nil {
		return inv, fmt.Errorf("path: %w", err)
	}
	if inv.Argv, err = pid.PeekStrings(regs.Arg(1), maxTraceArgs, maxTraceArgLen); err != nil {
		return inv, fmt.Errorf("argv: %w", err)
	}
	if inv.Envv, err = pid.PeekStrings(regs.Arg(2), maxTraceArgs, maxTraceArgLen); err != nil {
		return inv, fmt.Errorf("envp: %w", err)
	}
	return inv, nil
}

func wait4(pid int, status *unix.WaitStatus) error {
	for {
		_, err := unix.Wait4(pid, status, unix.WALL, nil)
		if err != unix.EINTR {
			return err
		}
	}
}

func exitCode(status unix.WaitStatus) int {
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return status.ExitStatus()
}
