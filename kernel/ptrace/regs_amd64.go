//go:build linux && amd64

package ptrace

import "golang.org/x/sys/unix"

type Regs unix.PtraceRegs

func (data *Regs) Syscall() int { return int(data.Orig_rax) }

// Arg returns syscall argument n, counted from 0.
func (data *Regs) Arg(n int) uintptr {
	switch n {
	case 0:
		return uintptr(data.Rdi)
	case 1:
		return uintptr(data.Rsi)
	case 2:
		return uintptr(data.Rdx)
	case 3:
		return uintptr(data.R10)
	case 4:
		return uintptr(data.R8)
	case 5:
		return uintptr(data.R9)
	}
	return 0
}

// Entering reports a syscall-enter stop: the kernel preloads the return
// register with -ENOSYS before running the call.
func (data *Regs) Entering() bool { return int64(data.Rax) == -int64(unix.ENOSYS) }

func (pid Ptrace) GetSyscall() (*Regs, error) {
	var data Regs
	if err := unix.PtraceGetRegs(int(pid), (*unix.PtraceRegs)(&data)); err != nil {
		return nil, err
	}
	return &data, nil
}
