//go:build linux

// Package ptrace reads syscall arguments out of a stopped tracee.
package ptrace

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const wordSize = int(unsafe.Sizeof(uintptr(0)))

var ErrTooLong = errors.New("tracee data exceeds limit")

// Ptrace is a stopped tracee.
type Ptrace int

// peekWord reads the aligned word containing addr. Aligned reads never
// straddle a page boundary, so a string ending at the edge of a mapping
// is still readable.
func (pid Ptrace) peekWord(addr uintptr) ([]byte, error) {
	buf := make([]byte, wordSize)
	if _, err := unix.PtracePeekData(int(pid), addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// PeekString reads a NUL-terminated string at addr, at most limit bytes long
// without the terminator.
func (pid Ptrace) PeekString(addr uintptr, limit int) (string, error) {
	if addr == 0 {
		return "", nil
	}
	var out []byte
	word := addr &^ uintptr(wordSize-1)
	skip := int(addr - word)
	for {
		buf, err := pid.peekWord(word)
		if err != nil {
			return "", fmt.Errorf("peek %#x: %w", word, err)
		}
		buf = buf[skip:]
		skip = 0
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			out = append(out, buf[:i]...)
			if len(out) > limit {
				return "", ErrTooLong
			}
			return string(out), nil
		}
		out = append(out, buf...)
		if len(out) > limit {
			return "", ErrTooLong
		}
		word += uintptr(wordSize)
	}
}

// PeekStrings reads a NULL-terminated array of string pointers at addr,
// such as execve's argv and envp.
func (pid Ptrace) PeekStrings(addr uintptr, maxItems, maxLen int) ([]string, error) {
	if addr == 0 {
		return nil, nil
	}
	var out []string
	for i := 0; ; i++ {
		if i > maxItems {
			return nil, ErrTooLong
		}
		buf, err := pid.peekWord(addr + uintptr(i*wordSize))
		if err != nil {
			return nil, fmt.Errorf("peek %#x: %w", addr+uintptr(i*wordSize), err)
		}
		ptr := wordValue(buf)
		if ptr == 0 {
			return out, nil
		}
		s, err := pid.PeekString(ptr, maxLen)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

func wordValue(buf []byte) uintptr {
	if wordSize == 8 {
		return uintptr(binary.NativeEndian.Uint64(buf))
	}
	return uintptr(binary.NativeEndian.Uint32(buf))
}
