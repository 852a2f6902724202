package armexec

import (
	"debug/elf"
	"encoding/binary"
	"slices"
)

// Compiled-in emulator identity, stamped at build time with
//
//	-ldflags "-X sirherobrine23.com.br/go-bds/go-armexec.EmulatorDigest=<sha256 hex>"
//
// An empty EmulatorDigest disables emulator recognition.
var (
	EmulatorPath   = "/usr/bin/qemu-arm-static"
	EmulatorDigest = ""
)

// PreloadVar is the variable that injects the shim into every process.
const PreloadVar = "LD_PRELOAD"

// Binfmt describes the foreign architecture being redirected and the
// emulator that runs it, in the spirit of binfmt_misc.
type Binfmt struct {
	Class   elf.Class   // Word size (EI_CLASS)
	Data    elf.Data    // Byte order the Type and Machine fields are decoded with
	Machine elf.Machine // e_machine
	Types   []elf.Type  // Accepted e_type values

	Emulator string // Absolute path of the user-mode emulator
	Digest   string // Lower-case sha256 hex of the emulator binary
}

// ARM32 returns the 32-bit little-endian ARM configuration with the
// compiled-in emulator.
func ARM32() Binfmt {
	return Binfmt{
		Class:    elf.ELFCLASS32,
		Data:     elf.ELFDATA2LSB,
		Machine:  elf.EM_ARM,
		Types:    []elf.Type{elf.ET_EXEC, elf.ET_DYN},
		Emulator: EmulatorPath,
		Digest:   EmulatorDigest,
	}
}

// Match reports whether hdr is an executable for this architecture. Magic,
// class, machine and type must all agree.
func (b Binfmt) Match(hdr *Header) bool {
	if hdr == nil || !hdr.Magic() {
		return false
	}
	if hdr.Class() != b.Class {
		return false
	}
	order := b.byteOrder()
	return hdr.Machine(order) == b.Machine && slices.Contains(b.Types, hdr.Type(order))
}

func (b Binfmt) byteOrder() binary.ByteOrder {
	if b.Data == elf.ELFDATA2MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Verifier returns the integrity verifier for the emulator binary.
func (b Binfmt) Verifier() Verifier { return Verifier{Expected: b.Digest} }
