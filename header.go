package armexec

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"sirherobrine23.com.br/go-bds/go-armexec/filesystem"
)

// HeaderSize is sizeof(Elf32_Ehdr), the only bytes the classifier reads.
const HeaderSize = 52

var ErrShortHeader = errors.New("file shorter than an ELF header")

// Header is the fixed-size prefix of a candidate executable.
type Header [HeaderSize]byte

// ReadHeader performs a single bounded read of the file header. A file
// shorter than HeaderSize yields ErrShortHeader.
func ReadHeader(b filesystem.Binding, name string) (*Header, error) {
	f, err := b.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hdr Header
	n, err := f.Read(hdr[:])
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if n < HeaderSize {
		return nil, fmt.Errorf("%w: %s: got %d of %d bytes", ErrShortHeader, name, n, HeaderSize)
	}
	return &hdr, nil
}

func (hdr *Header) Magic() bool { return string(hdr[:len(elf.ELFMAG)]) == elf.ELFMAG }

func (hdr *Header) Class() elf.Class { return elf.Class(hdr[elf.EI_CLASS]) }

func (hdr *Header) Data() elf.Data { return elf.Data(hdr[elf.EI_DATA]) }

// Type decodes e_type with the given byte order.
func (hdr *Header) Type(order binary.ByteOrder) elf.Type {
	return elf.Type(order.Uint16(hdr[16:18]))
}

// Machine decodes e_machine with the given byte order.
func (hdr *Header) Machine(order binary.ByteOrder) elf.Machine {
	return elf.Machine(order.Uint16(hdr[18:20]))
}

// FileHeader decodes the identification fields using the byte order the
// file declares, for reporting.
func (hdr *Header) FileHeader() elf.FileHeader {
	var order binary.ByteOrder = binary.LittleEndian
	if hdr.Data() == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}
	return elf.FileHeader{
		Class:      hdr.Class(),
		Data:       hdr.Data(),
		Version:    elf.Version(hdr[elf.EI_VERSION]),
		OSABI:      elf.OSABI(hdr[elf.EI_OSABI]),
		ABIVersion: hdr[elf.EI_ABIVERSION],
		ByteOrder:  order,
		Type:       hdr.Type(order),
		Machine:    hdr.Machine(order),
	}
}
