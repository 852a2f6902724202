package armexec

import (
	_ "crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
	"sirherobrine23.com.br/go-bds/go-armexec/filesystem"
)

const digestChunk = 4096

var ErrUnverifiable = errors.New("unable to verify")

// Verifier recognizes the emulator binary by its whole-file sha256.
type Verifier struct {
	Expected string // lower-case hex, no algorithm prefix
}

// Verify hashes name and compares it with Expected. A false result with a
// nil error is a mismatch; any error wraps ErrUnverifiable.
func (v Verifier) Verify(b filesystem.Binding, name string) (bool, error) {
	if v.Expected == "" {
		return false, fmt.Errorf("%w: no emulator digest provisioned", ErrUnverifiable)
	}
	sum, err := Digest(b, name)
	if err != nil {
		return false, err
	}
	return sum.Encoded() == v.Expected, nil
}

// Digest streams name through sha256 in fixed-size chunks.
func Digest(b filesystem.Binding, name string) (digest.Digest, error) {
	f, err := b.Open(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnverifiable, err)
	}
	defer f.Close()

	digester := digest.SHA256.Digester()
	hash := digester.Hash()
	buf := make([]byte, digestChunk)
	for {
		n, err := f.Read(buf)
		hash.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return "", fmt.Errorf("%w: read %s: %w", ErrUnverifiable, name, err)
		}
	}
	return digester.Digest(), nil
}

// ParseDigest accepts "sha256:<hex>" or bare hex and returns the bare
// lower-case hex form stored in Binfmt.Digest. Empty input stays empty.
func ParseDigest(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	d := digest.Digest(s)
	if !strings.Contains(s, ":") {
		d = digest.NewDigestFromEncoded(digest.SHA256, s)
	}
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("emulator digest %q: %w", s, err)
	}
	if d.Algorithm() != digest.SHA256 {
		return "", fmt.Errorf("emulator digest %q: algorithm %s is not sha256", s, d.Algorithm())
	}
	return d.Encoded(), nil
}
