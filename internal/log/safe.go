package log

import "strings"

const hexDigits = "0123456789abcdef"

// Safe makes an argv or envp entry printable: every byte outside the
// printable ASCII range becomes "\xHH". Environment values are arbitrary
// bytes and must not drive the terminal.
func Safe(s string) string {
	i := 0
	for i < len(s) && printable(s[i]) {
		i++
	}
	if i == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:i])
	for ; i < len(s); i++ {
		c := s[i]
		if printable(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(`\x`)
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

// SafeAll applies Safe to every element of ss into a new slice.
func SafeAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = Safe(s)
	}
	return out
}

func printable(c byte) bool { return c >= 32 && c < 127 }
