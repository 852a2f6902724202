package armexec

import "strings"

// RebuildArgv puts the emulator and the target in front of the original
// arguments: [emulator, target, argv[1:]...]. argv[0] is dropped because the
// emulator slot replaces it. The result is always a new slice.
func RebuildArgv(emulator, target string, argv []string) []string {
	rest := argv
	if len(rest) > 0 {
		rest = rest[1:]
	}
	out := make([]string, 0, len(rest)+2)
	out = append(out, emulator, target)
	return append(out, rest...)
}

// SanitizeEnv returns a copy of envv without any "name=" entry, keeping the
// order of the rest.
func SanitizeEnv(envv []string, name string) []string {
	prefix := name + "="
	out := make([]string, 0, len(envv))
	for _, kv := range envv {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
