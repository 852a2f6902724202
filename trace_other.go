//go:build !(linux && amd64)

package armexec

import "context"

// Run is not available on this platform.
func (tracer *Tracer) Run(ctx context.Context) (int, error) { return -1, ErrTraceUnsupported }
