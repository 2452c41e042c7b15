// internal/recovery/recovery.go
package recovery

import (
	"log/slog"
	"os"
	"runtime/debug"
)

// HandlePanic should be deferred at the top of main() or long-lived
// goroutines. It logs panic details with a stack trace and exits with
// code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		slog.Error("FATAL: unrecovered panic", "panic", r)
		_, _ = os.Stderr.Write(debug.Stack())
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details, runs the provided cleanup, then
// exits with code 1. Use it in goroutines that hold resources (an open
// capture device, a listening socket) which must be released before the
// process dies.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		slog.Error("FATAL: unrecovered panic", "panic", r)
		_, _ = os.Stderr.Write(debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}
