// Package parentwatch blocks until a parent process exits, so the sidecar
// shuts itself down if whatever launched it dies first (§10.5).
package parentwatch

import "github.com/breeze-rmm/capture-sidecar/internal/logging"

var log = logging.L("parentwatch")

// Watch blocks until pid exits, then invokes onExit. If pid is 0, watching
// is disabled and Watch returns immediately without calling onExit. Callers
// run this in its own goroutine; it never returns early except on pid==0 or
// a platform error opening the handle, both of which are logged.
func Watch(pid uint32, onExit func()) {
	if pid == 0 {
		log.Info("no parent pid provided, parent monitoring disabled")
		return
	}
	watch(pid, onExit)
}
