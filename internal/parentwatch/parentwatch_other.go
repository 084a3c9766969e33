//go:build !windows

package parentwatch

// watch has no non-Windows implementation: there is no cross-platform
// capture backend for it to guard yet, so it logs and returns.
func watch(pid uint32, onExit func()) {
	log.Warn("parent process monitoring is unsupported on this platform", "pid", pid)
}
