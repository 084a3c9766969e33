//go:build windows

package parentwatch

import "syscall"

const (
	processSynchronize = 0x00100000
	infinite            = 0xFFFFFFFF
	waitObject0         = 0x00000000
)

var (
	modkernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess         = modkernel32.NewProc("OpenProcess")
	procWaitForSingleObject = modkernel32.NewProc("WaitForSingleObject")
	procCloseHandle         = modkernel32.NewProc("CloseHandle")
)

// watch opens pid with only SYNCHRONIZE rights and blocks on it natively
// (no polling) until it signals.
func watch(pid uint32, onExit func()) {
	log.Info("monitoring parent process", "pid", pid)

	handle, _, _ := procOpenProcess.Call(
		uintptr(processSynchronize),
		0,
		uintptr(pid),
	)
	if handle == 0 {
		log.Warn("could not open parent process, assuming it is already dead", "pid", pid)
		onExit()
		return
	}
	defer procCloseHandle.Call(handle)

	reason, _, _ := procWaitForSingleObject.Call(handle, uintptr(infinite))
	if reason == waitObject0 {
		log.Warn("parent process exited, shutting down", "pid", pid)
	} else {
		log.Warn("parent process wait failed, shutting down for safety", "pid", pid)
	}
	onExit()
}
