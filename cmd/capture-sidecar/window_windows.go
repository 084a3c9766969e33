//go:build windows

package main

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	moduser32                      = syscall.NewLazyDLL("user32.dll")
	procEnumWindows                = moduser32.NewProc("EnumWindows")
	procGetWindowThreadProcessId   = moduser32.NewProc("GetWindowThreadProcessId")
	procIsWindowVisible            = moduser32.NewProc("IsWindowVisible")
	procGetWindowTextLengthW       = moduser32.NewProc("GetWindowTextLengthW")
	procGetClientRect              = moduser32.NewProc("GetClientRect")
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type findWindowContext struct {
	targetPID uint32
	found     uintptr
}

// findMainWindow enumerates top-level windows looking for the first visible,
// titled window owned by pid, mirroring original_source's find_main_window.
func findMainWindow(pid uint32) (uintptr, error) {
	ctx := &findWindowContext{targetPID: pid}

	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		c := (*findWindowContext)(unsafe.Pointer(lparam))

		var ownerPID uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&ownerPID)))
		if ownerPID != c.targetPID {
			return 1 // continue enumeration
		}

		visible, _, _ := procIsWindowVisible.Call(hwnd)
		if visible == 0 {
			return 1
		}

		titleLen, _, _ := procGetWindowTextLengthW.Call(hwnd)
		if titleLen == 0 {
			return 1
		}

		c.found = hwnd
		return 0 // stop enumeration
	})

	procEnumWindows.Call(cb, uintptr(unsafe.Pointer(ctx)))

	if ctx.found == 0 {
		return 0, fmt.Errorf("no visible window found for pid %d", pid)
	}
	return ctx.found, nil
}

// windowClientSize reads a window's client-area size via GetClientRect.
func windowClientSize(hwnd uintptr) (width, height uint32, err error) {
	var r rect
	ok, _, callErr := procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return 0, 0, fmt.Errorf("GetClientRect: %w", callErr)
	}
	return uint32(r.Right - r.Left), uint32(r.Bottom - r.Top), nil
}
