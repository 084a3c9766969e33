//go:build !windows

package main

import "fmt"

func findMainWindow(pid uint32) (uintptr, error) {
	return 0, fmt.Errorf("window discovery is only supported on windows")
}

func windowClientSize(hwnd uintptr) (width, height uint32, err error) {
	return 0, 0, fmt.Errorf("window discovery is only supported on windows")
}
