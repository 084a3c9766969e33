//go:build windows

package capture

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"
)

var (
	srcUser32 = syscall.NewLazyDLL("user32.dll")
	srcGdi32  = syscall.NewLazyDLL("gdi32.dll")

	procGetWindowDC        = srcUser32.NewProc("GetDC")
	procReleaseWindowDC    = srcUser32.NewProc("ReleaseDC")
	procGetClientRectWin   = srcUser32.NewProc("GetClientRect")
	procCreateCompatDC     = srcGdi32.NewProc("CreateCompatibleDC")
	procCreateCompatBitmap = srcGdi32.NewProc("CreateCompatibleBitmap")
	procSelectObjectWin    = srcGdi32.NewProc("SelectObject")
	procBitBltWin          = srcGdi32.NewProc("BitBlt")
	procDeleteDCWin        = srcGdi32.NewProc("DeleteDC")
	procDeleteObjectWin    = srcGdi32.NewProc("DeleteObject")
	procGetDIBitsWin       = srcGdi32.NewProc("GetDIBits")
)

const (
	srcSrcCopy      = 0x00CC0020
	srcCaptureBlt   = 0x40000000
	srcBiRGB        = 0
	srcDibRGBColors = 0
)

type srcBitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type srcBitmapInfo struct {
	Header srcBitmapInfoHeader
	Colors [1]uint32
}

type winRect struct{ Left, Top, Right, Bottom int32 }

// WindowSource captures a single window's client area via GDI BitBlt on a
// fixed tick, adapted from the same persistent-handle BitBlt+GetDIBits
// approach the donor screen capturer uses for the whole desktop: create
// the DC/bitmap chain once, reuse it every tick, and rebuild it only when
// the client area's size changes.
type WindowSource struct {
	hwnd uintptr
	fps  uint32

	mu        sync.Mutex
	memDC     uintptr
	hBitmap   uintptr
	oldBitmap uintptr
	bi        srcBitmapInfo
	width     int
	height    int
	pixBuf    []byte
	inited    bool
}

// NewWindowSource creates a capturer for hwnd ticking at fps frames/second.
func NewWindowSource(hwnd uintptr, fps uint32) *WindowSource {
	return &WindowSource{hwnd: hwnd, fps: fps}
}

func (s *WindowSource) ensureHandles(windowDC uintptr) error {
	var r winRect
	ok, _, _ := procGetClientRectWin.Call(s.hwnd, uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return fmt.Errorf("GetClientRect failed")
	}
	width := int(r.Right - r.Left)
	height := int(r.Bottom - r.Top)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("window has zero client area")
	}

	if s.inited && s.width == width && s.height == height {
		return nil
	}
	s.releaseHandlesLocked()

	memDC, _, _ := procCreateCompatDC.Call(windowDC)
	if memDC == 0 {
		return fmt.Errorf("CreateCompatibleDC failed")
	}
	hBitmap, _, _ := procCreateCompatBitmap.Call(windowDC, uintptr(width), uintptr(height))
	if hBitmap == 0 {
		procDeleteDCWin.Call(memDC)
		return fmt.Errorf("CreateCompatibleBitmap failed")
	}
	oldBitmap, _, _ := procSelectObjectWin.Call(memDC, hBitmap)
	if oldBitmap == 0 {
		procDeleteObjectWin.Call(hBitmap)
		procDeleteDCWin.Call(memDC)
		return fmt.Errorf("SelectObject failed")
	}

	s.memDC = memDC
	s.hBitmap = hBitmap
	s.oldBitmap = oldBitmap
	s.width = width
	s.height = height
	s.pixBuf = make([]byte, width*height*4)
	s.bi = srcBitmapInfo{
		Header: srcBitmapInfoHeader{
			BiSize:        uint32(unsafe.Sizeof(srcBitmapInfoHeader{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // negative: top-down rows, matching Frame's convention
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: srcBiRGB,
		},
	}
	s.inited = true
	return nil
}

func (s *WindowSource) releaseHandlesLocked() {
	if !s.inited {
		return
	}
	if s.oldBitmap != 0 && s.memDC != 0 {
		procSelectObjectWin.Call(s.memDC, s.oldBitmap)
	}
	if s.hBitmap != 0 {
		procDeleteObjectWin.Call(s.hBitmap)
	}
	if s.memDC != 0 {
		procDeleteDCWin.Call(s.memDC)
	}
	s.inited = false
	s.memDC, s.hBitmap, s.oldBitmap = 0, 0, 0
}

// captureOnce returns one BGRA32 frame of the window's current client area.
func (s *WindowSource) captureOnce() (Frame, error) {
	windowDC, _, _ := procGetWindowDC.Call(s.hwnd)
	if windowDC == 0 {
		return Frame{}, fmt.Errorf("GetDC(hwnd) failed")
	}
	defer procReleaseWindowDC.Call(s.hwnd, windowDC)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureHandles(windowDC); err != nil {
		return Frame{}, err
	}

	ret, _, _ := procBitBltWin.Call(s.memDC, 0, 0, uintptr(s.width), uintptr(s.height),
		windowDC, 0, 0, srcSrcCopy|srcCaptureBlt)
	if ret == 0 {
		ret, _, _ = procBitBltWin.Call(s.memDC, 0, 0, uintptr(s.width), uintptr(s.height),
			windowDC, 0, 0, srcSrcCopy)
		if ret == 0 {
			return Frame{}, fmt.Errorf("BitBlt failed")
		}
	}

	ret, _, _ = procGetDIBitsWin.Call(
		s.memDC, s.hBitmap, 0, uintptr(s.height),
		uintptr(unsafe.Pointer(&s.pixBuf[0])),
		uintptr(unsafe.Pointer(&s.bi)),
		srcDibRGBColors,
	)
	if ret == 0 {
		return Frame{}, fmt.Errorf("GetDIBits failed")
	}

	buf := make([]byte, len(s.pixBuf))
	copy(buf, s.pixBuf)

	return Frame{
		Width:  uint32(s.width),
		Height: uint32(s.height),
		Format: PixelFormatBGRA32,
		Source: FrameSource{Buffer: buf},
	}, nil
}

// Run captures frames on a ticker at the configured frame rate and hands
// each one to sendFrame, until stop is closed. Capture errors are logged
// and skipped rather than propagated: a transient BitBlt failure (e.g. a
// secure-desktop transition) should not end the session.
func (s *WindowSource) Run(stop <-chan struct{}, sendFrame func(Frame) error) {
	interval := time.Second / time.Duration(max(s.fps, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, err := s.captureOnce()
			if err != nil {
				workerLog.Warn("window capture failed, skipping frame", "error", err.Error())
				continue
			}
			frame.CaptureTicks = time.Since(start).Microseconds() * 10
			if err := sendFrame(frame); err != nil && err != ErrFrameDropped {
				workerLog.Error("encoder rejected frame, stopping capture", "error", err.Error())
				return
			}
		}
	}
}

// Close releases the source's persistent GDI handles.
func (s *WindowSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseHandlesLocked()
}
