package capture

import "sync"

// frameBufferPool pools normalized-frame buffers for a fixed resolution,
// the same way colorconv's NV12 pool avoids a per-frame allocation for a
// steady-state capture loop.
var frameBufferPool = struct {
	pool sync.Pool
	w, h uint32
	mu   sync.Mutex
}{}

func getFrameBuffer(w, h uint32) []byte {
	size := int(w) * int(h) * 4
	frameBufferPool.mu.Lock()
	if frameBufferPool.w == w && frameBufferPool.h == h {
		frameBufferPool.mu.Unlock()
		if v := frameBufferPool.pool.Get(); v != nil {
			buf := v.([]byte)
			clear(buf)
			return buf
		}
		return make([]byte, size)
	}
	frameBufferPool.w = w
	frameBufferPool.h = h
	frameBufferPool.pool = sync.Pool{}
	frameBufferPool.mu.Unlock()
	return make([]byte, size)
}

// PutFrameBuffer returns a NormalizedFrame's backing buffer to the pool once
// the caller is done with it (after the encoder worker has copied it into a
// media sample).
func PutFrameBuffer(buf []byte) {
	frameBufferPool.pool.Put(buf)
}

// FrameNormalizer reshapes captured frames into a fixed target resolution
// with a monotonic, session-relative timestamp. One normalizer belongs to
// exactly one encode session; it is not safe for concurrent use because the
// capture callback that feeds it is itself single-threaded.
type FrameNormalizer struct {
	targetWidth  uint32
	targetHeight uint32

	haveFirst bool
	t0        int64
}

// NewFrameNormalizer creates a normalizer for the given target resolution.
// width and height should already be the aligned (multiple-of-16) encoder
// dimensions.
func NewFrameNormalizer(width, height uint32) *FrameNormalizer {
	return &FrameNormalizer{targetWidth: width, targetHeight: height}
}

// Normalize converts frame into a NormalizedFrame sized exactly
// targetWidth*targetHeight*4, flipping it from the capture API's top-down
// row order to bottom-up, and letterboxing/pillarboxing with zeroed rows or
// columns when frame is smaller than the target.
//
// The first call establishes t0 = frame.CaptureTicks and returns a relative
// timestamp of 0. Every subsequent call returns frame.CaptureTicks - t0,
// which must be non-negative or ErrTimestamp is returned.
func (n *FrameNormalizer) Normalize(frame Frame) (NormalizedFrame, RelativeTimestamp, error) {
	if frame.Format != PixelFormatBGRA32 {
		return NormalizedFrame{}, 0, ErrUnsupportedFormat
	}

	var relative int64
	if !n.haveFirst {
		n.t0 = frame.CaptureTicks
		n.haveFirst = true
		relative = 0
	} else {
		relative = frame.CaptureTicks - n.t0
		if relative < 0 {
			return NormalizedFrame{}, 0, ErrTimestamp
		}
	}

	dst := getFrameBuffer(n.targetWidth, n.targetHeight)

	copyWidth := min(frame.Width, n.targetWidth)
	copyHeight := min(frame.Height, n.targetHeight)

	srcStride := int(frame.Width) * 4
	dstStride := int(n.targetWidth) * 4
	src := frame.Source.Buffer

	for row := uint32(0); row < copyHeight; row++ {
		srcOff := int(row) * srcStride
		dstRow := copyHeight - 1 - row // vertical flip: top-down -> bottom-up
		dstOff := int(dstRow) * dstStride

		if srcOff+int(copyWidth)*4 > len(src) || dstOff+int(copyWidth)*4 > len(dst) {
			break
		}
		copy(dst[dstOff:dstOff+int(copyWidth)*4], src[srcOff:srcOff+int(copyWidth)*4])
	}

	return NormalizedFrame{
		Width:  n.targetWidth,
		Height: n.targetHeight,
		Pixels: dst,
	}, RelativeTimestamp(relative), nil
}
