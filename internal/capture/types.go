// Package capture implements the screen-capture encoding pipeline: frame
// normalization, a Media Foundation sink-writer backed H.264 encoder, and
// the virtual byte sink that feeds encoded fragments to the fMP4 rewriter.
package capture

import "errors"

// PixelFormat identifies the layout of a Frame's raw pixel bytes. The
// pipeline accepts exactly one format; anything else is rejected by the
// Frame Normalizer.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatBGRA32
)

// VideoSettings configures the encoded video stream. Width and Height are
// rounded down to a multiple of 16 before use, since the H.264 macroblock
// grid requires it.
type VideoSettings struct {
	Width          uint32
	Height         uint32
	FPSNumerator   uint32 // denominator is fixed at 1
	AvgBitrate     uint32
	PARNumerator   uint32
	PARDenominator uint32
	Disabled       bool
}

// AlignedWidth returns Width rounded down to the nearest multiple of 16.
func (v VideoSettings) AlignedWidth() uint32 { return alignDown16(v.Width) }

// AlignedHeight returns Height rounded down to the nearest multiple of 16.
func (v VideoSettings) AlignedHeight() uint32 { return alignDown16(v.Height) }

func alignDown16(n uint32) uint32 { return n &^ 15 }

// AudioSettings configures the encoded audio stream. The encode worker
// accepts it as a contract but does not drive an audio pipeline; Disabled
// is expected to be true for every sidecar session today.
type AudioSettings struct {
	SampleRate uint32
	Channels   uint16
	Disabled   bool
}

// FrameSource is the tagged payload a Frame carries. Buffer is the only
// variant the normalizer currently handles; DirectX is a forward-compat
// hook for a future GPU-texture capture path and is ignored if it ever
// arrives.
type FrameSource struct {
	Buffer  []byte
	DirectX uintptr
	IsGPU   bool
}

// Frame is a single captured image delivered by the platform capture layer.
type Frame struct {
	Width        uint32
	Height       uint32
	Format       PixelFormat
	Source       FrameSource
	CaptureTicks int64 // 100ns ticks, platform clock
}

// NormalizedFrame is the Frame Normalizer's output: always exactly
// target_w*target_h*4 bytes, bottom-up (flipped from the top-down Frame
// input), ready to hand to the encoder as RGB32/BGRA input.
type NormalizedFrame struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// RelativeTimestamp is a sample timestamp in 100ns ticks, relative to the
// first frame normalized in a session (which is always 0).
type RelativeTimestamp int64

var (
	// ErrUnsupportedFormat is returned by the normalizer when a Frame's
	// PixelFormat is anything other than PixelFormatBGRA32.
	ErrUnsupportedFormat = errors.New("capture: unsupported pixel format")

	// ErrTimestamp is returned by the normalizer when a frame's capture
	// timestamp is not monotonically non-decreasing relative to the first
	// frame of the session.
	ErrTimestamp = errors.New("capture: non-monotonic frame timestamp")

	// ErrPlatform wraps a fatal platform/COM failure from the encoder
	// worker. Once returned from Finish, the encoder must not be reused.
	ErrPlatform = errors.New("capture: platform encoder error")

	// ErrFrameDropped is returned by SendFrame when the bounded encoder
	// channel is full. It is recoverable: the caller should keep capturing
	// and simply continue, optionally incrementing a dropped-frame counter.
	ErrFrameDropped = errors.New("capture: frame dropped, encoder busy")

	// ErrVideoDisabled is returned by SendFrame when VideoSettings.Disabled
	// is true.
	ErrVideoDisabled = errors.New("capture: video stream disabled")

	// ErrWriteBelowWatermark is a fatal error from the virtual byte sink: the
	// sink writer attempted to write at a position below bytes already
	// released to the box framer. This should never happen in practice and
	// indicates the sink writer violated its append-or-seek-forward contract.
	ErrWriteBelowWatermark = errors.New("capture: write below watermark")

	// ErrPlatformUnsupported is returned by encoder constructors on
	// platforms without a Media Foundation backend.
	ErrPlatformUnsupported = errors.New("capture: platform not supported")
)
