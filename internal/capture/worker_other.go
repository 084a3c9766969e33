//go:build !windows

package capture

// newPlatformWorker is only implemented on Windows: the encoder wraps the
// platform Media Foundation sink writer, which has no equivalent here.
func newPlatformWorker(video VideoSettings, audio AudioSettings, sink segmentSink) (platformWorker, error) {
	return nil, ErrPlatformUnsupported
}
