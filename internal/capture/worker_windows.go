//go:build windows

package capture

import (
	"fmt"
	"sync"

	"github.com/breeze-rmm/capture-sidecar/internal/fmp4"
	"github.com/breeze-rmm/capture-sidecar/internal/logging"
)

const hundredNsPerSecond = 10_000_000

// mfWorker is the Windows implementation of platformWorker (§4.B): it owns
// the sink writer, the custom IMFByteStream behind it, and everything
// downstream of it (staging buffer, box framer, rewriter state).
type mfWorker struct {
	video VideoSettings

	writer       uintptr
	byteStream   uintptr
	videoStream  uint32
	hasVideo     bool

	sampleDuration int64

	mu sync.Mutex
}

// newPlatformWorker initializes COM (multithreaded apartment) and Media
// Foundation on the calling goroutine, builds the virtual byte sink, and
// configures the sink writer's streams. NewEncoder calls it on its own
// caller's goroutine; submitSample and finalize later run on the goroutine
// Encoder.run executes on. Neither goroutine is locked to an OS thread.
func newPlatformWorker(video VideoSettings, audio AudioSettings, sink segmentSink) (platformWorker, error) {
	if err := comInitialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}
	if err := mfStartup(); err != nil {
		comUninitialize()
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}

	staging := NewStagingBuffer()
	framer := NewBoxFramer(staging)
	state := fmp4.NewState(logging.L("fmp4"))

	byteStream := newVirtualByteStream(staging, framer, state, sink)

	writer, err := mfCreateSinkWriterFromMFByteStream(byteStream)
	if err != nil {
		mfShutdown()
		comUninitialize()
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}

	w := &mfWorker{
		video:          video,
		writer:         writer,
		byteStream:     byteStream,
		sampleDuration: hundredNsPerSecond / int64(max(video.FPSNumerator, 1)),
	}

	if !video.Disabled {
		if err := w.addVideoStream(video); err != nil {
			w.teardown()
			return nil, err
		}
		w.hasVideo = true
	}

	if !audio.Disabled {
		if err := w.addAudioStream(audio); err != nil {
			w.teardown()
			return nil, err
		}
	}

	if err := sinkWriterBeginWriting(writer); err != nil {
		w.teardown()
		return nil, fmt.Errorf("%w: BeginWriting: %v", ErrPlatform, err)
	}

	return w, nil
}

// addVideoStream implements §4.B step 3: H.264 Base profile output, RGB32
// input with a negative default stride since the Normalizer already
// delivers bottom-up rows.
func (w *mfWorker) addVideoStream(v VideoSettings) error {
	width, height := v.AlignedWidth(), v.AlignedHeight()

	output, err := mfCreateMediaType()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlatform, err)
	}
	defer comRelease(output)

	if err := attrSetGUID(output, mfMTMajorType, mfMediaTypeVideo); err != nil {
		return platformErr(err)
	}
	if err := attrSetGUID(output, mfMTSubtype, mfVideoFormatH264); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT64(output, mfMTFrameSize, pack64(width, height)); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT64(output, mfMTFrameRate, pack64(v.FPSNumerator, 1)); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT64(output, mfMTPixelAspectRatio, pack64(v.PARNumerator, v.PARDenominator)); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(output, mfMTInterlaceMode, mfVideoInterlaceProgressive); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(output, mfMTAvgBitrate, v.AvgBitrate); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(output, mfMTH264Profile, eAVEncH264VProfileBaseline); err != nil {
		return platformErr(err)
	}

	streamIdx, err := sinkWriterAddStream(w.writer, output)
	if err != nil {
		return fmt.Errorf("%w: AddStream(video): %v", ErrPlatform, err)
	}
	w.videoStream = streamIdx

	input, err := mfCreateMediaType()
	if err != nil {
		return platformErr(err)
	}
	defer comRelease(input)

	if err := attrSetGUID(input, mfMTMajorType, mfMediaTypeVideo); err != nil {
		return platformErr(err)
	}
	if err := attrSetGUID(input, mfMTSubtype, mfVideoFormatRGB32); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT64(input, mfMTFrameSize, pack64(width, height)); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT64(input, mfMTFrameRate, pack64(v.FPSNumerator, 1)); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT64(input, mfMTPixelAspectRatio, pack64(v.PARNumerator, v.PARDenominator)); err != nil {
		return platformErr(err)
	}
	// Negative stride: the buffer the Normalizer hands us is bottom-up.
	if err := attrSetUINT32(input, mfMTDefaultStride, uint32(int32(-(int64(width)*4)))); err != nil {
		return platformErr(err)
	}

	if err := sinkWriterSetInputType(w.writer, streamIdx, input); err != nil {
		return fmt.Errorf("%w: SetInputMediaType(video): %v", ErrPlatform, err)
	}
	return nil
}

// addAudioStream implements §4.B step 4: AAC output, 16-bit PCM input.
func (w *mfWorker) addAudioStream(a AudioSettings) error {
	const bitsPerSample = 16
	blockAlign := uint32(bitsPerSample/8) * uint32(a.Channels)
	avgBytesPerSec := blockAlign * a.SampleRate

	output, err := mfCreateMediaType()
	if err != nil {
		return platformErr(err)
	}
	defer comRelease(output)
	if err := attrSetGUID(output, mfMTMajorType, mfMediaTypeAudio); err != nil {
		return platformErr(err)
	}
	if err := attrSetGUID(output, mfMTSubtype, mfAudioFormatAAC); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(output, mfMTAudioNumChannels, uint32(a.Channels)); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(output, mfMTAudioSamplesPerSecond, a.SampleRate); err != nil {
		return platformErr(err)
	}

	streamIdx, err := sinkWriterAddStream(w.writer, output)
	if err != nil {
		return fmt.Errorf("%w: AddStream(audio): %v", ErrPlatform, err)
	}

	input, err := mfCreateMediaType()
	if err != nil {
		return platformErr(err)
	}
	defer comRelease(input)
	if err := attrSetGUID(input, mfMTMajorType, mfMediaTypeAudio); err != nil {
		return platformErr(err)
	}
	if err := attrSetGUID(input, mfMTSubtype, mfAudioFormatPCM); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(input, mfMTAudioNumChannels, uint32(a.Channels)); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(input, mfMTAudioSamplesPerSecond, a.SampleRate); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(input, mfMTAudioBlockAlign, blockAlign); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(input, mfMTAudioAvgBytesPerSecond, avgBytesPerSec); err != nil {
		return platformErr(err)
	}
	if err := attrSetUINT32(input, mfMTAudioBitsPerSample, bitsPerSample); err != nil {
		return platformErr(err)
	}

	if err := sinkWriterSetInputType(w.writer, streamIdx, input); err != nil {
		return fmt.Errorf("%w: SetInputMediaType(audio): %v", ErrPlatform, err)
	}
	return nil
}

// submitSample implements §4.B's steady state for one normalized video
// frame: allocate a media buffer, copy the pixels in, wrap it in a sample,
// stamp sample time/duration, submit.
func (w *mfWorker) submitSample(frame NormalizedFrame, ts RelativeTimestamp) error {
	if !w.hasVideo {
		return ErrVideoDisabled
	}

	buf, err := mfCreateMemoryBuffer(uint32(len(frame.Pixels)))
	if err != nil {
		return platformErr(err)
	}
	defer comRelease(buf)

	dst, err := bufferLock(buf)
	if err != nil {
		return platformErr(err)
	}
	copy(dst, frame.Pixels)
	bufferUnlock(buf)

	if err := bufferSetCurrentLength(buf, uint32(len(frame.Pixels))); err != nil {
		return platformErr(err)
	}

	sample, err := mfCreateSample()
	if err != nil {
		return platformErr(err)
	}
	defer comRelease(sample)

	if err := sampleAddBuffer(sample, buf); err != nil {
		return platformErr(err)
	}
	if err := sampleSetSampleTime(sample, int64(ts)); err != nil {
		return platformErr(err)
	}
	if err := sampleSetSampleDuration(sample, w.sampleDuration); err != nil {
		return platformErr(err)
	}

	PutFrameBuffer(frame.Pixels)

	if err := sinkWriterWriteSample(w.writer, w.videoStream, sample); err != nil {
		return fmt.Errorf("%w: WriteSample: %v", ErrPlatform, err)
	}
	return nil
}

// finalize flushes and closes the sink writer. Idempotent in the sense
// that the Encoder only ever calls it once per session (after the channel
// closes); a second call would return whatever HRESULT Finalize gives a
// writer that is already finalized, which this worker never exercises.
func (w *mfWorker) finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := sinkWriterFinalize(w.writer)
	w.teardown()
	if err != nil {
		return fmt.Errorf("%w: Finalize: %v", ErrPlatform, err)
	}
	return nil
}

func (w *mfWorker) teardown() {
	if w.writer != 0 {
		comRelease(w.writer)
		w.writer = 0
	}
	if w.byteStream != 0 {
		comRelease(w.byteStream)
		w.byteStream = 0
	}
	mfShutdown()
	comUninitialize()
}

func platformErr(err error) error {
	return fmt.Errorf("%w: %v", ErrPlatform, err)
}
