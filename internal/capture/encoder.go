package capture

import (
	"sync"

	"github.com/breeze-rmm/capture-sidecar/internal/logging"
)

// platformWorker is the Windows-specific half of the Encoder Worker
// (§4.B): a live sink writer plus everything behind it (Virtual Byte
// Sink, Box Framer, fMP4 Rewriter). newPlatformWorker on non-Windows
// platforms returns ErrPlatformUnsupported immediately.
type platformWorker interface {
	submitSample(frame NormalizedFrame, ts RelativeTimestamp) error
	finalize() error
}

// Encoder is the producer-facing API described in §6.1: accept raw
// captured frames, normalize and encode them, and deliver the resulting
// fMP4 segments to an OutputSink.
type Encoder struct {
	video VideoSettings
	audio AudioSettings

	norm   *FrameNormalizer
	worker platformWorker
	fanout *Fanout

	ch   chan *encoderSample
	done chan struct{}

	mu       sync.Mutex
	fatal    error
	finished bool
}

// NewEncoder configures the platform sink writer and starts the encoder
// worker goroutine. sink receives every emitted Segment's bytes.
func NewEncoder(video VideoSettings, audio AudioSettings, sink OutputSink) (*Encoder, error) {
	fanout := NewFanout(sink)

	worker, err := newPlatformWorker(video, audio, fanout)
	if err != nil {
		fanout.Close()
		return nil, err
	}

	e := &Encoder{
		video:  video,
		audio:  audio,
		norm:   NewFrameNormalizer(video.AlignedWidth(), video.AlignedHeight()),
		worker: worker,
		fanout: fanout,
		ch:     make(chan *encoderSample, encoderChannelCapacity),
		done:   make(chan struct{}),
	}
	go e.run()
	return e, nil
}

func (e *Encoder) run() {
	defer close(e.done)

	for sample := range e.ch {
		if sample == nil {
			break
		}
		if err := e.worker.submitSample(sample.frame, sample.ts); err != nil {
			e.setFatal(err)
			workerLog.Error("sample submission failed, worker exiting", logging.KeyError, err.Error())
			return
		}
	}

	if err := e.worker.finalize(); err != nil {
		e.setFatal(err)
	}
}

func (e *Encoder) setFatal(err error) {
	e.mu.Lock()
	if e.fatal == nil {
		e.fatal = err
	}
	e.mu.Unlock()
}

func (e *Encoder) fatalErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}

// SendFrame normalizes frame and attempts to hand it to the encoder
// worker. A full channel returns ErrFrameDropped (expected, non-fatal);
// any other error returned here, or observed on a later call, is fatal
// per §7's propagation policy.
func (e *Encoder) SendFrame(frame Frame) error {
	if e.video.Disabled {
		return ErrVideoDisabled
	}
	if err := e.fatalErr(); err != nil {
		return err
	}

	normalized, ts, err := e.norm.Normalize(frame)
	if err != nil {
		return err
	}

	select {
	case e.ch <- &encoderSample{frame: normalized, ts: ts}:
		return nil
	default:
		return ErrFrameDropped
	}
}

// Finish closes the encoder channel, waits for the worker to finalize the
// sink writer, stops the fanout, and surfaces any fatal error the worker
// accumulated. Idempotent.
func (e *Encoder) Finish() error {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return e.fatal
	}
	e.finished = true
	e.mu.Unlock()

	close(e.ch)
	<-e.done
	e.fanout.Close()
	return e.fatalErr()
}
