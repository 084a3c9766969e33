package capture

import "github.com/breeze-rmm/capture-sidecar/internal/logging"

var workerLog = logging.L("encoder-worker")

// segmentSink is the narrow interface the platform encoder worker needs
// from the Output Fanout: hand it a segment's bytes, never block, never
// fail visibly. *Fanout satisfies this.
type segmentSink interface {
	Send(data []byte)
}

// encoderSample is the unit of work handed to the Encoder Worker's bounded
// channel (§4.B): a normalized frame and the relative timestamp the
// Normalizer computed for it. A nil sample on the channel, or the channel
// closing, tells the worker to finalize and exit.
type encoderSample struct {
	frame NormalizedFrame
	ts    RelativeTimestamp
}

// encoderChannelCapacity is fixed at 2 per §5/§9: large enough to absorb
// one frame of jitter, small enough that growing it would turn backpressure
// into a jitter buffer. Do not grow it.
const encoderChannelCapacity = 2
