package capture

import (
	"sync"

	"github.com/breeze-rmm/capture-sidecar/internal/logging"
)

var fanoutLog = logging.L("fanout")

// OutputSink is the external collaborator the Output Fanout (component F)
// delivers framed segment bytes to. Send must be non-blocking and
// infallible from the core's perspective: a transport-level failure is
// reported through the returned error purely for logging, never as a
// reason to tear down the capture session.
type OutputSink interface {
	Send(data []byte) error
}

// Fanout delivers each emitted Segment to sink in order over an unbounded
// queue, so the encoder thread producing segments is never slowed or
// dropped on account of a momentarily slow consumer — per §5, the outbound
// queue is unbounded, single-producer, single-consumer. A dedicated
// goroutine drains it.
type Fanout struct {
	sink OutputSink

	mu      sync.Mutex
	pending [][]byte
	signal  chan struct{}
	closed  bool
}

// NewFanout starts the fanout's drain goroutine immediately.
func NewFanout(sink OutputSink) *Fanout {
	f := &Fanout{
		sink:   sink,
		signal: make(chan struct{}, 1),
	}
	go f.run()
	return f
}

// Send enqueues data for delivery and never blocks.
func (f *Fanout) Send(data []byte) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.pending = append(f.pending, data)
	f.mu.Unlock()

	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *Fanout) run() {
	for range f.signal {
		for {
			f.mu.Lock()
			if len(f.pending) == 0 {
				f.mu.Unlock()
				break
			}
			data := f.pending[0]
			f.pending = f.pending[1:]
			f.mu.Unlock()

			if err := f.sink.Send(data); err != nil {
				fanoutLog.Warn("segment delivery failed", logging.KeyError, err.Error())
			}
		}
	}
}

// Close stops the drain goroutine once the currently queued segments have
// been delivered. Any Send after Close is silently dropped.
func (f *Fanout) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	close(f.signal)
}
