package capture

import "encoding/binary"

// boxHeaderSize is the 4-byte big-endian size field plus the 4-byte ASCII
// box type that opens every top-level MP4 box.
const boxHeaderSize = 8

// ReleasedBox is a complete top-level MP4 box the framer has pulled out of
// the staging buffer, ready to hand to the fMP4 rewriter.
type ReleasedBox struct {
	Type string
	Data []byte // full box including its 8-byte header
}

// BoxFramer watches a StagingBuffer and releases complete top-level boxes
// once the sink writer's write cursor has moved safely past them (§4.D).
// It never releases a box while the cursor still sits inside it, since the
// sink writer may still backseek to patch a size field there; that is the
// minimum latency the virtual byte sink can offer without risking handing
// out a box it then has to un-release.
type BoxFramer struct {
	staging *StagingBuffer
}

// NewBoxFramer creates a framer bound to staging. staging is read and
// mutated in place as boxes are released.
func NewBoxFramer(staging *StagingBuffer) *BoxFramer {
	return &BoxFramer{staging: staging}
}

// TryRelease attempts to release as many complete top-level boxes as the
// staging buffer currently holds, given the write cursor's present
// position. It is called after every Write to the virtual byte sink.
func (f *BoxFramer) TryRelease() []ReleasedBox {
	var released []ReleasedBox

	for {
		box, resync, ok := f.tryReleaseOne()
		if resync {
			continue
		}
		if !ok {
			return released
		}
		released = append(released, box)
	}
}

func (f *BoxFramer) tryReleaseOne() (box ReleasedBox, resync, ok bool) {
	buf := f.staging.buffer

	if len(buf) < boxHeaderSize {
		return ReleasedBox{}, false, false
	}

	size := binary.BigEndian.Uint32(buf[0:4])
	if size < boxHeaderSize {
		// Malformed or recovery case: drop one byte and keep scanning.
		// The sink writer never legitimately emits a box this small.
		f.staging.buffer = buf[1:]
		f.staging.bytesFlushed++
		return ReleasedBox{}, true, false
	}

	atomSize := int(size)
	if len(buf) < atomSize {
		return ReleasedBox{}, false, false
	}

	// The write cursor must have moved at least atomSize bytes past the
	// watermark before we know no pending backseek will still patch this
	// box (e.g. a size or duration field written after the fact).
	if f.staging.position < f.staging.bytesFlushed+int64(atomSize) {
		return ReleasedBox{}, false, false
	}

	boxType := string(buf[4:8])
	data := f.staging.release(atomSize)

	return ReleasedBox{Type: boxType, Data: data}, false, true
}
