package capture

import (
	"encoding/binary"
	"testing"
)

func makeBox(boxType string, payloadLen int) []byte {
	size := boxHeaderSize + payloadLen
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	copy(buf[4:8], boxType)
	return buf
}

func TestBoxFramerWithholdsUntilCursorPastBox(t *testing.T) {
	staging := NewStagingBuffer()
	framer := NewBoxFramer(staging)

	box := makeBox("ftyp", 16)
	staging.Write(box)
	// Cursor sits mid-box, as if the sink writer is about to backseek to
	// patch a field: must not release yet.
	staging.Seek(SeekSet, int64(len(box)-1))

	released := framer.TryRelease()
	if len(released) != 0 {
		t.Fatalf("TryRelease with cursor inside box returned %d boxes, want 0", len(released))
	}
}

func TestBoxFramerReleasesOnceCursorClearsBox(t *testing.T) {
	staging := NewStagingBuffer()
	framer := NewBoxFramer(staging)

	box := makeBox("ftyp", 16)
	staging.Write(box)

	released := framer.TryRelease()
	if len(released) != 1 {
		t.Fatalf("TryRelease returned %d boxes, want 1", len(released))
	}
	if released[0].Type != "ftyp" {
		t.Fatalf("released box type = %q, want ftyp", released[0].Type)
	}
	if len(released[0].Data) != len(box) {
		t.Fatalf("released box length = %d, want %d", len(released[0].Data), len(box))
	}
	if staging.Buffered() != 0 {
		t.Fatalf("Buffered() = %d, want 0 after release", staging.Buffered())
	}
}

func TestBoxFramerReleasesMultipleBoxesInOneCall(t *testing.T) {
	staging := NewStagingBuffer()
	framer := NewBoxFramer(staging)

	a := makeBox("ftyp", 8)
	b := makeBox("moov", 24)
	staging.Write(a)
	staging.Write(b)

	released := framer.TryRelease()
	if len(released) != 2 {
		t.Fatalf("TryRelease returned %d boxes, want 2", len(released))
	}
	if released[0].Type != "ftyp" || released[1].Type != "moov" {
		t.Fatalf("released order = [%s, %s], want [ftyp, moov]", released[0].Type, released[1].Type)
	}
}

func TestBoxFramerRecoversFromMalformedSize(t *testing.T) {
	staging := NewStagingBuffer()
	framer := NewBoxFramer(staging)

	// A bogus 4-byte size field of 0 (< boxHeaderSize) followed by a real
	// box; the framer must drop one byte at a time until it resyncs.
	bogus := []byte{0, 0, 0, 0}
	good := makeBox("free", 4)
	staging.Write(append(bogus, good...))

	released := framer.TryRelease()
	if len(released) != 1 || released[0].Type != "free" {
		t.Fatalf("TryRelease after malformed prefix = %+v, want one free box", released)
	}
}
