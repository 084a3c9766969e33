package capture

import (
	"bytes"
	"testing"
)

func TestStagingBufferWriteAdvancesPosition(t *testing.T) {
	s := NewStagingBuffer()
	n, err := s.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}
	if s.Position() != 5 {
		t.Fatalf("Position() = %d, want 5", s.Position())
	}
	if s.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", s.Size())
	}
}

func TestStagingBufferRejectsWriteBelowWatermark(t *testing.T) {
	s := NewStagingBuffer()
	s.Write([]byte("0123456789"))
	s.release(10)

	s.Seek(SeekSet, 5)
	if _, err := s.Write([]byte("x")); err != ErrWriteBelowWatermark {
		t.Fatalf("Write below watermark = %v, want ErrWriteBelowWatermark", err)
	}
}

// TestStagingBufferSeekBelowClamp is scenario S4: write 100 bytes, release
// them so bytesFlushed = 100, then Seek(SET, 0) must clamp to 100, not fail.
func TestStagingBufferSeekBelowClamp(t *testing.T) {
	s := NewStagingBuffer()
	s.Write(bytes.Repeat([]byte{0x01}, 100))
	s.release(100)

	pos := s.Seek(SeekSet, 0)
	if pos != 100 {
		t.Fatalf("Seek(SET, 0) after 100-byte release = %d, want 100", pos)
	}
	if s.Position() != 100 {
		t.Fatalf("Position() = %d, want 100", s.Position())
	}
}

func TestStagingBufferSeekCurrentAndEnd(t *testing.T) {
	s := NewStagingBuffer()
	s.Write([]byte("0123456789"))

	if pos := s.Seek(SeekCurrent, -4); pos != 6 {
		t.Fatalf("Seek(CURRENT, -4) = %d, want 6", pos)
	}
	if pos := s.Seek(SeekEnd, 0); pos != 10 {
		t.Fatalf("Seek(END, 0) = %d, want 10", pos)
	}
}

func TestStagingBufferWriteGrowsOverGap(t *testing.T) {
	s := NewStagingBuffer()
	s.Seek(SeekSet, 10)
	s.Write([]byte("x"))
	if s.Buffered() != 11 {
		t.Fatalf("Buffered() = %d, want 11", s.Buffered())
	}
}
