package capture

import "testing"

// TestNormalizeFlipCorrectness is scenario S3: a 4x2 BGRA input with row 0
// all 0xAA and row 1 all 0xBB must normalize to row 0 = 0xBB, row 1 = 0xAA.
func TestNormalizeFlipCorrectness(t *testing.T) {
	n := NewFrameNormalizer(4, 2)

	row0 := bytesOf(0xAA, 16)
	row1 := bytesOf(0xBB, 16)
	src := append(append([]byte{}, row0...), row1...)

	frame := Frame{
		Width:  4,
		Height: 2,
		Format: PixelFormatBGRA32,
		Source: FrameSource{Buffer: src},
	}

	out, ts, err := n.Normalize(frame)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if ts != 0 {
		t.Fatalf("first frame relative timestamp = %d, want 0", ts)
	}
	if len(out.Pixels) != 4*2*4 {
		t.Fatalf("output length = %d, want %d", len(out.Pixels), 4*2*4)
	}

	gotRow0 := out.Pixels[0:16]
	gotRow1 := out.Pixels[16:32]
	if !allBytesEqual(gotRow0, 0xBB) {
		t.Errorf("output row 0 = %x, want all 0xBB", gotRow0)
	}
	if !allBytesEqual(gotRow1, 0xAA) {
		t.Errorf("output row 1 = %x, want all 0xAA", gotRow1)
	}
}

// TestNormalizeAlignedBufferSize is scenario S2: 1366x1046 aligns down to
// 1360x1040, a 5,657,600-byte normalized buffer.
func TestNormalizeAlignedBufferSize(t *testing.T) {
	v := VideoSettings{Width: 1366, Height: 1046}
	if got, want := v.AlignedWidth(), uint32(1360); got != want {
		t.Fatalf("AlignedWidth() = %d, want %d", got, want)
	}
	if got, want := v.AlignedHeight(), uint32(1040); got != want {
		t.Fatalf("AlignedHeight() = %d, want %d", got, want)
	}

	n := NewFrameNormalizer(v.AlignedWidth(), v.AlignedHeight())
	frame := Frame{
		Width:  1366,
		Height: 1046,
		Format: PixelFormatBGRA32,
		Source: FrameSource{Buffer: make([]byte, 1366*1046*4)},
	}

	out, _, err := n.Normalize(frame)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got, want := len(out.Pixels), 1360*1040*4; got != want {
		t.Fatalf("normalized buffer length = %d, want %d", got, want)
	}
}

func TestNormalizeRejectsNonMonotonicTimestamp(t *testing.T) {
	n := NewFrameNormalizer(4, 2)
	base := Frame{
		Width:  4,
		Height: 2,
		Format: PixelFormatBGRA32,
		Source: FrameSource{Buffer: make([]byte, 4*2*4)},
	}

	first := base
	first.CaptureTicks = 1000
	if _, _, err := n.Normalize(first); err != nil {
		t.Fatalf("first Normalize: %v", err)
	}

	second := base
	second.CaptureTicks = 500
	if _, _, err := n.Normalize(second); err != ErrTimestamp {
		t.Fatalf("Normalize with earlier timestamp = %v, want ErrTimestamp", err)
	}
}

func TestNormalizeRejectsUnsupportedFormat(t *testing.T) {
	n := NewFrameNormalizer(4, 2)
	frame := Frame{Width: 4, Height: 2, Format: PixelFormatUnknown}
	if _, _, err := n.Normalize(frame); err != ErrUnsupportedFormat {
		t.Fatalf("Normalize with unsupported format = %v, want ErrUnsupportedFormat", err)
	}
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func allBytesEqual(buf []byte, b byte) bool {
	for _, v := range buf {
		if v != b {
			return false
		}
	}
	return true
}
