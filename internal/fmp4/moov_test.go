package fmp4

import (
	"encoding/binary"
	"testing"
)

func box(boxType string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(b, uint32(len(b)))
	copy(b[4:8], boxType)
	copy(b[8:], payload)
	return b
}

// buildAvc1 returns a minimal VisualSampleEntry with the given width/height
// at the fixed offsets (+28/+30 from the 'avc1' tag) readAvc1Dimensions expects.
func buildAvc1(width, height uint16) []byte {
	payload := make([]byte, 70) // well past width/height at payload offset 24/26 (tag+28/+30)
	binary.BigEndian.PutUint16(payload[24:26], width)
	binary.BigEndian.PutUint16(payload[26:28], height)
	return box("avc1", payload)
}

func buildTkhdV0() []byte {
	payload := make([]byte, 84) // version+flags through width/height at tag+80/+84
	return box("tkhd", payload)
}

func buildMoov(withIods bool, avc1, tkhd []byte, extra ...[]byte) []byte {
	var payload []byte
	if withIods {
		payload = append(payload, box("iods", make([]byte, 4))...)
	}

	// trak > mdia > minf > stbl > stsd > avc1
	stsd := box("stsd", append(make([]byte, 8), avc1...))
	stbl := box("stbl", stsd)
	minf := box("minf", stbl)
	mdia := box("mdia", minf)
	trak := box("trak", append(append([]byte{}, tkhd...), mdia...))

	payload = append(payload, trak...)
	for _, e := range extra {
		payload = append(payload, e...)
	}

	return box("moov", payload)
}

func TestPatchMoovRemovesIodsAndShrinksSize(t *testing.T) {
	avc1 := buildAvc1(1920, 1080)
	tkhd := buildTkhdV0()

	withIods := buildMoov(true, avc1, tkhd)
	withoutIods := buildMoov(false, avc1, tkhd)

	patched, err := patchMoov(withIods)
	if err != nil {
		t.Fatalf("patchMoov: %v", err)
	}

	if boxSize(patched) != uint32(len(withoutIods)) {
		t.Fatalf("expected size %d after iods removal, got %d", len(withoutIods), boxSize(patched))
	}

	if findChild(patched[8:], "iods") >= 0 {
		t.Fatal("iods should be removed")
	}
}

func TestPatchMoovStampsTkhdFromAvc1(t *testing.T) {
	avc1 := buildAvc1(1360, 1040)
	tkhd := buildTkhdV0()
	moov := buildMoov(false, avc1, tkhd)

	patched, err := patchMoov(moov)
	if err != nil {
		t.Fatalf("patchMoov: %v", err)
	}

	off := findASCII(patched, "tkhd")
	if off < 0 {
		t.Fatal("tkhd not found after patch")
	}
	width := readU32BE(patched, off+80)
	height := readU32BE(patched, off+84)

	if width != uint32(1360)<<16 {
		t.Fatalf("width = %#x, want %#x", width, uint32(1360)<<16)
	}
	if height != uint32(1040)<<16 {
		t.Fatalf("height = %#x, want %#x", height, uint32(1040)<<16)
	}
}

func TestPatchMoovRejectsMissingAvc1(t *testing.T) {
	tkhd := buildTkhdV0()
	moov := box("moov", append(box("trak", append(append([]byte{}, tkhd...), box("mdia", nil)...)), nil...))

	if _, err := patchMoov(moov); err == nil {
		t.Fatal("expected error when avc1 is missing")
	}
}
