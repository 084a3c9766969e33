package fmp4

import (
	"encoding/binary"
	"testing"
)

// buildTfhd returns a version-0 tfhd box with base-data-offset-present set
// (flags 0x000001), an 8-byte base_data_offset field following track_ID.
func buildTfhd(trackID uint32) []byte {
	payload := make([]byte, 4+4+8) // version/flags(4) + track_ID(4) + base_data_offset(8)
	binary.BigEndian.PutUint32(payload[0:4], tfhdFlagBaseDataOffsetPresent) // version 0, flags in low 3 bytes
	binary.BigEndian.PutUint32(payload[4:8], trackID)
	return box("tfhd", payload)
}

// buildTrun returns a version-0 trun box with data-offset-present set
// (flags 0x000001) and the given sample count, no per-sample fields.
func buildTrun(sampleCount uint32) []byte {
	payload := make([]byte, 4+4+4) // version/flags(4) + sample_count(4) + data_offset(4)
	binary.BigEndian.PutUint32(payload[0:4], trunFlagDataOffsetPresent)
	binary.BigEndian.PutUint32(payload[4:8], sampleCount)
	return box("trun", payload)
}

func buildMoof(tfhd, trun []byte) []byte {
	traf := box("traf", append(append([]byte{}, tfhd...), trun...))
	return box("moof", traf)
}

func TestPatchMoofNormalizesTfhdAndInjectsTfdt(t *testing.T) {
	tfhd := buildTfhd(1)
	trun := buildTrun(10)
	moof := buildMoof(tfhd, trun)
	origSize := len(moof)

	const cumulative = uint64(5000)
	patched, newCumulative, err := patchMoof(moof, cumulative)
	if err != nil {
		t.Fatalf("patchMoof: %v", err)
	}

	trafOff := 8 + findChild(patched[8:], "traf")
	traf := patched[trafOff : trafOff+int(readU32BE(patched, trafOff))]

	tfhdOff := findChild(traf[8:], "tfhd")
	if tfhdOff < 0 {
		t.Fatal("tfhd missing after patch")
	}
	tfhdAbs := 8 + tfhdOff
	flags := readFlags24(traf, tfhdAbs+8)
	if flags&tfhdFlagBaseDataOffsetPresent != 0 {
		t.Fatal("base-data-offset-present should be cleared")
	}
	if flags&tfhdFlagDefaultBaseIsMoof == 0 {
		t.Fatal("default-base-is-moof should be set")
	}
	if size := readU32BE(traf, tfhdAbs); size != 16 {
		t.Fatalf("tfhd size = %d, want 16 (8-byte base_data_offset removed)", size)
	}

	tfdtOff := findChild(traf[8:], "tfdt")
	if tfdtOff < 0 {
		t.Fatal("tfdt was not injected")
	}
	tfdtAbs := 8 + tfdtOff
	if size := readU32BE(traf, tfdtAbs); size != 16 {
		t.Fatalf("tfdt size = %d, want 16", size)
	}
	if got := readU32BE(traf, tfdtAbs+12); got != uint32(cumulative) {
		t.Fatalf("tfdt.baseMediaDecodeTime = %d, want %d", got, cumulative)
	}

	trunOff := findChild(traf[8:], "trun")
	if trunOff < 0 {
		t.Fatal("trun missing after patch")
	}
	trunAbs := 8 + trunOff
	wantMoofSize := origSize + 8 // tfhd -8, tfdt +16 => traf +8 => moof +8
	if got := len(patched); got != wantMoofSize {
		t.Fatalf("patched moof size = %d, want %d", got, wantMoofSize)
	}
	wantDataOffset := uint32(wantMoofSize) + 8 // skip patched moof + mdat header
	if got := readU32BE(traf, trunAbs+16); got != wantDataOffset {
		t.Fatalf("trun.data_offset = %d, want %d", got, wantDataOffset)
	}

	wantCumulative := cumulative + 10*decodeTimeTicksPerSample
	if newCumulative != wantCumulative {
		t.Fatalf("cumulative decode time = %d, want %d", newCumulative, wantCumulative)
	}
}

func TestPatchMoofDecodeTimeAccumulatesAcrossFragments(t *testing.T) {
	first := buildMoof(buildTfhd(1), buildTrun(60))
	_, afterFirst, err := patchMoof(first, 0)
	if err != nil {
		t.Fatalf("patchMoof first: %v", err)
	}
	if afterFirst != 60*decodeTimeTicksPerSample {
		t.Fatalf("after first fragment cumulative = %d, want %d", afterFirst, 60*decodeTimeTicksPerSample)
	}

	second := buildMoof(buildTfhd(1), buildTrun(60))
	patchedSecond, afterSecond, err := patchMoof(second, afterFirst)
	if err != nil {
		t.Fatalf("patchMoof second: %v", err)
	}
	if afterSecond != 120*decodeTimeTicksPerSample {
		t.Fatalf("after second fragment cumulative = %d, want %d", afterSecond, 120*decodeTimeTicksPerSample)
	}

	trafOff := 8 + findChild(patchedSecond[8:], "traf")
	traf := patchedSecond[trafOff : trafOff+int(readU32BE(patchedSecond, trafOff))]
	tfdtOff := 8 + findChild(traf[8:], "tfdt")
	if got := readU32BE(traf, tfdtOff+12); got != uint32(afterFirst) {
		t.Fatalf("second fragment tfdt.baseMediaDecodeTime = %d, want %d", got, afterFirst)
	}
}
