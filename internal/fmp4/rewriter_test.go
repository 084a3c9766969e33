package fmp4

import "testing"

func TestStateFeedProducesInitThenMediaSegments(t *testing.T) {
	s := NewState(nil)

	ftyp := box("ftyp", []byte("isom"))
	if seg, err := s.Feed("ftyp", ftyp); err != nil || seg != nil {
		t.Fatalf("ftyp before init: seg=%v err=%v, want (nil, nil)", seg, err)
	}

	avc1 := buildAvc1(1920, 1080)
	tkhd := buildTkhdV0()
	moov := buildMoov(true, avc1, tkhd, box("mvex", nil))

	seg, err := s.Feed("moov", moov)
	if err != nil {
		t.Fatalf("moov: %v", err)
	}
	if seg == nil || seg.Kind != SegmentInit {
		t.Fatalf("expected init segment, got %v", seg)
	}
	if len(seg.Bytes) < len(ftyp) {
		t.Fatal("init segment should include the buffered ftyp box")
	}

	moof := buildMoof(buildTfhd(1), buildTrun(60))
	if seg, err := s.Feed("moof", moof); err != nil || seg != nil {
		t.Fatalf("moof: seg=%v err=%v, want (nil, nil) until mdat arrives", seg, err)
	}

	mdat := box("mdat", []byte{1, 2, 3, 4})
	seg, err = s.Feed("mdat", mdat)
	if err != nil {
		t.Fatalf("mdat: %v", err)
	}
	if seg == nil || seg.Kind != SegmentMedia {
		t.Fatalf("expected media segment, got %v", seg)
	}
	if len(seg.Bytes) <= len(mdat) {
		t.Fatal("media segment should be the patched moof followed by mdat")
	}
}

func TestStateFeedRejectsSecondMoov(t *testing.T) {
	s := NewState(nil)
	moov := buildMoov(false, buildAvc1(640, 480), buildTkhdV0(), box("mvex", nil))

	if _, err := s.Feed("moov", moov); err != nil {
		t.Fatalf("first moov: %v", err)
	}
	if _, err := s.Feed("moov", moov); err == nil {
		t.Fatal("expected error on second moov after init")
	}
}

// TestStateFeedEmitsInitBestEffortWithoutAvc1 covers the RewriterInvariant
// that a moov with no locatable avc1/tkhd still produces an Init segment
// (logged, not refused) rather than stalling every subsequent moof/mdat as
// pre-init.
func TestStateFeedEmitsInitBestEffortWithoutAvc1(t *testing.T) {
	s := NewState(nil)

	tkhd := buildTkhdV0()
	moov := box("moov", append(box("trak", append(append([]byte{}, tkhd...), box("mdia", nil)...)), box("mvex", nil)...))

	seg, err := s.Feed("moov", moov)
	if err == nil {
		t.Fatal("expected an error reporting the missing avc1")
	}
	if seg == nil || seg.Kind != SegmentInit {
		t.Fatalf("expected a best-effort init segment despite the error, got %v", seg)
	}

	mdat := box("mdat", []byte{1, 2, 3})
	seg, err = s.Feed("mdat", mdat)
	if err != nil {
		t.Fatalf("mdat after best-effort init: %v", err)
	}
	if seg == nil || seg.Kind != SegmentMedia {
		t.Fatalf("mdat after best-effort init should still produce a media segment, got %v", seg)
	}
}

func TestStateFeedToleratesLoneMdat(t *testing.T) {
	s := NewState(nil)
	moov := buildMoov(false, buildAvc1(640, 480), buildTkhdV0(), box("mvex", nil))
	if _, err := s.Feed("moov", moov); err != nil {
		t.Fatalf("moov: %v", err)
	}

	mdat := box("mdat", []byte{9, 9})
	seg, err := s.Feed("mdat", mdat)
	if err != nil {
		t.Fatalf("lone mdat: %v", err)
	}
	if seg == nil || seg.Kind != SegmentMedia {
		t.Fatalf("expected media segment for lone mdat, got %v", seg)
	}
}
