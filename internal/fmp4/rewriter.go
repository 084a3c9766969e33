package fmp4

import "log/slog"

// preInitBoxTypes are top-level boxes the sink writer may emit before moov
// that belong in the init segment verbatim.
var preInitBoxTypes = map[string]bool{
	"ftyp": true,
	"free": true,
	"meta": true,
	"skip": true,
}

// State holds a single encode session's rewriter progress. It is not safe
// for concurrent use; the virtual byte sink already serializes access to it
// under the same mutex that guards the staging buffer, since Write and Seek
// calls and Feed calls always happen on the sink writer's single callback
// thread.
type State struct {
	initComplete bool
	initSegment  []byte
	pendingMoof  []byte

	cumulativeDecodeTime uint64

	log *slog.Logger
}

// NewState creates a rewriter for one encode session.
func NewState(log *slog.Logger) *State {
	if log == nil {
		log = slog.Default()
	}
	return &State{log: log}
}

// Feed hands the rewriter one complete top-level box released by the Box
// Framer, in the order the sink writer produced it. It returns a Segment
// when the box completes one (an Init segment on the first moov, or a Media
// segment once a moof's matching mdat arrives), or (nil, nil) if the box
// was buffered or discarded. The one exception is a moov after the init
// segment, which is discarded and reported as ErrInvariant.
func (s *State) Feed(boxType string, data []byte) (*Segment, error) {
	switch {
	case preInitBoxTypes[boxType] && !s.initComplete:
		s.initSegment = append(s.initSegment, data...)
		return nil, nil

	case boxType == "moov":
		return s.feedMoov(data)

	case boxType == "moof":
		return s.feedMoof(data)

	case boxType == "mdat":
		return s.feedMdat(data)

	default:
		if s.initComplete {
			return &Segment{Kind: SegmentMedia, Bytes: data}, nil
		}
		// Unknown box before init is discarded; MSE has nowhere to put it.
		return nil, nil
	}
}

func (s *State) feedMoov(data []byte) (*Segment, error) {
	if s.initComplete {
		s.log.Warn("moov after init_complete, discarding (protocol violation)")
		return nil, ErrInvariant
	}

	patched, err := patchMoov(data)
	if err != nil {
		s.log.Warn("moov patch failed, emitting init segment best-effort", "error", err)
	}

	if !hasMvex(patched) {
		s.log.Warn("patched moov has no mvex box, emitting init segment anyway")
	}

	s.initSegment = append(s.initSegment, patched...)
	s.initComplete = true

	init := s.initSegment
	s.initSegment = nil

	return &Segment{Kind: SegmentInit, Bytes: init}, nil
}

func (s *State) feedMoof(data []byte) (*Segment, error) {
	patched, newCumulative, err := patchMoof(data, s.cumulativeDecodeTime)
	if err != nil {
		s.log.Warn("moof patch failed, discarding fragment", "error", err)
		return nil, nil
	}
	s.cumulativeDecodeTime = newCumulative
	s.pendingMoof = patched
	return nil, nil
}

func (s *State) feedMdat(data []byte) (*Segment, error) {
	if !s.initComplete {
		// No init segment emitted yet; nothing downstream could play this.
		s.pendingMoof = nil
		return nil, nil
	}

	var media []byte
	if len(s.pendingMoof) > 0 {
		media = make([]byte, 0, len(s.pendingMoof)+len(data))
		media = append(media, s.pendingMoof...)
		media = append(media, data...)
		s.pendingMoof = nil
	} else {
		// A lone mdat with no preceding moof is tolerated, not fatal.
		media = data
	}

	return &Segment{Kind: SegmentMedia, Bytes: media}, nil
}
