package fmp4

// SegmentKind tags a Segment as the one-time initialization segment or a
// subsequent media segment.
type SegmentKind int

const (
	SegmentInit SegmentKind = iota
	SegmentMedia
)

// Segment is one unit of output the Rewriter hands to the Output Fanout.
// The first Segment of a session is always SegmentInit; every Segment after
// it is SegmentMedia. Concatenating every Segment's Bytes in order yields a
// valid fMP4 stream for MSE.
type Segment struct {
	Kind  SegmentKind
	Bytes []byte
}
