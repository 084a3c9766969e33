package fmp4

import "errors"

var (
	// ErrNoAvc1 is returned by the moov patch step if no avc1 sample entry
	// can be found to source the track's true pixel dimensions from.
	ErrNoAvc1 = errors.New("fmp4: no avc1 box found in moov")

	// ErrNoTkhd is returned by the moov patch step if moov has no tkhd box
	// to patch with the true dimensions.
	ErrNoTkhd = errors.New("fmp4: no tkhd box found in moov")

	// ErrInvariant marks a protocol violation that is logged and tolerated
	// rather than treated as fatal: the stream keeps flowing on a
	// best-effort basis. A second moov after init, or a moof whose traf,
	// tfhd or trun cannot be located, both fall in this category. A moov
	// lacking mvex is only logged and does not produce this error.
	ErrInvariant = errors.New("fmp4: rewriter invariant violated")
)
