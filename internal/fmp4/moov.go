package fmp4

// patchMoov implements §4.E.2: drop any iods child (Media Foundation emits
// one; MSE rejects it), then stamp the track's true pixel dimensions onto
// tkhd by reading them back out of the avc1 sample entry the sink writer
// already wrote. moov is the full box including its 8-byte header.
//
// It always returns a usable moov, even when a later patch step fails: the
// caller still needs something to put in the init segment, since refusing
// to emit one entirely would leave nothing downstream could ever play. On
// error, the returned moov is whatever patching completed before the
// failure (at minimum, iods already removed with its size field fixed up).
func patchMoov(moov []byte) ([]byte, error) {
	moov = removeIods(moov)

	width, height, err := readAvc1Dimensions(moov)
	if err != nil {
		return moov, err
	}

	patched, err := patchTkhdDimensions(moov, width, height)
	if err != nil {
		return moov, err
	}

	writeU32BE(patched, 0, uint32(len(patched)))
	return patched, nil
}

// removeIods deletes a top-level 'iods' child of moov, if present, and
// rewrites moov's size field to match. A moov without iods is returned
// unchanged.
func removeIods(moov []byte) []byte {
	payload := moov[8:]
	off := findChild(payload, "iods")
	if off < 0 {
		return moov
	}

	size := int(readU32BE(payload, off))
	moov = deleteRange(moov, 8+off, 8+off+size)
	writeU32BE(moov, 0, uint32(len(moov)))
	return moov
}

// readAvc1Dimensions locates the first avc1 VisualSampleEntry in moov and
// reads its encoded width/height. Offsets are relative to the start of the
// 'avc1' ASCII tag itself, per the VisualSampleEntry layout: 6 bytes
// reserved, 2 bytes data_reference_index, 16 bytes of predefined/reserved
// fields, then a 2-byte width and a 2-byte height.
func readAvc1Dimensions(moov []byte) (width, height uint16, err error) {
	off := findASCII(moov, "avc1")
	if off < 0 || off+32 > len(moov) {
		return 0, 0, ErrNoAvc1
	}

	width = readU16BE(moov, off+28)
	height = readU16BE(moov, off+30)
	if width == 0 || height == 0 {
		return 0, 0, ErrNoAvc1
	}
	return width, height, nil
}

// patchTkhdDimensions overwrites tkhd's width/height fields (16.16
// fixed-point) with the given pixel dimensions. The field offsets depend on
// the box's version byte, which sits immediately after the 'tkhd' tag.
func patchTkhdDimensions(moov []byte, width, height uint16) ([]byte, error) {
	off := findASCII(moov, "tkhd")
	if off < 0 || off+5 > len(moov) {
		return nil, ErrNoTkhd
	}

	version := moov[off+4]

	var widthOff, heightOff int
	switch version {
	case 0:
		widthOff, heightOff = off+80, off+84
	default: // version 1
		widthOff, heightOff = off+92, off+96
	}

	if heightOff+4 > len(moov) {
		return nil, ErrNoTkhd
	}

	writeU32BE(moov, widthOff, uint32(width)<<16)
	writeU32BE(moov, heightOff, uint32(height)<<16)
	return moov, nil
}

// hasMvex reports whether moov contains a top-level mvex child, which MSE
// requires for fragmented playback.
func hasMvex(moov []byte) bool {
	return findChild(moov[8:], "mvex") >= 0
}
