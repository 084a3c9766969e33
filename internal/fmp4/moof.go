package fmp4

const (
	tfhdFlagBaseDataOffsetPresent = 0x000001
	tfhdFlagDefaultBaseIsMoof     = 0x020000

	trunFlagDataOffsetPresent = 0x000001

	// decodeTimeTicksPerSample assumes a 60000 timescale at 60fps; every
	// sample therefore advances baseMediaDecodeTime by 1000 ticks. This is
	// the one constant in the rewriter that is not frame-rate-general: a
	// session running at a different fps needs timescale/fps ticks per
	// sample, not this fixed value.
	decodeTimeTicksPerSample = 1000
)

// patchMoof implements §4.E.3: normalize tfhd's base-data-offset handling
// to default-base-is-moof, inject a tfdt if the sink writer omitted one,
// and fix up trun's data_offset now that sample data is addressed relative
// to the start of moof instead of an absolute file offset. It returns the
// patched moof and the new cumulative decode time after accounting for this
// fragment's samples.
func patchMoof(moof []byte, cumulative uint64) ([]byte, uint64, error) {
	trafOff := findChild(moof[8:], "traf")
	if trafOff < 0 {
		return moof, cumulative, ErrInvariant
	}
	trafAbs := 8 + trafOff
	trafSize := int(readU32BE(moof, trafAbs))
	if trafAbs+trafSize > len(moof) {
		return moof, cumulative, ErrInvariant
	}

	traf := append([]byte(nil), moof[trafAbs:trafAbs+trafSize]...)

	traf, err := normalizeTfhd(traf)
	if err != nil {
		return moof, cumulative, err
	}

	traf = ensureTfdt(traf, cumulative)

	deltaTraf := len(traf) - trafSize
	newMoofSize := len(moof) + deltaTraf

	traf, sampleCount, err := fixupTrun(traf, uint32(newMoofSize))
	if err != nil {
		return moof, cumulative, err
	}

	newMoof := make([]byte, 0, newMoofSize)
	newMoof = append(newMoof, moof[:trafAbs]...)
	newMoof = append(newMoof, traf...)
	newMoof = append(newMoof, moof[trafAbs+trafSize:]...)
	writeU32BE(newMoof, 0, uint32(len(newMoof)))

	return newMoof, cumulative + uint64(sampleCount)*decodeTimeTicksPerSample, nil
}

// normalizeTfhd clears the base-data-offset-present flag and sets
// default-base-is-moof, deleting the now-unused 8-byte base_data_offset
// field, whenever the sink writer set base-data-offset-present.
func normalizeTfhd(traf []byte) ([]byte, error) {
	tfhdOff := findChild(traf[8:], "tfhd")
	if tfhdOff < 0 {
		return traf, ErrInvariant
	}
	tfhdAbs := 8 + tfhdOff
	if tfhdAbs+12 > len(traf) {
		return traf, ErrInvariant
	}

	flags := readFlags24(traf, tfhdAbs+8)
	if flags&tfhdFlagBaseDataOffsetPresent == 0 {
		return traf, nil
	}

	newFlags := (flags &^ tfhdFlagBaseDataOffsetPresent) | tfhdFlagDefaultBaseIsMoof
	writeFlags24(traf, tfhdAbs+8, newFlags)

	tfhdSize := int(readU32BE(traf, tfhdAbs))
	if tfhdAbs+16+8 > len(traf) {
		return traf, ErrInvariant
	}
	traf = deleteRange(traf, tfhdAbs+16, tfhdAbs+24)
	writeU32BE(traf, tfhdAbs, uint32(tfhdSize-8))
	writeU32BE(traf, 0, uint32(len(traf)))

	return traf, nil
}

// ensureTfdt inserts a 16-byte version-0 tfdt box right after tfhd if traf
// does not already carry one.
func ensureTfdt(traf []byte, cumulative uint64) []byte {
	if findChild(traf[8:], "tfdt") >= 0 {
		return traf
	}

	tfhdOff := findChild(traf[8:], "tfhd")
	if tfhdOff < 0 {
		return traf
	}
	tfhdAbs := 8 + tfhdOff
	tfhdSize := int(readU32BE(traf, tfhdAbs))
	insertOff := tfhdAbs + tfhdSize

	tfdt := make([]byte, 16)
	writeU32BE(tfdt, 0, 16)
	copy(tfdt[4:8], "tfdt")
	// version 0, flags 0 already zeroed
	writeU32BE(tfdt, 12, uint32(cumulative))

	traf = insertAt(traf, insertOff, tfdt)
	writeU32BE(traf, 0, uint32(len(traf)))
	return traf
}

// fixupTrun overwrites trun's data_offset with newMoofSize+8 (skipping the
// patched moof and mdat's own 8-byte header) when data-offset-present is
// set, and returns the fragment's sample count for decode-time bookkeeping.
func fixupTrun(traf []byte, newMoofSize uint32) ([]byte, uint32, error) {
	trunOff := findChild(traf[8:], "trun")
	if trunOff < 0 {
		return traf, 0, ErrInvariant
	}
	trunAbs := 8 + trunOff
	if trunAbs+16 > len(traf) {
		return traf, 0, ErrInvariant
	}

	flags := readFlags24(traf, trunAbs+8)
	sampleCount := readU32BE(traf, trunAbs+12)

	if flags&trunFlagDataOffsetPresent != 0 {
		if trunAbs+20 > len(traf) {
			return traf, sampleCount, ErrInvariant
		}
		writeU32BE(traf, trunAbs+16, newMoofSize+8)
	}

	return traf, sampleCount, nil
}

func readFlags24(b []byte, off int) uint32 {
	return uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3])
}

func writeFlags24(b []byte, off int, flags uint32) {
	b[off+1] = byte(flags >> 16)
	b[off+2] = byte(flags >> 8)
	b[off+3] = byte(flags)
}
