// Package fmp4 reshapes the fragmented-MP4 boxes a Media Foundation sink
// writer emits into the exact byte layout the Media Source Extensions API
// requires: no iods box, true dimensions on tkhd, and moof fragments that
// carry tfdt and use default-base-is-moof addressing instead of absolute
// file offsets.
package fmp4

import "encoding/binary"

// readU32BE reads a big-endian uint32 at offset off in b.
func readU32BE(b []byte, off int) uint32 {
	return binary.BigEndian.Uint32(b[off : off+4])
}

// writeU32BE writes v as a big-endian uint32 at offset off in b.
func writeU32BE(b []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(b[off:off+4], v)
}

// readU16BE reads a big-endian uint16 at offset off in b.
func readU16BE(b []byte, off int) uint16 {
	return binary.BigEndian.Uint16(b[off : off+2])
}

// writeU16BE writes v as a big-endian uint16 at offset off in b.
func writeU16BE(b []byte, off int, v uint16) {
	binary.BigEndian.PutUint16(b[off:off+2], v)
}

// boxSize reads the 4-byte big-endian size field at the start of a box.
func boxSize(box []byte) uint32 { return readU32BE(box, 0) }

// boxType reads the 4-byte ASCII type field of a box starting at offset 4.
func boxType(box []byte) string { return string(box[4:8]) }

// findChild returns the byte offset of the first top-level child box of the
// given type within payload (a box's contents, not including its own
// 8-byte header), or -1 if not found. payload must consist of a sequence of
// well-formed boxes; children are walked by their own size fields.
func findChild(payload []byte, childType string) int {
	off := 0
	for off+8 <= len(payload) {
		size := int(readU32BE(payload, off))
		if size < 8 || off+size > len(payload) {
			return -1
		}
		if string(payload[off+4:off+8]) == childType {
			return off
		}
		off += size
	}
	return -1
}

// findChildren returns the byte offsets of every top-level child box in
// payload, in order.
func findChildren(payload []byte) []int {
	var offs []int
	off := 0
	for off+8 <= len(payload) {
		size := int(readU32BE(payload, off))
		if size < 8 || off+size > len(payload) {
			break
		}
		offs = append(offs, off)
		off += size
	}
	return offs
}

// findASCII returns the byte offset of the first occurrence of needle in
// haystack, or -1 if not found. Used to locate 'avc1' inside an stsd entry
// without fully modeling the stsd/stbl/minf/mdia box tree.
func findASCII(haystack []byte, needle string) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == needle {
			return i
		}
	}
	return -1
}

// deleteRange removes b[start:end] from b, returning the shortened slice.
func deleteRange(b []byte, start, end int) []byte {
	out := make([]byte, 0, len(b)-(end-start))
	out = append(out, b[:start]...)
	out = append(out, b[end:]...)
	return out
}

// insertAt inserts data into b at offset off, returning the grown slice.
func insertAt(b []byte, off int, data []byte) []byte {
	out := make([]byte, 0, len(b)+len(data))
	out = append(out, b[:off]...)
	out = append(out, data...)
	out = append(out, b[off:]...)
	return out
}
