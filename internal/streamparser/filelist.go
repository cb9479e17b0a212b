// Package streamparser implements the incremental, self-describing file-list
// TLV parser consumed from the GetFileList streaming response (spec §4.4).
package streamparser

import (
	"encoding/binary"
)

// File is one parsed file-list record, still in wire units (no Duration
// computed here; that is layered on top by the Command Surface using
// internal/filename.Duration).
type File struct {
	Version uint8
	Name    string
	Length  uint32
}

const (
	headerMarkerLen = 2
	headerCountLen  = 4
	headerLen       = headerMarkerLen + headerCountLen

	recVersionLen  = 1
	recNameLenLen  = 3
	recLengthLen   = 4
	recReservedLen = 6
	recSigLen      = 16
	// recFixedLen is every record byte except the variable-length name.
	recFixedLen = recVersionLen + recNameLenLen + recLengthLen + recReservedLen + recSigLen
)

var headerMarker = [2]byte{0xFF, 0xFF}

// FileListParser consumes the file-list stream incrementally across packet
// boundaries (spec §4.4.1). It is stateful only in HeaderTotal and the
// running parsed count, both needed for the early-termination rule; the
// actual byte buffer is owned by the caller and passed to Feed each time.
type FileListParser struct {
	headerSeen  bool
	headerTotal uint32
	haveTotal   bool
	parsedCount uint32
}

// NewFileListParser constructs a parser for one GetFileList stream.
func NewFileListParser() *FileListParser {
	return &FileListParser{}
}

// Feed parses as many complete records as possible out of buf (which may
// be a leftover-prefixed concatenation of several packets) and returns the
// parsed files, the unconsumed leftover bytes (to be prepended to the next
// packet), and whether the header's declared total file count has now been
// reached (always false when no header was seen). It never emits a partially parsed file (spec §4.4.1's invariant).
func (p *FileListParser) Feed(buf []byte) (files []File, leftover []byte, done bool) {
	offset := 0

	if !p.headerSeen && len(buf) >= headerLen && buf[0] == headerMarker[0] && buf[1] == headerMarker[1] {
		p.headerTotal = binary.BigEndian.Uint32(buf[headerMarkerLen:headerLen])
		p.haveTotal = true
		p.headerSeen = true
		offset = headerLen
	} else if !p.headerSeen && len(buf) < headerLen {
		// Not enough bytes to know yet whether a header is present; wait
		// for more before deciding (conservative: never misinterpret a
		// record's leading bytes as a header that isn't there).
		if len(buf) > 0 && buf[0] == headerMarker[0] {
			return nil, buf, false
		}
		p.headerSeen = true // buffer too short to be a header and doesn't start like one
	} else {
		p.headerSeen = true
	}

	for {
		if p.haveTotal && p.parsedCount >= p.headerTotal {
			return files, buf[offset:], true
		}

		rec, consumed, ok := parseRecord(buf[offset:])
		if !ok {
			return files, buf[offset:], false
		}
		files = append(files, rec)
		p.parsedCount++
		offset += consumed
	}
}

// parseRecord parses one file-list record from the front of buf. ok is
// false if buf does not contain a complete record yet (spec §4.4.1: the
// starting offset is preserved and everything from there is leftover).
func parseRecord(buf []byte) (rec File, consumed int, ok bool) {
	if len(buf) < recVersionLen+recNameLenLen {
		return rec, 0, false
	}
	version := buf[0]
	nameLen := int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])

	total := recFixedLen + nameLen
	if len(buf) < total {
		return rec, 0, false
	}

	nameBytes := buf[recVersionLen+recNameLenLen : recVersionLen+recNameLenLen+nameLen]
	name := sanitizeName(nameBytes)

	lengthOff := recVersionLen + recNameLenLen + nameLen
	length := binary.BigEndian.Uint32(buf[lengthOff : lengthOff+recLengthLen])
	// reserved (6) and signature (16) bytes are skipped entirely.

	return File{Version: version, Name: name, Length: length}, total, true
}

// sanitizeName filters 0x00 bytes before constructing the filename string
// (spec §4.4.1's filename sanitization rule).
func sanitizeName(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0x00 {
			out = append(out, c)
		}
	}
	return string(out)
}

// HeaderTotal returns the declared total file count and whether it has
// been observed yet.
func (p *FileListParser) HeaderTotal() (uint32, bool) {
	return p.headerTotal, p.haveTotal
}
