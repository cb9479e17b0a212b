// Package framer implements the Jensen wire framing: outbound packet
// construction and inbound byte-stream resynchronization/parsing
// (spec §4.2).
package framer

import (
	"encoding/binary"
	"log"
)

// HeaderSize is the fixed 12-byte outbound/inbound header size before body
// (and, inbound only, an optional checksum trailer).
const HeaderSize = 12

var syncBytes = [2]byte{0x12, 0x34}

// Packet is one parsed inbound frame, with the checksum trailer (if any)
// already skipped.
type Packet struct {
	CmdID uint16
	SeqID uint32
	Body  []byte
}

// Build renders an outbound packet: sync, command id, sequence id, and a
// zero high (checksum-length) byte in the packed length field, since the
// core never generates a checksum trailer (spec §4.2).
func Build(cmdID uint16, seqID uint32, body []byte) []byte {
	out := make([]byte, HeaderSize+len(body))
	out[0], out[1] = syncBytes[0], syncBytes[1]
	binary.BigEndian.PutUint16(out[2:4], cmdID)
	binary.BigEndian.PutUint32(out[4:8], seqID)
	// High byte of the packed length field is the checksum-trailer length;
	// outbound frames never carry one, so only the low 3 bytes (body
	// length) are set.
	binary.BigEndian.PutUint32(out[8:12], uint32(len(body))&0x00FFFFFF)
	copy(out[12:], body)
	return out
}

// Result is what Parse returns for one attempt against the rolling inbound
// buffer.
type Result struct {
	Packet    *Packet // nil if NeedMore
	NeedMore  bool
	Consumed  int // bytes consumed from the front of buf, valid whenever Packet != nil
	Discarded int // pre-sync bytes discarded this call
}

// Framer holds no buffer of its own; callers (the Dispatcher) own the
// rolling inbound buffer and call Parse repeatedly, each time passing the
// unconsumed remainder. This keeps the Framer a pure, easily tested
// function of its input.
type Framer struct {
	errorCount int
}

// New constructs a Framer.
func New() *Framer {
	return &Framer{}
}

// ErrorCount returns the number of times Parse has had to discard the
// entire buffer due to a malformed header (spec §4.2's failure policy).
func (f *Framer) ErrorCount() int { return f.errorCount }

// Parse attempts to extract one complete packet from buf. It never
// mutates buf; the caller is responsible for advancing its buffer by
// Result.Consumed (on a packet) or by discarding Result.Discarded bytes (on
// resync) and retrying. On NeedMore with Discarded > 0, the caller must
// still discard those bytes before the next read, per spec §4.2's
// resynchronization behavior: "any prefix bytes before the sync marker are
// discarded with a warning".
func (f *Framer) Parse(buf []byte) (res Result) {
	res.NeedMore = true

	idx := indexSync(buf)
	if idx < 0 {
		// No sync marker anywhere in buf. Keep at most the last byte (it
		// might be the first half of a split sync marker on the next
		// read) and discard the rest.
		if len(buf) > 1 {
			res.Discarded = len(buf) - 1
			log.Printf("framer: no sync marker in %d bytes, discarding %d", len(buf), res.Discarded)
		}
		return res
	}
	if idx > 0 {
		res.Discarded = idx
		log.Printf("framer: discarding %d bytes before sync marker", idx)
	}

	frame := buf[idx:]
	if len(frame) < HeaderSize {
		return res
	}

	parsed, ok := f.tryParseHeader(frame)
	if !ok {
		// Malformed header: clear everything read so far to avoid looping
		// on the same corrupt bytes (spec §4.2's failure policy).
		f.errorCount++
		res.Discarded = len(buf)
		res.NeedMore = true
		return res
	}

	total := HeaderSize + parsed.bodyLen + parsed.checksumLen
	if len(frame) < total {
		// Not enough data yet; keep everything from the sync marker
		// onward (report the pre-sync discard only).
		return res
	}

	body := make([]byte, parsed.bodyLen)
	copy(body, frame[HeaderSize:HeaderSize+parsed.bodyLen])

	res.NeedMore = false
	res.Packet = &Packet{CmdID: parsed.cmdID, SeqID: parsed.seqID, Body: body}
	res.Consumed = idx + total
	return res
}

type header struct {
	cmdID       uint16
	seqID       uint32
	bodyLen     int
	checksumLen int
}

// tryParseHeader decodes the 12-byte header. It returns ok=false on a
// sanity-check failure (the Go analogue of the source's "DataView access
// throws" failure mode, spec §4.2), triggering the buffer-clear recovery
// path in Parse.
func (f *Framer) tryParseHeader(frame []byte) (h header, ok bool) {
	if len(frame) < HeaderSize {
		return h, false
	}
	if frame[0] != syncBytes[0] || frame[1] != syncBytes[1] {
		return h, false
	}
	h.cmdID = binary.BigEndian.Uint16(frame[2:4])
	h.seqID = binary.BigEndian.Uint32(frame[4:8])

	packed := binary.BigEndian.Uint32(frame[8:12])
	h.checksumLen = int(packed >> 24)
	h.bodyLen = int(packed & 0x00FFFFFF)

	// Sanity bound: the 24-bit length field can declare up to 16 MiB - 1,
	// far more than one frame plausibly carries over a 64 KiB bulk read
	// buffer; treat a body above 1 MiB as corruption rather than waiting
	// for bytes that will never come.
	const maxPlausibleBody = 1024 * 1024
	if h.bodyLen > maxPlausibleBody {
		return h, false
	}
	return h, true
}

// indexSync returns the index of the first occurrence of the 2-byte sync
// marker in buf, or -1 if absent.
func indexSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == syncBytes[0] && buf[i+1] == syncBytes[1] {
			return i
		}
	}
	return -1
}
