package framer

import (
	"bytes"
	"testing"
)

func TestBuildThenParseRoundTrip(t *testing.T) {
	body := []byte("hello jensen")
	frame := Build(0x01, 42, body)

	f := New()
	res := f.Parse(frame)
	if res.NeedMore {
		t.Fatal("expected a complete packet, got NeedMore")
	}
	if res.Packet.CmdID != 0x01 {
		t.Errorf("CmdID = %#x, want 0x01", res.Packet.CmdID)
	}
	if res.Packet.SeqID != 42 {
		t.Errorf("SeqID = %d, want 42", res.Packet.SeqID)
	}
	if !bytes.Equal(res.Packet.Body, body) {
		t.Errorf("Body = %q, want %q", res.Packet.Body, body)
	}
	if res.Consumed != len(frame) {
		t.Errorf("Consumed = %d, want %d", res.Consumed, len(frame))
	}
}

func TestParseNeedsMoreOnShortHeader(t *testing.T) {
	frame := Build(0x01, 1, []byte("x"))
	f := New()
	res := f.Parse(frame[:HeaderSize-1])
	if !res.NeedMore {
		t.Fatal("expected NeedMore on a truncated header")
	}
	if res.Packet != nil {
		t.Error("expected no packet on NeedMore")
	}
}

func TestParseNeedsMoreOnShortBody(t *testing.T) {
	frame := Build(0x01, 1, []byte("0123456789"))
	f := New()
	res := f.Parse(frame[:HeaderSize+3])
	if !res.NeedMore {
		t.Fatal("expected NeedMore when body is incomplete")
	}
}

func TestParseDiscardsPrefixBeforeSyncMarker(t *testing.T) {
	frame := Build(0x02, 7, []byte("payload"))
	junk := []byte{0x00, 0xFF, 0xAB}
	buf := append(append([]byte{}, junk...), frame...)

	f := New()
	res := f.Parse(buf)
	if res.Discarded != len(junk) {
		t.Errorf("Discarded = %d, want %d", res.Discarded, len(junk))
	}
	if res.NeedMore {
		t.Fatal("expected a complete packet after discarding the prefix")
	}
	if res.Packet.CmdID != 0x02 {
		t.Errorf("CmdID = %#x, want 0x02", res.Packet.CmdID)
	}
}

func TestParseClearsBufferOnMalformedHeader(t *testing.T) {
	buf := make([]byte, HeaderSize+4)
	buf[0], buf[1] = 0x12, 0x34
	// Claim an implausibly large body length to trigger the corruption path.
	buf[8], buf[9], buf[10], buf[11] = 0xFF, 0xFF, 0xFF, 0xFF

	f := New()
	res := f.Parse(buf)
	if !res.NeedMore {
		t.Fatal("expected NeedMore (caller retries after discard) on malformed header")
	}
	if res.Discarded != len(buf) {
		t.Errorf("Discarded = %d, want the entire buffer (%d)", res.Discarded, len(buf))
	}
	if f.ErrorCount() != 1 {
		t.Errorf("ErrorCount() = %d, want 1", f.ErrorCount())
	}
}

func TestParseNoSyncMarkerKeepsLastByte(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x02, 0x03}
	f := New()
	res := f.Parse(buf)
	if !res.NeedMore {
		t.Fatal("expected NeedMore with no sync marker present")
	}
	if res.Discarded != len(buf)-1 {
		t.Errorf("Discarded = %d, want %d (keep last byte for a split marker)", res.Discarded, len(buf)-1)
	}
}
