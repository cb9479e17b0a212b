package streamparser

import (
	"encoding/binary"
	"testing"
)

// buildRecord renders one wire-format file-list record for name/length/version.
func buildRecord(version uint8, name string, length uint32) []byte {
	nameBytes := []byte(name)
	n := len(nameBytes)
	out := make([]byte, recFixedLen+n)
	out[0] = version
	out[1] = byte(n >> 16)
	out[2] = byte(n >> 8)
	out[3] = byte(n)
	copy(out[recVersionLen+recNameLenLen:], nameBytes)
	lengthOff := recVersionLen + recNameLenLen + n
	binary.BigEndian.PutUint32(out[lengthOff:lengthOff+recLengthLen], length)
	// reserved + signature bytes default to zero.
	return out
}

func buildHeader(total uint32) []byte {
	out := make([]byte, headerLen)
	out[0], out[1] = headerMarker[0], headerMarker[1]
	binary.BigEndian.PutUint32(out[headerMarkerLen:], total)
	return out
}

func TestFeedParsesHeaderAndRecordsInOneShot(t *testing.T) {
	buf := buildHeader(2)
	buf = append(buf, buildRecord(1, "a.wav", 100)...)
	buf = append(buf, buildRecord(2, "b.wav", 200)...)

	p := NewFileListParser()
	files, leftover, done := p.Feed(buf)

	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Name != "a.wav" || files[0].Length != 100 || files[0].Version != 1 {
		t.Errorf("files[0] = %+v", files[0])
	}
	if files[1].Name != "b.wav" || files[1].Length != 200 || files[1].Version != 2 {
		t.Errorf("files[1] = %+v", files[1])
	}
	if len(leftover) != 0 {
		t.Errorf("leftover = %d bytes, want 0", len(leftover))
	}
	if !done {
		t.Error("expected done=true once the declared total is reached")
	}
	total, ok := p.HeaderTotal()
	if !ok || total != 2 {
		t.Errorf("HeaderTotal() = (%d, %v), want (2, true)", total, ok)
	}
}

func TestFeedAcrossPacketBoundary(t *testing.T) {
	rec := buildRecord(1, "split.wav", 50)
	header := buildHeader(1)
	full := append(append([]byte{}, header...), rec...)

	// Split the combined buffer mid-record to exercise the leftover path.
	split := len(header) + 3
	first, second := full[:split], full[split:]

	p := NewFileListParser()
	files, leftover, done := p.Feed(first)
	if len(files) != 0 {
		t.Fatalf("expected no complete records yet, got %d", len(files))
	}
	if done {
		t.Error("did not expect done=true before the record completes")
	}

	files, leftover, done = p.Feed(append(leftover, second...))
	if len(files) != 1 {
		t.Fatalf("got %d files after feeding the remainder, want 1", len(files))
	}
	if files[0].Name != "split.wav" {
		t.Errorf("Name = %q, want %q", files[0].Name, "split.wav")
	}
	if !done {
		t.Error("expected done=true once the declared total (1) is reached")
	}
	if len(leftover) != 0 {
		t.Errorf("leftover = %d bytes, want 0", len(leftover))
	}
}

func TestFeedSanitizesEmbeddedNulBytes(t *testing.T) {
	header := buildHeader(1)
	rec := buildRecord(1, "noise", 10)
	// Inject a 0x00 byte inside the name region.
	nameOff := recVersionLen + recNameLenLen
	rec[nameOff+2] = 0x00

	buf := append(append([]byte{}, header...), rec...)
	p := NewFileListParser()
	files, _, _ := p.Feed(buf)
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].Name != "nose" {
		t.Errorf("Name = %q, want the nul byte stripped (%q)", files[0].Name, "nose")
	}
}

func TestFeedWithNoHeaderTreatsBufferAsRecordsOnly(t *testing.T) {
	buf := buildRecord(1, "nohdr.wav", 5)
	p := NewFileListParser()
	files, leftover, done := p.Feed(buf)
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if done {
		t.Error("done should stay false: no header total was ever declared")
	}
	if len(leftover) != 0 {
		t.Errorf("leftover = %d bytes, want 0", len(leftover))
	}
}
