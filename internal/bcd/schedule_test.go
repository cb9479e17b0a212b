package bcd

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeScheduleEmptyIsOneEmptyMeeting(t *testing.T) {
	out := EncodeSchedule(nil)
	if len(out) != MeetingSize {
		t.Fatalf("len = %d, want %d", len(out), MeetingSize)
	}
	if !bytes.Equal(out, make([]byte, MeetingSize)) {
		t.Error("expected an all-zero meeting for an empty schedule")
	}
}

func TestEncodeScheduleMultipleMeetings(t *testing.T) {
	meetings := []Meeting{
		{Start: time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC), End: time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)},
		{Start: time.Date(2025, time.June, 2, 14, 0, 0, 0, time.UTC), End: time.Date(2025, time.June, 2, 15, 0, 0, 0, time.UTC)},
	}
	out := EncodeSchedule(meetings)
	if len(out) != 2*MeetingSize {
		t.Fatalf("len = %d, want %d", len(out), 2*MeetingSize)
	}

	first := EncodeMeeting(meetings[0])
	if !bytes.Equal(out[:MeetingSize], first[:]) {
		t.Error("first meeting's encoding does not match EncodeMeeting's output")
	}
}

func TestEncodeMeetingLayout(t *testing.T) {
	m := Meeting{
		Start:    time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC),
		End:      time.Date(2025, time.January, 2, 4, 4, 5, 0, time.UTC),
		Shortcut: [34]byte{0xAA, 0xBB},
	}
	out := EncodeMeeting(m)

	startEnc := EncodeTime(m.Start)
	if !bytes.Equal(out[0:7], startEnc[:]) {
		t.Error("start time not encoded at offset 0")
	}
	if out[7] != 0 {
		t.Error("pad byte at offset 7 must be zero")
	}
	endEnc := EncodeTime(m.End)
	if !bytes.Equal(out[8:15], endEnc[:]) {
		t.Error("end time not encoded at offset 8")
	}
	if out[15] != 0 || out[16] != 0 || out[17] != 0 {
		t.Error("pad/reserved bytes at offsets 15-17 must be zero")
	}
	if !bytes.Equal(out[18:52], m.Shortcut[:]) {
		t.Error("shortcut data not encoded at offset 18")
	}
}
