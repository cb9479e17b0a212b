package filename

import (
	"testing"
	"time"
)

func TestDurationByVersion(t *testing.T) {
	cases := []struct {
		version uint8
		length  uint32
		want    float64
	}{
		{version: 1, length: 320, want: 20},
		{version: 2, length: 44, want: 0},
		{version: 2, length: 44 + 96000, want: 1},
		{version: 3, length: 44 + 48000, want: 1},
		{version: 5, length: 12000, want: 1},
		{version: 99, length: 32000, want: 1},
	}
	for _, c := range cases {
		got := Duration(c.version, c.length)
		if got != c.want {
			t.Errorf("Duration(%d, %d) = %v, want %v", c.version, c.length, got, c.want)
		}
	}
}

func TestParseRecordedAtDigitPrefix(t *testing.T) {
	now := func() time.Time { return time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC) }
	got, ok := ParseRecordedAt("20250307134509-rec.wav", now)
	if !ok {
		t.Fatal("expected a parsed date")
	}
	want := time.Date(2025, time.March, 7, 13, 45, 9, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRecordedAtMonAbbrevPrefix(t *testing.T) {
	now := func() time.Time { return time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC) }
	got, ok := ParseRecordedAt("2025Jan02-130045-extra.wav", now)
	if !ok {
		t.Fatal("expected a parsed date")
	}
	want := time.Date(2025, time.January, 2, 13, 0, 45, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseRecordedAtFallsBackToNow(t *testing.T) {
	sentinel := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return sentinel }
	got, ok := ParseRecordedAt("not-a-recognizable-name.wav", now)
	if ok {
		t.Fatal("expected ok=false for an unparseable name")
	}
	if !got.Equal(sentinel) {
		t.Errorf("got %v, want the fallback %v", got, sentinel)
	}
}

func TestParseRecordedAtRejectsInvalidDigitDate(t *testing.T) {
	now := func() time.Time { return time.Unix(0, 0) }
	_, ok := ParseRecordedAt("20251399999999-rec.wav", now)
	if ok {
		t.Error("expected ok=false for an invalid calendar date (month 13)")
	}
}
