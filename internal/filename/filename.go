// Package filename implements the duration formula (spec §4.6) and the
// filename date-parsing heuristic (spec §4.7) used to derive Recording
// metadata from a device-assigned filename.
package filename

import (
	"strconv"
	"time"
)

// Duration computes a recording's playback duration in seconds from its
// file version tag and byte length. The formulas are device-defined
// (sample rate x byte width x channels); the full-parser table from spec
// §4.6 is canonical (spec §9 flags the incremental parser's coarser,
// duplicate formula set as a source bug that is not ported here).
func Duration(version uint8, length uint32) float64 {
	switch version {
	case 1:
		return float64(length) / 32 * 2
	case 2:
		if length > 44 {
			return float64(length-44) / 96000
		}
		return 0
	case 3:
		if length > 44 {
			return float64(length-44) / 48000
		}
		return 0
	case 5:
		return float64(length) / 12000
	default:
		return float64(length) / 32000
	}
}

// monthAbbrev maps three-letter English month abbreviations to their
// numeric value, for the "YYYY<Mon>DD-HHMMSS-..." filename format.
var monthAbbrev = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// ParseRecordedAt extracts a creation time from a device-assigned filename
// (spec §4.7). Two formats are accepted: a pure 14-digit YYYYMMDDHHMMSS
// prefix, or YYYY<Mon>DD-HHMMSS-... . When neither matches, it returns the
// current wall-clock time and ok=false so callers can distinguish a parsed
// date from the fallback (spec §9 notes the fallback silently corrupts
// ordering; this package surfaces that instead of hiding it).
func ParseRecordedAt(name string, now func() time.Time) (t time.Time, ok bool) {
	if now == nil {
		now = time.Now
	}
	if t, ok := parseDigitPrefix(name); ok {
		return t, true
	}
	if t, ok := parseMonAbbrevPrefix(name); ok {
		return t, true
	}
	return now(), false
}

func parseDigitPrefix(name string) (time.Time, bool) {
	if len(name) < 14 {
		return time.Time{}, false
	}
	prefix := name[:14]
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
	}
	year, _ := strconv.Atoi(prefix[0:4])
	month, _ := strconv.Atoi(prefix[4:6])
	day, _ := strconv.Atoi(prefix[6:8])
	hour, _ := strconv.Atoi(prefix[8:10])
	minute, _ := strconv.Atoi(prefix[10:12])
	second, _ := strconv.Atoi(prefix[12:14])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 60 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

// parseMonAbbrevPrefix parses "YYYY<Mon>DD-HHMMSS-..." e.g. "2025Jan02-130000-extra".
func parseMonAbbrevPrefix(name string) (time.Time, bool) {
	if len(name) < 16 {
		return time.Time{}, false
	}
	yearStr := name[0:4]
	monStr := name[4:7]
	dayStr := name[7:9]
	if name[9] != '-' {
		return time.Time{}, false
	}
	timeStr := name[10:16]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	month, ok := monthAbbrev[monStr]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	for _, c := range timeStr {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
	}
	hour, _ := strconv.Atoi(timeStr[0:2])
	minute, _ := strconv.Atoi(timeStr[2:4])
	second, _ := strconv.Atoi(timeStr[4:6])
	if hour > 23 || minute > 59 || second > 60 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC), true
}
