package bcd

import "time"

// MeetingSize is the fixed wire size of one schedule entry (spec §6.2):
// 7 BCD start + 1 pad + 7 BCD end + 1 pad + 2 reserved zeros + 34 bytes of
// platform-specific keyboard-shortcut data.
const MeetingSize = 52

// Meeting is one calendar entry forwarded to the device's scheduler. The
// core does not interpret Shortcut; it is opaque platform/OS data supplied
// by the caller (spec §1: calendar/OAuth integration is an external
// collaborator).
type Meeting struct {
	Start    time.Time
	End      time.Time
	Shortcut [34]byte
}

// EncodeMeeting renders a Meeting as its 52-byte wire representation.
func EncodeMeeting(m Meeting) [MeetingSize]byte {
	var out [MeetingSize]byte
	start := EncodeTime(m.Start)
	end := EncodeTime(m.End)
	copy(out[0:7], start[:])
	// out[7] is the pad byte, left zero.
	copy(out[8:15], end[:])
	// out[15] is the pad byte, out[16:18] are reserved zeros.
	copy(out[18:52], m.Shortcut[:])
	return out
}

// EmptyMeeting is the 52 zero bytes that represent "no meeting" on the wire.
func EmptyMeeting() [MeetingSize]byte {
	return [MeetingSize]byte{}
}

// EncodeSchedule renders a slice of meetings into a flat byte buffer; an
// empty slice encodes as a single empty (all-zero) meeting, matching the
// device's expectation that the payload is never zero-length.
func EncodeSchedule(meetings []Meeting) []byte {
	if len(meetings) == 0 {
		empty := EmptyMeeting()
		return empty[:]
	}
	out := make([]byte, 0, len(meetings)*MeetingSize)
	for _, m := range meetings {
		enc := EncodeMeeting(m)
		out = append(out, enc[:]...)
	}
	return out
}
