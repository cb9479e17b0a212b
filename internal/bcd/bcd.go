// Package bcd implements the binary-coded-decimal conversions and the
// schedule payload encoding used by the Jensen wire protocol (spec §6.2).
package bcd

import (
	"fmt"
	"time"
)

// EncodeByte packs two decimal digits (0-9 each) into one BCD byte.
func EncodeByte(tens, ones uint8) byte {
	return (tens << 4) | ones
}

// DecodeByte unpacks a BCD byte into its two decimal digits.
func DecodeByte(b byte) (tens, ones uint8) {
	return uint8(b >> 4), uint8(b & 0x0F)
}

// EncodeTime encodes t as 7 BCD bytes: YYYYMMDDHHMMSS, where YYYY is split
// across two bytes (century, year-within-century) per the device's wire
// format.
func EncodeTime(t time.Time) [7]byte {
	year := t.Year()
	century := year / 100
	yy := year % 100
	var out [7]byte
	out[0] = EncodeByte(uint8(century/10), uint8(century%10))
	out[1] = EncodeByte(uint8(yy/10), uint8(yy%10))
	out[2] = EncodeByte(uint8(t.Month()/10), uint8(t.Month()%10))
	out[3] = EncodeByte(uint8(t.Day()/10), uint8(t.Day()%10))
	out[4] = EncodeByte(uint8(t.Hour()/10), uint8(t.Hour()%10))
	out[5] = EncodeByte(uint8(t.Minute()/10), uint8(t.Minute()%10))
	out[6] = EncodeByte(uint8(t.Second()/10), uint8(t.Second()%10))
	return out
}

// DecodeTime parses 7 BCD bytes (YYYYMMDDHHMMSS) into a time.Time in UTC.
func DecodeTime(b [7]byte) (time.Time, error) {
	century := int(b[0]>>4)*10 + int(b[0]&0x0F)
	yy := int(b[1]>>4)*10 + int(b[1]&0x0F)
	month := int(b[2]>>4)*10 + int(b[2]&0x0F)
	day := int(b[3]>>4)*10 + int(b[3]&0x0F)
	hour := int(b[4]>>4)*10 + int(b[4]&0x0F)
	minute := int(b[5]>>4)*10 + int(b[5]&0x0F)
	second := int(b[6]>>4)*10 + int(b[6]&0x0F)

	year := century*100 + yy
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 60 {
		return time.Time{}, fmt.Errorf("bcd: invalid encoded time %x", b)
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// EncodeDecimalString encodes a 14-digit decimal string (YYYYMMDDHHMMSS)
// into 7 BCD bytes, used for the round-trip property in spec §8.
func EncodeDecimalString(digits string) ([7]byte, error) {
	var out [7]byte
	if len(digits) != 14 {
		return out, fmt.Errorf("bcd: expected 14 digits, got %d", len(digits))
	}
	for i := 0; i < 7; i++ {
		hi := digits[i*2]
		lo := digits[i*2+1]
		if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
			return out, fmt.Errorf("bcd: non-decimal digit at offset %d", i*2)
		}
		out[i] = EncodeByte(hi-'0', lo-'0')
	}
	return out, nil
}

// DecodeDecimalString is the inverse of EncodeDecimalString.
func DecodeDecimalString(b [7]byte) string {
	digits := make([]byte, 0, 14)
	for _, by := range b {
		tens, ones := DecodeByte(by)
		digits = append(digits, '0'+tens, '0'+ones)
	}
	return string(digits)
}
