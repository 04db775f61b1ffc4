package oem

import (
	"fmt"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// epochLen is the length of the YYYY-DDDThh:mm:ss prefix of an OEM epoch.
// It may be followed only by fractional seconds and/or a trailing Z.
const epochLen = 17

// ParseEpoch converts an OEM epoch string (YYYY-DDDThh:mm:ss[.sss][Z]) to UTC.
// Fractional seconds are truncated.
func ParseEpoch(s string) (time.Time, error) {
	if len(s) < epochLen {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}
	if s[4] != '-' || s[8] != 'T' || s[11] != ':' || s[14] != ':' || !validEpochSuffix(s[epochLen:]) {
		return time.Time{}, fmt.Errorf("epoch %q does not match YYYY-DDDThh:mm:ss[.sss][Z]", s)
	}

	year, ok := digits(s[0:4])
	if !ok {
		return time.Time{}, fmt.Errorf("invalid epoch year in %q", s)
	}
	yday, ok := digits(s[5:8])
	if !ok {
		return time.Time{}, fmt.Errorf("invalid epoch day of year in %q", s)
	}
	hour, minute, err := EpochClock(s)
	if err != nil {
		return time.Time{}, err
	}
	sec, ok := digits(s[15:17])
	if !ok {
		return time.Time{}, fmt.Errorf("invalid epoch seconds in %q", s)
	}

	leap := julian.LeapYearGregorian(year)
	maxDay := 365
	if leap {
		maxDay = 366
	}
	if yday < 1 || yday > maxDay {
		return time.Time{}, fmt.Errorf("epoch day of year %d out of range in %q", yday, s)
	}
	if hour > 23 || minute > 59 || sec > 60 {
		return time.Time{}, fmt.Errorf("epoch time of day out of range in %q", s)
	}

	month, day := julian.DayOfYearToCalendar(yday, leap)
	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC), nil
}

// EpochClock extracts the hh and mm fields of an epoch string.
func EpochClock(s string) (hour, minute int, err error) {
	if len(s) < 14 {
		return 0, 0, fmt.Errorf("epoch string too short: %q", s)
	}
	hour, ok := digits(s[9:11])
	if !ok {
		return 0, 0, fmt.Errorf("invalid epoch hour in %q", s)
	}
	minute, ok = digits(s[12:14])
	if !ok {
		return 0, 0, fmt.Errorf("invalid epoch minute in %q", s)
	}
	return hour, minute, nil
}

// digits parses an unsigned decimal field. Signs and spaces are rejected.
func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, len(s) > 0
}

// validEpochSuffix accepts "", "Z", ".d+" and ".d+Z".
func validEpochSuffix(s string) bool {
	s = strings.TrimSuffix(s, "Z")
	if s == "" {
		return true
	}
	if s[0] != '.' {
		return false
	}
	_, ok := digits(s[1:])
	return ok
}
