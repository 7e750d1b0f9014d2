package railquery

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a wall-clock time of day expressed as minutes since midnight,
// in [0, 1440). The upstream endpoint never carries seconds precision
// worth keeping, so minute granularity is exact.
type Clock int

// NewClock builds a Clock from an hour (0-23) and minute (0-59).
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses an HHMMSS or HHMM digit string into a Clock.
// Seconds, if present, are ignored.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		s = s + strings.Repeat("0", 6-len(s))
	}
	hour, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, fmt.Errorf("railquery: invalid clock string %q: %w", s, err)
	}
	minute, err := strconv.Atoi(s[2:4])
	if err != nil {
		return 0, fmt.Errorf("railquery: invalid clock string %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("railquery: clock string %q out of range", s)
	}
	return NewClock(hour, minute), nil
}

// Hour returns the hour component, 0-23.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component, 0-59.
func (c Clock) Minute() int { return int(c) % 60 }

// String renders HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// HHMMSS renders the wire format the upstream endpoint expects
// (seconds always zero — the endpoint has no sub-minute granularity).
func (c Clock) HHMMSS() string {
	return fmt.Sprintf("%02d%02d00", c.Hour(), c.Minute())
}

// DurationTo returns the minutes elapsed from c to arrival, treating a
// non-positive difference as a midnight crossing (adds 1440).
func (c Clock) DurationTo(arrival Clock) int {
	diff := int(arrival) - int(c)
	if diff <= 0 {
		diff += 1440
	}
	return diff
}
