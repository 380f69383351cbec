// Package timeutil provides minute-of-day arithmetic and duration parsing
// shared by the scheduling engines. All schedule math works in whole minutes
// from 00:00 of the target day, with 1440 as the end-of-day sentinel.
package timeutil

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MinutesPerDay is the number of minutes in a full day. A value of 1440 is
// accepted as "00:00 of the next day" when converting back to clock time.
const MinutesPerDay = 1440

var (
	ErrInvalidClock    = errors.New("invalid clock time")
	ErrNegativeMinutes = errors.New("minutes must not be negative")
	ErrInvalidDuration = errors.New("invalid duration")
)

// ToMinutes converts an (hour, minute) pair to minutes from midnight.
func ToMinutes(hour, minute int) (int, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidClock, hour, minute)
	}
	return hour*60 + minute, nil
}

// FromMinutes converts minutes from midnight back to an (hour, minute) pair.
// The end-of-day sentinel 1440 maps to 00:00.
func FromMinutes(m int) (int, int, error) {
	if m < 0 {
		return 0, 0, fmt.Errorf("%w: %d", ErrNegativeMinutes, m)
	}
	if m > MinutesPerDay {
		return 0, 0, fmt.Errorf("%w: %d exceeds %d", ErrInvalidClock, m, MinutesPerDay)
	}
	if m == MinutesPerDay {
		return 0, 0, nil
	}
	return m / 60, m % 60, nil
}

// ParseClock parses an "HH:MM" string to minutes from midnight.
// "24:00" is accepted as the end-of-day sentinel.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if hour == 24 && minute == 0 {
		return MinutesPerDay, nil
	}
	return ToMinutes(hour, minute)
}

// FormatClock renders minutes from midnight as "HH:MM". The end-of-day
// sentinel 1440 renders as "00:00".
func FormatClock(m int) string {
	if m == MinutesPerDay {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

var durationPattern = regexp.MustCompile(`^(?:(\d+(?:\.\d+)?)\s*h)?\s*(?:(\d+)\s*m)?\s*(?:(\d+)\s*s)?$`)

// ParseDuration parses a human duration string into whole minutes.
// Recognized forms: "2h", "30m", "1h 30m", "1.5h", and a bare integer
// (minutes). A seconds component is parsed but discarded, reported via the
// returned warning. Negative or unrecognized inputs are errors.
func ParseDuration(s string) (int, string, error) {
	trimmed := strings.TrimSpace(strings.ToLower(s))
	if trimmed == "" {
		return 0, "", fmt.Errorf("%w: empty string", ErrInvalidDuration)
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, "", fmt.Errorf("%w: negative duration %q", ErrInvalidDuration, s)
	}

	// Bare integer means minutes.
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, "", nil
	}

	match := durationPattern.FindStringSubmatch(trimmed)
	if match == nil || (match[1] == "" && match[2] == "" && match[3] == "") {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	total := 0.0
	if match[1] != "" {
		hours, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, "", fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		total += hours * 60
	}
	if match[2] != "" {
		minutes, err := strconv.Atoi(match[2])
		if err != nil {
			return 0, "", fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		total += float64(minutes)
	}

	warning := ""
	if match[3] != "" {
		warning = fmt.Sprintf("seconds component in duration %q is discarded", s)
	}

	return int(math.Round(total)), warning, nil
}

// FormatDuration renders whole minutes canonically: "Xh Ym" when at least an
// hour, "Ym" under an hour, "<1m" for zero. Negative values get a leading
// minus.
func FormatDuration(minutes int) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	if minutes == 0 {
		return sign + "<1m"
	}
	hours := minutes / 60
	rem := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%s%dh %dm", sign, hours, rem)
	}
	return fmt.Sprintf("%s%dm", sign, rem)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
