package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadTime = errors.New("malformed time")

// Parse time in HH:MM:SS format into seconds since midnight. Hours may exceed
// 23 for service running past midnight.
func ParseTime(timeStr string) (uint32, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, timeStr)
	}

	var fields [3]uint64
	for i, part := range parts {
		if part == "" || len(part) > 3 {
			return 0, fmt.Errorf("%w: %q", ErrBadTime, timeStr)
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadTime, timeStr)
		}
		fields[i] = n
	}

	hours, minutes, seconds := fields[0], fields[1], fields[2]
	if minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, timeStr)
	}
	return uint32(hours*3600 + minutes*60 + seconds), nil
}

// Format seconds since midnight as HH:MM:SS
func FormatTime(t uint32) string {
	return fmt.Sprintf("%02d:%02d:%02d", t/3600, t%3600/60, t%60)
}

// Parse a stop_sequence value
func ParseSequence(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		// Some feeds write sequences as decimals ("3.0")
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f < 0 || f != float64(uint32(f)) {
			return 0, fmt.Errorf("%w: stop_sequence %q", ErrBadNumber, s)
		}
		return uint32(f), nil
	}
	return uint32(n), nil
}
