package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateTimeLayout    = "2006-01-02 15:04:05"
	isoDateTimeLayout = "2006-01-02T15:04:05"
)

// ParseTimestamp parses an engine wall-clock stamp such as
// "2024-03-18 14:02:11.123456789". The fraction after the dot may have any
// number of digits; its resolution is given by the digit count. The result is
// truncated to whole microseconds and expressed in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	base, frac, hasFrac := strings.Cut(s, ".")

	layout := dateTimeLayout
	if strings.Contains(base, "T") {
		layout = isoDateTimeLayout
	}
	t, err := time.ParseInLocation(layout, base, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if !hasFrac {
		return t, nil
	}

	nanos, err := fractionToNanos(frac)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.Add(time.Duration(nanos)).Truncate(time.Microsecond), nil
}

// fractionToNanos converts the digits after the decimal point into
// nanoseconds. Digits beyond nanosecond resolution are dropped.
func fractionToNanos(frac string) (int64, error) {
	if frac == "" {
		return 0, fmt.Errorf("empty fractional seconds")
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("fractional seconds %q is not numeric", frac)
		}
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	n, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	for i := len(frac); i < 9; i++ {
		n *= 10
	}
	return n, nil
}
