package util

import (
	"strconv"
	"time"
)

// ParseTime accepts RFC3339 (with or without sub-second precision) or
// unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault falls back to def when s is empty or unparseable.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignFromTo truncates a query range to the candle boundaries of the
// timeframe, defaulting to 1h.
func AlignFromTo(from, to time.Time, tf string) (time.Time, time.Time) {
	step := time.Hour
	switch tf {
	case "1m":
		step = time.Minute
	case "4h":
		step = 4 * time.Hour
	}
	return from.Truncate(step), to.Truncate(step)
}
