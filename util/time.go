package util

import (
	"math"
	"time"
)

// Timestamp layout used in log lines and summaries.
const ISO8601 = "2006-01-02T15:04:05.000Z"

// FromEpochSeconds converts a (possibly fractional) unix timestamp, as returned by the forum API, to UTC.
func FromEpochSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ISO8601)
}
