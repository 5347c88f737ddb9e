package util

import (
	"time"
)

// ISO-8601 in UTC with milliseconds; sorts as a string
const isoformat = "2006-01-02T15:04:05.000Z07:00"

func Timestamp(t time.Time) string {
	return t.UTC().Format(isoformat)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
