package es

import "time"

// ToTimestamp converts t to the epoch-millisecond form the default index's
// date fields accept.
func ToTimestamp(t time.Time) int64 {
	return t.UnixMilli()
}

// FromTimestamp converts an epoch-millisecond value back to UTC time.
func FromTimestamp(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
