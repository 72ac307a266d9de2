package util

import "time"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// UTCNow is the production Clock. Event timestamps are stored in UTC.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// FormatTimestamp renders t the way logs and chat messages show it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 MST")
}
