package timeutil

import "time"

const (
	// RFC3339Millis is RFC 3339 UTC with fixed millisecond precision, used in response bodies.
	RFC3339Millis = "2006-01-02T15:04:05.000Z"
	// RFC3339Micros is RFC 3339 UTC with fixed microsecond precision, used in log timestamps.
	RFC3339Micros = "2006-01-02T15:04:05.000000Z"
)

// Time marshals to JSON as RFC3339Millis in UTC.
type Time struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(RFC3339Millis) + `"`), nil
}

// UnmarshalJSON accepts any RFC 3339 timestamp. JSON null leaves t unchanged.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Now returns the current time.
func Now() Time {
	return Time{Time: time.Now()}
}
