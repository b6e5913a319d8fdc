package core

import (
	"encoding/json"
	"math"
	"time"
)

// InvalidDate is shown in place of a timestamp that cannot be rendered.
const InvalidDate = "Invalid Date"

// DisplayDateLayout renders like en-US {month: short, day: numeric, hour: 2-digit, minute: 2-digit}.
const DisplayDateLayout = "Jan 2, 03:04 PM"

// maxSeconds bounds representable instants to ±8.64e15 ms around the epoch,
// the same range a browser Date accepts.
const maxSeconds = 8_640_000_000_000

// Timestamp is the remote store's wire timestamp: {"_seconds": n, "_nanoseconds": n}.
type Timestamp struct {
	Seconds int64
	Nanos   int64
	valid   bool
}

// NewTimestamp builds a valid timestamp from t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int64(t.Nanosecond()), valid: t.Unix() != 0}
}

// Valid reports whether the timestamp carried a usable seconds value.
func (ts Timestamp) Valid() bool {
	return ts.valid
}

// Time returns the instant, or the zero time when invalid.
func (ts Timestamp) Time() time.Time {
	if !ts.valid {
		return time.Time{}
	}
	return time.Unix(ts.Seconds, ts.Nanos)
}

// UnmarshalJSON never fails. Absent, null, non-object and zero-second values
// all decode to an invalid timestamp.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	var wire struct {
		Seconds     *json.Number `json:"_seconds"`
		Nanoseconds *json.Number `json:"_nanoseconds"`
	}
	if err := json.Unmarshal(data, &wire); err != nil || wire.Seconds == nil {
		return nil
	}
	secs, err := wire.Seconds.Int64()
	if err != nil {
		f, ferr := wire.Seconds.Float64()
		if ferr != nil || math.IsNaN(f) || math.Abs(f) > maxSeconds {
			return nil
		}
		secs = int64(f)
	}
	if secs == 0 || secs > maxSeconds || secs < -maxSeconds {
		return nil
	}
	ts.Seconds = secs
	if wire.Nanoseconds != nil {
		if n, err := wire.Nanoseconds.Int64(); err == nil && n >= 0 && n < int64(time.Second) {
			ts.Nanos = n
		}
	}
	ts.valid = true
	return nil
}

// MarshalJSON writes the wire form; invalid timestamps encode as null.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.valid {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Seconds     int64 `json:"_seconds"`
		Nanoseconds int64 `json:"_nanoseconds"`
	}{ts.Seconds, ts.Nanos})
}

// FormatDate renders ts in loc for display, or InvalidDate.
func FormatDate(ts Timestamp, loc *time.Location) string {
	if !ts.valid {
		return InvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	return ts.Time().In(loc).Format(DisplayDateLayout)
}
