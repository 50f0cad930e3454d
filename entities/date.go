package entities

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Date is a calendar date sent by the API as a unix timestamp, either as a
// JSON number or a numeric string. A timestamp of 0 means unset.
type Date struct {
	time.Time
}

// DateOf returns the Date holding t.
func DateOf(t time.Time) Date {
	return Date{Time: t}
}

// Unix returns the timestamp, or 0 when the date is unset.
func (d Date) Unix() int64 {
	if d.IsZero() {
		return 0
	}
	return d.Time.Unix()
}

// UnmarshalJSON accepts 1700000000, "1700000000", "" and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	data = bytes.Trim(data, `"`)
	if len(data) == 0 {
		*d = Date{}
		return nil
	}

	ts, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", data, err)
	}
	if ts == 0 {
		*d = Date{}
		return nil
	}
	*d = Date{Time: time.Unix(ts, 0).UTC()}
	return nil
}

// MarshalJSON writes the timestamp as a string, the form the API expects.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatInt(d.Unix(), 10))), nil
}

// Covers reports whether t falls between start and end inclusive. An unset
// end leaves the range open.
func Covers(start, end Date, t time.Time) bool {
	if !start.IsZero() && start.After(t) {
		return false
	}
	if !end.IsZero() && end.Before(t) {
		return false
	}
	return true
}
