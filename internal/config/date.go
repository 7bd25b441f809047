package config

import (
	"fmt"
	"time"
)

// DateLayout is the only accepted date format.
const DateLayout = time.DateOnly

// DateError reports a date that is not a valid YYYY-MM-DD calendar date.
type DateError struct {
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date %q: use YYYY-MM-DD", e.Value)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &DateError{Value: s, Err: err}
	}

	return d, nil
}
