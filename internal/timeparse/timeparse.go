// Package timeparse normalizes the timestamp shapes accepted on the wire:
// RFC 3339 strings with or without fractional seconds, naive date-times,
// bare dates, day-first dates, and numeric epoch seconds.
package timeparse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ParseError reports a value that cannot be interpreted as a timestamp. The
// offending value is kept for error messages.
type ParseError struct {
	Value any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid datetime format: %v", e.Value)
}

// naiveLayouts are tried in order for strings without a zone offset; matches
// are interpreted as wall time in the target location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// Normalize converts raw into a time in loc. Nil and blank inputs normalize
// to nil without error. Numeric inputs are epoch seconds, fractional part
// preserved. Strings carrying an offset are converted to loc; naive strings
// are taken as wall time already in loc. Anything else returns a *ParseError.
func Normalize(raw any, loc *time.Location) (*time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		t := v.In(loc)
		return &t, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		t := v.In(loc)
		return &t, nil
	case int:
		return fromEpoch(float64(v), loc), nil
	case int64:
		return fromEpoch(float64(v), loc), nil
	case float64:
		return fromEpoch(v, loc), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, &ParseError{Value: raw}
		}
		return fromEpoch(f, loc), nil
	case string:
		return fromString(v, raw, loc)
	default:
		return nil, &ParseError{Value: raw}
	}
}

func fromEpoch(sec float64, loc *time.Location) *time.Time {
	s := int64(sec)
	ns := int64((sec - float64(s)) * float64(time.Second))
	t := time.Unix(s, ns).In(loc)
	return &t
}

func fromString(s string, raw any, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.In(loc)
		return &t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, &ParseError{Value: raw}
}
