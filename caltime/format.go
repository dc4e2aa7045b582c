package caltime

import (
	"fmt"
	"strings"
	"time"
)

const (
	layoutDate     = "20060102"
	layoutDateTime = "20060102T150405"
)

// ParseICal parses iCalendar DATE or DATE-TIME text. A trailing "Z" gives a UTC value,
// otherwise a non-empty tzid gives a zoned value and an empty one a floating value.
func ParseICal(text, tzid string) (Value, error) {
	text = strings.TrimSpace(text)
	switch {
	case len(text) == len(layoutDate):
		t, err := time.Parse(layoutDate, text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q: %v", ErrSyntax, text, err)
		}
		kind := KindZoned
		if tzid == "" {
			kind = KindFloating
		}
		return FromWall(t, false, kind, tzid), nil
	case strings.HasSuffix(text, "Z"):
		t, err := time.Parse(layoutDateTime, strings.TrimSuffix(text, "Z"))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q: %v", ErrSyntax, text, err)
		}
		return FromWall(t, true, KindUTC, ""), nil
	default:
		t, err := time.Parse(layoutDateTime, text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q: %v", ErrSyntax, text, err)
		}
		kind := KindZoned
		if tzid == "" {
			kind = KindFloating
		}
		return FromWall(t, true, kind, tzid), nil
	}
}

// ICal renders the value text without zone parameter: "20060102", "20060102T150405" or
// "20060102T150405Z".
func (v Value) ICal() string {
	if v.IsZero() {
		return ""
	}
	if !v.hasTime {
		return v.Wall().Format(layoutDate)
	}
	s := v.Wall().Format(layoutDateTime)
	if v.kind == KindUTC {
		s += "Z"
	}
	return s
}

// String renders v the way it appears in a property line, prefixed by its TZID when zoned.
func (v Value) String() string {
	if v.IsZero() {
		return "<absent>"
	}
	if v.kind == KindZoned {
		return "TZID=" + v.zone + ":" + v.ICal()
	}
	return v.ICal()
}

// RFC3339 renders v with its offset when it can be resolved, and without one for floating
// and date-only values.
func (v Value) RFC3339(r *Resolver) string {
	if v.IsZero() {
		return ""
	}
	if !v.hasTime {
		return v.Wall().Format(time.DateOnly)
	}
	switch v.kind {
	case KindUTC:
		return v.Wall().Format(time.RFC3339)
	case KindFloating:
		return v.Wall().Format("2006-01-02T15:04:05")
	}
	instant, err := r.Instant(v)
	if err != nil {
		return v.Wall().Format("2006-01-02T15:04:05")
	}
	off, _ := r.zones.OffsetAt(v.zone, instant)
	return instant.In(time.FixedZone(off.Abbrev, off.Seconds)).Format(time.RFC3339)
}
