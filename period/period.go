// Package period models spans of calendar time anchored at a caltime.Value and the
// de-duplicating collections RDATE and EXDATE values are kept in.
package period

import (
	"errors"
	"fmt"
	"time"

	"github.com/cyp0633/librecur/caltime"
)

// ErrInvalidPeriod is returned when a period would end before it starts.
var ErrInvalidPeriod = errors.New("invalid period")

// Period is a start value with either an explicit end or a duration. Whichever side was
// given is authoritative; the other is derived on demand. A period with neither is an
// instant. Period is comparable.
type Period struct {
	start    caltime.Value
	end      caltime.Value
	duration caltime.Duration
	hasDur   bool
}

// At returns the instant period starting at v.
func At(v caltime.Value) Period {
	return Period{start: v}
}

// New returns an end-authoritative period. It fails when end precedes start.
func New(r *caltime.Resolver, start, end caltime.Value) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, fmt.Errorf("%w: missing start or end", ErrInvalidPeriod)
	}
	if sameFrame(start, end) {
		if end.WallCompare(start) < 0 {
			return Period{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, end, start)
		}
	} else if end.Before(r, start) {
		return Period{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, end, start)
	}
	return Period{start: start, end: end}, nil
}

// WithDuration returns a duration-authoritative period.
func WithDuration(start caltime.Value, d caltime.Duration) (Period, error) {
	if start.IsZero() {
		return Period{}, fmt.Errorf("%w: missing start", ErrInvalidPeriod)
	}
	if d.Sign() < 0 {
		return Period{}, fmt.Errorf("%w: negative duration %s", ErrInvalidPeriod, d)
	}
	return Period{start: start, duration: d, hasDur: true}, nil
}

func sameFrame(a, b caltime.Value) bool {
	return a.Kind() == b.Kind() && a.Zone() == b.Zone()
}

func (p Period) Start() caltime.Value { return p.start }

func (p Period) IsZero() bool { return p.start.IsZero() }

// IsInstant reports whether neither an end nor a duration was given.
func (p Period) IsInstant() bool { return p.end.IsZero() && !p.hasDur }

// HasEnd reports whether the end is authoritative.
func (p Period) HasEnd() bool { return !p.end.IsZero() }

// HasDuration reports whether the duration is authoritative.
func (p Period) HasDuration() bool { return p.hasDur }

// End returns the authoritative end, or start plus duration.
func (p Period) End(r *caltime.Resolver) (caltime.Value, error) {
	switch {
	case !p.end.IsZero():
		return p.end, nil
	case p.hasDur:
		return p.start.Add(r, p.duration)
	default:
		return p.start, nil
	}
}

// Duration returns the authoritative duration, or the distance from start to end. Two
// date-only values are measured in calendar days, anything else in elapsed time.
func (p Period) Duration(r *caltime.Resolver) (caltime.Duration, error) {
	switch {
	case p.hasDur:
		return p.duration, nil
	case p.end.IsZero():
		return caltime.Duration{}, nil
	case !p.start.HasTime() && !p.end.HasTime():
		days := int(p.end.Wall().Sub(p.start.Wall()) / (24 * time.Hour))
		return caltime.Days(days), nil
	default:
		d, err := p.end.Sub(r, p.start)
		if err != nil {
			return caltime.Duration{}, err
		}
		return caltime.Exact(d), nil
	}
}

// IsAllDay reports whether the period covers whole calendar days.
func (p Period) IsAllDay() bool {
	if p.start.IsZero() || p.start.HasTime() {
		return false
	}
	if !p.end.IsZero() {
		return !p.end.HasTime()
	}
	_, whole := p.duration.WholeDays()
	return whole
}

// WithStart moves the period keeping its authoritative side.
func (p Period) WithStart(v caltime.Value) Period {
	p.start = v
	return p
}

// Bounds returns the UTC instants the period spans.
func (p Period) Bounds(r *caltime.Resolver) (start, end time.Time, err error) {
	e, err := p.End(r)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return r.Normalize(p.start), r.Normalize(e), nil
}

// Overlaps reports whether the period intersects the half-open window [from, to). A
// zero-length period overlaps when its start lies inside the window.
func (p Period) Overlaps(r *caltime.Resolver, from, to time.Time) (bool, error) {
	start, end, err := p.Bounds(r)
	if err != nil {
		return false, err
	}
	if !to.IsZero() && !start.Before(to) {
		return false, nil
	}
	if from.IsZero() {
		return true, nil
	}
	if end.Equal(start) {
		return !start.Before(from), nil
	}
	return from.Before(end), nil
}

func (p Period) String() string {
	switch {
	case !p.end.IsZero():
		return p.start.ICal() + "/" + p.end.ICal()
	case p.hasDur:
		return p.start.ICal() + "/" + p.duration.String()
	default:
		return p.start.ICal()
	}
}
