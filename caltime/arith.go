package caltime

import (
	"fmt"
	"time"
)

// Add applies d to v. The nominal part is added on the wall clock, then the exact part is
// added on the UTC timeline and converted back to v's zone, so adding four hours across a
// daylight saving change yields a value exactly four hours later. Floating values are
// shifted on the wall clock.
//
// Date-only values accept only whole-day durations and fail with ErrInvalidState otherwise.
func (v Value) Add(r *Resolver, d Duration) (Value, error) {
	if v.IsZero() {
		return Value{}, fmt.Errorf("%w: add to absent value", ErrInvalidState)
	}
	if !v.hasTime {
		days, ok := d.WholeDays()
		if !ok {
			return Value{}, fmt.Errorf("%w: cannot add %s to date-only value %s", ErrInvalidState, d, v)
		}
		return v.AddDays(days), nil
	}

	out := v.AddDays(d.Days)
	if d.Time == 0 {
		return out, nil
	}
	if out.kind != KindZoned {
		return out.WithWall(out.Wall().Add(d.Time)), nil
	}
	instant, err := r.Instant(out)
	if err != nil {
		return Value{}, err
	}
	return r.InZone(out.zone, instant.Add(d.Time))
}

// AddHours adds n exact hours.
func (v Value) AddHours(r *Resolver, n int) (Value, error) {
	return v.Add(r, Exact(time.Duration(n)*time.Hour))
}

// AddMinutes adds n exact minutes.
func (v Value) AddMinutes(r *Resolver, n int) (Value, error) {
	return v.Add(r, Exact(time.Duration(n)*time.Minute))
}

// AddSeconds adds n exact seconds.
func (v Value) AddSeconds(r *Resolver, n int) (Value, error) {
	return v.Add(r, Exact(time.Duration(n)*time.Second))
}

// Sub returns the exact elapsed time v - o. Two floating values are subtracted on the
// wall clock.
func (v Value) Sub(r *Resolver, o Value) (time.Duration, error) {
	if v.IsZero() || o.IsZero() {
		return 0, fmt.Errorf("%w: subtract absent value", ErrInvalidState)
	}
	if v.kind == KindFloating && o.kind == KindFloating {
		return v.Wall().Sub(o.Wall()), nil
	}
	a, err := r.Instant(v)
	if err != nil {
		return 0, err
	}
	b, err := r.Instant(o)
	if err != nil {
		return 0, err
	}
	return a.Sub(b), nil
}

// ToZone converts v to the wall clock of zone at the same instant. Date-only values keep
// their date and are only re-tagged.
func (v Value) ToZone(r *Resolver, zone string) (Value, error) {
	if v.IsZero() {
		return Value{}, fmt.Errorf("%w: convert absent value", ErrInvalidState)
	}
	if !v.hasTime {
		return v.WithZone(zone), nil
	}
	if v.Zone() == zone && v.kind != KindFloating {
		return v, nil
	}
	instant, err := r.Instant(v)
	if err != nil {
		return Value{}, err
	}
	return r.InZone(zone, instant)
}

// ToUTC converts v to a UTC value.
func (v Value) ToUTC(r *Resolver) (Value, error) {
	return v.ToZone(r, UTCZone)
}

// Compare orders v and o by the instants they denote, -1, 0 or +1. Two floating values
// compare by wall clock. Unknown zones are read under the floating policy. An absent
// operand sorts first.
func (v Value) Compare(r *Resolver, o Value) int {
	switch {
	case v.IsZero() && o.IsZero():
		return 0
	case v.IsZero():
		return -1
	case o.IsZero():
		return 1
	}
	if v.kind == KindFloating && o.kind == KindFloating {
		return v.Wall().Compare(o.Wall())
	}
	return r.Normalize(v).Compare(r.Normalize(o))
}

// Before reports v < o. It is false when either operand is absent.
func (v Value) Before(r *Resolver, o Value) bool {
	return !v.IsZero() && !o.IsZero() && v.Compare(r, o) < 0
}

// After reports v > o. It is false when either operand is absent.
func (v Value) After(r *Resolver, o Value) bool {
	return !v.IsZero() && !o.IsZero() && v.Compare(r, o) > 0
}

// SameInstant reports whether v and o denote the same instant.
func (v Value) SameInstant(r *Resolver, o Value) bool {
	return !v.IsZero() && !o.IsZero() && v.Compare(r, o) == 0
}

// CompareStrict is Compare for callers that must not mix frames silently. It fails with
// ErrIncompatibleComparison when an operand is absent or its zone cannot be resolved.
func (v Value) CompareStrict(r *Resolver, o Value) (int, error) {
	if v.IsZero() || o.IsZero() {
		return 0, fmt.Errorf("%w: absent operand", ErrIncompatibleComparison)
	}
	if v.kind == KindFloating && o.kind == KindFloating {
		return v.Wall().Compare(o.Wall()), nil
	}
	a, err := r.Instant(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIncompatibleComparison, err)
	}
	b, err := r.Instant(o)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrIncompatibleComparison, err)
	}
	return a.Compare(b), nil
}
