package caltime

import (
	"fmt"
	"time"
)

// transitionWindow bounds how far apart the offsets around a wall clock reading are sampled.
// Zones do not change offset twice within this span.
const transitionWindow = 26 * time.Hour

// Resolver places Values on the UTC timeline using a ZoneProvider and a floating-time policy.
type Resolver struct {
	zones    ZoneProvider
	floating string
}

type ResolverOption func(*Resolver)

// WithFloatingZone reads floating values as wall clocks in zone. The default is to read them
// as UTC wall clocks.
func WithFloatingZone(zone string) ResolverOption {
	return func(r *Resolver) {
		if zone == UTCZone {
			zone = ""
		}
		r.floating = zone
	}
}

// NewResolver returns a Resolver over zones. A nil provider uses a fresh TZDB.
func NewResolver(zones ZoneProvider, opts ...ResolverOption) *Resolver {
	if zones == nil {
		zones = NewTZDB()
	}
	r := &Resolver{zones: zones}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = NewResolver(nil)

// DefaultResolver is backed by the IANA database and reads floating values as UTC.
func DefaultResolver() *Resolver { return defaultResolver }

func (r *Resolver) Zones() ZoneProvider { return r.zones }

// FloatingZone is the zone floating values are read in, "" meaning UTC.
func (r *Resolver) FloatingZone() string { return r.floating }

// Instant returns the UTC instant v denotes. Zoned values whose zone is unknown to the
// provider fail with ErrUnknownZone.
func (r *Resolver) Instant(v Value) (time.Time, error) {
	if v.IsZero() {
		return time.Time{}, fmt.Errorf("%w: absent value has no instant", ErrInvalidState)
	}
	switch v.kind {
	case KindUTC:
		return v.Wall(), nil
	case KindFloating:
		if r.floating == "" {
			return v.Wall(), nil
		}
		return r.wallToInstant(r.floating, v.Wall())
	default:
		return r.wallToInstant(v.zone, v.Wall())
	}
}

// Normalize is the lenient form of Instant: a zoned value with an unknown zone is read
// under the floating policy instead.
func (r *Resolver) Normalize(v Value) time.Time {
	if t, err := r.Instant(v); err == nil {
		return t
	}
	if v.kind == KindZoned {
		if t, err := r.Instant(v.WithZone("")); err == nil {
			return t
		}
	}
	return v.Wall()
}

// Known reports whether zone is resolvable at instant.
func (r *Resolver) Known(zone string, instant time.Time) bool {
	if zone == "" || zone == UTCZone {
		return true
	}
	_, ok := r.zones.OffsetAt(zone, instant)
	return ok
}

// InZone returns the value whose wall clock in zone shows instant. An empty zone gives a
// floating value under the floating policy.
func (r *Resolver) InZone(zone string, instant time.Time) (Value, error) {
	switch zone {
	case UTCZone:
		return FromWall(instant.UTC(), true, KindUTC, ""), nil
	case "":
		if r.floating == "" {
			return FromWall(instant.UTC(), true, KindFloating, ""), nil
		}
		wall, err := r.instantToWall(r.floating, instant)
		if err != nil {
			return Value{}, err
		}
		return FromWall(wall, true, KindFloating, ""), nil
	}
	wall, err := r.instantToWall(zone, instant)
	if err != nil {
		return Value{}, err
	}
	return FromWall(wall, true, KindZoned, zone), nil
}

func (r *Resolver) instantToWall(zone string, instant time.Time) (time.Time, error) {
	off, ok := r.zones.OffsetAt(zone, instant.UTC())
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownZone, zone)
	}
	return instant.UTC().Add(off.Duration()), nil
}

// wallToInstant maps a wall clock in zone to the UTC timeline. An ambiguous reading takes the
// earlier instant. A reading inside a gap is interpreted with the offset in effect before the
// gap, which moves it forward by the gap length.
func (r *Resolver) wallToInstant(zone string, wall time.Time) (time.Time, error) {
	var (
		before, hasBefore = r.zones.OffsetAt(zone, wall.Add(-transitionWindow))
		at, hasAt         = r.zones.OffsetAt(zone, wall)
		after, hasAfter   = r.zones.OffsetAt(zone, wall.Add(transitionWindow))
	)

	var candidates []Offset
	if hasBefore {
		candidates = append(candidates, before)
	}
	if hasAt {
		candidates = append(candidates, at)
	}
	if hasAfter {
		candidates = append(candidates, after)
	}
	if len(candidates) == 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownZone, zone)
	}

	var (
		best  time.Time
		found bool
	)
	for _, off := range candidates {
		instant := wall.Add(-off.Duration())
		got, ok := r.zones.OffsetAt(zone, instant)
		if !ok || got.Seconds != off.Seconds {
			continue
		}
		if !found || instant.Before(best) {
			best, found = instant, true
		}
	}
	if found {
		return best, nil
	}
	return wall.Add(-candidates[0].Duration()), nil
}
