package recurrence

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/pattern"
	"github.com/cyp0633/librecur/period"
)

var entitySerial atomic.Uint64

// Entity is a recurring item: a seed period plus recurrence rules, exception rules and
// explicit recurrence and exception dates.
//
// Every mutation bumps Version, which keys memoized expansions. An Entity must not be
// mutated while it is being evaluated.
type Entity struct {
	// ID is the identity overrides are associated by, such as an iCalendar UID.
	ID string
	// Source is returned unchanged on every Occurrence.
	Source any

	serial      uint64
	start       caltime.Value
	end         caltime.Value
	duration    caltime.Duration
	hasDuration bool
	rrules      []*pattern.Pattern
	exrules     []*pattern.Pattern
	rdates      *period.Set
	exdates     *period.Set
	generation  uint64
}

// NewEntity returns an entity starting at start. An empty id is replaced by a random UUID.
func NewEntity(id string, start caltime.Value) *Entity {
	if id == "" {
		id = uuid.NewString()
	}
	return &Entity{
		ID:      id,
		serial:  entitySerial.Add(1),
		start:   start,
		rdates:  period.NewSet(),
		exdates: period.NewSet(),
	}
}

func (e *Entity) Start() caltime.Value { return e.start }

// End returns the explicit end, if one was set.
func (e *Entity) End() caltime.Value { return e.end }

func (e *Entity) SetStart(v caltime.Value) {
	e.start = v
	e.generation++
}

// SetEnd makes the end authoritative.
func (e *Entity) SetEnd(v caltime.Value) {
	e.end = v
	e.duration, e.hasDuration = caltime.Duration{}, false
	e.generation++
}

// SetDuration makes the duration authoritative.
func (e *Entity) SetDuration(d caltime.Duration) {
	e.duration, e.hasDuration = d, true
	e.end = caltime.Value{}
	e.generation++
}

func (e *Entity) AddRRule(p *pattern.Pattern) {
	e.rrules = append(e.rrules, p)
	e.generation++
}

func (e *Entity) SetRRules(ps ...*pattern.Pattern) {
	e.rrules = slices.Clone(ps)
	e.generation++
}

func (e *Entity) AddExRule(p *pattern.Pattern) {
	e.exrules = append(e.exrules, p)
	e.generation++
}

func (e *Entity) SetExRules(ps ...*pattern.Pattern) {
	e.exrules = slices.Clone(ps)
	e.generation++
}

func (e *Entity) RRules() []*pattern.Pattern  { return slices.Clone(e.rrules) }
func (e *Entity) ExRules() []*pattern.Pattern { return slices.Clone(e.exrules) }

// RDates is the live RDATE set; changes to it are reflected in Version.
func (e *Entity) RDates() *period.Set { return e.rdates }

// ExDates is the live EXDATE set; changes to it are reflected in Version.
func (e *Entity) ExDates() *period.Set { return e.exdates }

// IsRecurring reports whether the entity has rules or recurrence dates.
func (e *Entity) IsRecurring() bool {
	return len(e.rrules) > 0 || e.rdates.Len() > 0
}

// Version changes whenever the entity or its date sets change.
func (e *Entity) Version() uint64 {
	return e.generation + e.rdates.Version() + e.exdates.Version()
}

// cacheOwner identifies this entity instance in the expansion cache.
func (e *Entity) cacheOwner() string {
	return fmt.Sprintf("%s#%d", e.ID, e.serial)
}

// Duration returns the length of every generated instance: the explicit duration, the
// distance to the explicit end, or one day for date-only starts and zero otherwise.
func (e *Entity) Duration(r *caltime.Resolver) (caltime.Duration, error) {
	if e.hasDuration {
		return e.duration, nil
	}
	if e.end.IsZero() {
		if !e.start.HasTime() {
			return caltime.Days(1), nil
		}
		return caltime.Duration{}, nil
	}
	p, err := period.New(r, e.start, e.end)
	if err != nil {
		return caltime.Duration{}, err
	}
	return p.Duration(r)
}

// Period returns the entity's own period.
func (e *Entity) Period(r *caltime.Resolver) (period.Period, error) {
	if !e.end.IsZero() {
		return period.New(r, e.start, e.end)
	}
	d, err := e.Duration(r)
	if err != nil {
		return period.Period{}, err
	}
	return period.WithDuration(e.start, d)
}
