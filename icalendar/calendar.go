// Package icalendar builds recurrence entities, overrides and zone tables from iCalendar
// data decoded by go-ical.
//
// Components with a RECURRENCE-ID become overrides of the entity sharing their UID. Every
// other VEVENT, VTODO or VJOURNAL becomes an entity, and VTIMEZONE definitions become a
// zone table that takes precedence over the system zone database.
package icalendar

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/pattern"
	"github.com/cyp0633/librecur/period"
	"github.com/cyp0633/librecur/recurrence"
)

// ErrMissingStart is returned for a component without DTSTART (or DUE for a VTODO).
var ErrMissingStart = errors.New("component has no start")

// DefaultZoneHorizon is the last year VTIMEZONE rules are expanded to.
const DefaultZoneHorizon = 2100

type options struct {
	resolver *caltime.Resolver
	rules    []pattern.Option
	horizon  int
	logger   *slog.Logger
}

// Option configures how calendars are read.
type Option func(*options)

// WithResolver sets the resolver calendar zones are chained in front of.
func WithResolver(r *caltime.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithRestriction applies a restriction to every RRULE and EXRULE read.
func WithRestriction(r pattern.Restriction) Option {
	return func(o *options) {
		o.rules = append(o.rules, pattern.WithRestriction(r))
	}
}

// WithEvaluationMode applies an evaluation mode to every RRULE and EXRULE read.
func WithEvaluationMode(m pattern.EvaluationMode) Option {
	return func(o *options) {
		o.rules = append(o.rules, pattern.WithEvaluationMode(m))
	}
}

// WithZoneHorizon sets the last year VTIMEZONE rules are expanded to.
func WithZoneHorizon(year int) Option {
	return func(o *options) {
		if year > 0 {
			o.horizon = year
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		resolver: caltime.DefaultResolver(),
		horizon:  DefaultZoneHorizon,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Calendar is the recurrence view of one or more VCALENDAR objects.
type Calendar struct {
	Entities  []*recurrence.Entity
	Overrides recurrence.MapOverrides
	Zones     *caltime.ZoneTable
	// Resolver answers calendar-defined zones first and falls back to the configured one.
	Resolver *caltime.Resolver
}

// Decode reads every VCALENDAR object from r.
func Decode(r io.Reader, opts ...Option) (*Calendar, error) {
	o := newOptions(opts)
	out := newCalendar(o)

	dec := ical.NewDecoder(r)
	var cals []*ical.Calendar
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		cals = append(cals, cal)
	}

	// Zones first so that every component can refer to any of them.
	for _, cal := range cals {
		if err := addZones(out.Zones, cal.Component, o); err != nil {
			return nil, err
		}
	}
	for _, cal := range cals {
		if err := out.addComponents(cal.Component, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FromCalendar reads an already decoded calendar.
func FromCalendar(cal *ical.Calendar, opts ...Option) (*Calendar, error) {
	o := newOptions(opts)
	out := newCalendar(o)
	if err := addZones(out.Zones, cal.Component, o); err != nil {
		return nil, err
	}
	if err := out.addComponents(cal.Component, o); err != nil {
		return nil, err
	}
	return out, nil
}

func newCalendar(o *options) *Calendar {
	zones := caltime.NewZoneTable()
	resolver := caltime.NewResolver(
		caltime.Chain{zones, o.resolver.Zones()},
		caltime.WithFloatingZone(o.resolver.FloatingZone()),
	)
	// Later parsing compares values in calendar zones.
	o.resolver = resolver
	return &Calendar{
		Overrides: recurrence.MapOverrides{},
		Zones:     zones,
		Resolver:  resolver,
	}
}

func (c *Calendar) addComponents(cal *ical.Component, o *options) error {
	for _, comp := range cal.Children {
		switch comp.Name {
		case ical.CompEvent, ical.CompToDo, ical.CompJournal:
		default:
			continue
		}

		if comp.Props.Get(propRecurrenceID) != nil {
			uid, ov, err := overrideFrom(comp, o)
			if err != nil {
				return err
			}
			c.Overrides.Add(uid, ov)
			continue
		}

		ent, err := entityFrom(comp, o)
		if err != nil {
			return err
		}
		c.Entities = append(c.Entities, ent)
	}

	for uid := range c.Overrides {
		if !c.hasEntity(uid) {
			o.logger.Debug("override without master component", "uid", uid)
		}
	}
	return nil
}

func (c *Calendar) hasEntity(uid string) bool {
	for _, ent := range c.Entities {
		if ent.ID == uid {
			return true
		}
	}
	return false
}

// Engine returns an engine resolving zones like the calendar and looking overrides up in it.
func (c *Calendar) Engine(cfg recurrence.EngineConfig, opts ...recurrence.Option) *recurrence.Engine {
	opts = append([]recurrence.Option{recurrence.WithResolver(c.Resolver), recurrence.WithOverrides(c.Overrides)}, opts...)
	return recurrence.NewEngineWithConfig(cfg, opts...)
}

// EntityFromComponent builds an entity from a VEVENT, VTODO or VJOURNAL. The component
// becomes the entity's Source.
func EntityFromComponent(comp *ical.Component, opts ...Option) (*recurrence.Entity, error) {
	return entityFrom(comp, newOptions(opts))
}

// OverrideFromComponent builds the override described by a component with a RECURRENCE-ID
// and returns the UID of the entity it belongs to.
func OverrideFromComponent(comp *ical.Component, opts ...Option) (string, recurrence.Override, error) {
	return overrideFrom(comp, newOptions(opts))
}

func uidOf(comp *ical.Component) string {
	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		return prop.Value
	}
	return ""
}

func startOf(comp *ical.Component) (caltime.Value, error) {
	prop := comp.Props.Get(ical.PropDateTimeStart)
	if prop == nil && comp.Name == ical.CompToDo {
		prop = comp.Props.Get(ical.PropDue)
	}
	if prop == nil {
		return caltime.Value{}, fmt.Errorf("%s %q: %w", comp.Name, uidOf(comp), ErrMissingStart)
	}
	return valueOf(prop)
}

func entityFrom(comp *ical.Component, o *options) (*recurrence.Entity, error) {
	start, err := startOf(comp)
	if err != nil {
		return nil, err
	}
	ent := recurrence.NewEntity(uidOf(comp), start)
	ent.Source = comp

	switch {
	case comp.Props.Get(ical.PropDateTimeEnd) != nil:
		end, err := endOf(comp.Props.Get(ical.PropDateTimeEnd), start)
		if err != nil {
			return nil, err
		}
		ent.SetEnd(end)
	case comp.Props.Get(ical.PropDuration) != nil:
		d, err := durationOf(comp.Props.Get(ical.PropDuration))
		if err != nil {
			return nil, err
		}
		ent.SetDuration(d)
	case comp.Name == ical.CompToDo && comp.Props.Get(ical.PropDateTimeStart) != nil && comp.Props.Get(ical.PropDue) != nil:
		due, err := valueOf(comp.Props.Get(ical.PropDue))
		if err != nil {
			return nil, err
		}
		ent.SetEnd(due)
	}

	for _, prop := range comp.Props.Values(ical.PropRecurrenceRule) {
		p, err := pattern.Parse(prop.Value, o.rules...)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", comp.Name, ent.ID, err)
		}
		ent.AddRRule(p)
	}
	for _, prop := range comp.Props.Values(propExceptionRule) {
		p, err := pattern.Parse(prop.Value, o.rules...)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", comp.Name, ent.ID, err)
		}
		ent.AddExRule(p)
	}
	for _, prop := range comp.Props.Values(ical.PropRecurrenceDates) {
		periods, err := periodsOf(o.resolver, &prop)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", comp.Name, ent.ID, err)
		}
		for _, p := range periods {
			ent.RDates().Add(p)
		}
	}
	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		periods, err := periodsOf(o.resolver, &prop)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", comp.Name, ent.ID, err)
		}
		for _, p := range periods {
			ent.ExDates().Add(p)
		}
	}

	o.logger.Debug("read component", "name", comp.Name, "uid", ent.ID,
		"rrules", len(ent.RRules()), "rdates", ent.RDates().Len(), "exdates", ent.ExDates().Len())
	return ent, nil
}

// endOf reads DTEND. A date-only end on the start date means the event lasts that day.
func endOf(prop *ical.Prop, start caltime.Value) (caltime.Value, error) {
	end, err := valueOf(prop)
	if err != nil {
		return caltime.Value{}, err
	}
	if !start.HasTime() && !end.HasTime() && end.WallCompare(start) == 0 {
		end = start.AddDays(1)
	}
	return end, nil
}

func overrideFrom(comp *ical.Component, o *options) (string, recurrence.Override, error) {
	ridProp := comp.Props.Get(propRecurrenceID)
	if ridProp == nil {
		return "", recurrence.Override{}, fmt.Errorf("%s %q: no %s", comp.Name, uidOf(comp), propRecurrenceID)
	}
	rid, err := valueOf(ridProp)
	if err != nil {
		return "", recurrence.Override{}, err
	}

	start := rid
	if comp.Props.Get(ical.PropDateTimeStart) != nil {
		if start, err = startOf(comp); err != nil {
			return "", recurrence.Override{}, err
		}
	}

	ov := recurrence.Override{RecurrenceID: rid, Source: comp}
	if ridProp.Params.Get(paramRange) == "THISANDFUTURE" {
		ov.Range = recurrence.ThisAndFuture
	}

	switch {
	case comp.Props.Get(ical.PropDateTimeEnd) != nil:
		end, err := endOf(comp.Props.Get(ical.PropDateTimeEnd), start)
		if err != nil {
			return "", recurrence.Override{}, err
		}
		ov.Period, err = period.New(o.resolver, start, end)
		if err != nil {
			return "", recurrence.Override{}, err
		}
	case comp.Props.Get(ical.PropDuration) != nil:
		d, err := durationOf(comp.Props.Get(ical.PropDuration))
		if err != nil {
			return "", recurrence.Override{}, err
		}
		ov.Period, err = period.WithDuration(start, d)
		if err != nil {
			return "", recurrence.Override{}, err
		}
	default:
		var d caltime.Duration
		if !start.HasTime() {
			d = caltime.Days(1)
		}
		ov.Period, err = period.WithDuration(start, d)
		if err != nil {
			return "", recurrence.Override{}, err
		}
	}
	return uidOf(comp), ov, nil
}

// horizonEnd is the first instant after the zone horizon.
func (o *options) horizonEnd() time.Time {
	return time.Date(o.horizon+1, time.January, 1, 0, 0, 0, 0, time.UTC)
}
