package icalendar

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/pattern"
	"github.com/cyp0633/librecur/recurrence"
)

const (
	propOffsetFrom = "TZOFFSETFROM"
	propOffsetTo   = "TZOFFSETTO"
	propZoneName   = "TZNAME"
)

// ZonesFromCalendar builds a zone table from the VTIMEZONE components of cal. Recurring
// onsets are expanded up to the zone horizon.
func ZonesFromCalendar(cal *ical.Calendar, opts ...Option) (*caltime.ZoneTable, error) {
	table := caltime.NewZoneTable()
	if err := addZones(table, cal.Component, newOptions(opts)); err != nil {
		return nil, err
	}
	return table, nil
}

type transition struct {
	at       time.Time
	from, to caltime.Offset
}

func addZones(table *caltime.ZoneTable, cal *ical.Component, o *options) error {
	// Onsets are floating local times; reading them as UTC keeps their wall clock.
	ev := recurrence.NewEvaluator(caltime.NewResolver(caltime.NewZoneTable()), recurrence.WithEvaluatorLogger(o.logger))

	for _, comp := range cal.Children {
		if comp.Name != ical.CompTimezone {
			continue
		}
		prop := comp.Props.Get(ical.PropTimezoneID)
		if prop == nil || prop.Value == "" {
			return fmt.Errorf("%s: missing %s", ical.CompTimezone, ical.PropTimezoneID)
		}
		tzid := prop.Value

		var ts []transition
		for _, child := range comp.Children {
			if child.Name != ical.CompTimezoneStandard && child.Name != ical.CompTimezoneDaylight {
				continue
			}
			got, err := transitionsOf(child, ev, o)
			if err != nil {
				return fmt.Errorf("%s %q: %w", ical.CompTimezone, tzid, err)
			}
			ts = append(ts, got...)
		}
		if len(ts) == 0 {
			return fmt.Errorf("%s %q: no STANDARD or DAYLIGHT onsets", ical.CompTimezone, tzid)
		}

		slices.SortFunc(ts, func(a, b transition) int { return a.at.Compare(b.at) })
		ts = slices.CompactFunc(ts, func(a, b transition) bool { return a.at.Equal(b.at) })

		intervals := make([]caltime.ZoneInterval, 0, len(ts)+1)
		intervals = append(intervals, caltime.ZoneInterval{End: ts[0].at, Offset: ts[0].from})
		for i, t := range ts {
			zi := caltime.ZoneInterval{Start: t.at, Offset: t.to}
			if i+1 < len(ts) {
				zi.End = ts[i+1].at
			}
			intervals = append(intervals, zi)
		}
		table.Add(tzid, intervals...)
		o.logger.Debug("read time zone", "tzid", tzid, "transitions", len(ts))
	}
	return nil
}

func transitionsOf(comp *ical.Component, ev *recurrence.Evaluator, o *options) ([]transition, error) {
	from, err := offsetOf(comp, propOffsetFrom)
	if err != nil {
		return nil, err
	}
	to, err := offsetOf(comp, propOffsetTo)
	if err != nil {
		return nil, err
	}
	if name := comp.Props.Get(propZoneName); name != nil {
		to.Abbrev = name.Value
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return nil, fmt.Errorf("%s: %w", comp.Name, ErrMissingStart)
	}
	start, err := valueOf(startProp)
	if err != nil {
		return nil, err
	}
	start = start.WithZone("")

	onsets := []caltime.Value{start}
	for _, prop := range comp.Props.Values(ical.PropRecurrenceRule) {
		p, err := pattern.Parse(prop.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", comp.Name, err)
		}
		vals, err := ev.Expand(p, start, time.Time{}, o.horizonEnd())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", comp.Name, err)
		}
		onsets = append(onsets, vals...)
	}
	for _, prop := range comp.Props.Values(ical.PropRecurrenceDates) {
		periods, err := periodsOf(o.resolver, &prop)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", comp.Name, err)
		}
		for _, p := range periods {
			onsets = append(onsets, p.Start())
		}
	}

	out := make([]transition, 0, len(onsets))
	for _, v := range onsets {
		out = append(out, transition{at: v.Wall().Add(-from.Duration()), from: from, to: to})
	}
	return out, nil
}

func offsetOf(comp *ical.Component, name string) (caltime.Offset, error) {
	prop := comp.Props.Get(name)
	if prop == nil {
		return caltime.Offset{}, fmt.Errorf("%s: missing %s", comp.Name, name)
	}
	secs, err := parseUTCOffset(prop.Value)
	if err != nil {
		return caltime.Offset{}, fmt.Errorf("%s: %s: %w", comp.Name, name, err)
	}
	return caltime.Offset{Seconds: secs}, nil
}

// parseUTCOffset reads UTC-OFFSET text such as "+0100", "-0500" or "+053000".
func parseUTCOffset(text string) (int, error) {
	s := strings.TrimSpace(text)
	if len(s) != 5 && len(s) != 7 {
		return 0, fmt.Errorf("%w: offset %q", caltime.ErrSyntax, text)
	}
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("%w: offset %q", caltime.ErrSyntax, text)
	}

	var parts [3]int
	for i := 0; 1+2*i < len(s); i++ {
		n, err := strconv.Atoi(s[1+2*i : 3+2*i])
		if err != nil {
			return 0, fmt.Errorf("%w: offset %q", caltime.ErrSyntax, text)
		}
		parts[i] = n
	}
	if parts[1] > 59 || parts[2] > 59 {
		return 0, fmt.Errorf("%w: offset %q", caltime.ErrSyntax, text)
	}
	return sign * (parts[0]*3600 + parts[1]*60 + parts[2]), nil
}
