package icalendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/period"
)

const (
	propRecurrenceID  = "RECURRENCE-ID"
	propExceptionRule = "EXRULE"
	paramRange        = "RANGE"
	paramValue        = "VALUE"
)

// valueOf reads a DATE or DATE-TIME property keeping its TZID.
func valueOf(prop *ical.Prop) (caltime.Value, error) {
	v, err := caltime.ParseICal(prop.Value, prop.Params.Get(ical.ParamTimezoneID))
	if err != nil {
		return caltime.Value{}, fmt.Errorf("%s: %w", prop.Name, err)
	}
	if strings.EqualFold(prop.Params.Get(paramValue), "DATE") && v.HasTime() {
		return caltime.Value{}, fmt.Errorf("%s: %w: DATE value %q has a time", prop.Name, caltime.ErrSyntax, prop.Value)
	}
	return v, nil
}

// periodsOf reads every comma-separated entry of an RDATE or EXDATE property. DATE and
// DATE-TIME entries become instant periods; PERIOD entries keep their end or duration.
func periodsOf(r *caltime.Resolver, prop *ical.Prop) ([]period.Period, error) {
	tzid := prop.Params.Get(ical.ParamTimezoneID)
	isPeriod := strings.EqualFold(prop.Params.Get(paramValue), "PERIOD")

	var out []period.Period
	for _, text := range strings.Split(prop.Value, ",") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		startText, rest, hasRest := strings.Cut(text, "/")
		if isPeriod && !hasRest {
			return nil, fmt.Errorf("%s: %w: %q is not a period", prop.Name, caltime.ErrSyntax, text)
		}
		start, err := caltime.ParseICal(startText, tzid)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prop.Name, err)
		}
		if !hasRest {
			out = append(out, period.At(start))
			continue
		}

		var p period.Period
		if strings.HasPrefix(rest, "P") || strings.HasPrefix(rest, "+P") || strings.HasPrefix(rest, "-P") {
			d, err := parseDuration(rest)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", prop.Name, err)
			}
			p, err = period.WithDuration(start, d)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", prop.Name, err)
			}
		} else {
			end, err := caltime.ParseICal(rest, tzid)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", prop.Name, err)
			}
			p, err = period.New(r, start, end)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", prop.Name, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// durationOf reads a DURATION property. go-ical validates the text and yields the elapsed
// length; the day and week part is kept nominal.
func durationOf(prop *ical.Prop) (caltime.Duration, error) {
	total, err := prop.Duration()
	if err != nil {
		return caltime.Duration{}, fmt.Errorf("%s: %w", prop.Name, err)
	}
	days, err := nominalDays(prop.Value)
	if err != nil {
		return caltime.Duration{}, fmt.Errorf("%s: %w", prop.Name, err)
	}
	return caltime.Duration{Days: days, Time: total - time.Duration(days)*24*time.Hour}, nil
}

// parseDuration reads DURATION text appearing inside a PERIOD value.
func parseDuration(text string) (caltime.Duration, error) {
	prop := ical.NewProp(ical.PropDuration)
	prop.Value = text
	return durationOf(prop)
}

// nominalDays returns the signed number of days in the date part ("nW" or "nD") of a
// duration.
func nominalDays(text string) (int, error) {
	s := strings.TrimSpace(text)
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "P")
	datePart, _, _ := strings.Cut(s, "T")

	days := 0
	for datePart != "" {
		i := strings.IndexAny(datePart, "WD")
		if i <= 0 {
			return 0, fmt.Errorf("%w: duration %q", caltime.ErrSyntax, text)
		}
		n, err := strconv.Atoi(datePart[:i])
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", caltime.ErrSyntax, text)
		}
		if datePart[i] == 'W' {
			n *= 7
		}
		days += n
		datePart = datePart[i+1:]
	}
	return sign * days, nil
}
