package pattern

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/cyp0633/librecur/caltime"
)

var rruleDays = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Parse reads RRULE or EXRULE value text, with or without the property name prefix.
// The grammar is handled by rrule-go; UNTIL is read here so that its granularity and
// kind survive. opts are applied after the parsed fields.
func Parse(text string, opts ...Option) (*Pattern, error) {
	body := strings.TrimSpace(text)
	if i := strings.IndexByte(body, ':'); i >= 0 {
		name := strings.ToUpper(body[:i])
		if name == "RRULE" || name == "EXRULE" {
			body = body[i+1:]
		}
	}

	var (
		parts []string
		until caltime.Value
	)
	for _, part := range strings.Split(body, ";") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if strings.EqualFold(key, "UNTIL") {
			v, err := caltime.ParseICal(value, "")
			if err != nil {
				return nil, fmt.Errorf("%w: UNTIL: %w", ErrInvalidPattern, err)
			}
			until = v
			continue
		}
		parts = append(parts, part)
	}

	ro, err := rrule.StrToROption(strings.Join(parts, ";"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	fields := []Option{
		WithInterval(max(ro.Interval, 1)),
		WithWeekStart(fromRRuleDay(ro.Wkst.Day())),
		BySecond(ro.Bysecond...),
		ByMinute(ro.Byminute...),
		ByHour(ro.Byhour...),
		ByMonthDay(ro.Bymonthday...),
		ByYearDay(ro.Byyearday...),
		ByWeekNo(ro.Byweekno...),
		ByMonth(ro.Bymonth...),
		BySetPos(ro.Bysetpos...),
	}
	if ro.Count > 0 {
		fields = append(fields, WithCount(ro.Count))
	}
	if !until.IsZero() {
		fields = append(fields, WithUntil(until))
	}
	for _, wd := range ro.Byweekday {
		fields = append(fields, ByDay(WeekdayNum{Weekday: fromRRuleDay(wd.Day()), N: wd.N()}))
	}

	return New(fromRRuleFreq(ro.Freq), append(fields, opts...)...)
}

// MustParse is Parse for rule text known to be valid.
func MustParse(text string, opts ...Option) *Pattern {
	p, err := Parse(text, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the rule as RRULE value text. A pattern without frequency renders empty.
// UNTIL is written in its own frame; a zoned UNTIL loses its zone.
func (p *Pattern) String() string {
	if p.freq == None {
		return ""
	}
	ro := rrule.ROption{
		Freq:       toRRuleFreq(p.freq),
		Wkst:       rruleDays[mondayIndex(p.wkst)],
		Bysecond:   p.bySecond,
		Byminute:   p.byMinute,
		Byhour:     p.byHour,
		Bymonthday: p.byMonthDay,
		Byyearday:  p.byYearDay,
		Byweekno:   p.byWeekNo,
		Bymonth:    p.byMonth,
		Bysetpos:   p.bySetPos,
	}
	if p.interval > 1 {
		ro.Interval = p.interval
	}
	if n, ok := p.count.Get(); ok {
		ro.Count = n
	}
	for _, d := range p.byDay {
		wd := rruleDays[mondayIndex(d.Weekday)]
		if d.N != 0 {
			wd = wd.Nth(d.N)
		}
		ro.Byweekday = append(ro.Byweekday, wd)
	}

	s := ro.RRuleString()
	if u, ok := p.until.Get(); ok {
		s += ";UNTIL=" + u.ICal()
	}
	return s
}

func fromRRuleDay(d int) time.Weekday {
	return time.Weekday((d + 1) % 7)
}

func fromRRuleFreq(f rrule.Frequency) Frequency {
	switch f {
	case rrule.YEARLY:
		return Yearly
	case rrule.MONTHLY:
		return Monthly
	case rrule.WEEKLY:
		return Weekly
	case rrule.DAILY:
		return Daily
	case rrule.HOURLY:
		return Hourly
	case rrule.MINUTELY:
		return Minutely
	case rrule.SECONDLY:
		return Secondly
	default:
		return None
	}
}

func toRRuleFreq(f Frequency) rrule.Frequency {
	switch f {
	case Yearly:
		return rrule.YEARLY
	case Monthly:
		return rrule.MONTHLY
	case Weekly:
		return rrule.WEEKLY
	case Daily:
		return rrule.DAILY
	case Hourly:
		return rrule.HOURLY
	case Minutely:
		return rrule.MINUTELY
	default:
		return rrule.SECONDLY
	}
}
