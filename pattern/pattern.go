// Package pattern holds the structured form of one RFC 5545 recurrence rule.
package pattern

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/caltime"
)

// ErrInvalidPattern is returned when a rule's fields violate RFC 5545 constraints.
var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// Frequency is the FREQ of a rule. None means the rule has no frequency; such a pattern can
// be built but fails when evaluated.
type Frequency int

const (
	None Frequency = iota
	Secondly
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = map[Frequency]string{
	Secondly: "SECONDLY",
	Minutely: "MINUTELY",
	Hourly:   "HOURLY",
	Daily:    "DAILY",
	Weekly:   "WEEKLY",
	Monthly:  "MONTHLY",
	Yearly:   "YEARLY",
}

func (f Frequency) String() string {
	return frequencyNames[f]
}

// IsSubDaily reports whether f steps by hours, minutes or seconds.
func (f Frequency) IsSubDaily() bool {
	return f == Secondly || f == Minutely || f == Hourly
}

// ParseFrequency parses a FREQ value.
func ParseFrequency(s string) (Frequency, error) {
	for f, name := range frequencyNames {
		if name == s {
			return f, nil
		}
	}
	return None, fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, s)
}

// WeekdayNum is a BYDAY entry: a weekday with an optional signed ordinal, 0 meaning every
// such weekday.
type WeekdayNum struct {
	Weekday time.Weekday
	N       int
}

var (
	MO = WeekdayNum{Weekday: time.Monday}
	TU = WeekdayNum{Weekday: time.Tuesday}
	WE = WeekdayNum{Weekday: time.Wednesday}
	TH = WeekdayNum{Weekday: time.Thursday}
	FR = WeekdayNum{Weekday: time.Friday}
	SA = WeekdayNum{Weekday: time.Saturday}
	SU = WeekdayNum{Weekday: time.Sunday}
)

// Nth returns the n-th occurrence of w within the rule's scope; negative counts from the end.
func (w WeekdayNum) Nth(n int) WeekdayNum {
	return WeekdayNum{Weekday: w.Weekday, N: n}
}

var dayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

func (w WeekdayNum) String() string {
	if w.N == 0 {
		return dayCodes[w.Weekday]
	}
	return fmt.Sprintf("%d%s", w.N, dayCodes[w.Weekday])
}

// Restriction limits how fine a frequency a pattern may use under Strict evaluation.
type Restriction int

const (
	// RestrictDefault rejects HOURLY, MINUTELY and SECONDLY.
	RestrictDefault Restriction = iota
	RestrictHourly
	RestrictMinutely
	RestrictSecondly
	NoRestriction
)

// Allows reports whether f may be evaluated under r.
func (r Restriction) Allows(f Frequency) bool {
	switch r {
	case NoRestriction:
		return true
	case RestrictSecondly:
		return f != Secondly
	case RestrictMinutely:
		return f != Secondly && f != Minutely
	default:
		return !f.IsSubDaily()
	}
}

func (r Restriction) String() string {
	switch r {
	case RestrictHourly:
		return "hourly"
	case RestrictMinutely:
		return "minutely"
	case RestrictSecondly:
		return "secondly"
	case NoRestriction:
		return "none"
	default:
		return "default"
	}
}

// ParseRestriction maps a configuration string to a Restriction.
func ParseRestriction(s string) (Restriction, error) {
	switch s {
	case "", "default":
		return RestrictDefault, nil
	case "hourly":
		return RestrictHourly, nil
	case "minutely":
		return RestrictMinutely, nil
	case "secondly":
		return RestrictSecondly, nil
	case "none":
		return NoRestriction, nil
	}
	return RestrictDefault, fmt.Errorf("%w: unknown restriction %q", ErrInvalidPattern, s)
}

// EvaluationMode selects how restricted frequencies are handled.
type EvaluationMode int

const (
	// Strict fails evaluation of a frequency the restriction rejects.
	Strict EvaluationMode = iota
	// AdjustAutomatically evaluates any frequency and skips days without matches.
	AdjustAutomatically
)

func (m EvaluationMode) String() string {
	if m == AdjustAutomatically {
		return "adjust"
	}
	return "strict"
}

// Pattern is an immutable recurrence rule. Build one with New or Parse.
type Pattern struct {
	freq        Frequency
	interval    int
	count       mo.Option[int]
	until       mo.Option[caltime.Value]
	wkst        time.Weekday
	bySecond    []int
	byMinute    []int
	byHour      []int
	byDay       []WeekdayNum
	byMonthDay  []int
	byYearDay   []int
	byWeekNo    []int
	byMonth     []int
	bySetPos    []int
	restriction Restriction
	mode        EvaluationMode
}

// Option sets a Pattern field.
type Option func(*Pattern)

func WithInterval(n int) Option { return func(p *Pattern) { p.interval = n } }

func WithCount(n int) Option { return func(p *Pattern) { p.count = mo.Some(n) } }

func WithUntil(v caltime.Value) Option { return func(p *Pattern) { p.until = mo.Some(v) } }

func WithWeekStart(d time.Weekday) Option { return func(p *Pattern) { p.wkst = d } }

func BySecond(v ...int) Option { return func(p *Pattern) { p.bySecond = append(p.bySecond, v...) } }

func ByMinute(v ...int) Option { return func(p *Pattern) { p.byMinute = append(p.byMinute, v...) } }

func ByHour(v ...int) Option { return func(p *Pattern) { p.byHour = append(p.byHour, v...) } }

func ByDay(v ...WeekdayNum) Option { return func(p *Pattern) { p.byDay = append(p.byDay, v...) } }

func ByMonthDay(v ...int) Option { return func(p *Pattern) { p.byMonthDay = append(p.byMonthDay, v...) } }

func ByYearDay(v ...int) Option { return func(p *Pattern) { p.byYearDay = append(p.byYearDay, v...) } }

func ByWeekNo(v ...int) Option { return func(p *Pattern) { p.byWeekNo = append(p.byWeekNo, v...) } }

func ByMonth(v ...int) Option { return func(p *Pattern) { p.byMonth = append(p.byMonth, v...) } }

func BySetPos(v ...int) Option { return func(p *Pattern) { p.bySetPos = append(p.bySetPos, v...) } }

func WithRestriction(r Restriction) Option { return func(p *Pattern) { p.restriction = r } }

func WithEvaluationMode(m EvaluationMode) Option { return func(p *Pattern) { p.mode = m } }

// New builds and validates a pattern. BY lists are sorted and de-duplicated.
func New(freq Frequency, opts ...Option) (*Pattern, error) {
	p := &Pattern{freq: freq, interval: 1, wkst: time.Monday}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.normalize()
	return p, nil
}

// With returns a copy of p with opts applied on top.
func (p *Pattern) With(opts ...Option) (*Pattern, error) {
	c := p.clone()
	for _, opt := range opts {
		opt(c)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.normalize()
	return c, nil
}

func (p *Pattern) validate() error {
	if p.freq < None || p.freq > Yearly {
		return fmt.Errorf("%w: frequency %d", ErrInvalidPattern, p.freq)
	}
	if p.interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1, got %d", ErrInvalidPattern, p.interval)
	}
	if p.count.IsPresent() && p.until.IsPresent() {
		return fmt.Errorf("%w: COUNT and UNTIL are mutually exclusive", ErrInvalidPattern)
	}
	if n, ok := p.count.Get(); ok && n < 1 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidPattern, n)
	}
	if u, ok := p.until.Get(); ok && u.IsZero() {
		return fmt.Errorf("%w: absent UNTIL", ErrInvalidPattern)
	}
	if p.wkst < time.Sunday || p.wkst > time.Saturday {
		return fmt.Errorf("%w: week start %d", ErrInvalidPattern, p.wkst)
	}

	checks := []struct {
		name     string
		values   []int
		min, max int
		signed   bool
	}{
		{"BYSECOND", p.bySecond, 0, 60, false},
		{"BYMINUTE", p.byMinute, 0, 59, false},
		{"BYHOUR", p.byHour, 0, 23, false},
		{"BYMONTHDAY", p.byMonthDay, 1, 31, true},
		{"BYYEARDAY", p.byYearDay, 1, 366, true},
		{"BYWEEKNO", p.byWeekNo, 1, 53, true},
		{"BYMONTH", p.byMonth, 1, 12, false},
		{"BYSETPOS", p.bySetPos, 1, 366, true},
	}
	for _, c := range checks {
		for _, v := range c.values {
			abs := v
			if c.signed && v < 0 {
				abs = -v
			}
			if abs < c.min || abs > c.max {
				return fmt.Errorf("%w: %s value %d out of range", ErrInvalidPattern, c.name, v)
			}
		}
	}
	for _, d := range p.byDay {
		if d.Weekday < time.Sunday || d.Weekday > time.Saturday {
			return fmt.Errorf("%w: BYDAY weekday %d", ErrInvalidPattern, d.Weekday)
		}
		if d.N < -53 || d.N > 53 {
			return fmt.Errorf("%w: BYDAY ordinal %d out of range", ErrInvalidPattern, d.N)
		}
	}
	return nil
}

func (p *Pattern) normalize() {
	for _, list := range []*[]int{&p.bySecond, &p.byMinute, &p.byHour, &p.byMonthDay, &p.byYearDay, &p.byWeekNo, &p.byMonth, &p.bySetPos} {
		*list = sortedUnique(*list)
	}
	if len(p.byDay) > 0 {
		days := slices.Clone(p.byDay)
		slices.SortFunc(days, compareWeekdayNum)
		p.byDay = slices.Compact(days)
	}
}

func sortedUnique(v []int) []int {
	if len(v) == 0 {
		return nil
	}
	out := slices.Clone(v)
	slices.Sort(out)
	return slices.Compact(out)
}

// compareWeekdayNum orders by ordinal, then Monday-first weekday.
func compareWeekdayNum(a, b WeekdayNum) int {
	if a.N != b.N {
		return a.N - b.N
	}
	return mondayIndex(a.Weekday) - mondayIndex(b.Weekday)
}

func mondayIndex(d time.Weekday) int { return (int(d) + 6) % 7 }

func (p *Pattern) clone() *Pattern {
	c := *p
	c.bySecond = slices.Clone(p.bySecond)
	c.byMinute = slices.Clone(p.byMinute)
	c.byHour = slices.Clone(p.byHour)
	c.byDay = slices.Clone(p.byDay)
	c.byMonthDay = slices.Clone(p.byMonthDay)
	c.byYearDay = slices.Clone(p.byYearDay)
	c.byWeekNo = slices.Clone(p.byWeekNo)
	c.byMonth = slices.Clone(p.byMonth)
	c.bySetPos = slices.Clone(p.bySetPos)
	return &c
}

func (p *Pattern) Frequency() Frequency            { return p.freq }
func (p *Pattern) Interval() int                   { return p.interval }
func (p *Pattern) Count() mo.Option[int]           { return p.count }
func (p *Pattern) Until() mo.Option[caltime.Value] { return p.until }
func (p *Pattern) WeekStart() time.Weekday         { return p.wkst }
func (p *Pattern) Restriction() Restriction        { return p.restriction }
func (p *Pattern) EvaluationMode() EvaluationMode  { return p.mode }
func (p *Pattern) BySecond() []int                 { return slices.Clone(p.bySecond) }
func (p *Pattern) ByMinute() []int                 { return slices.Clone(p.byMinute) }
func (p *Pattern) ByHour() []int                   { return slices.Clone(p.byHour) }
func (p *Pattern) ByDay() []WeekdayNum             { return slices.Clone(p.byDay) }
func (p *Pattern) ByMonthDay() []int               { return slices.Clone(p.byMonthDay) }
func (p *Pattern) ByYearDay() []int                { return slices.Clone(p.byYearDay) }
func (p *Pattern) ByWeekNo() []int                 { return slices.Clone(p.byWeekNo) }
func (p *Pattern) ByMonth() []int                  { return slices.Clone(p.byMonth) }
func (p *Pattern) BySetPos() []int                 { return slices.Clone(p.bySetPos) }

// HasSubDailyRule reports whether BYHOUR, BYMINUTE or BYSECOND is set.
func (p *Pattern) HasSubDailyRule() bool {
	return len(p.byHour) > 0 || len(p.byMinute) > 0 || len(p.bySecond) > 0
}
