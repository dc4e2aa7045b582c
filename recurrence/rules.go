package recurrence

import (
	"slices"
	"time"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/pattern"
)

// rules is a pattern compiled against one seed: defaults filled in from the seed, BY lists
// turned into lookup tables and UNTIL normalized into the seed's frame.
type rules struct {
	freq     pattern.Frequency
	interval int
	wkst     time.Weekday
	count    int
	mode     pattern.EvaluationMode

	months    [13]bool
	hasMonths bool
	weekNos   []int
	yearDays  []int
	monthDays []int

	hasByDay  bool
	dayKinds  [7]bool
	plainDays [7]bool
	ordinals  []pattern.WeekdayNum
	scope     Scope
	limiting  bool

	hours   []int
	minutes []int
	seconds []int
	// nsec is the seed's fraction of a second, kept when BYSECOND is absent.
	nsec time.Duration

	hourFilter   []int
	minuteFilter []int
	secondFilter []int

	setPos   []int
	dateOnly bool

	weeksCache map[int]int
}

func compile(p *pattern.Pattern, seed caltime.Value) (*rules, error) {
	freq := p.Frequency()
	switch {
	case freq == pattern.None:
		return nil, evalError("evaluate", ErrMissingFrequency, "pattern has no FREQ")
	case p.EvaluationMode() == pattern.Strict && !p.Restriction().Allows(freq):
		return nil, evalError("evaluate", ErrUnsupportedFrequency,
			"FREQ=%s is not allowed under the %s restriction", freq, p.Restriction())
	case seed.IsZero():
		return nil, evalError("evaluate", caltime.ErrInvalidState, "absent seed")
	}

	ru := &rules{
		freq:       freq,
		interval:   p.Interval(),
		wkst:       p.WeekStart(),
		mode:       p.EvaluationMode(),
		weekNos:    p.ByWeekNo(),
		yearDays:   p.ByYearDay(),
		monthDays:  p.ByMonthDay(),
		setPos:     p.BySetPos(),
		weeksCache: make(map[int]int),
	}
	if n, ok := p.Count().Get(); ok {
		ru.count = n
	}

	months := p.ByMonth()
	byDay := p.ByDay()
	if len(ru.weekNos) == 0 && len(ru.yearDays) == 0 && len(ru.monthDays) == 0 && len(byDay) == 0 {
		switch freq {
		case pattern.Yearly:
			if len(months) == 0 {
				months = []int{int(seed.Month())}
			}
			ru.monthDays = []int{seed.Day()}
		case pattern.Monthly:
			ru.monthDays = []int{seed.Day()}
		case pattern.Weekly:
			byDay = []pattern.WeekdayNum{{Weekday: seed.Weekday()}}
		}
	}
	for _, m := range months {
		ru.months[m] = true
		ru.hasMonths = true
	}

	ru.scope = offsetScope(freq, len(p.ByMonth()) > 0, len(ru.weekNos) > 0)
	for _, d := range byDay {
		ru.hasByDay = true
		ru.dayKinds[d.Weekday] = true
		if d.N == 0 || ru.scope == ScopeNone {
			ru.plainDays[d.Weekday] = true
			continue
		}
		if abs(d.N) > ru.scope.MaxOrdinal() {
			return nil, evalError("evaluate", ErrEvaluationOutOfRange,
				"BYDAY=%s cannot occur within a %s", d, ru.scope)
		}
		ru.ordinals = append(ru.ordinals, d)
	}
	ru.limiting = len(ru.monthDays) > 0 && len(ru.ordinals) > 0

	h, m, s := seed.Clock()
	ru.hourFilter, ru.minuteFilter, ru.secondFilter = p.ByHour(), p.ByMinute(), p.BySecond()
	ru.hours = orDefault(ru.hourFilter, h)
	ru.minutes = orDefault(ru.minuteFilter, m)
	ru.seconds = orDefault(ru.secondFilter, s)
	if len(ru.secondFilter) == 0 {
		ru.nsec = time.Duration(seed.Nanosecond())
	}

	ru.dateOnly = !seed.HasTime() && !freq.IsSubDaily() && !p.HasSubDailyRule()
	return ru, nil
}

func orDefault(v []int, def int) []int {
	if len(v) == 0 {
		return []int{def}
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// unit is the length of one sub-daily step.
func (ru *rules) unit() time.Duration {
	switch ru.freq {
	case pattern.Hourly:
		return time.Hour
	case pattern.Minutely:
		return time.Minute
	default:
		return time.Second
	}
}

// initialCursor returns the lower bound of the step containing wall.
func (ru *rules) initialCursor(wall time.Time) time.Time {
	switch ru.freq {
	case pattern.Yearly:
		return time.Date(wall.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case pattern.Monthly:
		return time.Date(wall.Year(), wall.Month(), 1, 0, 0, 0, 0, time.UTC)
	case pattern.Weekly:
		return weekStart(midnight(wall), ru.wkst)
	case pattern.Daily:
		return midnight(wall)
	default:
		return wall.Truncate(ru.unit())
	}
}

// advance moves a step cursor forward by n intervals.
func (ru *rules) advance(cursor time.Time, n int) time.Time {
	k := n * ru.interval
	switch ru.freq {
	case pattern.Yearly:
		return cursor.AddDate(k, 0, 0)
	case pattern.Monthly:
		return cursor.AddDate(0, k, 0)
	case pattern.Weekly:
		return cursor.AddDate(0, 0, 7*k)
	case pattern.Daily:
		return cursor.AddDate(0, 0, k)
	default:
		return cursor.Add(time.Duration(k) * ru.unit())
	}
}

// stepsBefore is the number of whole intervals that fit between cursor and target.
func (ru *rules) stepsBefore(cursor, target time.Time) int {
	if !target.After(cursor) {
		return 0
	}
	var units int
	switch ru.freq {
	case pattern.Yearly:
		units = target.Year() - cursor.Year()
	case pattern.Monthly:
		units = (target.Year()-cursor.Year())*12 + int(target.Month()) - int(cursor.Month())
	case pattern.Weekly:
		units = int(target.Sub(cursor) / (7 * 24 * time.Hour))
	case pattern.Daily:
		units = int(target.Sub(cursor) / (24 * time.Hour))
	default:
		units = int(target.Sub(cursor) / ru.unit())
	}
	return units / ru.interval
}

// candidates returns the sorted wall clock readings produced by the step starting at cursor.
func (ru *rules) candidates(cursor time.Time) []time.Time {
	days := ru.days(cursor)
	if len(days) == 0 {
		return nil
	}
	clocks := ru.clocks(cursor)
	if len(clocks) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(days)*len(clocks))
	for _, d := range days {
		for _, c := range clocks {
			out = append(out, d.Add(c))
		}
	}
	if len(ru.setPos) > 0 {
		out = selectPositions(out, ru.setPos)
	}
	return out
}

func (ru *rules) days(cursor time.Time) []time.Time {
	var out []time.Time
	add := func(d time.Time) {
		if ru.dayMatches(d) {
			out = append(out, d)
		}
	}

	switch ru.freq {
	case pattern.Yearly:
		y := cursor.Year()
		for m := time.January; m <= time.December; m++ {
			if ru.hasMonths && !ru.months[m] {
				continue
			}
			for d := 1; d <= daysInMonth(y, m); d++ {
				add(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
			}
		}
	case pattern.Monthly:
		y, m := cursor.Year(), cursor.Month()
		for d := 1; d <= daysInMonth(y, m); d++ {
			add(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
		}
	case pattern.Weekly:
		for i := 0; i < 7; i++ {
			add(cursor.AddDate(0, 0, i))
		}
	default:
		add(midnight(cursor))
	}
	return ru.applyByDay(out)
}

// dayMatches applies every day-level filter except BYDAY ordinals.
func (ru *rules) dayMatches(d time.Time) bool {
	if ru.hasMonths && !ru.months[d.Month()] {
		return false
	}
	if len(ru.weekNos) > 0 {
		y, w := weekNumber(d, ru.wkst)
		if !matchesSigned(ru.weekNos, w, ru.weeksIn(y)) {
			return false
		}
	}
	if len(ru.yearDays) > 0 && !matchesSigned(ru.yearDays, d.YearDay(), daysInYear(d.Year())) {
		return false
	}
	if len(ru.monthDays) > 0 && !matchesSigned(ru.monthDays, d.Day(), daysInMonth(d.Year(), d.Month())) {
		return false
	}
	if ru.hasByDay && !ru.dayKinds[d.Weekday()] {
		return false
	}
	return true
}

func (ru *rules) weeksIn(year int) int {
	if n, ok := ru.weeksCache[year]; ok {
		return n
	}
	n := weeksInYear(year, ru.wkst)
	ru.weeksCache[year] = n
	return n
}

// matchesSigned reports whether pos (1-based, out of length) is listed, counting negative
// entries from the end.
func matchesSigned(list []int, pos, length int) bool {
	for _, n := range list {
		if n == pos || (n < 0 && length+n+1 == pos) {
			return true
		}
	}
	return false
}

// applyByDay filters days by BYDAY. Without BYMONTHDAY ordinals are computed against the
// whole scope; with it they index into the already restricted days of each scope.
func (ru *rules) applyByDay(days []time.Time) []time.Time {
	if !ru.hasByDay || len(days) == 0 {
		return days
	}
	if !ru.limiting {
		out := days[:0]
		for _, d := range days {
			if ru.weekdayMatches(d) {
				out = append(out, d)
			}
		}
		return out
	}

	type group struct {
		scope int
		day   time.Weekday
	}
	groups := make(map[group][]int)
	for i, d := range days {
		g := group{scope: scopeKey(d, ru.scope, ru.wkst), day: d.Weekday()}
		groups[g] = append(groups[g], i)
	}
	keep := make([]bool, len(days))
	for g, idx := range groups {
		if ru.plainDays[g.day] {
			for _, i := range idx {
				keep[i] = true
			}
			continue
		}
		for _, o := range ru.ordinals {
			if o.Weekday != g.day {
				continue
			}
			pos := o.N - 1
			if o.N < 0 {
				pos = len(idx) + o.N
			}
			if pos >= 0 && pos < len(idx) {
				keep[idx[pos]] = true
			}
		}
	}
	out := days[:0]
	for i, d := range days {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

func (ru *rules) weekdayMatches(d time.Time) bool {
	wd := d.Weekday()
	if ru.plainDays[wd] {
		return true
	}
	for _, o := range ru.ordinals {
		if o.Weekday == wd && ordinalMatches(d, o.N, ru.scope) {
			return true
		}
	}
	return false
}

// clocks returns the times of day a step produces, as offsets from midnight. Sub-daily
// frequencies take their own unit from the cursor and filter it by the matching BY list.
func (ru *rules) clocks(cursor time.Time) []time.Duration {
	hours, minutes, seconds := ru.hours, ru.minutes, ru.seconds
	switch ru.freq {
	case pattern.Secondly:
		if !allowed(ru.secondFilter, cursor.Second()) {
			return nil
		}
		seconds = []int{cursor.Second()}
		fallthrough
	case pattern.Minutely:
		if !allowed(ru.minuteFilter, cursor.Minute()) {
			return nil
		}
		minutes = []int{cursor.Minute()}
		fallthrough
	case pattern.Hourly:
		if !allowed(ru.hourFilter, cursor.Hour()) {
			return nil
		}
		hours = []int{cursor.Hour()}
	}

	out := make([]time.Duration, 0, len(hours)*len(minutes)*len(seconds))
	for _, h := range hours {
		for _, m := range minutes {
			for _, s := range seconds {
				out = append(out, time.Duration(h)*time.Hour+time.Duration(m)*time.Minute+time.Duration(s)*time.Second+ru.nsec)
			}
		}
	}
	return out
}

func allowed(filter []int, v int) bool {
	return len(filter) == 0 || slices.Contains(filter, v)
}

// selectPositions applies BYSETPOS to a sorted candidate list.
func selectPositions(sorted []time.Time, positions []int) []time.Time {
	var idx []int
	for _, p := range positions {
		i := p - 1
		if p < 0 {
			i = len(sorted) + p
		}
		if i >= 0 && i < len(sorted) {
			idx = append(idx, i)
		}
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)
	out := make([]time.Time, len(idx))
	for k, i := range idx {
		out[k] = sorted[i]
	}
	return out
}
