package recurrence

import (
	"time"

	"github.com/cyp0633/librecur/pattern"
)

// Scope is the span a numeric BYDAY ordinal such as 2MO or -1SU counts within.
type Scope int

const (
	// ScopeNone means ordinals are not meaningful and BYDAY entries act as plain weekdays.
	ScopeNone Scope = iota
	ScopeWeek
	ScopeMonth
	ScopeYear
)

func (s Scope) String() string {
	switch s {
	case ScopeWeek:
		return "week"
	case ScopeMonth:
		return "month"
	case ScopeYear:
		return "year"
	default:
		return "none"
	}
}

// MaxOrdinal is the largest ordinal that can exist in the scope: a weekday occurs at most
// five times in a month, 53 times in a year and once in a week.
func (s Scope) MaxOrdinal() int {
	switch s {
	case ScopeWeek:
		return 1
	case ScopeMonth:
		return 5
	case ScopeYear:
		return 53
	default:
		return 0
	}
}

// offsetScope decides where BYDAY ordinals count. MONTHLY rules count within the month.
// YEARLY rules count within the month when BYMONTH is present, else within the week when
// BYWEEKNO is present, else within the year. Finer frequencies have no ordinal scope.
func offsetScope(freq pattern.Frequency, hasByMonth, hasByWeekNo bool) Scope {
	switch freq {
	case pattern.Monthly:
		return ScopeMonth
	case pattern.Yearly:
		switch {
		case hasByMonth:
			return ScopeMonth
		case hasByWeekNo:
			return ScopeWeek
		default:
			return ScopeYear
		}
	default:
		return ScopeNone
	}
}

// ordinalMatches reports whether d is the n-th (or, for negative n, the -n-th from last)
// occurrence of its weekday within scope.
func ordinalMatches(d time.Time, n int, scope Scope) bool {
	var pos, length int
	switch scope {
	case ScopeMonth:
		pos, length = d.Day(), daysInMonth(d.Year(), d.Month())
	case ScopeYear:
		pos, length = d.YearDay(), daysInYear(d.Year())
	default:
		// Every weekday occurs exactly once in a week.
		return n == 1 || n == -1
	}
	if n > 0 {
		return (pos-1)/7+1 == n
	}
	return (length-pos)/7+1 == -n
}

// scopeKey identifies the scope instance d falls into, used when ordinals index into an
// already filtered candidate list.
func scopeKey(d time.Time, scope Scope, wkst time.Weekday) int {
	switch scope {
	case ScopeMonth:
		return d.Year()*100 + int(d.Month())
	case ScopeWeek:
		y, w := weekNumber(d, wkst)
		return y*100 + w
	default:
		return d.Year()
	}
}

// weekNumber returns the week-numbering year and week of d for weeks starting on wkst.
// Week 1 is the first week with at least four days in the year.
func weekNumber(d time.Time, wkst time.Weekday) (year, week int) {
	off := (int(d.Weekday()) - int(wkst) + 7) % 7
	fourth := d.AddDate(0, 0, 3-off)
	return fourth.Year(), (fourth.YearDay()-1)/7 + 1
}

// weeksInYear is the number of weeks in the week-numbering year.
func weeksInYear(year int, wkst time.Weekday) int {
	_, w := weekNumber(time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC), wkst)
	return w
}

// weekStart returns the first day of the week containing d.
func weekStart(d time.Time, wkst time.Weekday) time.Time {
	off := (int(d.Weekday()) - int(wkst) + 7) % 7
	return d.AddDate(0, 0, -off)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}
