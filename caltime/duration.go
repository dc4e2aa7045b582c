package caltime

import (
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Duration is a signed length of time split into a nominal part, counted in calendar days,
// and an exact part. Days are applied on the wall clock first, then Time on the UTC timeline.
type Duration struct {
	Days int
	Time time.Duration
}

// Days returns a nominal duration of n calendar days.
func Days(n int) Duration { return Duration{Days: n} }

// Weeks returns a nominal duration of n weeks.
func Weeks(n int) Duration { return Duration{Days: 7 * n} }

// Exact returns a duration with no nominal part.
func Exact(d time.Duration) Duration { return Duration{Time: d} }

func (d Duration) IsZero() bool { return d.Days == 0 && d.Time == 0 }

func (d Duration) Neg() Duration { return Duration{Days: -d.Days, Time: -d.Time} }

// Approx returns d as an exact duration, counting every day as 24 hours.
func (d Duration) Approx() time.Duration {
	return time.Duration(d.Days)*day + d.Time
}

// WholeDays reports d as a number of calendar days when the exact part is a multiple of
// 24 hours.
func (d Duration) WholeDays() (int, bool) {
	if d.Time%day != 0 {
		return 0, false
	}
	return d.Days + int(d.Time/day), true
}

// Sign returns -1, 0 or +1 following the approximate length of d.
func (d Duration) Sign() int {
	switch a := d.Approx(); {
	case a < 0:
		return -1
	case a > 0:
		return 1
	default:
		return 0
	}
}

// String renders d in the iCalendar DURATION form, e.g. "P1DT2H" or "-PT15M".
func (d Duration) String() string {
	if d.IsZero() {
		return "PT0S"
	}
	days, rest := d.Days, d.Time
	neg := d.Sign() < 0
	if neg {
		days, rest = -days, -rest
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if days != 0 {
		if days%7 == 0 && rest == 0 {
			fmt.Fprintf(&b, "%dW", days/7)
			return b.String()
		}
		fmt.Fprintf(&b, "%dD", days)
	}
	if rest != 0 {
		b.WriteByte('T')
		h := rest / time.Hour
		rest -= h * time.Hour
		m := rest / time.Minute
		rest -= m * time.Minute
		s := rest / time.Second
		if h != 0 {
			fmt.Fprintf(&b, "%dH", h)
		}
		if m != 0 {
			fmt.Fprintf(&b, "%dM", m)
		}
		if s != 0 || (h == 0 && m == 0) {
			fmt.Fprintf(&b, "%dS", s)
		}
	}
	return b.String()
}
