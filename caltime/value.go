package caltime

import "time"

// Kind tells how a Value's wall clock relates to the UTC timeline.
type Kind uint8

const (
	KindFloating Kind = iota
	KindUTC
	KindZoned
)

func (k Kind) String() string {
	switch k {
	case KindFloating:
		return "floating"
	case KindUTC:
		return "utc"
	case KindZoned:
		return "zoned"
	default:
		return "unknown"
	}
}

// UTCZone is the implicit zone id of UTC values.
const UTCZone = "UTC"

// Value is an immutable calendar date or date-time. The zero Value is "absent".
type Value struct {
	year    int
	month   time.Month
	day     int
	hour    int
	minute  int
	second  int
	nsec    int
	hasTime bool
	kind    Kind
	zone    string
}

// FromWall builds a Value from a wall clock reading. Only the calendar fields of wall are
// used; its location is ignored. A zone of "UTC" yields a UTC value and an empty zone yields
// a floating value regardless of kind.
func FromWall(wall time.Time, hasTime bool, kind Kind, zone string) Value {
	switch {
	case zone == UTCZone:
		kind, zone = KindUTC, ""
	case kind == KindZoned && zone == "":
		kind = KindFloating
	case kind != KindZoned:
		zone = ""
	}

	y, m, d := wall.Date()
	v := Value{year: y, month: m, day: d, hasTime: hasTime, kind: kind, zone: zone}
	if hasTime {
		v.hour, v.minute, v.second = wall.Clock()
		v.nsec = wall.Nanosecond()
	}
	return v
}

// Date returns a floating date-only value.
func Date(year int, month time.Month, day int) Value {
	return FromWall(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), false, KindFloating, "")
}

// Floating returns a floating date-time value.
func Floating(year int, month time.Month, day, hour, minute, second int) Value {
	return FromWall(time.Date(year, month, day, hour, minute, second, 0, time.UTC), true, KindFloating, "")
}

// UTCTime returns a UTC date-time value.
func UTCTime(year int, month time.Month, day, hour, minute, second int) Value {
	return FromWall(time.Date(year, month, day, hour, minute, second, 0, time.UTC), true, KindUTC, "")
}

// Zoned returns a date-time value tied to zone.
func Zoned(zone string, year int, month time.Month, day, hour, minute, second int) Value {
	return FromWall(time.Date(year, month, day, hour, minute, second, 0, time.UTC), true, KindZoned, zone)
}

// FromTime converts a time.Time. UTC becomes a UTC value, time.Local becomes a floating value
// and any other location becomes a zoned value named after the location.
func FromTime(t time.Time) Value {
	switch loc := t.Location(); loc {
	case time.UTC:
		return FromWall(t, true, KindUTC, "")
	case time.Local:
		return FromWall(t, true, KindFloating, "")
	default:
		return FromWall(t, true, KindZoned, loc.String())
	}
}

// IsZero reports whether v is the absent value.
func (v Value) IsZero() bool { return v.month == 0 }

func (v Value) Year() int             { return v.year }
func (v Value) Month() time.Month     { return v.month }
func (v Value) Day() int              { return v.day }
func (v Value) Hour() int             { return v.hour }
func (v Value) Minute() int           { return v.minute }
func (v Value) Second() int           { return v.second }
func (v Value) Nanosecond() int       { return v.nsec }
func (v Value) HasTime() bool         { return v.hasTime }
func (v Value) Kind() Kind            { return v.kind }
func (v Value) IsUTC() bool           { return v.kind == KindUTC }
func (v Value) IsFloating() bool      { return v.kind == KindFloating }
func (v Value) Weekday() time.Weekday { return v.Wall().Weekday() }
func (v Value) YearDay() int          { return v.Wall().YearDay() }

// Zone returns the zone id: "UTC" for UTC values and "" for floating values.
func (v Value) Zone() string {
	if v.kind == KindUTC {
		return UTCZone
	}
	return v.zone
}

// Date returns the calendar date of v.
func (v Value) Date() (year int, month time.Month, day int) {
	return v.year, v.month, v.day
}

// Clock returns the time of day of v; midnight for date-only values.
func (v Value) Clock() (hour, minute, second int) {
	return v.hour, v.minute, v.second
}

// Wall returns the wall clock reading of v as a time.Time in time.UTC. It is the naive
// representation used for field arithmetic and carries no zone information.
func (v Value) Wall() time.Time {
	return time.Date(v.year, v.month, v.day, v.hour, v.minute, v.second, v.nsec, time.UTC)
}

// WithWall returns a value with v's granularity, kind and zone and the given wall clock.
func (v Value) WithWall(wall time.Time) Value {
	return FromWall(wall, v.hasTime, v.kind, v.zone)
}

// WithZone re-tags v with another zone keeping the wall clock.
func (v Value) WithZone(zone string) Value {
	kind := KindZoned
	if zone == "" {
		kind = KindFloating
	}
	return FromWall(v.Wall(), v.hasTime, kind, zone)
}

// WithTime combines v's date with a time of day.
func (v Value) WithTime(hour, minute, second, nsec int) Value {
	wall := time.Date(v.year, v.month, v.day, hour, minute, second, nsec, time.UTC)
	return FromWall(wall, true, v.kind, v.zone)
}

// DateOnly drops the time of day.
func (v Value) DateOnly() Value {
	return FromWall(v.Wall(), false, v.kind, v.zone)
}

// AddDays adds n calendar days. Always legal, granularity is preserved.
func (v Value) AddDays(n int) Value {
	if n == 0 {
		return v
	}
	return v.WithWall(v.Wall().AddDate(0, 0, n))
}

// AddMonths adds n calendar months, clamping the day to the length of the target month.
func (v Value) AddMonths(n int) Value {
	if n == 0 {
		return v
	}
	total := int(v.month) - 1 + n
	year := v.year + floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)
	day := v.day
	if last := DaysIn(year, month); day > last {
		day = last
	}
	wall := time.Date(year, month, day, v.hour, v.minute, v.second, v.nsec, time.UTC)
	return v.WithWall(wall)
}

// AddYears adds n years; February 29 becomes February 28 in non-leap years.
func (v Value) AddYears(n int) Value {
	return v.AddMonths(12 * n)
}

// WallCompare orders v and o by their wall clock readings only, ignoring kind and zone.
func (v Value) WallCompare(o Value) int {
	return v.Wall().Compare(o.Wall())
}

// Equal is structural equality over kind, zone, date and time.
func (v Value) Equal(o Value) bool {
	return v == o
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
