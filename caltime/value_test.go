package caltime

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWallNormalizesKind(t *testing.T) {
	wall := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		kind     Kind
		zone     string
		wantKind Kind
		wantZone string
	}{
		{"floating", KindFloating, "", KindFloating, ""},
		{"floating drops zone", KindFloating, "Europe/Paris", KindFloating, ""},
		{"utc", KindUTC, "", KindUTC, "UTC"},
		{"zoned utc id", KindZoned, "UTC", KindUTC, "UTC"},
		{"zoned", KindZoned, "Europe/Paris", KindZoned, "Europe/Paris"},
		{"zoned without zone", KindZoned, "", KindFloating, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FromWall(wall, true, tt.kind, tt.zone)
			assert.Equal(t, tt.wantKind, v.Kind())
			assert.Equal(t, tt.wantZone, v.Zone())
			assert.Equal(t, wall, v.Wall())
		})
	}
}

func TestAbsentValue(t *testing.T) {
	r := DefaultResolver()
	var absent Value
	v := Date(2024, time.January, 1)

	assert.True(t, absent.IsZero())
	assert.True(t, absent.Equal(Value{}))
	assert.False(t, absent.Before(r, v))
	assert.False(t, v.Before(r, absent))
	assert.False(t, absent.After(r, v))
	assert.False(t, v.After(r, absent))

	_, err := absent.Add(r, Days(1))
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = v.CompareStrict(r, absent)
	assert.ErrorIs(t, err, ErrIncompatibleComparison)
}

func TestStructuralEquality(t *testing.T) {
	r := DefaultResolver()
	a := UTCTime(2024, time.March, 1, 9, 0, 0)
	b := Zoned("Europe/Berlin", 2024, time.March, 1, 10, 0, 0)

	assert.False(t, a.Equal(b))
	assert.True(t, a.SameInstant(r, b))
	assert.Equal(t, 0, a.Compare(r, b))
	assert.True(t, a.Equal(UTCTime(2024, time.March, 1, 9, 0, 0)))
	assert.False(t, Date(2024, time.March, 1).Equal(Floating(2024, time.March, 1, 0, 0, 0)))
}

func TestNominalArithmetic(t *testing.T) {
	tests := []struct {
		name string
		got  Value
		want Value
	}{
		{"month end clamps", Date(2024, time.January, 31).AddMonths(1), Date(2024, time.February, 29)},
		{"month end clamps non leap", Date(2023, time.January, 31).AddMonths(1), Date(2023, time.February, 28)},
		{"months backwards across year", Date(2024, time.February, 15).AddMonths(-3), Date(2023, time.November, 15)},
		{"leap day next year", Date(2024, time.February, 29).AddYears(1), Date(2025, time.February, 28)},
		{"days keep time", Floating(2024, time.December, 31, 23, 0, 0).AddDays(1), Floating(2025, time.January, 1, 23, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestAddOnDateOnly(t *testing.T) {
	r := DefaultResolver()
	d := Date(2024, time.June, 10)

	got, err := d.Add(r, Days(2))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.June, 12), got)

	got, err = d.Add(r, Exact(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.June, 12), got)

	_, err = d.AddHours(r, 3)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExactArithmeticAcrossDST(t *testing.T) {
	r := DefaultResolver()
	start := Zoned("Europe/Paris", 2024, time.October, 27, 0, 0, 0)

	later, err := start.AddHours(r, 4)
	require.NoError(t, err)
	// 00:00 CEST plus four hours of elapsed time is 03:00 CET.
	assert.Equal(t, Zoned("Europe/Paris", 2024, time.October, 27, 3, 0, 0), later)

	back, err := later.AddHours(r, -4)
	require.NoError(t, err)
	assert.Equal(t, start, back)

	elapsed, err := later.Sub(r, start)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, elapsed)

	// Nominal days keep the wall clock.
	nextDay, err := start.Add(r, Days(1))
	require.NoError(t, err)
	assert.Equal(t, Zoned("Europe/Paris", 2024, time.October, 28, 0, 0, 0), nextDay)

	elapsed, err = nextDay.Sub(r, start)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Hour, elapsed)
}

func TestFloatingArithmeticIgnoresDST(t *testing.T) {
	r := NewResolver(nil, WithFloatingZone("Europe/Paris"))
	start := Floating(2024, time.October, 27, 0, 0, 0)

	later, err := start.AddHours(r, 4)
	require.NoError(t, err)
	assert.Equal(t, Floating(2024, time.October, 27, 4, 0, 0), later)
}

func TestWallToInstant(t *testing.T) {
	r := DefaultResolver()

	tests := []struct {
		name string
		v    Value
		want time.Time
	}{
		{
			name: "ambiguous takes first occurrence",
			v:    Zoned("Europe/Paris", 2024, time.October, 27, 2, 30, 0),
			want: time.Date(2024, 10, 27, 0, 30, 0, 0, time.UTC),
		},
		{
			name: "gap uses offset before the gap",
			v:    Zoned("Europe/Paris", 2024, time.March, 31, 2, 30, 0),
			want: time.Date(2024, 3, 31, 1, 30, 0, 0, time.UTC),
		},
		{
			name: "plain summer time",
			v:    Zoned("America/New_York", 2006, time.July, 18, 10, 0, 0),
			want: time.Date(2006, 7, 18, 14, 0, 0, 0, time.UTC),
		},
		{
			name: "windows zone id",
			v:    Zoned("Eastern Standard Time", 2006, time.January, 18, 10, 0, 0),
			want: time.Date(2006, 1, 18, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "vendor prefixed tzid",
			v:    Zoned("/mozilla.org/20050126_1/America/New_York", 2006, time.January, 18, 10, 0, 0),
			want: time.Date(2006, 1, 18, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "floating read as utc",
			v:    Floating(2024, time.May, 1, 8, 0, 0),
			want: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Instant(tt.v)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestUnknownZone(t *testing.T) {
	r := DefaultResolver()
	v := Zoned("Mars/Olympus_Mons", 2024, time.May, 1, 8, 0, 0)

	_, err := r.Instant(v)
	assert.ErrorIs(t, err, ErrUnknownZone)

	// Lenient paths fall back to the floating policy.
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), r.Normalize(v))
	assert.Equal(t, 0, v.Compare(r, UTCTime(2024, time.May, 1, 8, 0, 0)))

	_, err = v.CompareStrict(r, UTCTime(2024, time.May, 1, 8, 0, 0))
	assert.ErrorIs(t, err, ErrIncompatibleComparison)
	assert.ErrorIs(t, err, ErrUnknownZone)
}

func TestToZone(t *testing.T) {
	r := DefaultResolver()
	v := Zoned("America/New_York", 2006, time.July, 18, 10, 0, 0)

	utc, err := v.ToUTC(r)
	require.NoError(t, err)
	assert.Equal(t, UTCTime(2006, time.July, 18, 14, 0, 0), utc)

	tokyo, err := v.ToZone(r, "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, Zoned("Asia/Tokyo", 2006, time.July, 18, 23, 0, 0), tokyo)
	assert.True(t, tokyo.SameInstant(r, v))

	d, err := Date(2024, time.May, 1).ToZone(r, "Asia/Tokyo")
	require.NoError(t, err)
	assert.False(t, d.HasTime())
	assert.Equal(t, "Asia/Tokyo", d.Zone())
}

func TestZoneTable(t *testing.T) {
	table := NewZoneTable()
	switchAt := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	table.Add("Custom/Zone",
		ZoneInterval{End: switchAt, Offset: Offset{Seconds: -5 * 3600, Abbrev: "EST"}},
		ZoneInterval{Start: switchAt, Offset: Offset{Seconds: -4 * 3600, Abbrev: "EDT"}},
	)
	table.AddFixed("Fixed/Plus2", Offset{Seconds: 7200})

	off, ok := table.OffsetAt("Custom/Zone", switchAt.Add(-time.Second))
	require.True(t, ok)
	assert.Equal(t, "EST", off.Abbrev)

	off, ok = table.OffsetAt("Custom/Zone", switchAt)
	require.True(t, ok)
	assert.Equal(t, "EDT", off.Abbrev)

	_, ok = table.OffsetAt("Missing", switchAt)
	assert.False(t, ok)

	r := NewResolver(Chain{table, NewTZDB()})
	got, err := r.Instant(Zoned("Fixed/Plus2", 2024, time.January, 1, 12, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), got)

	got, err = r.Instant(Zoned("Europe/Paris", 2024, time.January, 1, 12, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), got)

	assert.Equal(t, []string{"Custom/Zone", "Fixed/Plus2"}, table.Zones())
}

func TestZoneTableGap(t *testing.T) {
	table := NewZoneTable()
	table.Add("Partial", ZoneInterval{
		Start:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Offset: Offset{Seconds: 3600},
	})
	r := NewResolver(table)

	_, err := r.Instant(Zoned("Partial", 2022, time.June, 1, 0, 0, 0))
	assert.ErrorIs(t, err, ErrUnknownZone)

	_, err = r.Instant(Zoned("Partial", 2020, time.June, 1, 0, 0, 0))
	assert.NoError(t, err)
}
