package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/librecur/caltime"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		freq    Frequency
		opts    []Option
		wantErr bool
	}{
		{name: "plain daily", freq: Daily},
		{name: "missing frequency is accepted", freq: None},
		{name: "count and until", freq: Daily, opts: []Option{WithCount(3), WithUntil(caltime.Date(2024, 1, 1))}, wantErr: true},
		{name: "zero interval", freq: Daily, opts: []Option{WithInterval(0)}, wantErr: true},
		{name: "zero count", freq: Daily, opts: []Option{WithCount(0)}, wantErr: true},
		{name: "hour out of range", freq: Daily, opts: []Option{ByHour(24)}, wantErr: true},
		{name: "second 60 allowed", freq: Daily, opts: []Option{BySecond(60)}},
		{name: "zero month day", freq: Monthly, opts: []Option{ByMonthDay(0)}, wantErr: true},
		{name: "negative month day", freq: Monthly, opts: []Option{ByMonthDay(-31)}},
		{name: "week number 54", freq: Yearly, opts: []Option{ByWeekNo(54)}, wantErr: true},
		{name: "month 13", freq: Yearly, opts: []Option{ByMonth(13)}, wantErr: true},
		{name: "set position zero", freq: Monthly, opts: []Option{ByDay(MO), BySetPos(0)}, wantErr: true},
		{name: "weekday ordinal 54", freq: Yearly, opts: []Option{ByDay(MO.Nth(54))}, wantErr: true},
		{name: "weekday ordinal 6 builds", freq: Yearly, opts: []Option{ByMonth(3), ByDay(MO.Nth(6))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.freq, tt.opts...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPattern)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.freq, p.Frequency())
		})
	}
}

func TestDefaults(t *testing.T) {
	p, err := New(Weekly)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Interval())
	assert.Equal(t, time.Monday, p.WeekStart())
	assert.True(t, p.Count().IsAbsent())
	assert.True(t, p.Until().IsAbsent())
	assert.Equal(t, RestrictDefault, p.Restriction())
	assert.Equal(t, Strict, p.EvaluationMode())
}

func TestOrderIndependentEquality(t *testing.T) {
	a, err := New(Yearly, ByWeekNo(1, 3, 5), ByDay(MO, FR.Nth(-1)), ByMonth(9, 6))
	require.NoError(t, err)
	b, err := New(Yearly, ByWeekNo(5, 3, 1, 3), ByDay(FR.Nth(-1), MO), ByMonth(6, 9))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, []int{1, 3, 5}, b.ByWeekNo())

	c, err := New(Yearly, ByWeekNo(1, 3), ByDay(MO, FR.Nth(-1)), ByMonth(6, 9))
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestAccessorsReturnCopies(t *testing.T) {
	p, err := New(Monthly, ByMonthDay(1, 15))
	require.NoError(t, err)

	days := p.ByMonthDay()
	days[0] = 99
	assert.Equal(t, []int{1, 15}, p.ByMonthDay())
}

func TestWith(t *testing.T) {
	p, err := New(Daily, WithCount(5))
	require.NoError(t, err)

	q, err := p.With(WithInterval(2))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Interval())
	assert.Equal(t, 2, q.Interval())

	_, err = p.With(WithUntil(caltime.Date(2024, 1, 1)))
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestRestriction(t *testing.T) {
	tests := []struct {
		r       Restriction
		allowed []Frequency
		denied  []Frequency
	}{
		{RestrictDefault, []Frequency{Daily, Weekly, Yearly}, []Frequency{Hourly, Minutely, Secondly}},
		{RestrictHourly, []Frequency{Daily}, []Frequency{Hourly, Minutely, Secondly}},
		{RestrictMinutely, []Frequency{Hourly}, []Frequency{Minutely, Secondly}},
		{RestrictSecondly, []Frequency{Hourly, Minutely}, []Frequency{Secondly}},
		{NoRestriction, []Frequency{Hourly, Minutely, Secondly}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.r.String(), func(t *testing.T) {
			for _, f := range tt.allowed {
				assert.True(t, tt.r.Allows(f), f.String())
			}
			for _, f := range tt.denied {
				assert.False(t, tt.r.Allows(f), f.String())
			}
		})
	}
}

func TestParseRestriction(t *testing.T) {
	r, err := ParseRestriction("minutely")
	require.NoError(t, err)
	assert.Equal(t, RestrictMinutely, r)

	_, err = ParseRestriction("weekly")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestWeekdayNumString(t *testing.T) {
	assert.Equal(t, "MO", MO.String())
	assert.Equal(t, "2MO", MO.Nth(2).String())
	assert.Equal(t, "-1SU", SU.Nth(-1).String())
}
