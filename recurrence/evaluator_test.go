package recurrence

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/pattern"

	_ "time/tzdata"
)

func walls(values []caltime.Value) []time.Time {
	out := make([]time.Time, len(values))
	for i, v := range values {
		out[i] = v.Wall()
	}
	return out
}

func wall(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestEvaluatorExpand(t *testing.T) {
	tests := []struct {
		name string
		rule string
		opts []pattern.Option
		seed caltime.Value
		from time.Time
		to   time.Time
		want []time.Time
	}{
		{
			name: "daily count",
			rule: "FREQ=DAILY;COUNT=3",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			want: []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 1, 2, 9, 0), wall(2024, 1, 3, 9, 0)},
		},
		{
			name: "weekly on two days",
			rule: "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4",
			seed: caltime.UTCTime(2024, time.January, 1, 10, 0, 0),
			want: []time.Time{wall(2024, 1, 1, 10, 0), wall(2024, 1, 3, 10, 0), wall(2024, 1, 8, 10, 0), wall(2024, 1, 10, 10, 0)},
		},
		{
			name: "last friday of the month",
			rule: "FREQ=MONTHLY;BYDAY=-1FR;COUNT=3",
			seed: caltime.UTCTime(2024, time.January, 26, 12, 0, 0),
			want: []time.Time{wall(2024, 1, 26, 12, 0), wall(2024, 2, 23, 12, 0), wall(2024, 3, 29, 12, 0)},
		},
		{
			name: "31st skips short months",
			rule: "FREQ=MONTHLY;BYMONTHDAY=31;COUNT=3",
			seed: caltime.UTCTime(2024, time.January, 31, 8, 0, 0),
			want: []time.Time{wall(2024, 1, 31, 8, 0), wall(2024, 3, 31, 8, 0), wall(2024, 5, 31, 8, 0)},
		},
		{
			name: "leap day",
			rule: "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=29;COUNT=2",
			seed: caltime.UTCTime(2024, time.February, 29, 8, 0, 0),
			want: []time.Time{wall(2024, 2, 29, 8, 0), wall(2028, 2, 29, 8, 0)},
		},
		{
			name: "last weekday via BYSETPOS",
			rule: "FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1;COUNT=3",
			seed: caltime.UTCTime(2024, time.January, 31, 17, 0, 0),
			want: []time.Time{wall(2024, 1, 31, 17, 0), wall(2024, 2, 29, 17, 0), wall(2024, 3, 29, 17, 0)},
		},
		{
			name: "first week of the year follows WKST",
			rule: "FREQ=YEARLY;BYWEEKNO=1;BYDAY=MO;COUNT=3",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			want: []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 12, 30, 9, 0), wall(2025, 12, 29, 9, 0)},
		},
		{
			name: "first monday in march",
			rule: "FREQ=YEARLY;BYMONTH=3;BYDAY=1MO;COUNT=2",
			seed: caltime.UTCTime(2024, time.March, 4, 9, 0, 0),
			want: []time.Time{wall(2024, 3, 4, 9, 0), wall(2025, 3, 3, 9, 0)},
		},
		{
			name: "friday the 13th",
			rule: "FREQ=MONTHLY;BYMONTHDAY=13;BYDAY=FR;COUNT=2",
			seed: caltime.UTCTime(2024, time.January, 1, 0, 0, 0),
			want: []time.Time{wall(2024, 9, 13, 0, 0), wall(2024, 12, 13, 0, 0)},
		},
		{
			name: "ordinal limits BYMONTHDAY",
			rule: "FREQ=MONTHLY;BYMONTHDAY=10,11,12,13,14,15,16,17,18,19,20;BYDAY=1MO;COUNT=2",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			want: []time.Time{wall(2024, 1, 15, 9, 0), wall(2024, 2, 12, 9, 0)},
		},
		{
			name: "hourly with interval",
			rule: "FREQ=HOURLY;INTERVAL=6;COUNT=4",
			opts: []pattern.Option{pattern.WithRestriction(pattern.NoRestriction)},
			seed: caltime.UTCTime(2024, time.January, 1, 22, 0, 0),
			want: []time.Time{wall(2024, 1, 1, 22, 0), wall(2024, 1, 2, 4, 0), wall(2024, 1, 2, 10, 0), wall(2024, 1, 2, 16, 0)},
		},
		{
			name: "daily expanded by hour",
			rule: "FREQ=DAILY;BYHOUR=9,17;COUNT=4",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			want: []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 1, 1, 17, 0), wall(2024, 1, 2, 9, 0), wall(2024, 1, 2, 17, 0)},
		},
		{
			name: "inclusive UTC until",
			rule: "FREQ=DAILY;UNTIL=20240103T090000Z",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			want: []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 1, 2, 9, 0), wall(2024, 1, 3, 9, 0)},
		},
		{
			name: "date until covers the whole day",
			rule: "FREQ=DAILY;UNTIL=20240103",
			seed: caltime.Floating(2024, time.January, 1, 10, 0, 0),
			want: []time.Time{wall(2024, 1, 1, 10, 0), wall(2024, 1, 2, 10, 0), wall(2024, 1, 3, 10, 0)},
		},
		{
			name: "window far after the seed",
			rule: "FREQ=DAILY",
			seed: caltime.UTCTime(2020, time.January, 1, 9, 0, 0),
			from: wall(2024, 6, 1, 0, 0),
			to:   wall(2024, 6, 4, 0, 0),
			want: []time.Time{wall(2024, 6, 1, 9, 0), wall(2024, 6, 2, 9, 0), wall(2024, 6, 3, 9, 0)},
		},
		{
			name: "window end is exclusive",
			rule: "FREQ=DAILY",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			from: wall(2024, 1, 2, 9, 0),
			to:   wall(2024, 1, 4, 9, 0),
			want: []time.Time{wall(2024, 1, 2, 9, 0), wall(2024, 1, 3, 9, 0)},
		},
		{
			name: "until inside window",
			rule: "FREQ=WEEKLY;UNTIL=20240115T090000Z",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			from: wall(2024, 1, 5, 0, 0),
			to:   wall(2024, 2, 1, 0, 0),
			want: []time.Time{wall(2024, 1, 8, 9, 0), wall(2024, 1, 15, 9, 0)},
		},
		{
			name: "count consumed before window",
			rule: "FREQ=DAILY;COUNT=5",
			seed: caltime.UTCTime(2024, time.January, 1, 9, 0, 0),
			from: wall(2024, 1, 4, 0, 0),
			to:   wall(2024, 2, 1, 0, 0),
			want: []time.Time{wall(2024, 1, 4, 9, 0), wall(2024, 1, 5, 9, 0)},
		},
	}

	ev := NewEvaluator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pattern.Parse(tt.rule, tt.opts...)
			require.NoError(t, err)

			got, err := ev.Expand(p, tt.seed, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, walls(got))
			for _, v := range got {
				assert.Equal(t, tt.seed.Kind(), v.Kind())
				assert.Equal(t, tt.seed.Zone(), v.Zone())
			}
		})
	}
}

func TestEvaluatorSecondMondays(t *testing.T) {
	p := pattern.MustParse("FREQ=YEARLY;BYMONTH=6,9;BYDAY=2MO;COUNT=4")
	seed := caltime.Floating(2026, time.June, 1, 9, 0, 0)

	got, err := NewEvaluator(nil).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []caltime.Value{
		caltime.Floating(2026, time.June, 8, 9, 0, 0),
		caltime.Floating(2026, time.September, 14, 9, 0, 0),
		caltime.Floating(2027, time.June, 14, 9, 0, 0),
		caltime.Floating(2027, time.September, 13, 9, 0, 0),
	}, got)
}

func TestEvaluatorZonedSeed(t *testing.T) {
	p := pattern.MustParse("FREQ=DAILY;INTERVAL=2;COUNT=10")
	seed := caltime.Zoned("US-Eastern", 2006, time.July, 18, 10, 0, 0)

	got, err := NewEvaluator(nil).Expand(p, seed, wall(2006, 7, 1, 0, 0), wall(2006, 9, 1, 0, 0))
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, v := range got {
		assert.Equal(t, caltime.Zoned("US-Eastern", 2006, time.July, 18+2*i, 10, 0, 0).Wall(), v.Wall())
		assert.Equal(t, "US-Eastern", v.Zone())
	}
	assert.Equal(t, wall(2006, 8, 5, 10, 0), got[9].Wall())
}

func TestEvaluatorKeepsWallAcrossDST(t *testing.T) {
	p := pattern.MustParse("FREQ=DAILY;COUNT=3")
	seed := caltime.Zoned("Europe/Paris", 2024, time.March, 30, 9, 0, 0)
	r := caltime.DefaultResolver()

	got, err := NewEvaluator(r).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, v := range got {
		h, m, _ := v.Clock()
		assert.Equal(t, 9, h)
		assert.Equal(t, 0, m)
	}
	// CET before the change, CEST after.
	assert.Equal(t, wall(2024, 3, 30, 8, 0), r.Normalize(got[0]))
	assert.Equal(t, wall(2024, 3, 31, 7, 0), r.Normalize(got[1]))
}

func TestEvaluatorDateOnly(t *testing.T) {
	p := pattern.MustParse("FREQ=WEEKLY;COUNT=2")
	got, err := NewEvaluator(nil).Expand(p, caltime.Date(2024, time.May, 3), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []caltime.Value{caltime.Date(2024, time.May, 3), caltime.Date(2024, time.May, 10)}, got)

	// A sub-daily BY rule promotes date-only output to date-time.
	p = pattern.MustParse("FREQ=DAILY;BYHOUR=8;COUNT=1")
	got, err = NewEvaluator(nil).Expand(p, caltime.Date(2024, time.May, 3), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasTime())
	assert.Equal(t, wall(2024, 5, 3, 8, 0), got[0].Wall())
}

func TestEvaluatorIncludeSeed(t *testing.T) {
	p := pattern.MustParse("FREQ=WEEKLY;BYDAY=TU;COUNT=2")
	seed := caltime.UTCTime(2024, time.January, 1, 10, 0, 0)

	var got []caltime.Value
	for v, err := range NewEvaluator(nil).Evaluate(p, seed, time.Time{}, time.Time{}, true).All() {
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []time.Time{wall(2024, 1, 1, 10, 0), wall(2024, 1, 2, 10, 0), wall(2024, 1, 9, 10, 0)}, walls(got))

	// The seed is not repeated when the rule produces it too.
	p = pattern.MustParse("FREQ=DAILY;COUNT=2")
	it := NewEvaluator(nil).Evaluate(p, seed, time.Time{}, time.Time{}, true)
	got = nil
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		got = append(got, v)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []time.Time{wall(2024, 1, 1, 10, 0), wall(2024, 1, 2, 10, 0)}, walls(got))
}

func TestEvaluatorSubDaily(t *testing.T) {
	seed := caltime.UTCTime(2024, time.January, 1, 9, 0, 0)

	p := pattern.MustParse("FREQ=MINUTELY;INTERVAL=15;BYHOUR=9;COUNT=5", pattern.WithRestriction(pattern.NoRestriction))
	got, err := NewEvaluator(nil).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		wall(2024, 1, 1, 9, 0), wall(2024, 1, 1, 9, 15), wall(2024, 1, 1, 9, 30), wall(2024, 1, 1, 9, 45),
		wall(2024, 1, 2, 9, 0),
	}, walls(got))

	// Rejected days are skipped wholesale when adjusting automatically.
	p = pattern.MustParse("FREQ=HOURLY;BYDAY=MO;BYHOUR=9;COUNT=2",
		pattern.WithEvaluationMode(pattern.AdjustAutomatically))
	got, err = NewEvaluator(nil, WithMaxIterations(50)).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 1, 8, 9, 0)}, walls(got))
}

func TestEvaluatorErrors(t *testing.T) {
	seed := caltime.UTCTime(2024, time.January, 1, 9, 0, 0)
	none, err := pattern.New(pattern.None)
	require.NoError(t, err)

	tests := []struct {
		name    string
		p       *pattern.Pattern
		seed    caltime.Value
		opts    []EvaluatorOption
		wantErr error
	}{
		{name: "missing frequency", p: none, seed: seed, wantErr: ErrMissingFrequency},
		{name: "restricted frequency", p: pattern.MustParse("FREQ=MINUTELY"), seed: seed, wantErr: ErrUnsupportedFrequency},
		{name: "sixth monday of march", p: pattern.MustParse("FREQ=YEARLY;BYMONTH=3;BYDAY=6MO"), seed: seed, wantErr: ErrEvaluationOutOfRange},
		{name: "second monday of a week", p: pattern.MustParse("FREQ=YEARLY;BYWEEKNO=10;BYDAY=2MO"), seed: seed, wantErr: ErrEvaluationOutOfRange},
		{name: "absent seed", p: pattern.MustParse("FREQ=DAILY"), wantErr: caltime.ErrInvalidState},
		{
			name:    "iteration limit",
			p:       pattern.MustParse("FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=30"),
			seed:    seed,
			opts:    []EvaluatorOption{WithMaxIterations(10)},
			wantErr: ErrIterationLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEvaluator(nil, tt.opts...).Expand(tt.p, tt.seed, time.Time{}, time.Time{})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)

			var evalErr *EvaluationError
			assert.True(t, errors.As(err, &evalErr))
			assert.Equal(t, "evaluate", evalErr.Op)
		})
	}
}

func TestEvaluatorAdjustAllowsRestricted(t *testing.T) {
	p := pattern.MustParse("FREQ=MINUTELY;COUNT=2", pattern.WithEvaluationMode(pattern.AdjustAutomatically))
	got, err := NewEvaluator(nil).Expand(p, caltime.UTCTime(2024, time.January, 1, 9, 0, 0), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 1, 1, 9, 1)}, walls(got))
}

func TestEvaluatorBYWEEKNOOrderIndependent(t *testing.T) {
	var odd, reversed []string
	for n := 1; n <= 53; n += 2 {
		odd = append(odd, strconv.Itoa(n))
	}
	for i := len(odd) - 1; i >= 0; i-- {
		reversed = append(reversed, odd[i])
	}

	// 2020 has 53 ISO weeks, so week 53 takes part too.
	seed := caltime.UTCTime(2020, time.January, 1, 9, 0, 0)
	from, to := wall(2020, 1, 1, 0, 0), wall(2021, 1, 1, 0, 0)
	a := pattern.MustParse("FREQ=YEARLY;BYWEEKNO=" + strings.Join(odd, ","))
	b := pattern.MustParse("FREQ=YEARLY;BYWEEKNO=" + strings.Join(reversed, ","))

	ev := NewEvaluator(nil)
	gotA, err := ev.Expand(a, seed, from, to)
	require.NoError(t, err)
	gotB, err := ev.Expand(b, seed, from, to)
	require.NoError(t, err)
	assert.Equal(t, gotA, gotB)
	// Without BYDAY every day of a listed week matches: Jan 1-5 of week 1, 25 full weeks,
	// then Dec 28-31 of week 53.
	assert.Len(t, gotA, 5+25*7+4)
	assert.Equal(t, wall(2020, 12, 31, 9, 0), gotA[len(gotA)-1].Wall())
}

func TestEvaluatorCountEndsWithoutExtraSteps(t *testing.T) {
	// The last instance falls on the final step the limit allows.
	p := pattern.MustParse("FREQ=DAILY;BYMONTHDAY=1;COUNT=2")
	seed := caltime.UTCTime(2024, time.January, 1, 9, 0, 0)

	got, err := NewEvaluator(nil, WithMaxIterations(32)).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 2, 1, 9, 0)}, walls(got))

	p = pattern.MustParse("FREQ=HOURLY;BYDAY=MO;BYHOUR=9;COUNT=2",
		pattern.WithEvaluationMode(pattern.AdjustAutomatically))
	got, err = NewEvaluator(nil, WithMaxIterations(40)).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{wall(2024, 1, 1, 9, 0), wall(2024, 1, 8, 9, 0)}, walls(got))
}

func TestEvaluatorFractionalSeed(t *testing.T) {
	seed := caltime.FromTime(time.Date(2024, time.January, 1, 9, 0, 0, 500_000_000, time.UTC))
	p := pattern.MustParse("FREQ=DAILY;COUNT=3")

	got, err := NewEvaluator(nil).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, v := range got {
		assert.Equal(t, time.Date(2024, time.January, 1+i, 9, 0, 0, 500_000_000, time.UTC), v.Wall())
	}

	// An explicit BYSECOND sets whole seconds.
	p = pattern.MustParse("FREQ=DAILY;BYSECOND=30;COUNT=2")
	got, err = NewEvaluator(nil).Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, time.January, 1, 9, 0, 30, 0, time.UTC),
		time.Date(2024, time.January, 2, 9, 0, 30, 0, time.UTC),
	}, walls(got))
}

func TestEvaluatorIdempotent(t *testing.T) {
	p := pattern.MustParse("FREQ=MONTHLY;BYDAY=2TU,-1FR;COUNT=12")
	seed := caltime.Zoned("America/New_York", 2024, time.January, 1, 18, 30, 0)
	ev := NewEvaluator(nil)

	first, err := ev.Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	second, err := ev.Expand(p, seed, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 12)
}
