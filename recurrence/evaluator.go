package recurrence

import (
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/pattern"
)

const (
	// DefaultMaxIterations bounds the frequency steps of a single expansion.
	DefaultMaxIterations = 1_000_000

	maxYear = 9999

	// wallMargin covers the largest UTC offset when comparing wall clocks against instants.
	wallMargin = 26 * time.Hour
)

// Evaluator expands a single recurrence pattern from a seed. It holds no per-expansion
// state and is safe for concurrent use.
type Evaluator struct {
	resolver      *caltime.Resolver
	maxIterations int
	logger        *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithMaxIterations sets the number of frequency steps after which an expansion fails with
// ErrIterationLimit.
func WithMaxIterations(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithEvaluatorLogger sets the logger for expansion diagnostics.
func WithEvaluatorLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEvaluator returns an Evaluator resolving zones with r. A nil resolver uses
// caltime.DefaultResolver.
func NewEvaluator(r *caltime.Resolver, opts ...EvaluatorOption) *Evaluator {
	if r == nil {
		r = caltime.DefaultResolver()
	}
	e := &Evaluator{
		resolver:      r,
		maxIterations: DefaultMaxIterations,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Resolver() *caltime.Resolver { return e.resolver }

// Evaluate returns a lazy iterator over the instances of p anchored at seed that start
// within [from, to). Zero from or to leaves that side open. With includeSeed the seed is
// produced first when it falls in the window; it does not count toward COUNT.
//
// Nothing is computed until the first call to Next.
func (e *Evaluator) Evaluate(p *pattern.Pattern, seed caltime.Value, from, to time.Time, includeSeed bool) *Iterator {
	return &Iterator{
		ev:          e,
		p:           p,
		seed:        seed,
		from:        from,
		to:          to,
		includeSeed: includeSeed,
	}
}

// Expand collects every instance Evaluate would produce.
func (e *Evaluator) Expand(p *pattern.Pattern, seed caltime.Value, from, to time.Time) ([]caltime.Value, error) {
	var out []caltime.Value
	for v, err := range e.Evaluate(p, seed, from, to, false).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Iterator produces the instances of one expansion in ascending order. It is not safe for
// concurrent use and cannot be rewound.
type Iterator struct {
	ev          *Evaluator
	p           *pattern.Pattern
	seed        caltime.Value
	from, to    time.Time
	includeSeed bool

	started     bool
	done        bool
	err         error
	rules       *rules
	cursor      time.Time
	stopWall    time.Time
	seedWall    time.Time
	pendingSeed bool
	seedEmitted bool
	buf         []time.Time
	matched     int
	steps       int

	hasUntil     bool
	untilByWall  bool
	untilWall    time.Time
	untilInstant time.Time
	untilStop    time.Time
}

// Next returns the next instance. It returns false when the expansion is exhausted or
// failed; check Err to tell the two apart.
func (it *Iterator) Next() (caltime.Value, bool) {
	if !it.started {
		it.start()
	}
	if it.pendingSeed {
		it.pendingSeed = false
		it.seedEmitted = true
		return it.seed, true
	}
	for !it.done {
		if it.rules.count > 0 && it.matched >= it.rules.count {
			it.done = true
			break
		}
		if len(it.buf) == 0 {
			it.fill()
			continue
		}
		wall := it.buf[0]
		it.buf = it.buf[1:]
		if v, ok := it.admit(wall); ok {
			return v, true
		}
	}
	return caltime.Value{}, false
}

// Err returns the error that ended the expansion, if any.
func (it *Iterator) Err() error { return it.err }

// All adapts the iterator for range loops. A failure is yielded once as the final pair.
func (it *Iterator) All() iter.Seq2[caltime.Value, error] {
	return func(yield func(caltime.Value, error) bool) {
		for {
			v, ok := it.Next()
			if !ok {
				if it.err != nil {
					yield(caltime.Value{}, it.err)
				}
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.done = true
	it.buf = nil
}

func (it *Iterator) start() {
	it.started = true
	if it.p == nil {
		it.fail(evalError("evaluate", ErrMissingFrequency, "no pattern"))
		return
	}
	ru, err := compile(it.p, it.seed)
	if err != nil {
		it.fail(err)
		return
	}
	it.rules = ru
	it.seedWall = it.seed.Wall()
	it.cursor = ru.initialCursor(it.seedWall)
	if !it.to.IsZero() {
		it.stopWall = it.to.UTC().Add(wallMargin)
	}
	it.prepareUntil()

	if ru.count == 0 && !it.from.IsZero() {
		target := it.from.UTC().Add(-wallMargin)
		if n := ru.stepsBefore(it.cursor, target); n > 0 {
			it.cursor = ru.advance(it.cursor, n)
			it.ev.logger.Debug("fast-forwarded expansion",
				"rule", it.p.String(), "steps", n, "cursor", it.cursor)
		}
	}

	if it.includeSeed && it.inWindow(it.ev.resolver.Normalize(it.seed)) {
		it.pendingSeed = true
	}
}

// prepareUntil normalizes UNTIL into the seed's frame: wall clocks for a floating seed,
// instants otherwise. A date-only UNTIL bounds the whole day.
func (it *Iterator) prepareUntil() {
	u, ok := it.p.Until().Get()
	if !ok {
		return
	}
	it.hasUntil = true

	if it.seed.IsFloating() {
		it.untilByWall = true
		it.untilWall = u.Wall()
		if !u.HasTime() && !it.rules.dateOnly {
			it.untilWall = endOfDay(it.untilWall)
		}
		it.untilStop = it.untilWall.Add(wallMargin)
		return
	}

	r := it.ev.resolver
	zone := it.seed.Zone()
	switch {
	case !u.HasTime():
		end := u.WithZone(zone).WithTime(23, 59, 59, 999999999)
		it.untilInstant = r.Normalize(end)
	case u.IsUTC():
		it.untilInstant = u.Wall()
	case u.IsFloating():
		it.untilInstant = r.Normalize(u.WithZone(zone))
	default:
		it.untilInstant = r.Normalize(u)
	}
	it.untilStop = it.untilInstant.Add(wallMargin)
}

func endOfDay(t time.Time) time.Time {
	return midnight(t).Add(24*time.Hour - time.Nanosecond)
}

func (it *Iterator) inWindow(instant time.Time) bool {
	if !it.from.IsZero() && instant.Before(it.from) {
		return false
	}
	return it.to.IsZero() || instant.Before(it.to)
}

// fill computes the next step with at least one candidate.
func (it *Iterator) fill() {
	ru := it.rules
	for {
		if it.cursor.Year() > maxYear {
			it.done = true
			return
		}
		if !it.stopWall.IsZero() && it.cursor.After(it.stopWall) {
			it.done = true
			return
		}
		if it.hasUntil && it.cursor.After(it.untilStop) {
			it.done = true
			return
		}
		if it.steps >= it.ev.maxIterations {
			it.ev.logger.Warn("expansion exceeded iteration limit",
				"rule", it.p.String(), "seed", it.seed.String(), "limit", it.ev.maxIterations)
			it.fail(evalError("evaluate", ErrIterationLimit, "more than %d steps", it.ev.maxIterations))
			return
		}
		it.steps++

		cur := it.cursor
		it.cursor = ru.advance(cur, 1)
		if walls := ru.candidates(cur); len(walls) > 0 {
			it.buf = walls
			return
		}
		if ru.freq.IsSubDaily() && ru.mode == pattern.AdjustAutomatically {
			it.skipRejectedDay(cur)
		}
	}
}

// skipRejectedDay moves a sub-daily cursor past the rest of a day whose date fails the
// day-level filters.
func (it *Iterator) skipRejectedDay(cur time.Time) {
	ru := it.rules
	if len(ru.days(cur)) > 0 {
		return
	}
	next := midnight(cur).AddDate(0, 0, 1)
	if n := ru.stepsBefore(it.cursor, next); n > 0 {
		it.cursor = ru.advance(it.cursor, n)
	}
	if it.cursor.Before(next) {
		it.cursor = ru.advance(it.cursor, 1)
	}
}

func (it *Iterator) admit(wall time.Time) (caltime.Value, bool) {
	ru := it.rules
	if wall.Before(it.seedWall) {
		return caltime.Value{}, false
	}

	v := caltime.FromWall(wall, !ru.dateOnly, it.seed.Kind(), it.seed.Zone())
	r := it.ev.resolver
	instant := r.Normalize(v)

	if it.hasUntil {
		if (it.untilByWall && wall.After(it.untilWall)) || (!it.untilByWall && instant.After(it.untilInstant)) {
			it.done = true
			return caltime.Value{}, false
		}
	}
	if ru.count > 0 {
		it.matched++
		if it.matched > ru.count {
			it.done = true
			return caltime.Value{}, false
		}
	}
	if !it.to.IsZero() && !instant.Before(it.to) {
		it.done = true
		return caltime.Value{}, false
	}
	if !it.from.IsZero() && instant.Before(it.from) {
		return caltime.Value{}, false
	}
	if it.seedEmitted && v == it.seed {
		return caltime.Value{}, false
	}
	return v, true
}
