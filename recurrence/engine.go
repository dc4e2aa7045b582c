package recurrence

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/period"
)

// Engine combines rule expansion, recurrence dates, exclusions and overrides into the
// occurrences of an entity within a window. Expansions are memoized per entity version.
type Engine struct {
	resolver  *caltime.Resolver
	evaluator *Evaluator
	config    EngineConfig
	cache     *RecurrenceCache
	overrides OverrideLookup
	group     singleflight.Group
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its evaluator.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithResolver sets the zone resolver. It takes precedence over EngineConfig.FloatingZone.
func WithResolver(r *caltime.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithOverrides sets where overrides are looked up.
func WithOverrides(lookup OverrideLookup) Option {
	return func(e *Engine) {
		e.overrides = lookup
	}
}

// NewEngine creates an engine with DefaultEngineConfig.
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig, opts...)
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration.
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = caltime.NewResolver(nil, caltime.WithFloatingZone(config.FloatingZone))
	}
	e.evaluator = NewEvaluator(e.resolver,
		WithMaxIterations(config.MaxIterations),
		WithEvaluatorLogger(e.logger),
	)
	if config.CacheEnabled {
		e.cache = NewRecurrenceCache(config.CacheConfig)
	}
	return e
}

func (e *Engine) Resolver() *caltime.Resolver { return e.resolver }
func (e *Engine) Evaluator() *Evaluator       { return e.evaluator }

// Close stops the cache cleanup loop.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats reports cache statistics; zero when caching is disabled.
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// ClearEvaluation drops every memoized expansion of ent so the next query recomputes it.
func (e *Engine) ClearEvaluation(ent *Entity) {
	if e.cache == nil || ent == nil {
		return
	}
	n := e.cache.Invalidate(ent.cacheOwner())
	e.logger.Debug("cleared evaluation", "entity", ent.ID, "entries", n)
}

// Occurrences returns the occurrences of ent overlapping [from, to), sorted by start.
// Zero from or to leaves that side open; an open end requires every rule to be bounded by
// COUNT or UNTIL.
func (e *Engine) Occurrences(ent *Entity, from, to time.Time) ([]Occurrence, error) {
	return e.OccurrencesContext(context.Background(), ent, from, to)
}

// OccurrencesContext is Occurrences with cancellation. ctx is checked before every rule
// and after every instance a rule produces.
func (e *Engine) OccurrencesContext(ctx context.Context, ent *Entity, from, to time.Time) ([]Occurrence, error) {
	if ent == nil || ent.start.IsZero() {
		return nil, &EvaluationError{Op: "occurrences", Message: "entity has no start", Err: caltime.ErrInvalidState}
	}

	var overrides []Override
	if e.overrides != nil {
		overrides = e.overrides.Overrides(ent.ID)
	}

	evalFrom, evalTo, err := e.evaluationWindow(ent, overrides, from, to)
	if err != nil {
		return nil, err
	}
	base, err := e.instances(ctx, ent, evalFrom, evalTo)
	if err != nil {
		return nil, err
	}
	occs, err := e.applyOverrides(ctx, ent, base, overrides)
	if err != nil {
		return nil, err
	}
	return e.window(occs, from, to)
}

// HasOccurrenceInRange reports whether ent has at least one occurrence in [from, to).
func (e *Engine) HasOccurrenceInRange(ent *Entity, from, to time.Time) (bool, error) {
	occs, err := e.Occurrences(ent, from, to)
	if err != nil {
		return false, err
	}
	return len(occs) > 0, nil
}

// ExpandAll evaluates independent entities concurrently and merges their occurrences in
// start order. Entities must not be mutated during the call. Cancelling ctx stops the
// expansions in progress as OccurrencesContext does.
func (e *Engine) ExpandAll(ctx context.Context, ents []*Entity, from, to time.Time) ([]Occurrence, error) {
	g, ctx := errgroup.WithContext(ctx)
	if e.config.Workers > 0 {
		g.SetLimit(e.config.Workers)
	}

	results := make([][]Occurrence, len(ents))
	for i, ent := range ents {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			occs, err := e.OccurrencesContext(ctx, ent, from, to)
			if err != nil {
				return fmt.Errorf("expand entity %s: %w", ent.ID, err)
			}
			results[i] = occs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []bounded
	for _, occs := range results {
		for _, occ := range occs {
			b, err := e.bound(occ)
			if err != nil {
				return nil, err
			}
			merged = append(merged, b)
		}
	}
	sortBounded(merged)
	out := make([]Occurrence, len(merged))
	for i, b := range merged {
		out[i] = b.occ
	}
	return out, nil
}

// evaluationWindow widens the query window so that instances starting before it but still
// running into it, and instances moved into it by overrides, are generated.
func (e *Engine) evaluationWindow(ent *Entity, overrides []Override, from, to time.Time) (time.Time, time.Time, error) {
	dur, err := ent.Duration(e.resolver)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	var shift time.Duration
	for _, ov := range overrides {
		d := e.resolver.Normalize(ov.Period.Start()).Sub(e.resolver.Normalize(ov.RecurrenceID))
		shift = max(shift, d, -d)
	}

	evalFrom, evalTo := from, to
	if !from.IsZero() {
		evalFrom = from.Add(-dur.Approx() - shift - wallMargin)
	}
	if !to.IsZero() {
		evalTo = to.Add(shift)
	}
	return evalFrom, evalTo, nil
}

// instances returns the memoized pre-override expansion.
func (e *Engine) instances(ctx context.Context, ent *Entity, from, to time.Time) ([]instance, error) {
	if e.cache == nil {
		return e.expand(ctx, ent, from, to)
	}

	owner := ent.cacheOwner()
	key := generateCacheKey(owner, ent.Version(), from, to)
	if res, ok := e.cache.Get(key); ok {
		e.logger.Debug("expansion cache hit", "entity", ent.ID, "version", ent.Version())
		return res, nil
	}

	v, err, shared := e.group.Do(key, func() (any, error) {
		res, err := e.expand(ctx, ent, from, to)
		if err != nil {
			return nil, err
		}
		e.cache.Set(owner, key, res)
		return res, nil
	})
	if err != nil && ctx.Err() == nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		// The shared expansion belonged to a caller that gave up.
		return e.expand(ctx, ent, from, to)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("expansion cache miss", "entity", ent.ID, "version", ent.Version(), "shared", shared)
	return v.([]instance), nil
}

// expand unions the entity's own period, rule instances and recurrence dates, minus
// exclusions, sorted by start and free of duplicate spans.
func (e *Engine) expand(ctx context.Context, ent *Entity, from, to time.Time) ([]instance, error) {
	r := e.resolver
	dur, err := ent.Duration(r)
	if err != nil {
		return nil, err
	}
	own, err := ent.Period(r)
	if err != nil {
		return nil, err
	}

	candidates := []period.Period{own}
	for _, rule := range ent.rrules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for v, err := range e.evaluator.Evaluate(rule, ent.start, from, to, false).All() {
			if err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p, err := period.WithDuration(v, dur)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, p)
		}
	}
	for _, p := range ent.rdates.Periods() {
		if p.IsInstant() {
			if p, err = period.WithDuration(p.Start(), dur); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, p)
	}

	out := make([]instance, 0, len(candidates))
	for _, p := range candidates {
		start, end, err := p.Bounds(r)
		if err != nil {
			return nil, err
		}
		out = append(out, instance{period: p, start: start, end: end})
	}
	slices.SortStableFunc(out, func(a, b instance) int {
		return cmp.Or(a.start.Compare(b.start), a.end.Compare(b.end))
	})

	// Exception rules only need to cover the candidates.
	exFrom, exTo := out[0].start, out[len(out)-1].start.Add(time.Nanosecond)
	ex, err := e.exclusions(ctx, ent, exFrom, exTo)
	if err != nil {
		return nil, err
	}

	kept := out[:0]
	seen := make(map[spanKey]struct{}, len(out))
	for _, in := range out {
		if ex.excludes(r, in.period.Start()) {
			continue
		}
		k := spanKey{keyOf(in.start), keyOf(in.end)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, in)
	}
	return kept, nil
}

type instantKey struct {
	sec  int64
	nsec int
}

func keyOf(t time.Time) instantKey {
	return instantKey{sec: t.Unix(), nsec: t.Nanosecond()}
}

type spanKey struct {
	start, end instantKey
}

type dateKey struct {
	year  int
	month time.Month
	day   int
}

// exclusionSet matches starts against EXDATE and EXRULE values structurally, by instant,
// and date-only EXDATEs against any start on that date.
type exclusionSet struct {
	values   map[caltime.Value]struct{}
	instants map[instantKey]struct{}
	dates    map[dateKey]struct{}
}

func (e *Engine) exclusions(ctx context.Context, ent *Entity, from, to time.Time) (*exclusionSet, error) {
	r := e.resolver
	ex := &exclusionSet{
		values:   make(map[caltime.Value]struct{}),
		instants: make(map[instantKey]struct{}),
		dates:    make(map[dateKey]struct{}),
	}

	for _, p := range ent.exdates.Periods() {
		v := p.Start()
		ex.values[v] = struct{}{}
		if !v.HasTime() {
			y, m, d := v.Date()
			ex.dates[dateKey{y, m, d}] = struct{}{}
			continue
		}
		if t, err := r.Instant(v); err == nil {
			ex.instants[keyOf(t)] = struct{}{}
		} else {
			e.logger.Debug("exception date zone not resolvable, matching structurally",
				"entity", ent.ID, "exdate", v.String(), "error", err)
		}
	}

	for _, rule := range ent.exrules {
		for v, err := range e.evaluator.Evaluate(rule, ent.start, from, to, false).All() {
			if err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ex.values[v] = struct{}{}
			ex.instants[keyOf(r.Normalize(v))] = struct{}{}
		}
	}
	return ex, nil
}

func (x *exclusionSet) excludes(r *caltime.Resolver, v caltime.Value) bool {
	if _, ok := x.values[v]; ok {
		return true
	}
	if len(x.dates) > 0 {
		y, m, d := v.Date()
		if _, ok := x.dates[dateKey{y, m, d}]; ok {
			return true
		}
	}
	if len(x.instants) > 0 {
		if _, ok := x.instants[keyOf(r.Normalize(v))]; ok {
			return true
		}
	}
	return false
}

// applyOverrides replaces or moves instances that have overrides. Overrides whose original
// instance was not part of the evaluated expansion are confirmed with a point query.
func (e *Engine) applyOverrides(ctx context.Context, ent *Entity, base []instance, overrides []Override) ([]Occurrence, error) {
	occs := make([]Occurrence, 0, len(base))
	if len(overrides) == 0 {
		for _, b := range base {
			occs = append(occs, Occurrence{Source: ent.Source, Period: b.period, RecurrenceID: b.period.Start()})
		}
		return occs, nil
	}

	r := e.resolver
	single := make(map[instantKey]*Override)
	var future []futureOverride
	for i := range overrides {
		ov := &overrides[i]
		t := r.Normalize(ov.RecurrenceID)
		if ov.Range == ThisAndFuture {
			future = append(future, futureOverride{ov: ov, instant: t})
			continue
		}
		single[keyOf(t)] = ov
	}
	slices.SortFunc(future, func(a, b futureOverride) int { return a.instant.Compare(b.instant) })

	matched := make(map[*Override]bool)
	for _, b := range base {
		rid := b.period.Start()
		occ := Occurrence{Source: ent.Source, Period: b.period, RecurrenceID: rid}

		if ov, ok := single[keyOf(b.start)]; ok {
			occ.Period, occ.Override = ov.Period, ov
			matched[ov] = true
		} else if idx := latestAtOrBefore(future, b.start); idx >= 0 {
			f := future[idx]
			occ.Override = f.ov
			if f.instant.Equal(b.start) {
				occ.Period = f.ov.Period
				matched[f.ov] = true
			} else {
				moved, err := e.shift(rid, f.ov, f.instant)
				if err != nil {
					return nil, err
				}
				occ.Period = moved
			}
		}
		occs = append(occs, occ)
	}

	for i := range overrides {
		ov := &overrides[i]
		if matched[ov] {
			continue
		}
		ok, err := e.isInstance(ctx, ent, ov.RecurrenceID)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.logger.Debug("override does not match an instance", "entity", ent.ID, "recurrence_id", ov.RecurrenceID.String())
			continue
		}
		occs = append(occs, Occurrence{Source: ent.Source, Period: ov.Period, RecurrenceID: ov.RecurrenceID, Override: ov})
	}
	return occs, nil
}

type futureOverride struct {
	ov      *Override
	instant time.Time
}

// latestAtOrBefore returns the index of the last override in list, sorted by instant, whose
// recurrence id is not after t, or -1.
func latestAtOrBefore(list []futureOverride, t time.Time) int {
	idx := -1
	for i, f := range list {
		if f.instant.After(t) {
			break
		}
		idx = i
	}
	return idx
}

// shift moves the instance at rid by the offset a THISANDFUTURE override applied to its
// own instance, giving it the override's duration.
func (e *Engine) shift(rid caltime.Value, ov *Override, ovInstant time.Time) (period.Period, error) {
	r := e.resolver
	newStart := ov.Period.Start()

	var delta caltime.Duration
	if !rid.HasTime() && !newStart.HasTime() && !ov.RecurrenceID.HasTime() {
		days := int(newStart.Wall().Sub(ov.RecurrenceID.Wall()) / (24 * time.Hour))
		delta = caltime.Days(days)
	} else {
		delta = caltime.Exact(r.Normalize(newStart).Sub(ovInstant))
		if !rid.HasTime() {
			if _, whole := delta.WholeDays(); !whole {
				rid = rid.WithTime(0, 0, 0, 0)
			}
		}
	}

	start, err := rid.Add(r, delta)
	if err != nil {
		return period.Period{}, err
	}
	dur, err := ov.Period.Duration(r)
	if err != nil {
		return period.Period{}, err
	}
	return period.WithDuration(start, dur)
}

// isInstance reports whether rid is an unexcluded instance of ent.
func (e *Engine) isInstance(ctx context.Context, ent *Entity, rid caltime.Value) (bool, error) {
	t := e.resolver.Normalize(rid)
	list, err := e.expand(ctx, ent, t, t.Add(time.Second))
	if err != nil {
		return false, err
	}
	for _, b := range list {
		if b.start.Equal(t) {
			return true, nil
		}
	}
	return false, nil
}

type bounded struct {
	occ        Occurrence
	start, end time.Time
}

func (e *Engine) bound(occ Occurrence) (bounded, error) {
	start, end, err := occ.Period.Bounds(e.resolver)
	if err != nil {
		return bounded{}, err
	}
	return bounded{occ: occ, start: start, end: end}, nil
}

func sortBounded(list []bounded) {
	slices.SortStableFunc(list, func(a, b bounded) int {
		return cmp.Or(a.start.Compare(b.start), a.end.Compare(b.end))
	})
}

// window keeps occurrences overlapping [from, to), sorted, dropping repeated spans.
func (e *Engine) window(occs []Occurrence, from, to time.Time) ([]Occurrence, error) {
	kept := make([]bounded, 0, len(occs))
	for _, occ := range occs {
		ok, err := occ.Period.Overlaps(e.resolver, from, to)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		b, err := e.bound(occ)
		if err != nil {
			return nil, err
		}
		kept = append(kept, b)
	}
	sortBounded(kept)

	out := make([]Occurrence, 0, len(kept))
	for i, b := range kept {
		if i > 0 && b.start.Equal(kept[i-1].start) && b.end.Equal(kept[i-1].end) {
			continue
		}
		out = append(out, b.occ)
	}
	return out, nil
}
