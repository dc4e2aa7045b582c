package caltime

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Offset is the UTC offset in effect for a zone at some instant.
type Offset struct {
	Seconds int
	Abbrev  string
}

func (o Offset) Duration() time.Duration { return time.Duration(o.Seconds) * time.Second }

// ZoneProvider answers UTC offsets for zone ids. It returns false when it does not know the
// zone at the given instant.
type ZoneProvider interface {
	OffsetAt(zone string, instant time.Time) (Offset, bool)
}

// TZDB is a ZoneProvider backed by the IANA database that ships with Go.
// Windows zone ids and a few legacy spellings are mapped to IANA ids.
type TZDB struct {
	aliases map[string]string
	locs    sync.Map // zone id -> *time.Location, nil when unknown
}

// TZDBOption configures a TZDB.
type TZDBOption func(*TZDB)

// WithAliases maps additional zone ids onto IANA ids.
func WithAliases(aliases map[string]string) TZDBOption {
	return func(db *TZDB) {
		for k, v := range aliases {
			db.aliases[k] = v
		}
	}
}

func NewTZDB(opts ...TZDBOption) *TZDB {
	db := &TZDB{aliases: make(map[string]string, len(windowsZones))}
	for k, v := range windowsZones {
		db.aliases[k] = v
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *TZDB) OffsetAt(zone string, instant time.Time) (Offset, bool) {
	loc, ok := db.Location(zone)
	if !ok {
		return Offset{}, false
	}
	name, off := instant.In(loc).Zone()
	return Offset{Seconds: off, Abbrev: name}, true
}

// Location returns the *time.Location for zone, caching lookups.
func (db *TZDB) Location(zone string) (*time.Location, bool) {
	if v, ok := db.locs.Load(zone); ok {
		loc := v.(*time.Location)
		return loc, loc != nil
	}
	loc := db.load(zone)
	db.locs.Store(zone, loc)
	return loc, loc != nil
}

func (db *TZDB) load(zone string) *time.Location {
	id := strings.TrimSpace(zone)
	if alias, ok := db.aliases[id]; ok {
		id = alias
	}
	if id == "" || id == "Local" {
		return nil
	}
	if loc, err := time.LoadLocation(id); err == nil {
		return loc
	}
	// Vendor prefixed TZIDs such as "/mozilla.org/20050126_1/America/New_York".
	parts := strings.Split(strings.Trim(id, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if loc, err := time.LoadLocation(strings.Join(parts[i:], "/")); err == nil {
			return loc
		}
	}
	return nil
}

// ZoneInterval is a span of the UTC timeline with a constant offset. A zero Start or End
// leaves that side unbounded; End is exclusive.
type ZoneInterval struct {
	Start  time.Time
	End    time.Time
	Offset Offset
}

func (zi ZoneInterval) contains(t time.Time) bool {
	return (zi.Start.IsZero() || !t.Before(zi.Start)) && (zi.End.IsZero() || t.Before(zi.End))
}

// ZoneTable is a ZoneProvider built from explicit offset intervals. Instants not covered by
// any interval are unknown.
type ZoneTable struct {
	mu    sync.RWMutex
	zones map[string][]ZoneInterval
}

func NewZoneTable() *ZoneTable {
	return &ZoneTable{zones: make(map[string][]ZoneInterval)}
}

// Add appends intervals for zone.
func (t *ZoneTable) Add(zone string, intervals ...ZoneInterval) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := append(t.zones[zone], intervals...)
	slices.SortStableFunc(list, func(a, b ZoneInterval) int {
		switch {
		case a.Start.IsZero() && b.Start.IsZero():
			return 0
		case a.Start.IsZero():
			return -1
		case b.Start.IsZero():
			return 1
		}
		return a.Start.Compare(b.Start)
	})
	t.zones[zone] = list
}

// AddFixed registers zone with a single offset valid at all instants.
func (t *ZoneTable) AddFixed(zone string, off Offset) {
	t.Add(zone, ZoneInterval{Offset: off})
}

func (t *ZoneTable) OffsetAt(zone string, instant time.Time) (Offset, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.zones[zone]
	// Last interval starting at or before instant.
	i, _ := slices.BinarySearchFunc(list, instant, func(zi ZoneInterval, t time.Time) int {
		if zi.Start.IsZero() || !zi.Start.After(t) {
			return -1
		}
		return 1
	})
	for j := i - 1; j >= 0; j-- {
		if list[j].contains(instant) {
			return list[j].Offset, true
		}
	}
	return Offset{}, false
}

// Zones lists the zone ids present in the table.
func (t *ZoneTable) Zones() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.zones))
	for id := range t.zones {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Chain asks each provider in turn and returns the first answer.
type Chain []ZoneProvider

func (c Chain) OffsetAt(zone string, instant time.Time) (Offset, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if off, ok := p.OffsetAt(zone, instant); ok {
			return off, true
		}
	}
	return Offset{}, false
}
