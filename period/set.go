package period

import "github.com/cyp0633/librecur/caltime"

// Tag is the value type a Collection holds.
type Tag uint8

const (
	DateOnly Tag = iota
	DateTime
	Span
)

func (t Tag) String() string {
	switch t {
	case DateOnly:
		return "DATE"
	case DateTime:
		return "DATE-TIME"
	case Span:
		return "PERIOD"
	default:
		return "UNKNOWN"
	}
}

// Key groups periods sharing a zone and value type, the way a single RDATE or EXDATE
// property line does.
type Key struct {
	Kind caltime.Kind
	Zone string
	Tag  Tag
}

// KeyOf returns the collection key p belongs to.
func KeyOf(p Period) Key {
	tag := DateTime
	switch {
	case !p.IsInstant():
		tag = Span
	case !p.start.HasTime():
		tag = DateOnly
	}
	return Key{Kind: p.start.Kind(), Zone: p.start.Zone(), Tag: tag}
}

// Collection is an insertion-ordered list of distinct periods with one Key.
type Collection struct {
	key   Key
	items []Period
	index map[Period]struct{}
}

func newCollection(key Key) *Collection {
	return &Collection{key: key, index: make(map[Period]struct{})}
}

func (c *Collection) Key() Key { return c.key }

func (c *Collection) Len() int { return len(c.items) }

// Periods returns a copy of the collection's periods.
func (c *Collection) Periods() []Period {
	return append([]Period(nil), c.items...)
}

func (c *Collection) add(p Period) bool {
	if _, ok := c.index[p]; ok {
		return false
	}
	c.index[p] = struct{}{}
	c.items = append(c.items, p)
	return true
}

func (c *Collection) remove(p Period) bool {
	if _, ok := c.index[p]; !ok {
		return false
	}
	delete(c.index, p)
	for i, it := range c.items {
		if it == p {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	return true
}

// Set holds periods grouped into collections. Every mutation bumps Version.
// A Set is not safe for concurrent use.
type Set struct {
	lists   []*Collection
	byKey   map[Key]*Collection
	version uint64
}

func NewSet() *Set {
	return &Set{byKey: make(map[Key]*Collection)}
}

// Add inserts p unless an identical period is already present.
func (s *Set) Add(p Period) bool {
	if p.IsZero() {
		return false
	}
	key := KeyOf(p)
	c, ok := s.byKey[key]
	if !ok {
		c = newCollection(key)
		s.byKey[key] = c
		s.lists = append(s.lists, c)
	}
	if !c.add(p) {
		return false
	}
	s.version++
	return true
}

// AddDate inserts the instant period at v.
func (s *Set) AddDate(v caltime.Value) bool {
	return s.Add(At(v))
}

// Remove deletes p. Empty collections are dropped.
func (s *Set) Remove(p Period) bool {
	key := KeyOf(p)
	c, ok := s.byKey[key]
	if !ok || !c.remove(p) {
		return false
	}
	if c.Len() == 0 {
		delete(s.byKey, key)
		for i, l := range s.lists {
			if l == c {
				s.lists = append(s.lists[:i], s.lists[i+1:]...)
				break
			}
		}
	}
	s.version++
	return true
}

func (s *Set) RemoveDate(v caltime.Value) bool {
	return s.Remove(At(v))
}

// Clear removes every period.
func (s *Set) Clear() {
	if len(s.lists) == 0 {
		return
	}
	s.lists = nil
	s.byKey = make(map[Key]*Collection)
	s.version++
}

func (s *Set) Contains(p Period) bool {
	c, ok := s.byKey[KeyOf(p)]
	if !ok {
		return false
	}
	_, ok = c.index[p]
	return ok
}

// Len is the total number of periods.
func (s *Set) Len() int {
	n := 0
	for _, c := range s.lists {
		n += c.Len()
	}
	return n
}

// Periods returns every period, collection by collection in insertion order.
func (s *Set) Periods() []Period {
	var out []Period
	for _, c := range s.lists {
		out = append(out, c.items...)
	}
	return out
}

// Dates returns the start of every instant period.
func (s *Set) Dates() []caltime.Value {
	var out []caltime.Value
	for _, c := range s.lists {
		if c.key.Tag == Span {
			continue
		}
		for _, p := range c.items {
			out = append(out, p.start)
		}
	}
	return out
}

func (s *Set) Collections() []*Collection {
	return append([]*Collection(nil), s.lists...)
}

// Version increases on every successful mutation.
func (s *Set) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Clone returns an independent copy with the same version.
func (s *Set) Clone() *Set {
	out := NewSet()
	for _, c := range s.lists {
		nc := newCollection(c.key)
		for _, p := range c.items {
			nc.add(p)
		}
		out.byKey[c.key] = nc
		out.lists = append(out.lists, nc)
	}
	out.version = s.version
	return out
}
