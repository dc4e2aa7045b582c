package recurrence

import (
	"time"

	"github.com/cyp0633/librecur/caltime"
	"github.com/cyp0633/librecur/period"
)

// Range is the RANGE of a RECURRENCE-ID.
type Range int

const (
	ThisInstance Range = iota
	ThisAndFuture
)

func (r Range) String() string {
	if r == ThisAndFuture {
		return "THISANDFUTURE"
	}
	return "THISINSTANCE"
}

// Override replaces the instance that originally started at RecurrenceID. With
// ThisAndFuture every later instance is moved by the same offset and takes the override's
// duration.
type Override struct {
	RecurrenceID caltime.Value
	Range        Range
	Period       period.Period
	Source       any
}

// OverrideLookup finds the overrides associated with an entity identity.
type OverrideLookup interface {
	Overrides(entityID string) []Override
}

// MapOverrides is an in-memory OverrideLookup.
type MapOverrides map[string][]Override

func (m MapOverrides) Overrides(entityID string) []Override { return m[entityID] }

// Add associates o with entityID.
func (m MapOverrides) Add(entityID string, o Override) {
	m[entityID] = append(m[entityID], o)
}

// Occurrence is one concrete instance of an entity.
type Occurrence struct {
	Source any
	Period period.Period
	// RecurrenceID is the instance's original start before any override.
	RecurrenceID caltime.Value
	// Override is set when the instance was replaced or moved by an override.
	Override *Override
}

func (o Occurrence) Start() caltime.Value { return o.Period.Start() }

// instance is a pre-override expansion result as kept in the cache.
type instance struct {
	period period.Period
	start  time.Time
	end    time.Time
}
