/*
Package caltime provides the date/time value used throughout librecur.

A Value is a calendar wall clock reading that is explicitly one of three kinds:

  - KindFloating: no zone at all, never adjusted for daylight saving
  - KindUTC: a wall clock on the UTC timeline
  - KindZoned: a wall clock in a named zone (an IANA id, a Windows id or a calendar-defined TZID)

and has either date granularity (a whole calendar day) or date-time granularity.

Values are comparable structs, so == is structural equality and a Value can be used as a map key.
Two values that denote the same instant in different zones are not equal:

	a := caltime.UTCTime(2024, time.March, 1, 9, 0, 0)
	b := caltime.Zoned("Europe/Berlin", 2024, time.March, 1, 10, 0, 0)
	a == b                 // false
	a.Compare(r, b) == 0   // true, same instant

# Zones

The zone database is not part of this package. Offsets are obtained through the ZoneProvider
interface, which either answers or reports that it does not know the zone at that instant:

	type ZoneProvider interface {
		OffsetAt(zone string, instant time.Time) (Offset, bool)
	}

TZDB answers from the IANA database shipped with Go, ZoneTable answers from explicit interval
tables (for example built from VTIMEZONE components) and Chain combines several providers.

Operations that need offsets take a *Resolver, which wraps a provider together with the policy
used to place floating values on the UTC timeline:

	r := caltime.NewResolver(caltime.NewTZDB(), caltime.WithFloatingZone("Europe/Paris"))
	end, err := start.Add(r, caltime.Exact(4*time.Hour))
*/
package caltime
