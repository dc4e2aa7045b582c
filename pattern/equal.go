package pattern

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
)

// Equal reports whether p and o describe the same rule. BY lists compare as sets.
func (p *Pattern) Equal(o *Pattern) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.freq == o.freq &&
		p.interval == o.interval &&
		p.count == o.count &&
		p.until == o.until &&
		p.wkst == o.wkst &&
		p.restriction == o.restriction &&
		p.mode == o.mode &&
		slices.Equal(p.bySecond, o.bySecond) &&
		slices.Equal(p.byMinute, o.byMinute) &&
		slices.Equal(p.byHour, o.byHour) &&
		slices.Equal(p.byDay, o.byDay) &&
		slices.Equal(p.byMonthDay, o.byMonthDay) &&
		slices.Equal(p.byYearDay, o.byYearDay) &&
		slices.Equal(p.byWeekNo, o.byWeekNo) &&
		slices.Equal(p.byMonth, o.byMonth) &&
		slices.Equal(p.bySetPos, o.bySetPos)
}

// Canonical is a stable text form covering every field, suitable as a cache key.
func (p *Pattern) Canonical() string {
	var b strings.Builder
	fmt.Fprintf(&b, "F=%d;I=%d;W=%d;R=%d;M=%d", p.freq, p.interval, p.wkst, p.restriction, p.mode)
	if n, ok := p.count.Get(); ok {
		fmt.Fprintf(&b, ";C=%d", n)
	}
	if u, ok := p.until.Get(); ok {
		fmt.Fprintf(&b, ";U=%s/%s", u.Kind(), u)
	}
	writeInts(&b, "S", p.bySecond)
	writeInts(&b, "MI", p.byMinute)
	writeInts(&b, "H", p.byHour)
	if len(p.byDay) > 0 {
		b.WriteString(";D=")
		for i, d := range p.byDay {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(d.String())
		}
	}
	writeInts(&b, "MD", p.byMonthDay)
	writeInts(&b, "YD", p.byYearDay)
	writeInts(&b, "WN", p.byWeekNo)
	writeInts(&b, "MO", p.byMonth)
	writeInts(&b, "SP", p.bySetPos)
	return b.String()
}

// Hash is consistent with Equal.
func (p *Pattern) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(p.Canonical()))
	return h.Sum64()
}

func writeInts(b *strings.Builder, name string, v []int) {
	if len(v) == 0 {
		return
	}
	b.WriteByte(';')
	b.WriteString(name)
	b.WriteByte('=')
	for i, n := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d", n)
	}
}
