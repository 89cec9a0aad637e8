// Package interval provides half-open time interval arithmetic shared by
// the availability calendar and the slot generator. A span [start, end)
// includes its start and excludes its end, so adjacent slots never collide
// at the boundary.
package interval

import (
	"sort"
	"time"
)

// Span is a half-open instant range [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open ranges share any instant.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Overlaps reports whether s and o share any instant.
func (s Span) Overlaps(o Span) bool {
	return Overlaps(s.Start, s.End, o.Start, o.End)
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return !o.Start.Before(s.Start) && !o.End.After(s.End)
}

// Duration returns the length of the span.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Merge normalizes a set of possibly overlapping or adjacent spans into
// disjoint spans sorted by start. The input slice is not modified.
func Merge(spans []Span) []Span {
	if len(spans) <= 1 {
		return append([]Span(nil), spans...)
	}

	sorted := append([]Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start.After(last.End) {
			merged = append(merged, s)
			continue
		}
		if s.End.After(last.End) {
			last.End = s.End
		}
	}

	return merged
}

// Range is a half-open range of minutes within a single day, [From, To).
// Weekly availability windows are stored this way and anchored to a
// concrete date only when a calendar day is materialized.
type Range struct {
	From int
	To   int
}

// Overlaps reports whether two minute ranges share any minute.
func (r Range) Overlaps(o Range) bool {
	return r.From < o.To && o.From < r.To
}

// MergeRanges normalizes minute ranges into disjoint ranges sorted by
// start, merging overlapping and adjacent ones.
func MergeRanges(rs []Range) []Range {
	if len(rs) <= 1 {
		return append([]Range(nil), rs...)
	}

	sorted := append([]Range(nil), rs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	merged := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.From > last.To {
			merged = append(merged, r)
			continue
		}
		if r.To > last.To {
			last.To = r.To
		}
	}

	return merged
}
