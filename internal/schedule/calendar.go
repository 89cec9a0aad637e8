package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turnomed/scheduling-engine/internal/interval"
)

// Calendar answers whether an instant range is inside a provider's
// recurring weekly schedule and outside every blackout period. Absence of
// data means "no availability", never an error; rejecting unknown
// providers is the directory's job upstream.
type Calendar struct {
	repo Repository
	loc  *time.Location
}

func NewCalendar(repo Repository, loc *time.Location) *Calendar {
	return &Calendar{repo: repo, loc: loc}
}

// WindowsFor returns the provider's merged availability for a weekday as
// disjoint minute-of-day ranges sorted by start. Overlapping or adjacent
// stored windows collapse into one so the overlap is never double-offered.
func (c *Calendar) WindowsFor(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]interval.Range, error) {
	windows, err := c.repo.WindowsFor(ctx, providerID, weekday)
	if err != nil {
		return nil, fmt.Errorf("load weekly windows: %w", err)
	}

	ranges := make([]interval.Range, 0, len(windows))
	for _, w := range windows {
		ranges = append(ranges, w.Range())
	}

	return interval.MergeRanges(ranges), nil
}

// DayWindows anchors the merged windows of day's weekday to concrete
// instants in the scheduling location.
func (c *Calendar) DayWindows(ctx context.Context, providerID uuid.UUID, day time.Time) ([]interval.Span, error) {
	midnight := c.Midnight(day)

	ranges, err := c.WindowsFor(ctx, providerID, midnight.Weekday())
	if err != nil {
		return nil, err
	}

	spans := make([]interval.Span, 0, len(ranges))
	for _, r := range ranges {
		spans = append(spans, interval.Span{
			Start: midnight.Add(time.Duration(r.From) * time.Minute),
			End:   midnight.Add(time.Duration(r.To) * time.Minute),
		})
	}

	return spans, nil
}

// IsBlackedOut reports whether any blackout of the provider overlaps
// [start, end). All-day blackouts are stored expanded to full-day bounds,
// so one overlap predicate covers both shapes.
func (c *Calendar) IsBlackedOut(ctx context.Context, providerID uuid.UUID, start, end time.Time) (bool, error) {
	blocked, err := c.repo.BlackoutOverlaps(ctx, providerID, start, end)
	if err != nil {
		return false, fmt.Errorf("check blackouts: %w", err)
	}
	return blocked, nil
}

// BlackoutSpansBetween returns the provider's blackout intervals clipped
// to [from, to) as spans, for bulk filtering during slot generation.
func (c *Calendar) BlackoutSpansBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]interval.Span, error) {
	blackouts, err := c.repo.BlackoutsBetween(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}

	spans := make([]interval.Span, 0, len(blackouts))
	for _, b := range blackouts {
		spans = append(spans, interval.Span{Start: b.StartsAt, End: b.EndsAt})
	}

	return spans, nil
}

// Midnight returns the start of day's calendar date in the scheduling
// location.
func (c *Calendar) Midnight(day time.Time) time.Time {
	y, m, d := day.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}
