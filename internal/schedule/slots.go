package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turnomed/scheduling-engine/internal/interval"
)

// Generator enumerates bookable slot starts for one provider and date.
// Results are recomputed on every call; caching them would go stale the
// moment a concurrent booking lands.
type Generator struct {
	repo     Repository
	calendar *Calendar
	clock    Clock
	loc      *time.Location
}

func NewGenerator(repo Repository, calendar *Calendar, clock Clock, loc *time.Location) *Generator {
	return &Generator{repo: repo, calendar: calendar, clock: clock, loc: loc}
}

// Slots returns the open slot start instants for the provider on day's
// calendar date, ascending. A date before today in the scheduling location
// is a caller error (ErrPastDate); a day the provider does not work yields
// an empty result. Windows spanning midnight are not supported.
func (g *Generator) Slots(ctx context.Context, providerID uuid.UUID, day time.Time, slotLen time.Duration) ([]time.Time, error) {
	if slotLen <= 0 {
		return nil, ErrInvalidDuration
	}

	now := g.clock.Now().In(g.loc)
	dayStart := g.calendar.Midnight(day)
	if dayStart.Before(g.calendar.Midnight(now)) {
		return nil, ErrPastDate
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	windows, err := g.calendar.DayWindows(ctx, providerID, dayStart)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	busy, err := g.busySpans(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	blackouts, err := g.calendar.BlackoutSpansBetween(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var slots []time.Time
	for _, w := range windows {
		for cursor := w.Start; !cursor.Add(slotLen).After(w.End); cursor = cursor.Add(slotLen) {
			candidate := interval.Span{Start: cursor, End: cursor.Add(slotLen)}

			if cursor.Before(now) {
				continue // already elapsed today
			}
			if overlapsAny(candidate, blackouts) || overlapsAny(candidate, busy) {
				continue
			}

			slots = append(slots, cursor)
		}
	}

	return slots, nil
}

// SlotMinutesFor returns the provider's configured slot length for day's
// weekday: the smallest slot_minutes among its windows, or 0 when the
// provider has none that day.
func (g *Generator) SlotMinutesFor(ctx context.Context, providerID uuid.UUID, day time.Time) (int, error) {
	windows, err := g.repo.WindowsFor(ctx, providerID, day.In(g.loc).Weekday())
	if err != nil {
		return 0, fmt.Errorf("load weekly windows: %w", err)
	}

	minutes := 0
	for _, w := range windows {
		if minutes == 0 || w.SlotMinutes < minutes {
			minutes = w.SlotMinutes
		}
	}
	return minutes, nil
}

// Calendar returns the open slots for each of the next days starting
// today, keyed by date in YYYY-MM-DD form. Days without availability are
// omitted. A zero slotLen means each day uses the provider's configured
// slot length for that weekday.
func (g *Generator) Calendar(ctx context.Context, providerID uuid.UUID, days int, slotLen time.Duration) (map[string][]time.Time, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrInvalidDuration)
	}
	if slotLen < 0 {
		return nil, ErrInvalidDuration
	}

	today := g.calendar.Midnight(g.clock.Now())
	result := make(map[string][]time.Time, days)

	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i)

		dayLen := slotLen
		if dayLen == 0 {
			minutes, err := g.SlotMinutesFor(ctx, providerID, day)
			if err != nil {
				return nil, err
			}
			if minutes == 0 {
				continue
			}
			dayLen = time.Duration(minutes) * time.Minute
		}

		slots, err := g.Slots(ctx, providerID, day, dayLen)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			result[day.Format("2006-01-02")] = slots
		}
	}

	return result, nil
}

func (g *Generator) busySpans(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]interval.Span, error) {
	appts, err := g.repo.ActiveAppointmentsBetween(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load active appointments: %w", err)
	}

	spans := make([]interval.Span, 0, len(appts))
	for _, a := range appts {
		spans = append(spans, a.Span())
	}

	return spans, nil
}

func overlapsAny(s interval.Span, others []interval.Span) bool {
	for _, o := range others {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}
