package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turnomed/scheduling-engine/internal/interval"
)

// In-memory test doubles for the repository and collaborators. The fake
// locker provides the same per-provider mutual exclusion the Redis lock
// gives in production, which is what makes the concurrency tests honest.

type windowKey struct {
	provider uuid.UUID
	weekday  time.Weekday
}

type fakeRepo struct {
	mu           sync.Mutex
	windows      map[windowKey][]WeeklyWindow
	blackouts    []BlackoutPeriod
	appointments map[uuid.UUID]*Appointment
	events       []EventLog

	// beforeTx, when set, runs once right before the next InTx body.
	// Tests use it to interleave a competing write between a service
	// method's initial read and its transaction.
	beforeTx func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		windows:      make(map[windowKey][]WeeklyWindow),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (r *fakeRepo) addWindow(providerID uuid.UUID, weekday time.Weekday, startMinute, endMinute int) {
	r.addWindowSlot(providerID, weekday, startMinute, endMinute, 30)
}

func (r *fakeRepo) addWindowSlot(providerID uuid.UUID, weekday time.Weekday, startMinute, endMinute, slotMinutes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := windowKey{providerID, weekday}
	r.windows[key] = append(r.windows[key], WeeklyWindow{
		ID:          uuid.New(),
		ProviderID:  providerID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		SlotMinutes: slotMinutes,
	})
}

func (r *fakeRepo) addBlackout(providerID uuid.UUID, start, end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blackouts = append(r.blackouts, BlackoutPeriod{
		ID:         uuid.New(),
		ProviderID: providerID,
		StartsAt:   start,
		EndsAt:     end,
	})
}

func (r *fakeRepo) WindowsFor(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]WeeklyWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WeeklyWindow(nil), r.windows[windowKey{providerID, weekday}]...), nil
}

func (r *fakeRepo) BlackoutsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlackoutPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []BlackoutPeriod
	for _, b := range r.blackouts {
		if b.ProviderID == providerID && interval.Overlaps(b.StartsAt, b.EndsAt, from, to) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (r *fakeRepo) BlackoutOverlaps(ctx context.Context, providerID uuid.UUID, start, end time.Time) (bool, error) {
	blackouts, _ := r.BlackoutsBetween(ctx, providerID, start, end)
	return len(blackouts) > 0, nil
}

func (r *fakeRepo) ActiveAppointmentsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Appointment
	for _, a := range r.appointments {
		if a.ProviderID == providerID && a.Status.IsActive() && interval.Overlaps(a.StartsAt, a.EndsAt(), from, to) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *fakeRepo) HasOverlap(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.ProviderID != providerID || !a.Status.IsActive() || a.ID == excludeID {
			continue
		}
		if interval.Overlaps(a.StartsAt, a.EndsAt(), start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appointments[a.ID] = &a
	cp := a
	return &cp, nil
}

func (r *fakeRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.StartsAt = start
	a.DurationMinutes = durationMinutes
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	hook := r.beforeTx
	r.beforeTx = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	return fn(r)
}

func (r *fakeRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.EventType
	}
	return types
}

type fakeProviders struct {
	existing    map[uuid.UUID]bool
	specialties map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeProviders() *fakeProviders {
	return &fakeProviders{
		existing:    make(map[uuid.UUID]bool),
		specialties: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (p *fakeProviders) add(providerID uuid.UUID, specialtyIDs ...uuid.UUID) {
	p.existing[providerID] = true
	specs := make(map[uuid.UUID]bool, len(specialtyIDs))
	for _, id := range specialtyIDs {
		specs[id] = true
	}
	p.specialties[providerID] = specs
}

func (p *fakeProviders) Exists(ctx context.Context, providerID uuid.UUID) (bool, error) {
	return p.existing[providerID], nil
}

func (p *fakeProviders) OffersSpecialty(ctx context.Context, providerID, specialtyID uuid.UUID) (bool, error) {
	return p.specialties[providerID][specialtyID], nil
}

type fakePatients struct {
	existing map[uuid.UUID]bool
}

func (p *fakePatients) Exists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return p.existing[patientID], nil
}

type fakeLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *fakeLocker) WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[providerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[providerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type fakeReminders struct {
	mu        sync.Mutex
	booked    []uuid.UUID
	cancelled []uuid.UUID
}

func (f *fakeReminders) OnBooked(ctx context.Context, a *Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.booked = append(f.booked, a.ID)
	return nil
}

func (f *fakeReminders) OnCancelled(ctx context.Context, appointmentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, appointmentID)
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
