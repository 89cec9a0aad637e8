package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/turnomed/scheduling-engine/internal/interval"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
)

// IsActive reports whether an appointment in this status occupies its
// interval for overlap checks.
func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal reports whether the status admits no further transitions.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// CanTransitionTo reports whether the state machine allows moving from s
// to next. Pending may confirm or cancel; confirmed may complete, no-show
// or cancel; terminal states admit nothing.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusNoShow || next == StatusCancelled
	default:
		return false
	}
}

// WeeklyWindow is one recurring availability window of a provider.
// Times are minutes since midnight in the scheduling location; windows
// never span midnight. Several windows may exist for the same weekday and
// may overlap in storage; they are merged before slot generation.
type WeeklyWindow struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	SlotMinutes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Range returns the window as a minute range within its day.
func (w WeeklyWindow) Range() interval.Range {
	return interval.Range{From: w.StartMinute, To: w.EndMinute}
}

// BlackoutPeriod blocks a provider's agenda regardless of the recurring
// schedule: vacations, trainings, partial-day absences. All-day blackouts
// are normalized to [midnight, next midnight) at write time.
type BlackoutPeriod struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	StartsAt   time.Time
	EndsAt     time.Time
	AllDay     bool
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Appointment struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	PatientID       uuid.UUID
	SpecialtyID     uuid.UUID
	StartsAt        time.Time
	DurationMinutes int
	Status          AppointmentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsAt returns the exclusive end of the appointment's interval.
func (a Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Span returns the half-open interval occupied by the appointment.
func (a Appointment) Span() interval.Span {
	return interval.Span{Start: a.StartsAt, End: a.EndsAt()}
}

// EventLog is an audit record appended on every appointment transition.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
