package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrInvalidDuration     = errors.New("duration must be positive")
	ErrPastDate            = errors.New("requested time is in the past")
	ErrSpecialtyNotOffered = errors.New("provider does not offer this specialty")
	ErrOutsideAvailability = errors.New("requested interval is outside the provider's availability")
	ErrBlackout            = errors.New("requested interval falls inside a blackout period")
	ErrOverlap             = errors.New("requested interval overlaps another active appointment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrProviderBusy        = errors.New("provider agenda is busy, please retry")
)

// Repository contains all DB interactions needed by the calendar, slot
// generator and booking service. Each implementation is bound either to a
// pool or to a single transaction; InTx runs fn against a tx-bound
// repository with guaranteed rollback unless fn returns nil.
type Repository interface {
	// Availability reads
	WindowsFor(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]WeeklyWindow, error)
	BlackoutsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlackoutPeriod, error)
	BlackoutOverlaps(ctx context.Context, providerID uuid.UUID, start, end time.Time) (bool, error)

	// Booking ledger
	ActiveAppointmentsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)
	// HasOverlap reports whether any pending/confirmed appointment of the
	// provider overlaps [start, end). Pass uuid.Nil as excludeID unless
	// validating a reschedule of an existing appointment.
	HasOverlap(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error)

	// Appointment rows
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	// UpdateAppointmentStatus transitions from -> to and fails with
	// ErrAppointmentNotFound when no row matches id+from, which makes the
	// update safe against concurrent transitions.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// UpdateAppointmentInterval moves the appointment to a new interval and
	// status, conditional on the current status matching from. Like
	// UpdateAppointmentStatus it fails with ErrAppointmentNotFound when no
	// row matches id+from, so a concurrent transition cannot be overwritten.
	UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int, from, to AppointmentStatus) (*Appointment, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev EventLog) error

	InTx(ctx context.Context, fn func(Repository) error) error
}

// ProviderDirectory is the external provider registry; the core only ever
// asks for existence and specialty coverage.
type ProviderDirectory interface {
	Exists(ctx context.Context, providerID uuid.UUID) (bool, error)
	OffersSpecialty(ctx context.Context, providerID, specialtyID uuid.UUID) (bool, error)
}

// PatientDirectory is the external patient registry.
type PatientDirectory interface {
	Exists(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// ReminderScheduler receives booking lifecycle notifications so a
// collaborator can schedule or void reminders. Failures here never abort
// a booking.
type ReminderScheduler interface {
	OnBooked(ctx context.Context, a *Appointment) error
	OnCancelled(ctx context.Context, appointmentID uuid.UUID) error
}

// Locker serializes the check-then-write sequence per provider. Lock
// acquisition may wait; callers on different providers never block one
// another.
type Locker interface {
	WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error
}
