package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/turnomed/scheduling-engine/internal/interval"
	redisclient "github.com/turnomed/scheduling-engine/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
)

// Service orchestrates booking, rescheduling and the appointment state
// machine. The invariant it protects: no provider ever holds two active
// (pending/confirmed) appointments with overlapping intervals, even under
// concurrent requests. The check-then-insert sequence runs under a
// per-provider lock and inside a single transaction, so the repository's
// overlap check is authoritative at commit time.
type Service struct {
	repo      Repository
	providers ProviderDirectory
	patients  PatientDirectory
	calendar  *Calendar
	locker    Locker
	clock     Clock
	reminders ReminderScheduler
	loc       *time.Location
	log       zerolog.Logger
}

func NewService(
	repo Repository,
	providers ProviderDirectory,
	patients PatientDirectory,
	calendar *Calendar,
	locker Locker,
	clock Clock,
	reminders ReminderScheduler,
	loc *time.Location,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		providers: providers,
		patients:  patients,
		calendar:  calendar,
		locker:    locker,
		clock:     clock,
		reminders: reminders,
		loc:       loc,
		log:       log,
	}
}

// Book reserves [start, start+duration) with the provider for the patient.
// All validation runs before any write; the final overlap check happens
// inside the same transaction as the insert, under the provider lock, so
// two concurrent overlapping books yield exactly one success and one
// ErrOverlap.
func (s *Service) Book(ctx context.Context, providerID, patientID, specialtyID uuid.UUID, start time.Time, durationMinutes int) (*Appointment, error) {
	if err := s.validateRequest(ctx, providerID, specialtyID, start, durationMinutes); err != nil {
		return nil, err
	}

	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	var created *Appointment
	err = s.withProviderLock(ctx, providerID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			conflict, err := tx.HasOverlap(lockCtx, providerID, start, end, uuid.Nil)
			if err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if conflict {
				return ErrOverlap
			}

			appt, err := tx.CreateAppointment(lockCtx, Appointment{
				ProviderID:      providerID,
				PatientID:       patientID,
				SpecialtyID:     specialtyID,
				StartsAt:        start,
				DurationMinutes: durationMinutes,
				Status:          StatusPending,
			})
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}

			created = appt
			s.logEvent(lockCtx, tx, appt.ID, EventAppointmentBooked, map[string]any{
				"provider_id": providerID.String(),
				"patient_id":  patientID.String(),
				"starts_at":   start,
				"minutes":     durationMinutes,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.reminders.OnBooked(ctx, created); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", created.ID).Msg("schedule reminder failed")
	}

	return created, nil
}

// Reschedule moves an appointment to a new interval. Validation matches
// Book, except the overlap check ignores the appointment's own current
// interval. A confirmed appointment drops back to pending and needs
// re-confirmation.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, newDurationMinutes int) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.IsActive() {
		return nil, ErrInvalidTransition
	}

	if err := s.validateRequest(ctx, appt.ProviderID, appt.SpecialtyID, newStart, newDurationMinutes); err != nil {
		return nil, err
	}

	newEnd := newStart.Add(time.Duration(newDurationMinutes) * time.Minute)

	var updated *Appointment
	err = s.withProviderLock(ctx, appt.ProviderID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			conflict, err := tx.HasOverlap(lockCtx, appt.ProviderID, newStart, newEnd, appt.ID)
			if err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if conflict {
				return ErrOverlap
			}

			moved, err := tx.UpdateAppointmentInterval(lockCtx, appt.ID, newStart, newDurationMinutes, appt.Status, StatusPending)
			if err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					// A concurrent transition changed the status since our
					// read; a terminal appointment must stay terminal.
					return ErrInvalidTransition
				}
				return fmt.Errorf("update appointment interval: %w", err)
			}

			updated = moved
			s.logEvent(lockCtx, tx, appt.ID, EventAppointmentRescheduled, map[string]any{
				"from":    appt.StartsAt,
				"to":      newStart,
				"minutes": newDurationMinutes,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.reminders.OnCancelled(ctx, appt.ID); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("void reminder failed")
	}
	if err := s.reminders.OnBooked(ctx, updated); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", appt.ID).Msg("schedule reminder failed")
	}

	return updated, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, EventAppointmentConfirmed, nil)
}

// Cancel releases the appointment's interval. Only pending or confirmed
// appointments with a future start may be cancelled; past ones are closed
// by attendance recording instead.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	guard := func(a *Appointment) error {
		if !a.StartsAt.After(s.clock.Now()) {
			return ErrInvalidTransition
		}
		return nil
	}

	cancelled, err := s.transition(ctx, id, StatusCancelled, EventAppointmentCancelled, guard)
	if err != nil {
		return nil, err
	}

	if err := s.reminders.OnCancelled(ctx, id); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", id).Msg("void reminder failed")
	}

	return cancelled, nil
}

// Complete records attendance for a confirmed appointment whose start has
// passed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, EventAppointmentCompleted, s.mustHaveStarted)
}

// MarkNoShow records non-attendance for a confirmed appointment whose
// start has passed.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, EventAppointmentNoShow, s.mustHaveStarted)
}

// Get returns an appointment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

// withProviderLock delegates to the locker and folds its lock-contention
// sentinel into the service's own taxonomy so callers never depend on the
// lock implementation.
func (s *Service) withProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithProviderLock(ctx, providerID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrProviderBusy
	}
	return err
}

func (s *Service) mustHaveStarted(a *Appointment) error {
	if a.StartsAt.After(s.clock.Now()) {
		return ErrInvalidTransition
	}
	return nil
}

// transition applies a state-machine move. The status update is
// conditional on the current status, so a concurrent transition loses
// cleanly instead of overwriting.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, eventType string, guard func(*Appointment) error) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if !appt.Status.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}
	if guard != nil {
		if err := guard(appt); err != nil {
			return nil, err
		}
	}

	var updated *Appointment
	err = s.repo.InTx(ctx, func(tx Repository) error {
		moved, err := tx.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Row existed a moment ago; its status changed underneath us.
				return ErrInvalidTransition
			}
			return fmt.Errorf("update appointment status: %w", err)
		}

		updated = moved
		s.logEvent(ctx, tx, appt.ID, eventType, map[string]any{
			"from": string(appt.Status),
			"to":   string(to),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// validateRequest runs every read-only check shared by Book and
// Reschedule: input sanity, past-date, provider existence, specialty
// coverage, availability window containment and blackouts.
func (s *Service) validateRequest(ctx context.Context, providerID, specialtyID uuid.UUID, start time.Time, durationMinutes int) error {
	if durationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if start.Before(s.clock.Now()) {
		return ErrPastDate
	}

	ok, err := s.providers.Exists(ctx, providerID)
	if err != nil {
		return fmt.Errorf("check provider: %w", err)
	}
	if !ok {
		return ErrProviderNotFound
	}

	offers, err := s.providers.OffersSpecialty(ctx, providerID, specialtyID)
	if err != nil {
		return fmt.Errorf("check specialty: %w", err)
	}
	if !offers {
		return ErrSpecialtyNotOffered
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	requested := interval.Span{Start: start, End: end}

	windows, err := s.calendar.DayWindows(ctx, providerID, start.In(s.loc))
	if err != nil {
		return err
	}
	inWindow := false
	for _, w := range windows {
		if w.Contains(requested) {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return ErrOutsideAvailability
	}

	blocked, err := s.calendar.IsBlackedOut(ctx, providerID, start, end)
	if err != nil {
		return err
	}
	if blocked {
		return ErrBlackout
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, repo Repository, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Stringer("appointment_id", appointmentID).Msg("insert event log")
	}
}
