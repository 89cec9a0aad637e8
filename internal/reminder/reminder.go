// Package reminder schedules appointment reminders as rows polled by a
// worker. Delivery itself (mail, SMS) is out of scope; DispatchDue only
// marks rows sent and logs them, leaving the channel to a downstream
// consumer of the audit stream.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/turnomed/scheduling-engine/internal/schedule"
)

// querier is the slice of pgxpool.Pool the scheduler needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Scheduler struct {
	db    querier
	lead  time.Duration
	clock schedule.Clock
	log   zerolog.Logger
}

// NewScheduler creates a reminder scheduler that fires lead before each
// appointment start.
func NewScheduler(db querier, lead time.Duration, clock schedule.Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{db: db, lead: lead, clock: clock, log: log}
}

// OnBooked schedules a reminder for the appointment. Appointments closer
// than the lead time get a reminder due immediately.
func (s *Scheduler) OnBooked(ctx context.Context, a *schedule.Appointment) error {
	remindAt := a.StartsAt.Add(-s.lead)
	if now := s.clock.Now(); remindAt.Before(now) {
		remindAt = now
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (id, appointment_id, remind_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', now(), now())
	`, uuid.New(), a.ID, remindAt)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}

	return nil
}

// OnCancelled voids all pending reminders of the appointment.
func (s *Scheduler) OnCancelled(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE reminders
		SET status = 'voided',
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return fmt.Errorf("void reminders: %w", err)
	}

	return nil
}

// DispatchDue marks every due pending reminder as sent and returns how
// many were dispatched. Called periodically by the reminder worker.
func (s *Scheduler) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE reminders
		SET status = 'sent',
		    updated_at = now()
		WHERE status = 'pending'
		  AND remind_at <= $1
		RETURNING id, appointment_id, remind_at
	`, now)
	if err != nil {
		return 0, fmt.Errorf("dispatch due reminders: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id, appointmentID uuid.UUID
		var remindAt time.Time
		if err := rows.Scan(&id, &appointmentID, &remindAt); err != nil {
			return count, err
		}

		s.log.Info().
			Stringer("reminder_id", id).
			Stringer("appointment_id", appointmentID).
			Time("remind_at", remindAt).
			Msg("reminder due")
		count++
	}

	return count, rows.Err()
}
