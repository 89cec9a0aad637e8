package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting one
// repository serve pool-scoped reads and transaction-scoped writes.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

// InTx runs fn against a repository bound to a single transaction.
// The transaction rolls back on any error or panic and commits only when
// fn returns nil. Nested calls reuse the enclosing transaction.
func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PgRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func scanWindow(row pgx.Row) (*WeeklyWindow, error) {
	var w WeeklyWindow
	var weekday int16

	err := row.Scan(
		&w.ID,
		&w.ProviderID,
		&weekday,
		&w.StartMinute,
		&w.EndMinute,
		&w.SlotMinutes,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Weekday = time.Weekday(weekday)
	return &w, nil
}

func scanBlackout(row pgx.Row) (*BlackoutPeriod, error) {
	var b BlackoutPeriod
	var reason *string

	err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.StartsAt,
		&b.EndsAt,
		&b.AllDay,
		&reason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reason != nil {
		b.Reason = *reason
	}
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.PatientID,
		&a.SpecialtyID,
		&a.StartsAt,
		&a.DurationMinutes,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) WindowsFor(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]WeeklyWindow, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, provider_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at
		FROM weekly_windows
		WHERE provider_id = $1 AND weekday = $2
		ORDER BY start_minute
	`, providerID, int16(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}

	return result, rows.Err()
}

func (r *PgRepository) BlackoutsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlackoutPeriod, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, provider_id, starts_at, ends_at, all_day, reason, created_at, updated_at
		FROM blackout_periods
		WHERE provider_id = $1
		  AND starts_at < $3
		  AND ends_at > $2
		ORDER BY starts_at
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlackoutPeriod
	for rows.Next() {
		b, err := scanBlackout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	return result, rows.Err()
}

func (r *PgRepository) BlackoutOverlaps(ctx context.Context, providerID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blackout_periods
			WHERE provider_id = $1
			  AND starts_at < $3
			  AND ends_at > $2
		)
	`, providerID, start, end).Scan(&exists)
	return exists, err
}

func (r *PgRepository) ActiveAppointmentsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, provider_id, patient_id, specialty_id, starts_at, duration_minutes, status, created_at, updated_at
		FROM appointments
		WHERE provider_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND starts_at < $3
		  AND starts_at + make_interval(mins => duration_minutes) > $2
		ORDER BY starts_at
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) HasOverlap(ctx context.Context, providerID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (bool, error) {
	// uuid.Nil never matches a stored row, so the exclusion clause is a
	// no-op unless a real appointment id is passed.
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND id <> $4
			  AND starts_at < $3
			  AND starts_at + make_interval(mins => duration_minutes) > $2
		)
	`, providerID, start, end, excludeID).Scan(&exists)
	return exists, err
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, provider_id, patient_id, specialty_id, starts_at, duration_minutes, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, provider_id, patient_id, specialty_id, starts_at, duration_minutes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, provider_id, patient_id, specialty_id, starts_at, duration_minutes, status, created_at, updated_at
	`, a.ID, a.ProviderID, a.PatientID, a.SpecialtyID, a.StartsAt, a.DurationMinutes, a.Status)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, provider_id, patient_id, specialty_id, starts_at, duration_minutes, status, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET starts_at = $2,
		    duration_minutes = $3,
		    status = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $5
		RETURNING id, provider_id, patient_id, specialty_id, starts_at, duration_minutes, status, created_at, updated_at
	`, id, start, durationMinutes, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
