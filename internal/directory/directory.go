// Package directory exposes the provider and patient registries to the
// scheduling core. The core only ever needs existence and specialty
// checks; full CRUD on these entities lives outside this service.
package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) Exists(ctx context.Context, providerID uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)
	`, providerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check provider exists: %w", err)
	}
	return exists, nil
}

func (d *PgDirectory) OffersSpecialty(ctx context.Context, providerID, specialtyID uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_specialties
			WHERE provider_id = $1 AND specialty_id = $2
		)
	`, providerID, specialtyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check provider specialty: %w", err)
	}
	return exists, nil
}

// PgPatients answers patient existence checks.
type PgPatients struct {
	pool *pgxpool.Pool
}

func NewPgPatients(pool *pgxpool.Pool) *PgPatients {
	return &PgPatients{pool: pool}
}

func (d *PgPatients) Exists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)
	`, patientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient exists: %w", err)
	}
	return exists, nil
}
