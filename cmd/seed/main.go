package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnomed/scheduling-engine/internal/db"
)

var specialtyNames = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	specialtyIDs, err := seedSpecialties(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed specialties: %v", err)
	}
	if err := seedProviders(context.Background(), pool, 100, specialtyIDs); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 9000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	log.Printf("seeding %d specialties", len(specialtyNames))

	ids := make([]uuid.UUID, 0, len(specialtyNames))
	for _, name := range specialtyNames {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO specialties (id, name, created_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO NOTHING
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	log.Println("specialties seeded")
	return ids, nil
}

// seedProviders creates providers, links each to one or two specialties
// and gives each a weekday morning plus a part-week afternoon schedule.
func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int, specialtyIDs []uuid.UUID) error {
	log.Printf("seeding %d providers", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, name, license_no, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, gofakeit.Numerify("MP-#####"))
		if err != nil {
			return err
		}

		nSpecs := gofakeit.Number(1, 2)
		for s := 0; s < nSpecs; s++ {
			specID := specialtyIDs[gofakeit.Number(0, len(specialtyIDs)-1)]
			_, err := tx.Exec(ctx, `
				INSERT INTO provider_specialties (provider_id, specialty_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, id, specID)
			if err != nil {
				return err
			}
		}

		slotMinutes := []int{15, 20, 30}[gofakeit.Number(0, 2)]

		// Mornings Monday through Friday
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO weekly_windows (id, provider_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, uuid.New(), id, weekday, 9*60, 12*60, slotMinutes)
			if err != nil {
				return err
			}
		}

		// Afternoons on two random weekdays
		for s := 0; s < 2; s++ {
			weekday := gofakeit.Number(1, 5)
			_, err := tx.Exec(ctx, `
				INSERT INTO weekly_windows (id, provider_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, uuid.New(), id, weekday, 14*60, 18*60, slotMinutes)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("providers seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
