package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danteprogrammer/clinica-core/internal/db"
)

var specialties = []string{
	"Medicina General",
	"Cardiología",
	"Dermatología",
	"Pediatría",
	"Traumatología",
	"Ginecología",
	"Oftalmología",
	"Neurología",
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

	if err := seedTariffs(context.Background(), pool); err != nil {
		log.Fatalf("seed tariffs: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, 40); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedTariffs(ctx context.Context, pool *pgxpool.Pool) error {
	log.Printf("seeding %d tariffs", len(specialties))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, specialty := range specialties {
		// Consultation prices between S/ 50.00 and S/ 250.00, IGV included.
		cents := int64(gofakeit.Number(10, 50)) * 500

		_, err := tx.Exec(ctx, `
			INSERT INTO tariffs (id, specialty, amount_cents, active, updated_at)
			VALUES ($1, $2, $3, true, now())
			ON CONFLICT (specialty) DO UPDATE SET amount_cents = EXCLUDED.amount_cents, updated_at = now()
		`, uuid.New(), specialty, cents)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, full_name, specialty, active, created_at, updated_at)
			VALUES ($1, $2, $3, true, now(), now())
		`, id, name, specialty)
		if err != nil {
			return err
		}

		// Weekday mornings 08:00-13:00 and afternoons 15:00-19:00,
		// 30-minute slots.
		for weekday := 1; weekday <= 5; weekday++ {
			for _, r := range [][2]int{{8 * 60, 13 * 60}, {15 * 60, 19 * 60}} {
				_, err := tx.Exec(ctx, `
					INSERT INTO schedule_blocks (id, doctor_id, weekday, start_minute, end_minute, slot_minutes, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, 30, now(), now())
				`, uuid.New(), id, weekday, r[0], r[1])
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
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
			id := uuid.New()
			name := gofakeit.Name()
			document := gofakeit.Numerify("########")
			hasCover := gofakeit.Bool()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, full_name, document, has_cover, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, document, hasCover)
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
