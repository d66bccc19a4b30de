package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/clinic-ops/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dsn, db.Options{})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clinicIDs, err := seedClinics(context.Background(), pool, 12)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, clinicIDs, 8); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedUnits(context.Background(), pool, clinicIDs, 4); err != nil {
		log.Fatalf("seed units: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		lat := gofakeit.Float64Range(10.3, 11.2)
		lon := gofakeit.Float64Range(106.2, 107.1)

		_, err := pool.Exec(ctx, `
			INSERT INTO clinics (id, name, lat, lon, emergency_enabled, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
		`, id, gofakeit.Company()+" Clinic", lat, lon, i%3 != 0)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, perClinic int) error {
	log.Printf("seeding %d doctors per clinic", perClinic)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Emergency Medicine",
	}

	for _, clinicID := range clinics {
		for i := 0; i < perClinic; i++ {
			specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
			approval := "approved"
			if gofakeit.Number(0, 9) == 0 {
				approval = "pending"
			}

			_, err := pool.Exec(ctx, `
				INSERT INTO doctors (id, clinic_id, name, specialty, approval_status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, uuid.New(), clinicID, "Dr. "+gofakeit.Name(), specialty, approval)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func seedUnits(ctx context.Context, pool *pgxpool.Pool, clinics []uuid.UUID, perClinic int) error {
	log.Printf("seeding %d units per clinic", perClinic)

	capabilities := []string{"standard", "standard", "icu", "advanced"}

	for _, clinicID := range clinics {
		for i := 0; i < perClinic; i++ {
			var lat, lon *float64
			if gofakeit.Number(0, 4) != 0 {
				la := gofakeit.Float64Range(10.3, 11.2)
				lo := gofakeit.Float64Range(106.2, 107.1)
				lat, lon = &la, &lo
			}

			_, err := pool.Exec(ctx, `
				INSERT INTO dispatch_units (id, clinic_id, callsign, status, lat, lon, capability, idle_since, created_at, updated_at)
				VALUES ($1, $2, $3, 'available', $4, $5, $6, now(), now(), now())
			`, uuid.New(), clinicID, gofakeit.LetterN(2)+"-"+gofakeit.DigitN(3), lat, lon, capabilities[i%len(capabilities)])
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.Name(), &email)
		if err != nil {
			return err
		}
	}
	return nil
}
