// Seeds a local database with a demo doctor, a weekly availability
// template, and a couple of appointments. Development convenience only.
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	doctorID := uuid.New()
	_, err = pool.Exec(ctx, `
		INSERT INTO doctors (id, name, specialty, average_consultation_minutes,
			allow_walk_ins, allow_online_booking, auto_call_next, no_show_timeout_minutes)
		VALUES ($1, 'Dr. Demo Silva', 'general', 20, TRUE, TRUE, FALSE, 15)`,
		doctorID)
	if err != nil {
		log.Fatalf("seed doctor: %v", err)
	}

	// Mon-Fri 09:00-17:00 with a 12:30-13:30 lunch break.
	for wd := time.Monday; wd <= time.Friday; wd++ {
		_, err = pool.Exec(ctx, `
			INSERT INTO availability_templates (id, doctor_id, weekday, start_minute,
				end_minute, has_break, break_start_minute, break_end_minute)
			VALUES ($1, $2, $3, 540, 1020, TRUE, 750, 810)`,
			uuid.New(), doctorID, int(wd))
		if err != nil {
			log.Fatalf("seed template: %v", err)
		}
	}

	// One confirmed appointment tomorrow at 10:00 UTC.
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	startsAt := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, time.UTC)
	_, err = pool.Exec(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, starts_at, duration_minutes, status, urgent)
		VALUES ($1, $2, $3, $4, 30, 'CONFIRMED', FALSE)`,
		uuid.New(), doctorID, uuid.New(), startsAt)
	if err != nil {
		log.Fatalf("seed appointment: %v", err)
	}

	log.Printf("seeded doctor %s with weekday availability and one appointment", doctorID)
}
