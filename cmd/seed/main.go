package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tutorhive/chat-scheduling/internal/db"
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

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	chatIDs, err := seedChats(context.Background(), pool, 200)
	if err != nil {
		log.Fatalf("seed chats: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, chatIDs, 1500); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedChats(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d chats", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		teacher := uuid.New()
		student := uuid.New()
		active := gofakeit.Number(0, 9) > 0

		_, err := tx.Exec(ctx, `
			INSERT INTO chats (id, participant_a, participant_b, teacher_id, active, created_at)
			VALUES ($1, $2, $3, $2, $4, now())
		`, id, teacher, student, active)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("chats seeded")
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, chatIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	const batchSize = 500

	locations := []string{"online", "teacher_place", "student_place", "library", "other"}
	durations := []int{30, 45, 60, 90, 120}

	seenDays := make(map[string]bool)

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
			chatID := chatIDs[gofakeit.Number(0, len(chatIDs)-1)]

			// one active appointment per chat and calendar day
			start := time.Now().UTC().
				AddDate(0, 0, gofakeit.Number(1, 120)).
				Truncate(time.Hour).
				Add(time.Duration(gofakeit.Number(8, 19)) * time.Hour)
			dayKey := chatID.String() + ":" + start.Format("2006-01-02")
			if seenDays[dayKey] {
				continue
			}
			seenDays[dayKey] = true

			status := "pending"
			if gofakeit.Number(0, 2) > 0 {
				status = "confirmed"
			}

			var notes *string
			if gofakeit.Number(0, 3) == 0 {
				n := gofakeit.Sentence(6)
				notes = &n
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (
					id, chat_id, start_time, duration_minutes, location,
					status, teacher_ready, student_ready, both_completed,
					notes, created_at, updated_at
				)
				VALUES ($1, $2, $3, $4, $5, $6, false, false, false, $7, now(), now())
			`,
				uuid.New(), chatID, start,
				durations[gofakeit.Number(0, len(durations)-1)],
				locations[gofakeit.Number(0, len(locations)-1)],
				status, notes)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("appointments seeded: %d/%d", end, count)
	}

	log.Println("appointments seeded")
	return nil
}
