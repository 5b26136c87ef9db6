package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, chat_id, start_time, duration_minutes, location, specific_location,
	status, teacher_ready, student_ready, both_completed, notes, cancellation_reason,
	reminder_offset_minutes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ChatID,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Location,
		&a.SpecificLocation,
		&a.Status,
		&a.TeacherReady,
		&a.StudentReady,
		&a.BothCompleted,
		&a.Notes,
		&a.CancellationReason,
		&a.ReminderOffsetMinutes,
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

func (r *PgRepository) collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// casMiss maps a zero-row conditional update to the right sentinel: the
// record is either gone or its status moved under us.
func (r *PgRepository) casMiss(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAppointmentNotFound
	}
	if err != nil {
		return err
	}
	return ErrStatusChanged
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, chat_id, start_time, duration_minutes, location, specific_location,
			status, notes, reminder_offset_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.ChatID, a.StartTime, a.DurationMinutes, a.Location, a.SpecificLocation,
		a.Status, a.Notes, a.ReminderOffsetMinutes)

	saved, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	*a = *saved
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateDetails(ctx context.Context, a *Appointment, expected Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    duration_minutes = $3,
		    location = $4,
		    specific_location = $5,
		    notes = $6,
		    reminder_offset_minutes = $7,
		    updated_at = now()
		WHERE id = $1
		  AND status = $8
		RETURNING `+appointmentColumns+`
	`, a.ID, a.StartTime, a.DurationMinutes, a.Location, a.SpecificLocation,
		a.Notes, a.ReminderOffsetMinutes, expected)

	saved, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.casMiss(ctx, a.ID)
	}
	return saved, err
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	saved, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.casMiss(ctx, id)
	}
	return saved, err
}

func (r *PgRepository) CancelWithReason(ctx context.Context, id uuid.UUID, from Status, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancellation_reason = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, reason, from)

	saved, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.casMiss(ctx, id)
	}
	return saved, err
}

func (r *PgRepository) RecordReadiness(ctx context.Context, id uuid.UUID, party Party) (*ReadinessUpdate, error) {
	// One conditional statement sets the flag and completes the
	// appointment when both flags end up true, so the second confirmer
	// cannot race the first.
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET teacher_ready = teacher_ready OR $2,
		    student_ready = student_ready OR $3,
		    both_completed = (teacher_ready OR $2) AND (student_ready OR $3),
		    status = CASE
		        WHEN (teacher_ready OR $2) AND (student_ready OR $3) THEN 'completed'
		        ELSE status
		    END,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'waiting_to_complete'
		RETURNING `+appointmentColumns+`
	`, id, party == PartyTeacher, party == PartyStudent)

	saved, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.casMiss(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	return &ReadinessUpdate{
		Appointment: saved,
		Completed:   saved.Status == StatusCompleted,
	}, nil
}

func (r *PgRepository) ListActiveByChats(ctx context.Context, chatIDs []uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE chat_id = ANY($1)
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_time
	`, chatIDs)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *PgRepository) FindActiveOnDay(ctx context.Context, chatID uuid.UUID, day string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE chat_id = $1
		  AND date(start_time AT TIME ZONE 'UTC') = $2::date
		  AND status IN ('pending', 'confirmed', 'waiting_to_complete')
		LIMIT 1
	`, chatID, day)
	return scanAppointment(row)
}

func (r *PgRepository) ListExpiredConfirmed(ctx context.Context, chatID uuid.UUID, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE chat_id = $1
		  AND status = 'confirmed'
		  AND start_time + make_interval(mins => duration_minutes) <= $2
	`, chatID, now)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *PgRepository) ListByChats(ctx context.Context, chatIDs []uuid.UUID, f ListFilter) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE chat_id = ANY($1)`
	args := []any{chatIDs}

	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND start_time <= $%d", len(args))
	}

	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY start_time LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// PgChatDirectory reads the minimal chats table owned by the chat
// collaborator.
type PgChatDirectory struct {
	pool *pgxpool.Pool
}

func NewPgChatDirectory(pool *pgxpool.Pool) *PgChatDirectory {
	return &PgChatDirectory{pool: pool}
}

func (d *PgChatDirectory) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	var c Chat
	var a, b uuid.UUID

	err := d.pool.QueryRow(ctx, `
		SELECT id, participant_a, participant_b, teacher_id, active
		FROM chats
		WHERE id = $1
	`, id).Scan(&c.ID, &a, &b, &c.TeacherID, &c.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	c.Participants = []uuid.UUID{a, b}
	return &c, nil
}

func (d *PgChatDirectory) ListChatIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id
		FROM chats
		WHERE participant_a = $1 OR participant_b = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
