package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a Repository backed by a map, used by tests and
// local tooling. It mirrors the conditional-write semantics of the
// Postgres implementation, including CAS failures.
type InMemoryRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	nextEventID  int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{appointments: make(map[uuid.UUID]*Appointment)}
}

func (r *InMemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	cp := *a
	r.appointments[a.ID] = &cp
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *InMemoryRepository) UpdateDetails(_ context.Context, a *Appointment, expected Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if cur.Status != expected {
		return nil, ErrStatusChanged
	}

	cur.StartTime = a.StartTime
	cur.DurationMinutes = a.DurationMinutes
	cur.Location = a.Location
	cur.SpecificLocation = a.SpecificLocation
	cur.Notes = a.Notes
	cur.ReminderOffsetMinutes = a.ReminderOffsetMinutes
	cur.UpdatedAt = time.Now()

	cp := *cur
	return &cp, nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if cur.Status != from {
		return nil, ErrStatusChanged
	}

	cur.Status = to
	cur.UpdatedAt = time.Now()
	cp := *cur
	return &cp, nil
}

func (r *InMemoryRepository) CancelWithReason(_ context.Context, id uuid.UUID, from Status, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if cur.Status != from {
		return nil, ErrStatusChanged
	}

	cur.Status = StatusCancelled
	cur.CancellationReason = &reason
	cur.UpdatedAt = time.Now()
	cp := *cur
	return &cp, nil
}

func (r *InMemoryRepository) RecordReadiness(_ context.Context, id uuid.UUID, party Party) (*ReadinessUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if cur.Status != StatusWaitingToComplete {
		return nil, ErrStatusChanged
	}

	switch party {
	case PartyTeacher:
		cur.TeacherReady = true
	case PartyStudent:
		cur.StudentReady = true
	}

	completed := false
	if cur.TeacherReady && cur.StudentReady {
		cur.Status = StatusCompleted
		cur.BothCompleted = true
		completed = true
	}
	cur.UpdatedAt = time.Now()

	cp := *cur
	return &ReadinessUpdate{Appointment: &cp, Completed: completed}, nil
}

func (r *InMemoryRepository) ListActiveByChats(_ context.Context, chatIDs []uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[uuid.UUID]bool, len(chatIDs))
	for _, id := range chatIDs {
		wanted[id] = true
	}

	var out []Appointment
	for _, a := range r.appointments {
		if wanted[a.ChatID] && (a.Status == StatusPending || a.Status == StatusConfirmed) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *InMemoryRepository) FindActiveOnDay(_ context.Context, chatID uuid.UUID, day string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.ChatID == chatID && a.Status.Active() && a.Day() == day {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *InMemoryRepository) ListExpiredConfirmed(_ context.Context, chatID uuid.UUID, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.ChatID == chatID && a.Status == StatusConfirmed && !a.EndTime().After(now) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *InMemoryRepository) ListByChats(_ context.Context, chatIDs []uuid.UUID, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[uuid.UUID]bool, len(chatIDs))
	for _, id := range chatIDs {
		wanted[id] = true
	}

	var all []Appointment
	for _, a := range r.appointments {
		if !wanted[a.ChatID] {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.From != nil && a.StartTime.Before(*f.From) {
			continue
		}
		if f.To != nil && a.StartTime.After(*f.To) {
			continue
		}
		all = append(all, *a)
	}
	sortByStart(all)

	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, nil
}

func (r *InMemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextEventID++
	ev.ID = r.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a snapshot of the recorded event log.
func (r *InMemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventLog(nil), r.events...)
}

func sortByStart(list []Appointment) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartTime.Before(list[j].StartTime)
	})
}

// StaticChatDirectory is a fixed in-memory ChatDirectory for tests and
// seeding.
type StaticChatDirectory struct {
	Chats map[uuid.UUID]*Chat
}

func NewStaticChatDirectory(chats ...*Chat) *StaticChatDirectory {
	d := &StaticChatDirectory{Chats: make(map[uuid.UUID]*Chat, len(chats))}
	for _, c := range chats {
		d.Chats[c.ID] = c
	}
	return d
}

func (d *StaticChatDirectory) GetChat(_ context.Context, id uuid.UUID) (*Chat, error) {
	c, ok := d.Chats[id]
	if !ok {
		return nil, ErrChatNotFound
	}
	return c, nil
}

func (d *StaticChatDirectory) ListChatIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, c := range d.Chats {
		if c.HasParticipant(userID) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
