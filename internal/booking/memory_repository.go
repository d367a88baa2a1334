package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

// MemoryRepository is an in-process Repository with the same semantics as the
// Postgres implementation. It backs the tests and the concurrency simulator.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	events       []AuditEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[uuid.UUID]Patient),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (r *MemoryRepository) PutPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

// Events returns a copy of the audit trail, oldest first.
func (r *MemoryRepository) Events() []AuditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]AuditEvent{}, r.events...)
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) GetActiveAppointmentAt(_ context.Context, doctorID uuid.UUID, date civil.Date, start civil.TimeOfDay) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a := r.findActiveAt(doctorID, date, start, uuid.Nil); a != nil {
		return a, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a := r.findActiveAt(appt.DoctorID, appt.Date, appt.Start, uuid.Nil); a != nil {
		return nil, ErrSlotTaken
	}

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now()
	appt.Status = StatusPending
	appt.Version = 1
	appt.CreatedAt = now
	appt.UpdatedAt = now

	r.appointments[appt.ID] = appt
	return &appt, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrConcurrentUpdate
	}

	a.Status = to
	a.Version++
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) UpdateStatusVersioned(_ context.Context, id uuid.UUID, expectedVersion int64, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	a.Status = to
	a.Version++
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) MoveAppointment(_ context.Context, id uuid.UUID, expectedVersion int64, newDate civil.Date, newStart civil.TimeOfDay) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	if conflict := r.findActiveAt(a.DoctorID, newDate, newStart, id); conflict != nil {
		return nil, ErrSlotTaken
	}

	a.Date = newDate
	a.Start = newStart
	a.Version++
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) ActiveSlotKeys(_ context.Context, doctorID uuid.UUID, from, to civil.Date) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make(map[string]struct{})
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || !a.Status.Active() {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		keys[slotKey(a.Date, a.Start)] = struct{}{}
	}
	return keys, nil
}

func (r *MemoryRepository) FindPendingBefore(_ context.Context, cutoffDate civil.Date, cutoffStart civil.TimeOfDay) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusPending {
			continue
		}
		if a.Date.Before(cutoffDate) || (a.Date == cutoffDate && a.Start < cutoffStart) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// findActiveAt must be called with the lock held.
func (r *MemoryRepository) findActiveAt(doctorID uuid.UUID, date civil.Date, start civil.TimeOfDay, skip uuid.UUID) *Appointment {
	for _, a := range r.appointments {
		if a.ID == skip {
			continue
		}
		if a.DoctorID == doctorID && a.Date == date && a.Start == start && a.Status.Active() {
			found := a
			return &found
		}
	}
	return nil
}
