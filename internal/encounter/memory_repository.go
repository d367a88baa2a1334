package encounter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository mirrors the Postgres repository for tests and tools.
type MemoryRepository struct {
	mu         sync.RWMutex
	triage     map[uuid.UUID]Vitals
	encounters map[uuid.UUID]Encounter // keyed by appointment id
	labOrders  map[uuid.UUID]LabOrder
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		triage:     make(map[uuid.UUID]Vitals),
		encounters: make(map[uuid.UUID]Encounter),
		labOrders:  make(map[uuid.UUID]LabOrder),
	}
}

func (r *MemoryRepository) SaveTriage(_ context.Context, appointmentID uuid.UUID, v Vitals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triage[appointmentID] = v
	return nil
}

func (r *MemoryRepository) GetTriage(_ context.Context, appointmentID uuid.UUID) (*Vitals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.triage[appointmentID]
	if !ok {
		return nil, ErrTriageNotFound
	}
	return &v, nil
}

func (r *MemoryRepository) CreateEncounter(_ context.Context, appointmentID uuid.UUID, v *Vitals) (*Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.encounters[appointmentID]; ok {
		return &existing, nil
	}

	now := time.Now()
	e := Encounter{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if v != nil {
		vitals := *v
		e.Vitals = &vitals
	}
	r.encounters[appointmentID] = e
	return &e, nil
}

func (r *MemoryRepository) GetEncounterByAppointment(_ context.Context, appointmentID uuid.UUID) (*Encounter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.encounters[appointmentID]
	if !ok {
		return nil, ErrEncounterNotFound
	}
	e.LabOrders = r.ordersFor(e.ID)
	return &e, nil
}

func (r *MemoryRepository) SaveConsultation(_ context.Context, encounterID uuid.UUID, c Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for apptID, e := range r.encounters {
		if e.ID == encounterID {
			cons := c
			e.Consultation = &cons
			e.UpdatedAt = time.Now()
			r.encounters[apptID] = e
			return nil
		}
	}
	return ErrEncounterNotFound
}

func (r *MemoryRepository) CreateLabOrder(_ context.Context, encounterID uuid.UUID, requestedTests string) (*LabOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	o := LabOrder{
		ID:             uuid.New(),
		EncounterID:    encounterID,
		RequestedTests: requestedTests,
		Status:         LabPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.labOrders[o.ID] = o
	return &o, nil
}

func (r *MemoryRepository) ListLabOrders(_ context.Context, encounterID uuid.UUID) ([]LabOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ordersFor(encounterID), nil
}

func (r *MemoryRepository) StartLabOrder(_ context.Context, orderID uuid.UUID) (*LabOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.labOrders[orderID]
	if !ok || o.Status != LabPending {
		return nil, ErrLabOrderNotFound
	}
	o.Status = LabInProcess
	o.UpdatedAt = time.Now()
	r.labOrders[orderID] = o
	return &o, nil
}

func (r *MemoryRepository) CompleteLabOrder(_ context.Context, orderID uuid.UUID, results string) (*LabOrder, error) {
	if strings.TrimSpace(results) == "" {
		return nil, ErrEmptyLabResults
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.labOrders[orderID]
	if !ok || o.Status == LabCompleted {
		return nil, ErrLabOrderNotFound
	}
	o.Status = LabCompleted
	o.Results = results
	o.UpdatedAt = time.Now()
	r.labOrders[orderID] = o
	return &o, nil
}

// ordersFor must be called with at least a read lock held.
func (r *MemoryRepository) ordersFor(encounterID uuid.UUID) []LabOrder {
	var result []LabOrder
	for _, o := range r.labOrders {
		if o.EncounterID == encounterID {
			result = append(result, o)
		}
	}
	return result
}
