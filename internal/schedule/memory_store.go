package schedule

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

// MemoryStore is an in-process Store used by tests and the simulator.
type MemoryStore struct {
	mu         sync.RWMutex
	doctors    map[uuid.UUID]Doctor
	blocks     map[uuid.UUID][]ScheduleBlock
	exceptions map[uuid.UUID][]ScheduleException
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:    make(map[uuid.UUID]Doctor),
		blocks:     make(map[uuid.UUID][]ScheduleBlock),
		exceptions: make(map[uuid.UUID][]ScheduleException),
	}
}

func (s *MemoryStore) PutDoctor(d Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = d
}

func (s *MemoryStore) PutBlocks(doctorID uuid.UUID, blocks ...ScheduleBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := append(append([]ScheduleBlock{}, s.blocks[doctorID]...), blocks...)
	if err := ValidateBlocks(merged); err != nil {
		return err
	}
	s.blocks[doctorID] = merged
	return nil
}

func (s *MemoryStore) PutException(e ScheduleException) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions[e.DoctorID] = append(s.exceptions[e.DoctorID], e)
}

func (s *MemoryStore) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListBlocks(_ context.Context, doctorID uuid.UUID) ([]ScheduleBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ScheduleBlock{}, s.blocks[doctorID]...), nil
}

func (s *MemoryStore) ListExceptions(_ context.Context, doctorID uuid.UUID, from, to civil.Date) ([]ScheduleException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []ScheduleException
	for _, e := range s.exceptions[doctorID] {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}
