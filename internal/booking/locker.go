package booking

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/civil"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

func slotKey(d civil.Date, t civil.TimeOfDay) string {
	return schedule.SlotKey(d, t)
}

// MutexLocker is a single-process Locker for tests, tools and deployments
// without Redis. Production multi-node setups use the Redis agenda locker.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MutexLocker) WithAgendaLock(ctx context.Context, doctorID uuid.UUID, date civil.Date, fn func(ctx context.Context) error) error {
	key := doctorID.String() + ":" + date.String()

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
