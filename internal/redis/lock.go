package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danteprogrammer/clinica-core/internal/civil"
)

var ErrLockNotAcquired = errors.New("agenda lock not acquired")

type agendaLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAgendaLocker creates a locker keyed per (doctor, date). Reserve and
// reschedule hold the lock only for the conflict-check-and-write; nothing
// network-bound runs inside the critical section.
func NewAgendaLocker(client *redis.Client, ttl time.Duration) *agendaLocker {
	return &agendaLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *agendaLocker) WithAgendaLock(ctx context.Context, doctorID uuid.UUID, date civil.Date, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:agenda:%s:%s", doctorID.String(), date.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire agenda lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *agendaLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release agenda lock: %w", err)
	}
	return nil
}
