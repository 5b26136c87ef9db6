package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("chat day lock not acquired")

// Locker guards the read-validate-insert critical section of appointment
// creation, keyed per chat and calendar day.
type Locker interface {
	WithChatDayLock(ctx context.Context, chatID uuid.UUID, day string, fn func(ctx context.Context) error) error
}

type redisChatDayLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChatDayLocker creates a locker that uses one Redis key per
// chat and day.
func NewRedisChatDayLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisChatDayLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisChatDayLocker) WithChatDayLock(ctx context.Context, chatID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:chat:%s:%s", chatID.String(), day)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire chat day lock: %w", err)
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

func (l *redisChatDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release chat day lock: %w", err)
	}
	return nil
}

// NoopLocker runs the critical section without any locking. It backs
// tests and single-process tooling where the storage-layer uniqueness
// index is protection enough.
type NoopLocker struct{}

func (NoopLocker) WithChatDayLock(ctx context.Context, _ uuid.UUID, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
