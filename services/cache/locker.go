package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/tasks"
)

const lockPrefix = keyPrefix + "lock:"

// only the holder of the token may release the lock
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	rdb    *redis.Client
	logger core.Logger
}

var _ tasks.Locker = (*redisLocker)(nil)

// NewRedisLocker returns a tasks.Locker backed by SET NX locks, shared by every worker process.
func NewRedisLocker(rdb *redis.Client, logger core.Logger) tasks.Locker {
	return &redisLocker{rdb: rdb, logger: logger}
}

func (l *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "acquiring lock")
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		// the job context may be done already
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.rdb, []string{lockPrefix + key}, token).Err(); err != nil {
			l.logger.Warn("releasing lock", err, "key", key)
		}
	}
	return unlock, true, nil
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time // key: expiry
}

var _ tasks.Locker = (*memoryLocker)(nil)

// NewMemoryLocker returns a process local tasks.Locker, used when redis is disabled.
func NewMemoryLocker() tasks.Locker {
	return &memoryLocker{locks: make(map[string]time.Time)}
}

func (l *memoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := core.Now()
	for k, exp := range l.locks {
		if !now.Before(exp) {
			delete(l.locks, k)
		}
	}
	if _, ok := l.locks[key]; ok {
		return nil, false, nil
	}
	exp := now.Add(ttl)
	l.locks[key] = exp
	unlock := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.locks[key].Equal(exp) {
			delete(l.locks, key)
		}
	}
	return unlock, true, nil
}
