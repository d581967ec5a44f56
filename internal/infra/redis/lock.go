package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"iran-payment/internal/domain"
)

const (
	lockAttempts = 5
	lockBackoff  = 50 * time.Millisecond
)

// Locker guards one transaction code against concurrent confirmation. The
// storage compare-and-set is the correctness guarantee; the lock just keeps
// two racing callbacks from both calling the bank's verify endpoint.
type Locker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *Locker {
	return &Locker{cli: c.cli}
}

// TryLock acquires key with a random token and the given TTL. It retries a
// few times with a short backoff, then gives up with ErrLockNotAcquired.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for attempt := 0; attempt < lockAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(lockBackoff):
			}
		}
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			continue
		}
		if ok {
			return token, nil
		}
	}
	return "", domain.ErrLockNotAcquired
}

// unlockScript deletes the key only while it still holds our token, so an
// expired lock reacquired by another caller is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	return unlockScript.Run(ctx, l.cli, []string{key}, token).Err()
}
