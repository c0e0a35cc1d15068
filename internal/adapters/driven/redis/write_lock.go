package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*WriteLock)(nil)

const writeLockPrefix = "feedback:lock:"

// WriteLock marks sessions as being written so that readers do not cache a
// snapshot taken mid-write. Acquire stores a fresh token and Release deletes
// only that token, so an instance whose lock expired cannot release the lock
// another instance took after it.
type WriteLock struct {
	client *redis.Client
	holder string

	mu     sync.Mutex
	tokens map[string]string // lock name -> token of our live acquisition
	seq    uint64
}

// NewWriteLock creates a WriteLock. Tokens are prefixed with holder, which
// defaults to hostname:pid:random when empty.
func NewWriteLock(client *redis.Client, holder string) *WriteLock {
	if holder == "" {
		holder = defaultHolder()
	}
	return &WriteLock{
		client: client,
		holder: holder,
		tokens: make(map[string]string),
	}
}

func defaultHolder() string {
	hostname, _ := os.Hostname()
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(suffix))
}

// Holder identifies this instance in lock values
func (l *WriteLock) Holder() string {
	return l.holder
}

// Acquire takes the named lock for ttl unless anyone holds it already
func (l *WriteLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	l.seq++
	token := fmt.Sprintf("%s#%d", l.holder, l.seq)
	l.mu.Unlock()

	ok, err := l.client.SetNX(ctx, writeLockPrefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire write lock %s: %w", name, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[name] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// deleteIfToken removes KEYS[1] only while it still carries our token
var deleteIfToken = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`)

// Release drops the named lock if our acquisition still owns it. Releasing
// a lock we never took, or one that expired, is a no-op.
func (l *WriteLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := deleteIfToken.Run(ctx, l.client, []string{writeLockPrefix + name}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release write lock %s: %w", name, err)
	}
	return nil
}

// IsHeld reports whether any writer, on any instance, holds the named lock
func (l *WriteLock) IsHeld(ctx context.Context, name string) (bool, error) {
	n, err := l.client.Exists(ctx, writeLockPrefix+name).Result()
	if err != nil {
		return false, fmt.Errorf("check write lock %s: %w", name, err)
	}
	return n > 0, nil
}

// Ping checks if Redis is reachable
func (l *WriteLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
