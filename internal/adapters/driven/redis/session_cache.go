package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionCache = (*SessionCache)(nil)

const (
	sessionPrefix        = "feedback:session:"
	sessionVersionPrefix = "feedback:session-version:"
)

// DefaultSessionTTL bounds how stale a snapshot can get if an invalidation is lost
const DefaultSessionTTL = 5 * time.Minute

// versionTTL keeps a version counter alive far longer than any read takes
const versionTTL = 24 * time.Hour

// setIfVersion stores ARGV[2] under KEYS[2] only while KEYS[1] still holds ARGV[1].
// A missing version counts as 0.
var setIfVersion = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if (v or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// SessionCache implements driven.SessionCache using Redis.
// Each snapshot is one JSON value that expires after the TTL. A per-session
// counter, bumped by Invalidate, lets Set refuse snapshots read before a write.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a new Redis-backed SessionCache.
// A non-positive ttl uses DefaultSessionTTL.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot or domain.ErrNotFound on a miss
func (c *SessionCache) Get(ctx context.Context, sessionID string) (*domain.SessionWithAnnotations, error) {
	data, err := c.client.Get(ctx, sessionPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session snapshot: %w", err)
	}

	var snapshot domain.SessionWithAnnotations
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	if snapshot.Session == nil {
		return nil, domain.ErrNotFound
	}
	return &snapshot, nil
}

// Version returns the write version of a session, 0 if it was never written
func (c *SessionCache) Version(ctx context.Context, sessionID string) (int64, error) {
	v, err := c.client.Get(ctx, sessionVersionPrefix+sessionID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get session version: %w", err)
	}
	return v, nil
}

// Set stores a snapshot if the session is still at version
func (c *SessionCache) Set(ctx context.Context, snapshot *domain.SessionWithAnnotations, version int64) (bool, error) {
	if snapshot == nil || snapshot.Session == nil {
		return false, domain.ErrInvalidInput
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session snapshot: %w", err)
	}

	id := snapshot.Session.ID
	stored, err := setIfVersion.Run(ctx, c.client,
		[]string{sessionVersionPrefix + id, sessionPrefix + id},
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set session snapshot: %w", err)
	}
	return stored == 1, nil
}

// Invalidate advances the session's version and drops its snapshot
func (c *SessionCache) Invalidate(ctx context.Context, sessionID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, sessionVersionPrefix+sessionID)
		pipe.Expire(ctx, sessionVersionPrefix+sessionID, versionTTL)
		pipe.Del(ctx, sessionPrefix+sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate session snapshot: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *SessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
