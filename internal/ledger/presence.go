package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/redis/go-redis/v9"
)

// PresenceCache remembers who has already been marked on a day.
// A miss is never authoritative; the ledger falls back to the store.
type PresenceCache interface {
	Has(ctx context.Context, subjectID string, date civil.Date) (bool, error)
	Mark(ctx context.Context, subjectID string, date civil.Date) error
	// ForgetSubject drops the subject from every cached day.
	ForgetSubject(ctx context.Context, subjectID string) error
}

// MemoryPresence is a PresenceCache for a single process.
// It keeps the newest day it has seen and the day before; older marks are not cached.
type MemoryPresence struct {
	mu     sync.RWMutex
	days   map[civil.Date]map[string]struct{}
	newest civil.Date
}

// NewMemoryPresence creates an empty in-process cache.
func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{days: make(map[civil.Date]map[string]struct{})}
}

func (m *MemoryPresence) Has(_ context.Context, subjectID string, date civil.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.days[date][subjectID]
	return ok, nil
}

func (m *MemoryPresence) Mark(_ context.Context, subjectID string, date civil.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.newest.IsValid() || date.After(m.newest) {
		m.newest = date
		m.prune()
	}
	if date.Before(m.newest.AddDays(-1)) {
		return nil
	}

	day, ok := m.days[date]
	if !ok {
		day = make(map[string]struct{})
		m.days[date] = day
	}
	day[subjectID] = struct{}{}
	return nil
}

func (m *MemoryPresence) ForgetSubject(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, day := range m.days {
		delete(day, subjectID)
	}
	return nil
}

// prune drops days older than the day before newest. Caller holds the lock.
func (m *MemoryPresence) prune() {
	cutoff := m.newest.AddDays(-1)
	for d := range m.days {
		if d.Before(cutoff) {
			delete(m.days, d)
		}
	}
}

// redisScanBatch is the COUNT hint for SCAN when forgetting a subject.
const redisScanBatch = 100

// RedisPresence is a PresenceCache shared by several stations through Redis.
type RedisPresence struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisPresence creates a Redis-backed cache. Keys expire after constants.PresenceTTL.
func NewRedisPresence(client redis.Cmdable) *RedisPresence {
	return &RedisPresence{
		client: client,
		prefix: "attendance:present",
		ttl:    constants.PresenceTTL,
	}
}

func (r *RedisPresence) key(subjectID string, date civil.Date) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, date.String(), subjectID)
}

func (r *RedisPresence) Has(ctx context.Context, subjectID string, date civil.Date) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(subjectID, date)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisPresence) Mark(ctx context.Context, subjectID string, date civil.Date) error {
	if err := r.client.SetNX(ctx, r.key(subjectID, date), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}

// ForgetSubject deletes the subject's keys for every day.
func (r *RedisPresence) ForgetSubject(ctx context.Context, subjectID string) error {
	pattern := fmt.Sprintf("%s:*:%s", r.prefix, subjectID)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, redisScanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var (
	_ PresenceCache = (*MemoryPresence)(nil)
	_ PresenceCache = (*RedisPresence)(nil)
)
