// Package escalate re-raises alerts that sit unacknowledged past their
// severity tier's timeout. A ledger records which alerts have already been
// escalated so scans stay idempotent.
package escalate

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Ledger records which alerts have been escalated through which severity
// tier. Entries outlive a single scan; Forget reclaims them once an alert
// reaches a terminal state.
type Ledger interface {
	// Notified reports whether the alert was already escalated at this tier.
	Notified(ctx context.Context, alertID, tier string) (bool, error)

	// MarkNotified records an escalation at this tier.
	MarkNotified(ctx context.Context, alertID, tier string) error

	// Forget drops all tiers recorded for the alert.
	Forget(ctx context.Context, alertID string) error
}

// defaultLedgerSize bounds the in-memory ledger; eviction of a live entry
// only risks one duplicate escalation for a very old alert.
const defaultLedgerSize = 4096

// MemoryLedger is a bounded single-instance ledger
type MemoryLedger struct {
	mu      sync.Mutex
	entries *lru.Cache[string, map[string]struct{}]
}

// NewMemoryLedger creates a memory ledger holding up to size alerts
func NewMemoryLedger(size int) (*MemoryLedger, error) {
	if size <= 0 {
		size = defaultLedgerSize
	}
	entries, err := lru.New[string, map[string]struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation ledger: %w", err)
	}
	return &MemoryLedger{entries: entries}, nil
}

func (l *MemoryLedger) Notified(ctx context.Context, alertID, tier string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tiers, ok := l.entries.Get(alertID)
	if !ok {
		return false, nil
	}
	_, notified := tiers[tier]
	return notified, nil
}

func (l *MemoryLedger) MarkNotified(ctx context.Context, alertID, tier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tiers, ok := l.entries.Get(alertID)
	if !ok {
		tiers = make(map[string]struct{})
		l.entries.Add(alertID, tiers)
	}
	tiers[tier] = struct{}{}
	return nil
}

func (l *MemoryLedger) Forget(ctx context.Context, alertID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.Remove(alertID)
	return nil
}

// Len returns the number of alerts currently tracked
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.Len()
}

// redisLedgerTTL caps how long a ledger entry can outlive its alert if the
// sweep never sees it resolved.
const redisLedgerTTL = 72 * time.Hour

// RedisLedger shares escalation state across engine instances. Each alert
// maps to a Redis set of tier names with a safety TTL.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger creates a ledger over an existing Redis client
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client, prefix: "vigil:escalated:"}
}

func (l *RedisLedger) key(alertID string) string {
	return l.prefix + alertID
}

func (l *RedisLedger) Notified(ctx context.Context, alertID, tier string) (bool, error) {
	notified, err := l.client.SIsMember(ctx, l.key(alertID), tier).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read escalation ledger for alert %s: %w", alertID, err)
	}
	return notified, nil
}

func (l *RedisLedger) MarkNotified(ctx context.Context, alertID, tier string) error {
	key := l.key(alertID)
	pipe := l.client.TxPipeline()
	pipe.SAdd(ctx, key, tier)
	pipe.Expire(ctx, key, redisLedgerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record escalation for alert %s: %w", alertID, err)
	}
	return nil
}

func (l *RedisLedger) Forget(ctx context.Context, alertID string) error {
	if err := l.client.Del(ctx, l.key(alertID)).Err(); err != nil {
		return fmt.Errorf("failed to drop escalation ledger entry for alert %s: %w", alertID, err)
	}
	return nil
}
