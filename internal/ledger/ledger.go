// Package ledger records one-shot identifiers (used reset tokens, revoked
// sessions) until they would have expired anyway.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespaces used by the account service.
const (
	NamespaceResetTokens = "reset_token"
	NamespaceSessions    = "revoked_session"
)

// Ledger claims identifiers at most once per TTL window.
type Ledger interface {
	// Claim records id and reports whether this call was the first to do so.
	Claim(ctx context.Context, namespace, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, namespace, id string) error
	Exists(ctx context.Context, namespace, id string) (bool, error)
}

// RedisLedger stores claims as expiring keys.
type RedisLedger struct {
	client redis.UniversalClient
}

// NewRedisLedger connects to one node, or to a cluster when several addresses are given.
func NewRedisLedger(addrs []string, password string) *RedisLedger {
	var rdb redis.UniversalClient
	if len(addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addrs[0],
			Password: password,
			DB:       0,
		})
	}
	return &RedisLedger{client: rdb}
}

// NewRedisLedgerWithClient wraps an existing client.
func NewRedisLedgerWithClient(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Claim(ctx context.Context, namespace, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	return l.client.SetNX(ctx, key(namespace, id), 1, ttl).Result()
}

func (l *RedisLedger) Release(ctx context.Context, namespace, id string) error {
	return l.client.Del(ctx, key(namespace, id)).Err()
}

func (l *RedisLedger) Exists(ctx context.Context, namespace, id string) (bool, error) {
	n, err := l.client.Exists(ctx, key(namespace, id)).Result()
	return n > 0, err
}

// Ping checks connectivity.
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the client.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func key(namespace, id string) string {
	return namespace + ":" + id
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryLedger) Claim(_ context.Context, namespace, id string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(namespace, id)
	now := l.now()
	if exp, ok := l.entries[k]; ok && now.Before(exp) {
		return false, nil
	}
	l.entries[k] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, namespace, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key(namespace, id))
	return nil
}

func (l *MemoryLedger) Exists(_ context.Context, namespace, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.entries[key(namespace, id)]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.entries, key(namespace, id))
		return false, nil
	}
	return true, nil
}
