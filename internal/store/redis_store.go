// Package store implements the time-windowed per-source-IP alert log on top
// of Redis lists with expiring keys. Each actively-attacking IP keeps its
// window alive because the TTL is refreshed on every append; quiet IPs age
// out without any sweep.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/watchdesk-systems/watchdesk/internal/models"
)

// ErrStoreUnavailable wraps any Redis failure. Callers treat it as
// non-fatal: ingestion proceeds without dedup memory, summaries degrade to
// an explicit "data unavailable" message.
var ErrStoreUnavailable = errors.New("alert store unavailable")

const defaultKeyPrefix = "watchdesk:alerts"

// AlertStore is the contract the correlation engine and summary compiler
// depend on.
type AlertStore interface {
	Append(ctx context.Context, alert *models.Alert) error
	ListAll(ctx context.Context) ([]string, error)
	ReadWindow(ctx context.Context, sourceIP string) ([]models.Alert, error)
}

// RedisStore is the Redis-backed AlertStore.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and returns a store with the given
// retention TTL (default one hour).
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests with
// miniredis.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
	}
}

// Append pushes the alert onto the per-IP list and refreshes the key's TTL.
// The two commands run in one pipeline so an append never leaves a key
// without an expiry.
func (s *RedisStore) Append(ctx context.Context, alert *models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	key := s.ipKey(alert.SourceIP)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append %s: %v", ErrStoreUnavailable, alert.SourceIP, err)
	}
	return nil
}

// ListAll returns the source IPs currently tracked. A key mid-expiry may
// still show up; callers skip IPs whose window reads back empty.
func (s *RedisStore) ListAll(ctx context.Context) ([]string, error) {
	pattern := s.prefix + ":ip:*"
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", ErrStoreUnavailable, err)
	}

	ips := make([]string, 0, len(keys))
	for _, key := range keys {
		ip := strings.TrimPrefix(key, s.prefix+":ip:")
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

// ReadWindow returns the alerts stored for one IP, oldest first. Entries
// that fail to unmarshal are skipped rather than failing the whole read.
func (s *RedisStore) ReadWindow(ctx context.Context, sourceIP string) ([]models.Alert, error) {
	entries, err := s.client.LRange(ctx, s.ipKey(sourceIP), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read window %s: %v", ErrStoreUnavailable, sourceIP, err)
	}

	alerts := make([]models.Alert, 0, len(entries))
	for _, entry := range entries {
		var a models.Alert
		if err := json.Unmarshal([]byte(entry), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) ipKey(sourceIP string) string {
	return s.prefix + ":ip:" + sourceIP
}
