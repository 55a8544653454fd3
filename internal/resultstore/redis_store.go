// Package resultstore keeps the latest aggregated scan result per page in
// Redis.
package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"intelscan/internal/metrics"
	"intelscan/pkg/models"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "intelscan:results"

// RedisConfig configures Redis access for the result store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// saveScript stores the payload unless the stored sequence is newer.
// KEYS[1] page hash, KEYS[2] recent-pages set.
// ARGV: seq, payload, now (unix), ttl seconds, page url.
var saveScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'seq')
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'seq', ARGV[1], 'payload', ARGV[2], 'updated_at', ARGV[3])
if tonumber(ARGV[4]) > 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[4])
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[5])
return 1
`)

// RedisStore stores one result per page URL, guarded by sequence number.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed result store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis result store: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), ttl: cfg.TTL}, nil
}

// Save stores result for its page. It reports false when a result with a
// newer sequence is already stored.
func (s *RedisStore) Save(ctx context.Context, result *models.ScanResult) (bool, error) {
	if result == nil || strings.TrimSpace(result.PageURL) == "" {
		return false, nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("encode scan result: %w", err)
	}

	keys := []string{s.pageKey(result.PageURL), s.recentKey()}
	res, err := saveScript.Run(ctx, s.client, keys,
		result.Sequence,
		payload,
		time.Now().Unix(),
		int64(s.ttl/time.Second),
		result.PageURL,
	).Int()
	if err != nil {
		return false, fmt.Errorf("store scan result for %s: %w", result.PageURL, err)
	}
	if res == 0 {
		metrics.StaleResults.Inc()
		return false, nil
	}
	return true, nil
}

// Latest returns the stored result for pageURL, or nil when none is stored.
func (s *RedisStore) Latest(ctx context.Context, pageURL string) (*models.ScanResult, error) {
	raw, err := s.client.HGet(ctx, s.pageKey(pageURL), "payload").Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan result for %s: %w", pageURL, err)
	}
	return decodeResult(raw)
}

// RecentPages returns up to limit page URLs, most recently updated first.
func (s *RedisStore) RecentPages(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	pages, err := s.client.ZRevRange(ctx, s.recentKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent pages: %w", err)
	}
	return pages, nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) pageKey(pageURL string) string {
	return s.prefix + ":page:" + strings.TrimSpace(pageURL)
}

func (s *RedisStore) recentKey() string {
	return s.prefix + ":recent"
}

func decodeResult(raw []byte) (*models.ScanResult, error) {
	var r models.ScanResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode stored scan result: %w", err)
	}
	return &r, nil
}
