// Package cache implements a Redis-backed read-through cache for upstream
// HSP responses.
//
// Metrics and service-details payloads are expensive to fetch and stable for
// a given date range, so they are cached under deterministic keys with a
// TTL. Entries are encoded with msgpack to keep large detail payloads
// compact. All methods are nil-receiver safe so the cache can be disabled by
// simply not configuring one.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTTL is the default entry lifetime.
const DefaultTTL = time.Hour

// DefaultKeyPrefix namespaces all cache keys.
const DefaultKeyPrefix = "railstream"

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Config configures the Redis cache.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// TTL is the entry lifetime (default 1h).
	TTL time.Duration
	// KeyPrefix namespaces keys (default "railstream").
	KeyPrefix string
}

// Stats is a point-in-time view of cache effectiveness counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Entries int64 `json:"entries"`
}

// Store is a Redis-backed cache with msgpack-encoded values.
type Store struct {
	config Config
	client *goredis.Client

	mu     sync.Mutex
	hits   int64
	misses int64
	sets   int64
}

// New creates a Store from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("cache requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid URL: %w", err)
	}

	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	return &Store{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// MetricsKey builds the cache key for a serviceMetrics response.
func MetricsKey(fromLoc, toLoc, fromDate, toDate string) string {
	return fmt.Sprintf("metrics_%s_%s_%s_%s", fromLoc, toLoc, fromDate, toDate)
}

// DetailsKey builds the cache key for a serviceDetails response.
func DetailsKey(rid string) string {
	return "details_" + rid
}

// CallKey builds the cache key for a per-call upstream metrics record.
func CallKey(rid string) string {
	return "call_" + rid
}

// Get loads the value stored under key into dst. Returns ErrMiss when the
// key is absent. A nil Store always misses.
func (s *Store) Get(ctx context.Context, key string, dst any) error {
	if s == nil {
		return ErrMiss
	}

	raw, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		s.incMiss()
		return ErrMiss
	}
	if err != nil {
		// Treat transport errors as misses so an unavailable Redis never
		// takes the analysis down with it.
		s.incMiss()
		return fmt.Errorf("cache: get %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(raw, dst); err != nil {
		s.incMiss()
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	s.incHit()
	return nil
}

// Set stores value under key with the configured TTL. A nil Store is a
// no-op.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if s == nil {
		return nil
	}

	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.fullKey(key), raw, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}

	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return nil
}

// Clear removes every entry under the configured prefix and resets the
// counters.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, nil
	}

	var removed int64
	iter := s.client.Scan(ctx, 0, s.config.KeyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("cache: clear: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cache: clear: %w", err)
	}

	s.mu.Lock()
	s.hits, s.misses, s.sets = 0, 0, 0
	s.mu.Unlock()
	return removed, nil
}

// Stats returns the current cache counters plus the live entry count.
func (s *Store) Stats(ctx context.Context) Stats {
	if s == nil {
		return Stats{}
	}

	var entries int64
	iter := s.client.Scan(ctx, 0, s.config.KeyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		entries++
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Hits:    s.hits,
		Misses:  s.misses,
		Sets:    s.sets,
		Entries: entries,
	}
}

// Close releases the Redis client.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) fullKey(key string) string {
	return s.config.KeyPrefix + ":" + strings.TrimPrefix(key, s.config.KeyPrefix+":")
}

func (s *Store) incHit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

func (s *Store) incMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}
