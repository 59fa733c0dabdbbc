package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
)

// Cache stores oracle replies by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Key identifies one question asked at one point of one riddle's history.
func Key(question string, riddle riddles.Question, history []game.HistoryEntry) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(riddle.Title)
	write(riddle.Body)
	write(riddle.HiddenAnswer)
	write(riddle.ResponseCaution)
	for _, e := range history {
		write(e.Question)
		write(e.Answer)
	}
	write(question)
	return "oracle:" + hex.EncodeToString(h.Sum(nil))
}

// Cached wraps an oracle with a reply cache. Only successful replies are
// stored. Cache failures are logged and the call falls through.
type Cached struct {
	next  game.Oracle
	cache Cache
	ttl   time.Duration
}

var _ game.Oracle = (*Cached)(nil)

func NewCached(next game.Oracle, cache Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

// Ask implements game.Oracle.
func (c *Cached) Ask(ctx context.Context, question string, riddle riddles.Question, history []game.HistoryEntry) (string, error) {
	key := Key(question, riddle, history)
	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("oracle cache get")
	} else if ok {
		log.Debug().Str("key", key).Msg("oracle cache hit")
		return v, nil
	}

	reply, err := c.next.Ask(ctx, question, riddle, history)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, reply, c.ttl); err != nil {
		log.Warn().Err(err).Msg("oracle cache set")
	}
	return reply, nil
}

// ---------- memory ----------

type memoryItem struct {
	value   string
	expires time.Time // zero = never
}

const (
	memorySweepInterval = time.Minute
	memoryMaxItems      = 100_000
)

// MemoryCache is an in-process Cache. Expired entries are swept from Set at
// most once per memorySweepInterval; past maxItems arbitrary entries are
// evicted to make room.
type MemoryCache struct {
	mu        sync.Mutex
	items     map[string]memoryItem
	now       func() time.Time
	nextSweep time.Time
	maxItems  int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now, maxItems: memoryMaxItems}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !it.expires.IsZero() && !m.now().Before(it.expires) {
		delete(m.items, key)
		return "", false, nil
	}
	return it.value, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweepLocked(now)
		m.nextSweep = now.Add(memorySweepInterval)
	}
	if _, exists := m.items[key]; !exists {
		for k := range m.items {
			if len(m.items) < m.maxItems {
				break
			}
			delete(m.items, k)
		}
	}
	it := memoryItem{value: value}
	if ttl > 0 {
		it.expires = now.Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *MemoryCache) sweepLocked(now time.Time) {
	for k, it := range m.items {
		if !it.expires.IsZero() && !now.Before(it.expires) {
			delete(m.items, k)
		}
	}
}

// ---------- redis ----------

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
