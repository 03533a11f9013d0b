package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

// Cache stores recently fetched statuses keyed by external order id.
type Cache interface {
	Get(ctx context.Context, externalID string) (*model.FulfillmentStatus, bool, error)
	Set(ctx context.Context, status *model.FulfillmentStatus) error
	Delete(ctx context.Context, externalID string) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	status    model.FulfillmentStatus
	expiresAt time.Time
}

// NewMemoryCache creates a process-local cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, externalID string) (*model.FulfillmentStatus, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[externalID]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false, nil
	}
	status := e.status
	status.Shipments = append([]model.Shipment(nil), e.status.Shipments...)
	return &status, true, nil
}

func (c *MemoryCache) Set(_ context.Context, status *model.FulfillmentStatus) error {
	stored := *status
	stored.Shipments = append([]model.Shipment(nil), status.Shipments...)

	c.mu.Lock()
	c.entries[status.ExternalID] = memoryEntry{status: stored, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, externalID string) error {
	c.mu.Lock()
	delete(c.entries, externalID)
	c.mu.Unlock()
	return nil
}

// RedisCache is a Cache shared between console processes.
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb, prefix: "fulfillment:status:", ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, externalID string) (*model.FulfillmentStatus, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+externalID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var status model.FulfillmentStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached status: %w", err)
	}
	return &status, true, nil
}

func (c *RedisCache) Set(ctx context.Context, status *model.FulfillmentStatus) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+status.ExternalID, raw, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, externalID string) error {
	return c.rdb.Del(ctx, c.prefix+externalID).Err()
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// CachedProvider serves statuses from a cache and keeps it current with
// provider push events.
type CachedProvider struct {
	next   Provider
	cache  Cache
	logger *logger.Logger
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next Provider, cache Cache, log *logger.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, logger: log}
}

// OrderStatus returns a cached status when present, otherwise the live one.
// Cache failures never fail the lookup.
func (p *CachedProvider) OrderStatus(ctx context.Context, externalID string) (*model.FulfillmentStatus, error) {
	if status, ok, err := p.cache.Get(ctx, externalID); err != nil {
		p.logger.Warn("fulfillment cache read failed", zap.String("external_id", externalID), zap.Error(err))
	} else if ok {
		return status, nil
	}

	status, err := p.next.OrderStatus(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, status); err != nil {
		p.logger.Warn("fulfillment cache write failed", zap.String("external_id", externalID), zap.Error(err))
	}
	return status, nil
}

// Apply folds a provider push event into the cache. Events the cache cannot
// merge evict the entry so the next lookup goes live.
func (p *CachedProvider) Apply(ctx context.Context, ev model.Event) error {
	switch e := ev.(type) {
	case model.ProviderStatusEvent:
		return p.update(ctx, e.ExternalID, func(s *model.FulfillmentStatus) {
			s.Status = e.Status
			if !e.OccurredAt.IsZero() {
				s.UpdatedAt = e.OccurredAt
			}
		})
	case model.ProviderTrackingEvent:
		return p.update(ctx, e.ExternalID, func(s *model.FulfillmentStatus) {
			for i := range s.Shipments {
				if s.Shipments[i].TrackingNumber == e.Shipment.TrackingNumber {
					s.Shipments[i] = e.Shipment
					return
				}
			}
			s.Shipments = append(s.Shipments, e.Shipment)
		})
	case model.ProviderDelayEvent:
		return p.cache.Delete(ctx, e.ExternalID)
	default:
		return nil
	}
}

func (p *CachedProvider) update(ctx context.Context, externalID string, fn func(*model.FulfillmentStatus)) error {
	status, ok, err := p.cache.Get(ctx, externalID)
	if err != nil || !ok {
		return p.cache.Delete(ctx, externalID)
	}
	fn(status)
	return p.cache.Set(ctx, status)
}
