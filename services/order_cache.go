package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sortirkopi/bean-order-api/logging"
	"github.com/sortirkopi/bean-order-api/models"
)

// OrderCache is a read-through cache of whole order records. Entries are
// dropped after every committed write; the TTL bounds staleness for writers
// outside this process.
type OrderCache interface {
	Get(ctx context.Context, id uint) (*models.Order, bool)
	Set(ctx context.Context, order *models.Order)
	Invalidate(ctx context.Context, id uint)
}

func orderCacheKey(id uint) string {
	return "order:" + strconv.FormatUint(uint64(id), 10)
}

// RedisOrderCache stores orders as JSON in Redis
type RedisOrderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisOrderCache creates a cache backed by rdb
func NewRedisOrderCache(rdb *redis.Client, ttl time.Duration) *RedisOrderCache {
	return &RedisOrderCache{rdb: rdb, ttl: ttl}
}

func (r *RedisOrderCache) Get(ctx context.Context, id uint) (*models.Order, bool) {
	raw, err := r.rdb.Get(ctx, orderCacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromCtx(ctx).Warn("order cache read failed", "order_id", id, "error", err)
		}
		orderCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var order models.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		logging.FromCtx(ctx).Warn("order cache entry corrupt", "order_id", id, "error", err)
		r.Invalidate(ctx, id)
		orderCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	orderCacheLookups.WithLabelValues("hit").Inc()
	return &order, true
}

func (r *RedisOrderCache) Set(ctx context.Context, order *models.Order) {
	raw, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, orderCacheKey(order.ID), raw, r.ttl).Err(); err != nil {
		logging.FromCtx(ctx).Warn("order cache write failed", "order_id", order.ID, "error", err)
	}
}

func (r *RedisOrderCache) Invalidate(ctx context.Context, id uint) {
	if err := r.rdb.Del(ctx, orderCacheKey(id)).Err(); err != nil {
		logging.FromCtx(ctx).Warn("order cache invalidate failed", "order_id", id, "error", err)
	}
}

// MemoryOrderCache keeps orders in process memory. Used when no Redis is
// configured and in tests.
type MemoryOrderCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uint]memoryEntry
}

type memoryEntry struct {
	order   models.Order
	expires time.Time
}

// NewMemoryOrderCache creates an in-process cache; ttl <= 0 disables expiry
func NewMemoryOrderCache(ttl time.Duration) *MemoryOrderCache {
	return &MemoryOrderCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uint]memoryEntry),
	}
}

func (m *MemoryOrderCache) Get(_ context.Context, id uint) (*models.Order, bool) {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()

	if !ok || (!entry.expires.IsZero() && m.now().After(entry.expires)) {
		orderCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	orderCacheLookups.WithLabelValues("hit").Inc()
	order := cloneOrder(entry.order)
	return &order, true
}

func (m *MemoryOrderCache) Set(_ context.Context, order *models.Order) {
	entry := memoryEntry{order: cloneOrder(*order)}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[order.ID] = entry
	m.mu.Unlock()
}

func (m *MemoryOrderCache) Invalidate(_ context.Context, id uint) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

// cloneOrder copies the payment so callers never share it with the cache
func cloneOrder(o models.Order) models.Order {
	if o.Payment != nil {
		p := *o.Payment
		o.Payment = &p
	}
	return o
}

var (
	_ OrderCache = (*RedisOrderCache)(nil)
	_ OrderCache = (*MemoryOrderCache)(nil)
)
