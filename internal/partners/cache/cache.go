package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studymate/study-mate-backend/internal/metrics"
	"github.com/studymate/study-mate-backend/internal/partners/domain"
)

const (
	listKey     = "partners:list"   // cached directory listing
	idKeyPrefix = "partners:id:"    // cached single entry: partners:id:{id}
	opTimeout   = 500 * time.Millisecond
)

// PartnerCache is a read-through cache in front of the partners table.
// Every Redis failure is logged and treated as a miss, so a nil client or a
// dead server only costs latency.
type PartnerCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func New(client *redis.Client, ttl time.Duration, log *zap.Logger) *PartnerCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &PartnerCache{client: client, ttl: ttl, log: log}
}

func idKey(id string) string {
	return idKeyPrefix + id
}

// GetList returns the cached listing
func (c *PartnerCache) GetList(ctx context.Context) ([]domain.Partner, bool) {
	var partners []domain.Partner
	if !c.get(ctx, listKey, &partners) {
		return nil, false
	}
	return partners, true
}

func (c *PartnerCache) SetList(ctx context.Context, partners []domain.Partner) {
	c.set(ctx, listKey, partners)
}

// Get returns the cached entry for id
func (c *PartnerCache) Get(ctx context.Context, id string) (*domain.Partner, bool) {
	var p domain.Partner
	if !c.get(ctx, idKey(id), &p) {
		return nil, false
	}
	return &p, true
}

func (c *PartnerCache) Set(ctx context.Context, p *domain.Partner) {
	c.set(ctx, idKey(p.ID), p)
}

// Invalidate drops the listing and the given entries
func (c *PartnerCache) Invalidate(ctx context.Context, ids ...string) {
	if c.client == nil {
		return
	}
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, listKey)
	for _, id := range ids {
		if id != "" {
			keys = append(keys, idKey(id))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("partner cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *PartnerCache) get(ctx context.Context, key string, dest any) bool {
	if c.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.DirectoryCache.WithLabelValues(metrics.CacheMiss).Inc()
		return false
	}
	if err != nil {
		c.log.Warn("partner cache read failed", zap.String("key", key), zap.Error(err))
		metrics.DirectoryCache.WithLabelValues(metrics.CacheError).Inc()
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("partner cache entry corrupt", zap.String("key", key), zap.Error(err))
		metrics.DirectoryCache.WithLabelValues(metrics.CacheError).Inc()
		return false
	}

	metrics.DirectoryCache.WithLabelValues(metrics.CacheHit).Inc()
	return true
}

func (c *PartnerCache) set(ctx context.Context, key string, value any) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("partner cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("partner cache write failed", zap.String("key", key), zap.Error(err))
	}
}
