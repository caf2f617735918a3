package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
)

// ReportCachePattern matches every cached report payload.
const ReportCachePattern = "reports:*"

// CacheStore persists JSON payloads under string keys. Get returns
// appErrors.ErrCacheMiss for absent keys.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ReportCache keeps computed reports until a placement changes. A nil
// ReportCache, or one without a store, caches nothing.
type ReportCache struct {
	store   CacheStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewReportCache constructs the cache. store may be nil.
func NewReportCache(store CacheStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCache{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled reports whether a backing store is configured.
func (c *ReportCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Invalidate drops every key matching pattern.
func (c *ReportCache) Invalidate(ctx context.Context, pattern string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.store.DeleteByPattern(ctx, pattern); err != nil {
		c.logger.Warn("report cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

func (c *ReportCache) load(ctx context.Context, key string, dest interface{}) bool {
	if !c.Enabled() {
		return false
	}
	start := time.Now()
	err := c.store.Get(ctx, key, dest)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

func (c *ReportCache) save(ctx context.Context, key string, value interface{}) {
	if !c.Enabled() {
		return
	}
	start := time.Now()
	err := c.store.Set(ctx, key, value, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// remember serves key from cache, or computes the value and stores it.
// The boolean reports a cache hit. Cache failures never fail the call.
func remember[T any](ctx context.Context, cache *ReportCache, key string, compute func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if cache.load(ctx, key, &cached) {
		return cached, true, nil
	}
	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	cache.save(ctx, key, value)
	return value, false, nil
}

func reportCacheKey(report string, filter models.ReportFilter) string {
	return strings.Join([]string{"reports", report, filter.ClientCode, formatReportTime(filter.From), formatReportTime(filter.To)}, ":")
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
