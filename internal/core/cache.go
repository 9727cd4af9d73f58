package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// AnalyticKind identifies one derived-analytics dataset per child.
type AnalyticKind string

// The derived analytics cached per child.
const (
	AnalyticFeedingTrend  AnalyticKind = "feeding-trend"
	AnalyticDiaperPattern AnalyticKind = "diaper-pattern"
	AnalyticSleepSummary  AnalyticKind = "sleep-summary"
	AnalyticTodaySummary  AnalyticKind = "today-summary"
	AnalyticWeeklySummary AnalyticKind = "weekly-summary"
	AnalyticTimeline      AnalyticKind = "timeline"
)

// kindsByEvent maps a written event kind to the analytics it stales.
// Every event kind stales the merged timeline.
var kindsByEvent = map[model.EventKind][]AnalyticKind{
	model.EventKindFeeding: {AnalyticFeedingTrend, AnalyticTodaySummary, AnalyticWeeklySummary, AnalyticTimeline},
	model.EventKindDiaper:  {AnalyticDiaperPattern, AnalyticTimeline},
	model.EventKindNap:     {AnalyticSleepSummary, AnalyticTimeline},
}

// AnalyticsForEvent returns the analytic kinds invalidated by an event write.
func AnalyticsForEvent(kind model.EventKind) []AnalyticKind {
	return kindsByEvent[kind]
}

// CacheKey builds the composite cache key for one analytic of one child.
// Keys share the child-scoped prefix returned by ChildPrefix so the whole
// child can be invalidated in bulk.
func CacheKey(childID string, kind AnalyticKind, paramsHash string) string {
	if paramsHash == "" {
		return fmt.Sprintf("analytics:%s:%s", childID, kind)
	}
	return fmt.Sprintf("analytics:%s:%s:%s", childID, kind, paramsHash)
}

// ChildPrefix returns the key prefix shared by all of a child's analytics.
func ChildPrefix(childID string) string {
	return "analytics:" + childID + ":"
}

// cacheEnvelope wraps a cached value with the write generation it was
// computed against, so readers can reject causally stale values.
type cacheEnvelope struct {
	Generation int64           `json:"generation"`
	Value      json.RawMessage `json:"value"`
}

// AnalyticsCacheConfig holds configuration for the analytics cache.
type AnalyticsCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// DefaultAnalyticsCacheConfig returns an AnalyticsCacheConfig with sensible defaults.
func DefaultAnalyticsCacheConfig() AnalyticsCacheConfig {
	return AnalyticsCacheConfig{TTL: 15 * time.Minute}
}

// AnalyticsCacheServiceOptions bundles dependencies for NewAnalyticsCacheService.
type AnalyticsCacheServiceOptions struct {
	Cache  CacheRepository
	Config AnalyticsCacheConfig
	Logger *slog.Logger
}

// AnalyticsCacheService fronts the cache backend with the soft-fail policy:
// the cache is an optimization, never a correctness dependency. A backend
// failure degrades to a miss on reads and a no-op on writes; callers get a
// stored/found flag, never an error they must handle.
type AnalyticsCacheService struct {
	cache  CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewAnalyticsCacheService creates a new AnalyticsCacheService.
func NewAnalyticsCacheService(opts AnalyticsCacheServiceOptions) *AnalyticsCacheService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultAnalyticsCacheConfig().TTL
	}
	return &AnalyticsCacheService{
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger.With("component", "analytics_cache"),
	}
}

// Get returns the cached value for key together with the generation it was
// computed against. found is false on a miss, an unreachable backend, or a
// value older than minGeneration (the latest write the reader is causally
// aware of).
func (s *AnalyticsCacheService) Get(ctx context.Context, key string, minGeneration int64) (json.RawMessage, int64, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache get failed, treating as miss", "key", key, "error", err)
		return nil, 0, false
	}
	if raw == nil {
		return nil, 0, false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.WarnContext(ctx, "cache entry corrupt, treating as miss", "key", key, "error", err)
		return nil, 0, false
	}
	if env.Generation < minGeneration {
		return nil, 0, false
	}
	return env.Value, env.Generation, true
}

// Set stores a value computed against the given generation. Returns false
// (soft failure) when the backend is unreachable or the TTL is non-positive;
// it never returns an error because cached values are recomputable.
func (s *AnalyticsCacheService) Set(ctx context.Context, key string, value json.RawMessage, generation int64) bool {
	if s.ttl <= 0 {
		return false
	}

	raw, err := json.Marshal(cacheEnvelope{Generation: generation, Value: value})
	if err != nil {
		s.logger.WarnContext(ctx, "cache entry marshal failed", "key", key, "error", err)
		return false
	}

	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "cache set failed, skipping", "key", key, "error", err)
		return false
	}
	return true
}

// RecordEventWrite advances the child's write generation and invalidates
// every analytic stale under the written event kind. Called synchronously
// after the durable event write; failures are logged and absorbed.
func (s *AnalyticsCacheService) RecordEventWrite(ctx context.Context, childID string, kind model.EventKind) int64 {
	generation, err := s.cache.BumpGeneration(ctx, childID)
	if err != nil {
		s.logger.WarnContext(ctx, "bump cache generation failed", "child_id", childID, "error", err)
	}

	for _, analytic := range AnalyticsForEvent(kind) {
		prefix := CacheKey(childID, analytic, "")
		if _, err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
			s.logger.WarnContext(ctx, "cache invalidation failed",
				"child_id", childID,
				"analytic", analytic,
				"error", err,
			)
		}
	}

	return generation
}

// InvalidateChild removes every cached analytic for a child.
func (s *AnalyticsCacheService) InvalidateChild(ctx context.Context, childID string) {
	if _, err := s.cache.DeleteByPrefix(ctx, ChildPrefix(childID)); err != nil {
		s.logger.WarnContext(ctx, "child cache invalidation failed", "child_id", childID, "error", err)
	}
}

// Generation returns the child's current write generation; zero when the
// backend is unreachable (readers then treat every cached value as fresh
// enough, which is the acceptable cross-writer staleness bound).
func (s *AnalyticsCacheService) Generation(ctx context.Context, childID string) int64 {
	generation, err := s.cache.Generation(ctx, childID)
	if err != nil {
		s.logger.WarnContext(ctx, "read cache generation failed", "child_id", childID, "error", err)
		return 0
	}
	return generation
}
