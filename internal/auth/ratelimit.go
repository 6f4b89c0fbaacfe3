package auth

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// RateLimitConfig configures per-key rate limiting
type RateLimitConfig struct {
	Enabled         bool `toml:"enabled" json:"enabled"`
	DefaultLimit    int  `toml:"default_limit" json:"default_limit"`       // Requests per minute
	BurstSize       int  `toml:"burst_size" json:"burst_size"`             // Token bucket burst
	CleanupInterval int  `toml:"cleanup_interval" json:"cleanup_interval"` // Seconds between cleanup runs
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:         false,
		DefaultLimit:    120,
		BurstSize:       20,
		CleanupInterval: 300,
	}
}

// RateLimiter implements token bucket rate limiting keyed by API key ID
type RateLimiter struct {
	config  RateLimitConfig
	buckets map[string]*tokenBucket
	mu      sync.Mutex
	logger  *slog.Logger
	now     func() time.Time
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	perSecond  float64
	burst      float64
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig, logger *slog.Logger) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.BurstSize <= 0 {
		config.BurstSize = def.BurstSize
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		logger:  logger,
		now:     time.Now,
	}
}

// Allow consumes a token for keyID. When the bucket is empty it returns
// false and the seconds until the next token.
func (r *RateLimiter) Allow(keyID string, customLimit *int) (bool, int) {
	if !r.config.Enabled {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	bucket, exists := r.buckets[keyID]
	if !exists {
		limit := r.config.DefaultLimit
		if customLimit != nil && *customLimit > 0 {
			limit = *customLimit
		}
		bucket = &tokenBucket{
			tokens:     float64(r.config.BurstSize),
			lastRefill: now,
			perSecond:  float64(limit) / 60.0,
			burst:      float64(r.config.BurstSize),
		}
		r.buckets[keyID] = bucket
	}

	bucket.tokens = math.Min(bucket.burst, bucket.tokens+now.Sub(bucket.lastRefill).Seconds()*bucket.perSecond)
	bucket.lastRefill = now

	if bucket.tokens >= 1.0 {
		bucket.tokens--
		return true, 0
	}

	return false, int(math.Ceil((1.0 - bucket.tokens) / bucket.perSecond))
}

// StartCleanup removes idle buckets periodically until ctx is done
func (r *RateLimiter) StartCleanup(ctx context.Context) {
	if !r.config.Enabled {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Duration(r.config.CleanupInterval) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.cleanup()
			}
		}
	}()
}

// cleanup removes buckets unused for more than ten minutes
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-10 * time.Minute)
	removed := 0
	for keyID, bucket := range r.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(r.buckets, keyID)
			removed++
		}
	}

	if removed > 0 && r.logger != nil {
		r.logger.Debug("Rate limit cleanup",
			"removed_buckets", removed,
			"remaining", len(r.buckets),
		)
	}
}
