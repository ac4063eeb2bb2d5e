package openmeteo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
)

// WeatherSource is what the cache wraps. *Client satisfies it.
type WeatherSource interface {
	FrostRiskData(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error)
}

// CachedClient decorates a WeatherSource with an in-memory TTL cache keyed
// by rounded coordinates. Weather data for a point changes slowly enough
// that repeated requests within the TTL can share one upstream fetch.
type CachedClient struct {
	source  WeatherSource
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snapshot  domain.WeatherSnapshot
	expiresAt time.Time
}

// NewCachedClient wraps source with a TTL cache.
func NewCachedClient(source WeatherSource, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CachedClient {
	return &CachedClient{
		source:  source,
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}
}

// SetClock overrides the cache clock. Tests only.
func (c *CachedClient) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

// FrostRiskData returns the cached snapshot for the coordinates when fresh,
// otherwise fetches from the wrapped source and stores the result.
func (c *CachedClient) FrostRiskData(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	key := cacheKey(lat, lon)
	now := c.clock.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && now.Before(entry.expiresAt) {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return entry.snapshot, nil
	}

	snapshot, err := c.source.FrostRiskData(ctx, lat, lon)
	if err != nil {
		c.metrics.WeatherCache.WithLabelValues("error").Inc()
		return domain.WeatherSnapshot{}, err
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	c.mu.Lock()
	c.entries[key] = cacheEntry{snapshot: snapshot, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	c.logger.Debug("weather snapshot cached", "key", key, "ttl", c.ttl)
	return snapshot, nil
}

// cacheKey rounds coordinates to ~11 m so nearby requests share an entry.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}
