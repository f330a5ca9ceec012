package geoapify

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
)

// CachedGeocoder wraps a Geocoder with in-memory LRU caches.
type CachedGeocoder struct {
	inner   domain.Geocoder
	reverse *lru.Cache[string, domain.GeocodingResult]
	search  *lru.Cache[string, []domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. Each of the
// reverse and search caches holds up to maxEntries results.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	reverse, err := lru.New[string, domain.GeocodingResult](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create reverse cache: %w", err)
	}
	search, err := lru.New[string, []domain.GeocodingResult](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, reverse: reverse, search: search, metrics: metrics}, nil
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	if result, ok := c.reverse.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.reverse.Add(key, result)
	}
	return result, nil
}

func (c *CachedGeocoder) Search(ctx context.Context, query string, limit int) ([]domain.GeocodingResult, error) {
	key := fmt.Sprintf("search:%d|%s", limit, strings.ToLower(strings.TrimSpace(query)))
	if results, ok := c.search.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("search", "hit").Inc()
		return results, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("search", "miss").Inc()

	results, err := c.inner.Search(ctx, query, limit)
	if err != nil {
		return results, err
	}
	if len(results) > 0 {
		c.search.Add(key, results)
	}
	return results, nil
}

// Len returns the number of cached reverse and search entries.
func (c *CachedGeocoder) Len() (reverse, search int) {
	return c.reverse.Len(), c.search.Len()
}
