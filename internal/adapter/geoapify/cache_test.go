package geoapify

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
)

type countingGeocoder struct {
	reverseCalls int
	searchCalls  int
	reverse      domain.GeocodingResult
	search       []domain.GeocodingResult
	err          error
}

func (g *countingGeocoder) ReverseGeocode(context.Context, float64, float64) (domain.GeocodingResult, error) {
	g.reverseCalls++
	return g.reverse, g.err
}

func (g *countingGeocoder) Search(context.Context, string, int) ([]domain.GeocodingResult, error) {
	g.searchCalls++
	return g.search, g.err
}

func newCached(t *testing.T, inner domain.Geocoder, size int) (*CachedGeocoder, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	c, err := NewCachedGeocoder(inner, size, metrics)
	require.NoError(t, err)
	return c, metrics
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{reverse: domain.GeocodingResult{FormattedAddress: "Chukhung, Nepal"}}
	c, metrics := newCached(t, inner, 10)

	for range 3 {
		res, err := c.ReverseGeocode(context.Background(), 27.9, 86.93)
		require.NoError(t, err)
		assert.Equal(t, "Chukhung, Nepal", res.FormattedAddress)
	}

	assert.Equal(t, 1, inner.reverseCalls)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("reverse", "hit")), 0)
}

func TestCachedGeocoder_EmptyNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	c, _ := newCached(t, inner, 10)

	_, _ = c.ReverseGeocode(context.Background(), 1, 1)
	_, _ = c.ReverseGeocode(context.Background(), 1, 1)
	_, _ = c.Search(context.Background(), "nowhere", 5)
	_, _ = c.Search(context.Background(), "nowhere", 5)

	assert.Equal(t, 2, inner.reverseCalls)
	assert.Equal(t, 2, inner.searchCalls)
}

func TestCachedGeocoder_ErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	c, _ := newCached(t, inner, 10)

	_, err := c.ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)
	_, err = c.ReverseGeocode(context.Background(), 1, 1)
	require.Error(t, err)

	assert.Equal(t, 2, inner.reverseCalls)
}

func TestCachedGeocoder_SearchNormalizesKey(t *testing.T) {
	inner := &countingGeocoder{search: []domain.GeocodingResult{{FormattedAddress: "Lukla, Nepal"}}}
	c, _ := newCached(t, inner, 10)

	_, _ = c.Search(context.Background(), "Lukla", 5)
	_, _ = c.Search(context.Background(), " lukla ", 5)
	_, _ = c.Search(context.Background(), "lukla", 3)

	assert.Equal(t, 2, inner.searchCalls)
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	inner := &countingGeocoder{reverse: domain.GeocodingResult{FormattedAddress: "x"}}
	c, _ := newCached(t, inner, 2)

	_, _ = c.ReverseGeocode(context.Background(), 1, 1)
	_, _ = c.ReverseGeocode(context.Background(), 2, 2)
	_, _ = c.ReverseGeocode(context.Background(), 3, 3) // evicts 1,1
	_, _ = c.ReverseGeocode(context.Background(), 1, 1)

	assert.Equal(t, 4, inner.reverseCalls)
	reverse, _ := c.Len()
	assert.Equal(t, 2, reverse)
}

func TestNewCachedGeocoder_InvalidSize(t *testing.T) {
	_, err := NewCachedGeocoder(&countingGeocoder{}, 0, observability.NewMetricsForTesting())
	assert.Error(t, err)
}
