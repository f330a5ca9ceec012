// Package geoapify implements domain.Geocoder against the Geoapify
// geocoding API.
package geoapify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
)

const tracerName = "github.com/couchcryptid/glacier-risk-map/internal/adapter/geoapify"

// Search results are biased toward the Himalayan countries the dashboard covers.
const searchBias = "countrycode:np,in"

// Client implements domain.Geocoder using the Geoapify Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewClient creates a Geoapify geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.geoapify.com/v1/geocode",
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// ReverseGeocode converts coordinates to place details.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', 6, 64)},
		"format": {"json"},
		"apiKey": {c.apiKey},
	}

	results, err := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode(), "reverse")
	if err != nil || len(results) == 0 {
		return domain.GeocodingResult{}, err
	}
	return results[0], nil
}

// Search returns up to limit locality matches for a free-text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.GeocodingResult, error) {
	params := url.Values{
		"text":   {query},
		"type":   {"locality"},
		"limit":  {strconv.Itoa(limit)},
		"format": {"json"},
		"bias":   {searchBias},
		"apiKey": {c.apiKey},
	}

	return c.doRequest(ctx, c.baseURL+"/search?"+params.Encode(), "search")
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) (results []domain.GeocodingResult, err error) {
	ctx, span := c.tracer.Start(ctx, "geoapify."+method, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("geocode.results", len(results)))
		span.End()
	}()

	start := time.Now()
	defer func() {
		c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		outcome := "success"
		switch {
		case err != nil:
			outcome = "error"
		case len(results) == 0:
			outcome = "empty"
		}
		c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geoapify API error: status %d: %s", resp.StatusCode, body)
	}

	var geoResp response
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results = make([]domain.GeocodingResult, 0, len(geoResp.Results))
	for _, r := range geoResp.Results {
		results = append(results, r.toDomain())
	}
	return results, nil
}

// Geoapify API response types.

type response struct {
	Results []result `json:"results"`
}

type result struct {
	Formatted    string  `json:"formatted"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	City         string  `json:"city,omitempty"`
	AddressLine1 string  `json:"address_line1,omitempty"`
	AddressLine2 string  `json:"address_line2,omitempty"`
	Rank         rank    `json:"rank"`
}

type rank struct {
	Confidence float64 `json:"confidence"`
}

func (r result) toDomain() domain.GeocodingResult {
	place := r.City
	if place == "" {
		place = r.AddressLine1
	}
	return domain.GeocodingResult{
		Lat:              r.Lat,
		Lon:              r.Lon,
		FormattedAddress: r.Formatted,
		PlaceName:        place,
		Confidence:       r.Rank.Confidence,
	}
}
