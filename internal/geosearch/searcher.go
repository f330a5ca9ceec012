// Package geosearch provides place suggestions as a user types. Only the
// latest query matters: starting a new search cancels the one in flight.
package geosearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

const (
	// MinQueryLength is the shortest query sent to the geocoder.
	MinQueryLength = 3
	// Limit caps the number of suggestions.
	Limit = 5
)

// ErrSuperseded is returned to a search replaced by a newer one.
var ErrSuperseded = errors.New("search superseded by a newer query")

// Searcher keeps at most one geocoder request in flight.
type Searcher struct {
	geocoder domain.Geocoder
	logger   *slog.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// New creates a Searcher over geocoder.
func New(geocoder domain.Geocoder, logger *slog.Logger) *Searcher {
	return &Searcher{geocoder: geocoder, logger: logger}
}

// Search returns suggestions for query. Queries shorter than MinQueryLength
// return no suggestions and cancel any pending search.
func (s *Searcher) Search(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		s.Reset()
		return nil, nil
	}

	ctx, seq := s.begin(ctx)
	results, err := s.geocoder.Search(ctx, query, Limit)
	if !s.finish(seq) {
		return nil, ErrSuperseded
	}
	if err != nil {
		s.logger.Warn("place search failed", "query", query, "error", err)
		return nil, fmt.Errorf("search places: %w", err)
	}
	if len(results) > Limit {
		results = results[:Limit]
	}
	return results, nil
}

// Reset cancels any search in flight.
func (s *Searcher) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.cancel = cancel
	return ctx, s.seq
}

// finish releases the request context and reports whether seq is still the
// latest search.
func (s *Searcher) finish(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}
