package layer

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
)

// Status is what the map overlay should show.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusNoMatches Status = "no_matches"
	StatusReady     Status = "ready"
)

// Source receives complete feature collections.
type Source interface {
	SetData(fc *geojson.FeatureCollection) error
}

// View describes the last synchronized state.
type View struct {
	Status   Status `json:"status"`
	Total    int    `json:"total"`
	Rendered int    `json:"rendered"`
}

// Synchronizer recomputes the point source from records and filter.
type Synchronizer struct {
	source  Source
	metrics *observability.Metrics
	view    View
}

// NewSynchronizer creates a synchronizer that starts in the loading state.
func NewSynchronizer(source Source, metrics *observability.Metrics) *Synchronizer {
	return &Synchronizer{
		source:  source,
		metrics: metrics,
		view:    View{Status: StatusLoading},
	}
}

// Sync filters lakes and replaces the source data with the result. The source
// only ever sees whole collections.
func (s *Synchronizer) Sync(lakes []domain.Lake, filter domain.FilterState) (View, error) {
	visible := domain.Apply(lakes, filter)
	if err := s.source.SetData(domain.NewFeatureCollection(visible)); err != nil {
		return s.view, fmt.Errorf("set source data: %w", err)
	}

	s.view = View{Status: statusFor(len(lakes), len(visible)), Total: len(lakes), Rendered: len(visible)}
	s.metrics.LayerSyncs.Inc()
	s.metrics.RenderedFeatures.Set(float64(len(visible)))
	return s.view, nil
}

// View returns the outcome of the last successful Sync.
func (s *Synchronizer) View() View {
	return s.view
}

func statusFor(total, rendered int) Status {
	switch {
	case total == 0:
		return StatusLoading
	case rendered == 0:
		return StatusNoMatches
	default:
		return StatusReady
	}
}
