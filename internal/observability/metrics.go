package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "glacier_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map service.
type Metrics struct {
	// Dataset metrics.
	DatasetFetches       *prometheus.CounterVec // labels: outcome={success,error,retry}
	DatasetFetchDuration prometheus.Histogram
	DatasetSize          prometheus.Gauge

	// Layer metrics.
	LayerSyncs       prometheus.Counter
	RenderedFeatures prometheus.Gauge

	// Selection metrics.
	Selections          *prometheus.CounterVec // labels: outcome={local,stub,upgraded,stale,failed,miss}
	DetailFetchDuration prometheus.Histogram

	// Animator metrics.
	AnimatorFrames  prometheus.Counter
	AnimatorRunning prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={search,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={search,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={search,reverse}
	GeocodeEnabled     prometheus.Gauge

	// Triage metrics.
	TriageDecisions *prometheus.CounterVec // labels: decision={verify,reject}, outcome={success,error}
	DecisionEvents  *prometheus.CounterVec // labels: outcome={success,error}
	LakeUploads     *prometheus.CounterVec // labels: outcome={success,invalid,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.DatasetFetches,
		m.DatasetFetchDuration,
		m.DatasetSize,
		m.LayerSyncs,
		m.RenderedFeatures,
		m.Selections,
		m.DetailFetchDuration,
		m.AnimatorFrames,
		m.AnimatorRunning,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.TriageDecisions,
		m.DecisionEvents,
		m.LakeUploads,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_fetches_total",
			Help:      "Dataset fetch attempts by outcome.",
		}, []string{"outcome"}),
		DatasetFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_fetch_duration_seconds",
			Help:      "Duration of a complete dataset refresh including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DatasetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_records",
			Help:      "Number of lake records currently held in the store.",
		}),
		LayerSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_syncs_total",
			Help:      "Total full replacements of the lake point source.",
		}),
		RenderedFeatures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rendered_features",
			Help:      "Number of features in the current point source.",
		}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Selection transitions by outcome.",
		}, []string{"outcome"}),
		DetailFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detail_fetch_duration_seconds",
			Help:      "Lake detail fetch duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		AnimatorFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "animator_frames_total",
			Help:      "Total pulse animation frames applied.",
		}),
		AnimatorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "animator_running",
			Help:      "1 while the pulse animator is scheduling frames, 0 otherwise.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geoapify API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding is enabled, 0 otherwise.",
		}),
		TriageDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triage_decisions_total",
			Help:      "Verify and reject requests by outcome.",
		}, []string{"decision", "outcome"}),
		DecisionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_events_total",
			Help:      "Triage decision events published to Kafka by outcome.",
		}, []string{"outcome"}),
		LakeUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lake_uploads_total",
			Help:      "Lake report submissions by outcome.",
		}, []string{"outcome"}),
	}
}
