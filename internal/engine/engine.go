// Package engine wires the map core together and runs it on the UI loop.
//
// The engine owns the record store, the active filter, the map model, the
// layer synchronizer, the selection resolver, the viewport controller and the
// pulse animator. Every read or write of that state happens inside a task on
// the UI loop. Network calls (dataset refresh, lake detail, reverse
// geocoding) run on their own goroutines and post their results back to the
// loop, where the selection version decides whether they still apply.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/layer"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
	"github.com/couchcryptid/glacier-risk-map/internal/salience"
	"github.com/couchcryptid/glacier-risk-map/internal/selection"
	"github.com/couchcryptid/glacier-risk-map/internal/store"
	"github.com/couchcryptid/glacier-risk-map/internal/uiloop"
	"github.com/couchcryptid/glacier-risk-map/internal/viewport"
)

// DataService supplies lake records.
type DataService interface {
	FetchDataset(ctx context.Context) ([]domain.Lake, error)
	FetchLake(ctx context.Context, id domain.LakeID) (domain.Lake, error)
}

// Options tunes engine behaviour. Zero values take the defaults noted.
type Options struct {
	RefreshOnSelect bool
	FrameInterval   time.Duration // default 16ms
	MaxAttempts     int           // dataset fetch attempts, default 3
	InitialBackoff  time.Duration // default 200ms
	MaxBackoff      time.Duration // default 5s
	Clock           clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.FrameInterval <= 0 {
		o.FrameInterval = 16 * time.Millisecond
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// LayerSnapshot is the rendered layer state handed to clients.
type LayerSnapshot struct {
	View     layer.View                 `json:"view"`
	Stats    store.Stats                `json:"stats"`
	Features *geojson.FeatureCollection `json:"features"`
}

// SelectionSnapshot is the detail panel state.
type SelectionSnapshot struct {
	State     selection.State  `json:"state"`
	Selection domain.Selection `json:"selection"`
	Label     string           `json:"label,omitempty"`
}

// Engine coordinates the map core.
type Engine struct {
	loop     *uiloop.Loop
	data     DataService
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options

	refreshGroup singleflight.Group
	ready        atomic.Bool
	inflight     sync.WaitGroup

	// Owned by the loop.
	m            *layer.Map
	records      *store.RecordStore
	filter       domain.FilterState
	sync         *layer.Synchronizer
	resolver     *selection.Resolver
	viewport     *viewport.Controller
	stopAnimator context.CancelFunc
	label        string
	labelVersion uint64
}

// New creates an engine. geocoder may be nil, in which case selections carry
// no place label.
func New(loop *uiloop.Loop, data DataService, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	m := layer.NewMap()
	return &Engine{
		loop:     loop,
		data:     data,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
		opts:     opts.withDefaults(),
		m:        m,
		records:  store.New(),
		filter:   domain.DefaultFilter(),
		sync:     layer.NewSynchronizer(m, metrics),
		resolver: selection.NewResolver(opts.RefreshOnSelect),
		viewport: viewport.NewController(m),
	}
}

// CheckReadiness returns nil once a dataset has been loaded.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("lake dataset has not been loaded yet")
	}
	return nil
}

// Wait blocks until background detail and label fetches have finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Mount creates the map layers, renders the current store and starts the
// pulse animator. The animator stops when ctx is cancelled or on Unmount.
func (e *Engine) Mount(ctx context.Context) error {
	return e.loop.Do(ctx, func() {
		if e.m.Mounted() {
			return
		}
		e.m.Mount()
		e.resync()

		animCtx, cancel := context.WithCancel(ctx)
		e.stopAnimator = cancel
		anim := salience.New(e.m, e.loop.Do, e.opts.Clock, e.opts.FrameInterval, e.metrics, e.logger)
		go func() {
			if err := anim.Run(animCtx); err != nil {
				e.logger.Error("pulse animator stopped", "error", err)
			}
		}()
		e.logger.Info("map mounted", "records", e.records.Len())
	})
}

// Unmount stops the animator and removes the map layers.
func (e *Engine) Unmount(ctx context.Context) error {
	return e.loop.Do(ctx, func() {
		if e.stopAnimator != nil {
			e.stopAnimator()
			e.stopAnimator = nil
		}
		e.m.Remove()
		e.logger.Info("map unmounted")
	})
}

// SetFilter replaces the active filter and re-renders.
func (e *Engine) SetFilter(ctx context.Context, f domain.FilterState) (layer.View, error) {
	if err := f.Validate(); err != nil {
		return layer.View{}, fmt.Errorf("validate filter: %w", err)
	}
	var view layer.View
	err := e.loop.Do(ctx, func() {
		e.filter = f
		view = e.resync()
	})
	return view, err
}

// Filter returns the active filter.
func (e *Engine) Filter(ctx context.Context) (domain.FilterState, error) {
	var f domain.FilterState
	err := e.loop.Do(ctx, func() { f = e.filter })
	return f, err
}

// Layer returns the rendered features with their status and store stats.
func (e *Engine) Layer(ctx context.Context) (LayerSnapshot, error) {
	var snap LayerSnapshot
	err := e.loop.Do(ctx, func() {
		snap = LayerSnapshot{View: e.sync.View(), Stats: e.records.Stats(), Features: e.m.Data()}
	})
	return snap, err
}

// Stats returns the sidebar counters.
func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	err := e.loop.Do(ctx, func() { st = e.records.Stats() })
	return st, err
}

// Style returns the map layers with their current paint.
func (e *Engine) Style(ctx context.Context) ([]layer.Layer, error) {
	var style []layer.Layer
	err := e.loop.Do(ctx, func() { style = e.m.Style() })
	return style, err
}

// Viewport returns the current camera target.
func (e *Engine) Viewport(ctx context.Context) (layer.Camera, error) {
	var cam layer.Camera
	err := e.loop.Do(ctx, func() { cam = e.m.Camera() })
	return cam, err
}

// Click selects the topmost of the given rendered features.
func (e *Engine) Click(ctx context.Context, features []map[string]any) (SelectionSnapshot, error) {
	var (
		snap     SelectionSnapshot
		clickErr error
	)
	err := e.loop.Do(ctx, func() {
		clickErr = e.click(ctx, features)
		snap = e.selectionSnapshot()
	})
	if err != nil {
		return snap, err
	}
	return snap, clickErr
}

// ClickAt hit-tests the point against rendered features and selects the
// topmost one within toleranceMeters.
func (e *Engine) ClickAt(ctx context.Context, pt orb.Point, toleranceMeters float64) (SelectionSnapshot, error) {
	var (
		snap     SelectionSnapshot
		clickErr error
	)
	err := e.loop.Do(ctx, func() {
		clickErr = e.click(ctx, e.m.FeaturesAt(pt, toleranceMeters))
		snap = e.selectionSnapshot()
	})
	if err != nil {
		return snap, err
	}
	return snap, clickErr
}

// CloseSelection clears the selection and discards any fetch in flight.
func (e *Engine) CloseSelection(ctx context.Context) error {
	return e.loop.Do(ctx, func() {
		e.resolver.Close()
		e.label = ""
	})
}

// Selection returns the detail panel state.
func (e *Engine) Selection(ctx context.Context) (SelectionSnapshot, error) {
	var snap SelectionSnapshot
	err := e.loop.Do(ctx, func() { snap = e.selectionSnapshot() })
	return snap, err
}

// --- loop-side helpers ---

func (e *Engine) resync() layer.View {
	view, err := e.sync.Sync(e.records.All(), e.filter)
	if err != nil {
		e.logger.Debug("layer sync skipped", "error", err)
	}
	return view
}

func (e *Engine) selectionSnapshot() SelectionSnapshot {
	snap := SelectionSnapshot{State: e.resolver.State(), Selection: e.resolver.Selection()}
	if e.labelVersion == e.resolver.Version() {
		snap.Label = e.label
	}
	return snap
}

func (e *Engine) click(ctx context.Context, features []map[string]any) error {
	out, err := e.resolver.Click(features, e.records.Lookup)
	if err != nil {
		e.logger.Warn("ignoring click on feature without usable id", "error", err)
		e.metrics.Selections.WithLabelValues("miss").Inc()
		return err
	}
	if !out.Hit {
		e.metrics.Selections.WithLabelValues("miss").Inc()
		return nil
	}

	e.label = ""
	if out.Selection.Kind == domain.SelectionResolved {
		e.metrics.Selections.WithLabelValues("local").Inc()
		e.focus(ctx, *out.Selection.Lake)
	} else {
		e.metrics.Selections.WithLabelValues("stub").Inc()
	}
	if out.Fetch != nil {
		e.fetchDetail(ctx, *out.Fetch)
	}
	return nil
}

// focus moves the camera to a resolved lake and looks up its place label.
func (e *Engine) focus(ctx context.Context, lake domain.Lake) {
	if !lake.HasPosition() {
		return
	}
	e.viewport.FlyTo(lake.Position())

	if e.geocoder == nil {
		return
	}
	version := e.resolver.Version()
	bg := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		label := domain.ReverseLabel(bg, lake, e.geocoder, e.logger)
		e.post(func() {
			if e.resolver.Version() != version {
				return
			}
			e.label = label
			e.labelVersion = version
		})
	}()
}

func (e *Engine) fetchDetail(ctx context.Context, req selection.DetailRequest) {
	bg := context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		start := e.opts.Clock.Now()
		lake, err := e.data.FetchLake(bg, req.ID)
		e.metrics.DetailFetchDuration.Observe(e.opts.Clock.Since(start).Seconds())

		e.post(func() { e.applyDetail(bg, req, lake, err) })
	}()
}

// post hands a background result to the loop and releases the in-flight
// slot once it has been applied, so Wait covers the whole round trip.
func (e *Engine) post(fn func()) {
	if !e.loop.Post(func() {
		defer e.inflight.Done()
		fn()
	}) {
		e.inflight.Done()
	}
}

func (e *Engine) applyDetail(ctx context.Context, req selection.DetailRequest, lake domain.Lake, err error) {
	if err != nil {
		if e.resolver.DetailFailed(req) {
			e.metrics.Selections.WithLabelValues("failed").Inc()
			e.logger.Warn("lake detail fetch failed, keeping partial selection",
				"lake_id", req.ID,
				"error", err,
			)
			return
		}
		e.metrics.Selections.WithLabelValues("stale").Inc()
		return
	}
	if !e.resolver.ApplyDetail(req, lake) {
		e.metrics.Selections.WithLabelValues("stale").Inc()
		e.logger.Debug("discarding superseded lake detail", "lake_id", req.ID, "version", req.Version)
		return
	}
	e.metrics.Selections.WithLabelValues("upgraded").Inc()
	e.focus(ctx, lake)
}
