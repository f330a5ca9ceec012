// Package salience drives the pulsing halo drawn around HIGH risk lakes.
//
// The halo oscillates between a small, opaque ring and a large, faint one.
// Each frame checks that the pulse layer still exists before touching it and
// stops for good once it is gone, so a torn-down map never receives paint
// updates.
package salience

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/glacier-risk-map/internal/layer"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
	"github.com/couchcryptid/glacier-risk-map/internal/uiloop"
)

// Oscillation bounds and per-frame increments.
const (
	MinRadius   = 10.0
	MaxRadius   = 26.0
	RadiusStep  = 0.35
	MaxOpacity  = 0.6
	OpacityStep = 0.012
)

// State is one point in the oscillation.
type State struct {
	Radius    float64
	Opacity   float64
	Expanding bool
}

// Initial is the state the halo starts in: smallest and most opaque.
func Initial() State {
	return State{Radius: MinRadius, Opacity: MaxOpacity, Expanding: true}
}

// Step advances one frame. The ring grows and fades until it passes
// MaxRadius, then shrinks and brightens until it passes MinRadius. Values are
// clamped to their bounds after the flip.
func (s State) Step() State {
	if s.Expanding {
		s.Radius += RadiusStep
		s.Opacity -= OpacityStep
		if s.Radius > MaxRadius {
			s.Expanding = false
		}
	} else {
		s.Radius -= RadiusStep
		s.Opacity += OpacityStep
		if s.Radius < MinRadius {
			s.Expanding = true
		}
	}
	s.Radius = clamp(s.Radius, MinRadius, MaxRadius)
	s.Opacity = clamp(s.Opacity, 0, MaxOpacity)
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Painter is the subset of the map the animator needs.
type Painter interface {
	HasLayer(id string) bool
	SetPaintProperty(layerID, name string, value any) error
}

// Scheduler runs fn on the thread that owns the painter and waits for it.
type Scheduler func(ctx context.Context, fn func()) error

// Animator owns the halo state and its frame timer.
type Animator struct {
	painter  Painter
	schedule Scheduler
	clock    clockwork.Clock
	interval time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger

	state State
}

// New creates an animator that paints layer.PulseLayerID once per interval.
func New(painter Painter, schedule Scheduler, clock clockwork.Clock, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Animator {
	return &Animator{
		painter:  painter,
		schedule: schedule,
		clock:    clock,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		state:    Initial(),
	}
}

// Run schedules frames until ctx is cancelled, the scheduler stops, or the
// pulse layer disappears. Only unexpected scheduler errors are returned.
func (a *Animator) Run(ctx context.Context) error {
	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()

	a.metrics.AnimatorRunning.Set(1)
	defer a.metrics.AnimatorRunning.Set(0)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			alive := false
			if err := a.schedule(ctx, func() { alive = a.frame() }); err != nil {
				if ctx.Err() != nil || errors.Is(err, uiloop.ErrStopped) {
					return nil
				}
				return err
			}
			if !alive {
				a.logger.Debug("pulse layer removed, animator stopped")
				return nil
			}
		}
	}
}

// frame runs on the painter's thread.
func (a *Animator) frame() bool {
	if !a.painter.HasLayer(layer.PulseLayerID) {
		return false
	}
	a.state = a.state.Step()
	if err := a.painter.SetPaintProperty(layer.PulseLayerID, "circle-radius", layer.PulseRadiusExpr(a.state.Radius)); err != nil {
		return false
	}
	if err := a.painter.SetPaintProperty(layer.PulseLayerID, "circle-opacity", math.Max(a.state.Opacity, 0)); err != nil {
		return false
	}
	a.metrics.AnimatorFrames.Inc()
	return true
}
