package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/layer"
)

// Refresh fetches the dataset, replaces the store and re-renders. Concurrent
// calls share one fetch. On failure the store keeps its previous contents.
//
// The shared fetch is detached from any single caller: a caller whose ctx
// ends stops waiting, but the fetch and its apply step carry on for the
// others, so readiness always reflects what the map shows.
func (e *Engine) Refresh(ctx context.Context) (layer.View, error) {
	ch := e.refreshGroup.DoChan("dataset", func() (any, error) {
		return e.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			e.logger.Debug("dataset refresh shared with concurrent caller")
		}
		return res.Val.(layer.View), res.Err
	case <-ctx.Done():
		return layer.View{}, ctx.Err()
	}
}

func (e *Engine) refresh(ctx context.Context) (layer.View, error) {
	start := e.opts.Clock.Now()
	defer func() { e.metrics.DatasetFetchDuration.Observe(e.opts.Clock.Since(start).Seconds()) }()

	lakes, err := e.fetchWithRetry(ctx)
	if err != nil {
		return layer.View{}, err
	}

	var view layer.View
	if err := e.loop.Do(ctx, func() {
		if dupes := e.records.Replace(lakes, domain.Now()); dupes > 0 {
			e.logger.Warn("dataset contained duplicate lake ids", "duplicates", dupes)
		}
		view = e.resync()
	}); err != nil {
		return layer.View{}, fmt.Errorf("apply dataset: %w", err)
	}

	e.metrics.DatasetSize.Set(float64(len(lakes)))
	e.ready.Store(true)
	e.logger.Info("dataset refreshed", "records", view.Total, "rendered", view.Rendered)
	return view, nil
}

// fetchWithRetry tries the dataset fetch up to MaxAttempts times.
// Backoff starts at InitialBackoff and doubles each retry, capped at MaxBackoff.
func (e *Engine) fetchWithRetry(ctx context.Context) ([]domain.Lake, error) {
	backoff := e.opts.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		lakes, err := e.data.FetchDataset(ctx)
		if err == nil {
			e.metrics.DatasetFetches.WithLabelValues("success").Inc()
			return lakes, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == e.opts.MaxAttempts {
			break
		}

		e.metrics.DatasetFetches.WithLabelValues("retry").Inc()
		e.logger.Warn("dataset fetch failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !e.sleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, e.opts.MaxBackoff)
	}

	e.metrics.DatasetFetches.WithLabelValues("error").Inc()
	e.logger.Error("dataset fetch failed, keeping last known records", "error", lastErr)
	return nil, fmt.Errorf("fetch dataset: %w", lastErr)
}

// sleepWithContext mirrors retry.SleepWithContext on the engine clock so
// tests can advance backoff deterministically.
func (e *Engine) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := e.opts.Clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
