package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/engine"
	"github.com/couchcryptid/glacier-risk-map/internal/layer"
	"github.com/couchcryptid/glacier-risk-map/internal/store"
)

// MapEngine is the map and selection state served by the API.
type MapEngine interface {
	sharedobs.ReadinessChecker
	Layer(ctx context.Context) (engine.LayerSnapshot, error)
	Style(ctx context.Context) ([]layer.Layer, error)
	Viewport(ctx context.Context) (layer.Camera, error)
	Stats(ctx context.Context) (store.Stats, error)
	Filter(ctx context.Context) (domain.FilterState, error)
	SetFilter(ctx context.Context, f domain.FilterState) (layer.View, error)
	Refresh(ctx context.Context) (layer.View, error)
	Click(ctx context.Context, features []map[string]any) (engine.SelectionSnapshot, error)
	ClickAt(ctx context.Context, pt orb.Point, toleranceMeters float64) (engine.SelectionSnapshot, error)
	CloseSelection(ctx context.Context) error
	Selection(ctx context.Context) (engine.SelectionSnapshot, error)
}

// Sessions manages the signed-in official.
type Sessions interface {
	User() (domain.Official, bool)
	SignIn(ctx context.Context, email, password string) (domain.Official, error)
	SignOut(ctx context.Context) error
	UpdatePassword(ctx context.Context, current, next string) error
}

// Triage serves the notification list, report decisions and new uploads.
type Triage interface {
	Pending(ctx context.Context) ([]domain.Lake, error)
	Notifications() ([]domain.Lake, error)
	Submit(ctx context.Context, u domain.LakeUpload) error
	Verify(ctx context.Context, id domain.LakeID) (domain.Lake, error)
	Reject(ctx context.Context, id domain.LakeID) (domain.Lake, error)
}

// PlaceSearch returns place suggestions for a query.
type PlaceSearch interface {
	Search(ctx context.Context, query string) ([]domain.GeocodingResult, error)
}

// Dependencies are the components behind the API routes. Places may be nil
// when geocoding is disabled.
type Dependencies struct {
	Map      MapEngine
	Sessions Sessions
	Triage   Triage
	Places   PlaceSearch
}

// Server exposes health, readiness, metrics and the dashboard API.
type Server struct {
	httpServer *http.Server
	deps       Dependencies
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes.
func NewServer(addr string, deps Dependencies, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(deps.Map))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/layer", s.handleLayer)
		r.Get("/style", s.handleStyle)
		r.Get("/viewport", s.handleViewport)
		r.Get("/stats", s.handleStats)
		r.Get("/filter", s.handleGetFilter)
		r.Put("/filter", s.handlePutFilter)
		r.Post("/refresh", s.handleRefresh)

		r.Post("/click", s.handleClick)
		r.Get("/selection", s.handleGetSelection)
		r.Delete("/selection", s.handleCloseSelection)

		r.Get("/geocode/search", s.handleGeocodeSearch)

		r.Get("/session", s.handleGetSession)
		r.Post("/session", s.handleSignIn)
		r.Delete("/session", s.handleSignOut)
		r.Patch("/session/password", s.handleUpdatePassword)

		r.Get("/notifications", s.handleNotifications)
		r.Post("/reports", s.handleSubmitReport)
		r.Patch("/reports/{id}/verify", s.handleDecision(domain.DecisionVerify))
		r.Patch("/reports/{id}/reject", s.handleDecision(domain.DecisionReject))
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// requestLogger logs one line per request once the response is written.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelDebug
				switch {
				case status >= http.StatusInternalServerError:
					level = slog.LevelError
				case status >= http.StatusBadRequest:
					level = slog.LevelWarn
				}
				logger.Log(r.Context(), level, "request completed",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"latency", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
