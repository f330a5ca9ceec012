// Package triage lets a signed-in official work through pending high-risk
// reports and submit new ones. Decisions are sent to the data service,
// recorded in the local notification list, and published as events.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
)

// API is the subset of the data service triage needs.
type API interface {
	PendingHighRisk(ctx context.Context) ([]domain.Lake, error)
	Verify(ctx context.Context, id domain.LakeID) error
	Reject(ctx context.Context, id domain.LakeID) error
	Upload(ctx context.Context, u domain.LakeUpload) error
}

// Officials yields the signed-in official.
type Officials interface {
	Require() (domain.Official, error)
}

// Publisher delivers decision events downstream.
type Publisher interface {
	Publish(ctx context.Context, d domain.Decision) error
}

// Service is the notifications and triage workflow.
type Service struct {
	api       API
	officials Officials
	publisher Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
	idGen     func() string

	mu      sync.Mutex
	pending []domain.Lake
}

// NewService creates a triage service. publisher may be nil, in which case
// decisions are not published.
func NewService(api API, officials Officials, publisher Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		api:       api,
		officials: officials,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		idGen:     func() string { return ulid.Make().String() },
	}
}

// Pending fetches the reports awaiting a decision and replaces the local
// notification list.
func (s *Service) Pending(ctx context.Context) ([]domain.Lake, error) {
	if _, err := s.officials.Require(); err != nil {
		return nil, err
	}
	lakes, err := s.api.PendingHighRisk(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	s.mu.Lock()
	s.pending = slices.Clone(lakes)
	s.mu.Unlock()
	return lakes, nil
}

// Notifications returns the local list including decisions made since the
// last Pending call, without asking the data service.
func (s *Service) Notifications() ([]domain.Lake, error) {
	if _, err := s.officials.Require(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending), nil
}

// Verify accepts a report.
func (s *Service) Verify(ctx context.Context, id domain.LakeID) (domain.Lake, error) {
	return s.decide(ctx, id, domain.DecisionVerify, s.api.Verify)
}

// Reject declines a report.
func (s *Service) Reject(ctx context.Context, id domain.LakeID) (domain.Lake, error) {
	return s.decide(ctx, id, domain.DecisionReject, s.api.Reject)
}

// Submit validates a new lake observation and sends it to the data service.
func (s *Service) Submit(ctx context.Context, u domain.LakeUpload) error {
	off, err := s.officials.Require()
	if err != nil {
		return err
	}
	u = u.Normalize()
	if err := u.Validate(); err != nil {
		s.metrics.LakeUploads.WithLabelValues("invalid").Inc()
		return err
	}
	if err := s.api.Upload(ctx, u); err != nil {
		s.metrics.LakeUploads.WithLabelValues("error").Inc()
		return fmt.Errorf("submit lake report: %w", err)
	}
	s.metrics.LakeUploads.WithLabelValues("success").Inc()
	s.logger.Info("lake report submitted", "lake_name", u.Name, "region", u.Region, "official_id", off.ID)
	return nil
}

func (s *Service) decide(ctx context.Context, id domain.LakeID, kind domain.DecisionKind, call func(context.Context, domain.LakeID) error) (domain.Lake, error) {
	off, err := s.officials.Require()
	if err != nil {
		return domain.Lake{}, err
	}
	if err := call(ctx, id); err != nil {
		s.metrics.TriageDecisions.WithLabelValues(string(kind), "error").Inc()
		return domain.Lake{}, fmt.Errorf("%s report %s: %w", kind, id, err)
	}
	s.metrics.TriageDecisions.WithLabelValues(string(kind), "success").Inc()

	d := domain.Decision{
		EventID:    s.idGen(),
		ReportID:   id,
		Decision:   kind,
		OfficialID: off.ID,
		DecidedAt:  domain.Now(),
	}
	updated := s.record(d)
	s.logger.Info("report decided", "lake_id", id, "decision", kind, "official_id", off.ID)
	s.publish(ctx, d)
	return updated, nil
}

// record applies d to the cached entry. Reports outside the list are
// returned as a bare record carrying only the decision.
func (s *Service) record(d domain.Decision) domain.Lake {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if s.pending[i].ID == d.ReportID {
			s.pending[i] = domain.ApplyDecision(s.pending[i], d)
			return s.pending[i]
		}
	}
	return domain.ApplyDecision(domain.Lake{ID: d.ReportID}, d)
}

func (s *Service) publish(ctx context.Context, d domain.Decision) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), d); err != nil {
		s.metrics.DecisionEvents.WithLabelValues("error").Inc()
		s.logger.Warn("decision event not published", "lake_id", d.ReportID, "error", err)
		return
	}
	s.metrics.DecisionEvents.WithLabelValues("success").Inc()
}
