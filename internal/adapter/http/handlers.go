package http

import (
	"encoding/json"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

// DefaultClickTolerance is the hit radius for coordinate clicks, in meters.
const DefaultClickTolerance = 250.0

const maxBodyBytes = 1 << 20

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Map.Layer(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	style, err := s.deps.Map.Style(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"layers": style})
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	cam, err := s.deps.Map.Viewport(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"center":      cam.Center,
		"zoom":        cam.Zoom,
		"duration_ms": cam.Transition.Milliseconds(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Map.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Map.Filter(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, f)
}

func (s *Server) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	var f domain.FilterState
	if !s.decodeBody(w, r, &f) {
		return
	}
	view, err := s.deps.Map.SetFilter(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Map.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, view)
}

type clickRequest struct {
	Features   []map[string]any `json:"features"`
	Lon        *float64         `json:"lon"`
	Lat        *float64         `json:"lat"`
	ToleranceM float64          `json:"tolerance_m"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	var err error
	var snap any
	switch {
	case req.Features != nil:
		snap, err = s.deps.Map.Click(r.Context(), req.Features)
	case req.Lon != nil && req.Lat != nil:
		tol := req.ToleranceM
		if tol <= 0 {
			tol = DefaultClickTolerance
		}
		snap, err = s.deps.Map.ClickAt(r.Context(), orb.Point{*req.Lon, *req.Lat}, tol)
	default:
		writeMessage(w, http.StatusBadRequest, "click needs features or lon and lat")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Map.Selection(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCloseSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Map.CloseSelection(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGeocodeSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Places == nil {
		writeMessage(w, http.StatusServiceUnavailable, "geocoding is disabled")
		return
	}
	results, err := s.deps.Places.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.GeocodingResult{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

type sessionResponse struct {
	SignedIn bool             `json:"signed_in"`
	Official *domain.Official `json:"official,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	off, ok := s.deps.Sessions.User()
	resp := sessionResponse{SignedIn: ok}
	if ok {
		resp.Official = &off
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}
	off, err := s.deps.Sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if status := statusFor(err); status < http.StatusInternalServerError || isUpstreamRejection(err) {
			writeMessage(w, http.StatusUnauthorized, "sign in failed")
			return
		}
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, sessionResponse{SignedIn: true, Official: &off})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.SignOut(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.deps.Sessions.UpdatePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		s.writeRejection(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotifications reloads the pending list from the data service, or
// with ?cached=true returns the local list including decisions made since.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var (
		lakes []domain.Lake
		err   error
	)
	if r.URL.Query().Get("cached") == "true" {
		lakes, err = s.deps.Triage.Notifications()
	} else {
		lakes, err = s.deps.Triage.Pending(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if lakes == nil {
		lakes = []domain.Lake{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"reports": lakes})
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.deps.Sessions.User(); !ok {
		writeMessage(w, http.StatusUnauthorized, "sign in to submit a report")
		return
	}
	var u domain.LakeUpload
	if !s.decodeBody(w, r, &u) {
		return
	}
	if err := s.deps.Triage.Submit(r.Context(), u); err != nil {
		s.writeRejection(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusCreated, map[string]any{"submitted": true})
}

func (s *Server) handleDecision(kind domain.DecisionKind) http.HandlerFunc {
	decide := func(r *http.Request, id domain.LakeID) (domain.Lake, error) {
		if kind == domain.DecisionVerify {
			return s.deps.Triage.Verify(r.Context(), id)
		}
		return s.deps.Triage.Reject(r.Context(), id)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseLakeID(chi.URLParam(r, "id"))
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid report id")
			return
		}
		lake, err := decide(r, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, lake)
	}
}

// decodeBody reads a JSON request body into v, writing a 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
