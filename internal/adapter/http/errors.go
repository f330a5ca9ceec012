package http

import (
	"context"
	"errors"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/glacier-risk-map/internal/adapter/lakeapi"
	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/geosearch"
	"github.com/couchcryptid/glacier-risk-map/internal/selection"
	"github.com/couchcryptid/glacier-risk-map/internal/session"
	"github.com/couchcryptid/glacier-risk-map/internal/uiloop"
)

// statusFor maps domain and adapter errors to response codes.
func statusFor(err error) int {
	var apiErr *lakeapi.APIError
	switch {
	case errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrMissingID),
		errors.Is(err, domain.ErrInvalidUpload),
		errors.Is(err, session.ErrInvalidPassword),
		errors.Is(err, selection.ErrInvalidFeatureID):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotSignedIn), errors.Is(err, lakeapi.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, lakeapi.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, geosearch.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, uiloop.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// isUpstreamRejection reports whether the data service refused the request
// itself rather than failing.
func isUpstreamRejection(err error) bool {
	var apiErr *lakeapi.APIError
	return errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError
}

// writeRejection reports a refusal by the data service as a bad request
// carrying the service's message. Other failures go through writeError.
func (s *Server) writeRejection(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *lakeapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		writeMessage(w, http.StatusBadRequest, apiErr.Message)
		return
	}
	s.writeError(w, r, err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeMessage(w, status, err.Error())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
