// Package lakeapi is the client for the lake report data service.
//
// Every response is wrapped in an envelope of the form
// {"success": bool, "message": string, "data": ...}. Records arrive with the
// service's loose typing (ids as numbers or strings, dates as free-form
// strings) and are normalized into domain types here, before anything else
// sees them.
package lakeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

const tracerName = "github.com/couchcryptid/glacier-risk-map/internal/adapter/lakeapi"

var (
	// ErrNotFound is returned when the service has no record for an id.
	ErrNotFound = errors.New("lake report not found")
	// ErrUnauthorized is returned when the session cookie is missing or expired.
	ErrUnauthorized = errors.New("not authorized")
)

// APIError carries a failure message reported by the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lake API error: status %d: %s", e.Status, e.Message)
}

// Client talks to the lake data service. Session cookies set by sign-in are
// kept in the client's cookie jar and sent on later requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// FetchDataset returns every lake report. Records that cannot be normalized
// are skipped and logged.
func (c *Client) FetchDataset(ctx context.Context) ([]domain.Lake, error) {
	var records []lakeRecord
	if err := c.do(ctx, http.MethodGet, "/lakereport", nil, &records); err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	return c.normalizeAll(records), nil
}

// FetchLake returns the full record for one lake.
func (c *Client) FetchLake(ctx context.Context, id domain.LakeID) (domain.Lake, error) {
	var rec lakeRecord
	if err := c.do(ctx, http.MethodGet, "/lakereport/"+id.String(), nil, &rec); err != nil {
		return domain.Lake{}, fmt.Errorf("fetch lake %s: %w", id, err)
	}
	lake, err := rec.toDomain()
	if err != nil {
		return domain.Lake{}, fmt.Errorf("normalize lake %s: %w", id, err)
	}
	return lake, nil
}

// PendingHighRisk returns HIGH risk reports awaiting triage.
func (c *Client) PendingHighRisk(ctx context.Context) ([]domain.Lake, error) {
	var records []lakeRecord
	if err := c.do(ctx, http.MethodGet, "/lakereport/pending/high-risk", nil, &records); err != nil {
		return nil, fmt.Errorf("fetch pending reports: %w", err)
	}
	return c.normalizeAll(records), nil
}

// Verify marks a report as verified by the signed-in official.
func (c *Client) Verify(ctx context.Context, id domain.LakeID) error {
	if err := c.do(ctx, http.MethodPatch, "/lakereport/verify/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("verify report %s: %w", id, err)
	}
	return nil
}

// Reject marks a report as rejected by the signed-in official.
func (c *Client) Reject(ctx context.Context, id domain.LakeID) error {
	if err := c.do(ctx, http.MethodPatch, "/lakereport/reject/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("reject report %s: %w", id, err)
	}
	return nil
}

// Upload submits a new lake observation on behalf of the signed-in official.
func (c *Client) Upload(ctx context.Context, u domain.LakeUpload) error {
	if err := c.do(ctx, http.MethodPost, "/lakereport/uploaddata", newUploadRecord(u), nil); err != nil {
		return fmt.Errorf("upload lake %q: %w", u.Name, err)
	}
	return nil
}

// SignIn opens a session and returns the signed-in official.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Official, error) {
	body := map[string]string{"email": email, "password": password}
	var rec officialRecord
	if err := c.do(ctx, http.MethodPost, "/official/signin", body, &rec); err != nil {
		return domain.Official{}, fmt.Errorf("sign in: %w", err)
	}
	off, err := rec.toDomain()
	if err != nil {
		return domain.Official{}, fmt.Errorf("sign in: %w", err)
	}
	return off, nil
}

// Me returns the official bound to the current session cookie.
func (c *Client) Me(ctx context.Context) (domain.Official, error) {
	var rec officialRecord
	if err := c.do(ctx, http.MethodGet, "/official/me", nil, &rec); err != nil {
		return domain.Official{}, fmt.Errorf("fetch current official: %w", err)
	}
	off, err := rec.toDomain()
	if err != nil {
		return domain.Official{}, fmt.Errorf("fetch current official: %w", err)
	}
	return off, nil
}

// UpdatePassword changes the signed-in official's password.
func (c *Client) UpdatePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	if err := c.do(ctx, http.MethodPatch, "/official/updatepassword", body, nil); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SignOut closes the current session.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/official/signout", nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "lakeapi "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = string(raw)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	case decodeErr != nil:
		return fmt.Errorf("decode response: %w", decodeErr)
	case !env.Success:
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) normalizeAll(records []lakeRecord) []domain.Lake {
	lakes := make([]domain.Lake, 0, len(records))
	for i, rec := range records {
		lake, err := rec.toDomain()
		if err != nil {
			c.logger.Warn("skipping malformed lake record", "index", i, "error", err)
			continue
		}
		lakes = append(lakes, lake)
	}
	return lakes
}
