package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/glacier-risk-map/internal/adapter/http"
	"github.com/couchcryptid/glacier-risk-map/internal/adapter/lakeapi"
	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/engine"
	"github.com/couchcryptid/glacier-risk-map/internal/geosearch"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
	"github.com/couchcryptid/glacier-risk-map/internal/session"
	"github.com/couchcryptid/glacier-risk-map/internal/uiloop"
)

var (
	imja  = domain.Lake{ID: 1, Name: "Imja Tsho", Latitude: 27.898, Longitude: 86.925, RiskLevel: domain.RiskHigh, Confidence: 0.91}
	rolpa = domain.Lake{ID: 2, Name: "Tsho Rolpa", Latitude: 27.86, Longitude: 86.48, RiskLevel: domain.RiskLow, Confidence: 0.7}
)

type fakeData struct {
	dataset []domain.Lake
	err     error
}

func (f *fakeData) FetchDataset(context.Context) ([]domain.Lake, error) {
	return f.dataset, f.err
}

func (f *fakeData) FetchLake(_ context.Context, id domain.LakeID) (domain.Lake, error) {
	for _, l := range f.dataset {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.Lake{}, lakeapi.ErrNotFound
}

type fakeSessions struct {
	user *domain.Official
}

func (f *fakeSessions) User() (domain.Official, bool) {
	if f.user == nil {
		return domain.Official{}, false
	}
	return *f.user, true
}

func (f *fakeSessions) SignIn(_ context.Context, email, password string) (domain.Official, error) {
	if password != "secret" {
		return domain.Official{}, &lakeapi.APIError{Status: http.StatusBadRequest, Message: "Invalid credentials"}
	}
	f.user = &domain.Official{ID: 7, Name: "Mingma", Email: email}
	return *f.user, nil
}

func (f *fakeSessions) SignOut(context.Context) error {
	if f.user == nil {
		return session.ErrNotSignedIn
	}
	f.user = nil
	return nil
}

func (f *fakeSessions) UpdatePassword(_ context.Context, current, next string) error {
	if f.user == nil {
		return session.ErrNotSignedIn
	}
	if next == "" {
		return session.ErrInvalidPassword
	}
	if current != "secret" {
		return &lakeapi.APIError{Status: http.StatusBadRequest, Message: "Current password is incorrect"}
	}
	return nil
}

type fakeTriage struct {
	sessions *fakeSessions
	pending  []domain.Lake
	uploads  []domain.LakeUpload
}

func (f *fakeTriage) Notifications() ([]domain.Lake, error) {
	if f.sessions.user == nil {
		return nil, session.ErrNotSignedIn
	}
	return f.pending, nil
}

func (f *fakeTriage) Submit(_ context.Context, u domain.LakeUpload) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Name == "Imja Tsho" {
		return &lakeapi.APIError{Status: http.StatusOK, Message: "Lake already reported"}
	}
	f.uploads = append(f.uploads, u.Normalize())
	return nil
}

func (f *fakeTriage) Pending(context.Context) ([]domain.Lake, error) {
	if f.sessions.user == nil {
		return nil, session.ErrNotSignedIn
	}
	return f.pending, nil
}

func (f *fakeTriage) Verify(_ context.Context, id domain.LakeID) (domain.Lake, error) {
	return f.decide(id, domain.DecisionVerify)
}

func (f *fakeTriage) Reject(_ context.Context, id domain.LakeID) (domain.Lake, error) {
	return f.decide(id, domain.DecisionReject)
}

func (f *fakeTriage) decide(id domain.LakeID, kind domain.DecisionKind) (domain.Lake, error) {
	if f.sessions.user == nil {
		return domain.Lake{}, session.ErrNotSignedIn
	}
	for i, l := range f.pending {
		if l.ID == id {
			f.pending[i] = domain.ApplyDecision(l, domain.Decision{ReportID: id, Decision: kind, OfficialID: f.sessions.user.ID})
			return f.pending[i], nil
		}
	}
	return domain.Lake{}, lakeapi.ErrNotFound
}

type fakePlaces struct {
	err error
}

func (f fakePlaces) Search(_ context.Context, q string) ([]domain.GeocodingResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(q) < 3 {
		return nil, nil
	}
	return []domain.GeocodingResult{{FormattedAddress: "Namche Bazaar, Nepal", Lat: 27.8, Lon: 86.71}}, nil
}

type testEnv struct {
	srv      *httpadapter.Server
	engine   *engine.Engine
	sessions *fakeSessions
	triage   *fakeTriage
	ctx      context.Context
}

func newTestEnv(t *testing.T, data *fakeData, places httpadapter.PlaceSearch) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := uiloop.New(64)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	eng := engine.New(loop, data, nil, logger, observability.NewMetricsForTesting(), engine.Options{
		MaxAttempts: 1,
		Clock:       clockwork.NewFakeClock(),
	})
	require.NoError(t, eng.Mount(ctx))

	sessions := &fakeSessions{}
	triage := &fakeTriage{sessions: sessions, pending: []domain.Lake{
		{ID: 5, Name: "Thulagi", RiskLevel: domain.RiskHigh, Status: domain.StatusPending},
	}}
	deps := httpadapter.Dependencies{
		Map:      eng,
		Sessions: sessions,
		Triage:   triage,
		Places:   places,
	}
	return &testEnv{srv: httpadapter.NewServer(":0", deps, logger), engine: eng, sessions: sessions, triage: triage, ctx: ctx}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, nil)

	rec := env.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyzFollowsDatasetLoad(t *testing.T) {
	env := newTestEnv(t, &fakeData{dataset: []domain.Lake{imja, rolpa}}, nil)

	rec := env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", decode(t, rec)["status"])

	rec = env.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, nil)

	rec := env.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRefreshFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, &fakeData{err: &lakeapi.APIError{Status: 500, Message: "db down"}}, nil)

	rec := env.do(t, http.MethodPost, "/api/refresh", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "db down")
}

func TestFilterRoundTrip(t *testing.T) {
	env := newTestEnv(t, &fakeData{dataset: []domain.Lake{imja, rolpa}}, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/refresh", "").Code)

	rec := env.do(t, http.MethodPut, "/api/filter", `{"risk_levels":["high"],"search_query":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode(t, rec)
	assert.Equal(t, "ready", view["status"])
	assert.InDelta(t, 1, view["rendered"], 0)

	rec = env.do(t, http.MethodGet, "/api/filter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"high"}, decode(t, rec)["risk_levels"])

	rec = env.do(t, http.MethodGet, "/api/layer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	layer := decode(t, rec)
	features := layer["features"].(map[string]any)["features"].([]any)
	require.Len(t, features, 1)
	assert.Equal(t, "Imja Tsho", features[0].(map[string]any)["properties"].(map[string]any)[domain.PropName])
}

func TestFilterValidation(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, nil)

	rec := env.do(t, http.MethodPut, "/api/filter", `{"risk_levels":["high"],"year_range":{"from":2024,"to":2018}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/filter", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClickSelectsAndFlies(t *testing.T) {
	env := newTestEnv(t, &fakeData{dataset: []domain.Lake{imja, rolpa}}, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/refresh", "").Code)

	rec := env.do(t, http.MethodPost, "/api/click", `{"features":[{"id":"1","name":"Imja Tsho"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode(t, rec)
	assert.Equal(t, "selected", snap["state"])
	sel := snap["selection"].(map[string]any)
	assert.Equal(t, "resolved", sel["kind"])
	assert.Equal(t, "Imja Tsho", sel["lake"].(map[string]any)["name"])

	rec = env.do(t, http.MethodGet, "/api/viewport", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cam := decode(t, rec)
	assert.InDelta(t, 11, cam["zoom"], 0)
	assert.InDelta(t, 1000, cam["duration_ms"], 0)

	rec = env.do(t, http.MethodDelete, "/api/selection", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/selection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode(t, rec)["state"])
}

func TestClickAtCoordinates(t *testing.T) {
	env := newTestEnv(t, &fakeData{dataset: []domain.Lake{imja, rolpa}}, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/refresh", "").Code)

	rec := env.do(t, http.MethodPost, "/api/click", `{"lon":86.4801,"lat":27.8601}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode(t, rec)["selection"].(map[string]any)
	assert.Equal(t, "Tsho Rolpa", sel["lake"].(map[string]any)["name"])

	rec = env.do(t, http.MethodPost, "/api/click", `{"lon":80.0,"lat":20.0}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClickBadRequests(t *testing.T) {
	env := newTestEnv(t, &fakeData{dataset: []domain.Lake{imja}}, nil)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/click", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/click", `{"features":[{"id":"abc"}]}`).Code)
}

func TestStyleAndStats(t *testing.T) {
	env := newTestEnv(t, &fakeData{dataset: []domain.Lake{imja, rolpa}}, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/refresh", "").Code)

	rec := env.do(t, http.MethodGet, "/api/style", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["layers"], 2)

	rec = env.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.InDelta(t, 2, stats["total"], 0)
	assert.InDelta(t, 1, stats["high_risk"], 0)
}

func TestGeocodeSearch(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, fakePlaces{})

	rec := env.do(t, http.MethodGet, "/api/geocode/search?q=Namche", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["results"], 1)

	rec = env.do(t, http.MethodGet, "/api/geocode/search?q=Na", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["results"])
}

func TestGeocodeSearchSuperseded(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, fakePlaces{err: geosearch.ErrSuperseded})

	rec := env.do(t, http.MethodGet, "/api/geocode/search?q=Namche", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGeocodeSearchDisabled(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, nil)

	rec := env.do(t, http.MethodGet, "/api/geocode/search?q=Namche", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionAndTriage(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, nil)

	rec := env.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["signed_in"])

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/notifications", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/notifications?cached=true", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPatch, "/api/reports/5/verify", "").Code)

	rec = env.do(t, http.MethodPost, "/api/session", `{"email":"m@example.org","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/session", `{"email":"","password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session", `{"email":"m@example.org","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["signed_in"])

	rec = env.do(t, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["reports"], 1)

	rec = env.do(t, http.MethodPatch, "/api/reports/5/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "VERIFIED", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/api/notifications?cached=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decode(t, rec)["reports"].([]any)
	require.Len(t, reports, 1)
	assert.Equal(t, "VERIFIED", reports[0].(map[string]any)["status"])

	rec = env.do(t, http.MethodPatch, "/api/reports/5/reject", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REJECTED", decode(t, rec)["status"])

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, "/api/reports/99/verify", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/api/reports/abc/verify", "").Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/session", "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodDelete, "/api/session", "").Code)
}

func TestSubmitReport(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, nil)
	body := `{"lake_name":"Chamlang South","latitude":27.77,"longitude":86.97,"area_km2":0.4,"dam_slope_deg":8,"temp_c":1.2,"elevation_m":5200}`

	rec := env.do(t, http.MethodPost, "/api/reports", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.triage.uploads)

	env.sessions.user = &domain.Official{ID: 7, Name: "Mingma"}

	rec = env.do(t, http.MethodPost, "/api/reports", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, env.triage.uploads, 1)
	assert.Equal(t, domain.LakeUpload{
		Name: "Chamlang South", Latitude: 27.77, Longitude: 86.97, Region: domain.UnknownRegion,
		AreaKm2: 0.4, DamSlopeDeg: 8, TempC: 1.2, ElevationM: 5200,
	}, env.triage.uploads[0])

	rec = env.do(t, http.MethodPost, "/api/reports", `{"lake_name":"","latitude":27.7,"longitude":86.9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reports", `{"lake_name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reports", `{"lake_name":"Imja Tsho","latitude":27.898,"longitude":86.925}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Lake already reported", decode(t, rec)["error"])
	assert.Len(t, env.triage.uploads, 1)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t, &fakeData{}, nil)

	rec := env.do(t, http.MethodPatch, "/api/session/password", `{"current_password":"secret","new_password":"n3w"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.sessions.user = &domain.Official{ID: 7, Name: "Mingma"}

	rec = env.do(t, http.MethodPatch, "/api/session/password", `{"current_password":"secret","new_password":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/session/password", `{"current_password":"wrong","new_password":"n3w"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is incorrect", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPatch, "/api/session/password", `{"current_password":"secret","new_password":"n3w"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLoopStoppedIsUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := uiloop.New(1)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	cancel()
	<-loop.Done()

	eng := engine.New(loop, &fakeData{}, nil, logger, observability.NewMetricsForTesting(), engine.Options{Clock: clockwork.NewFakeClock()})
	srv := httpadapter.NewServer(":0", httpadapter.Dependencies{Map: eng, Sessions: &fakeSessions{}}, logger)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], uiloop.ErrStopped.Error())
}
