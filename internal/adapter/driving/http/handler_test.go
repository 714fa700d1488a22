package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/ghswitch/internal/adapter/driving/http"
	"github.com/ericfisherdev/ghswitch/internal/application"
	"github.com/ericfisherdev/ghswitch/internal/domain/model"
	"github.com/ericfisherdev/ghswitch/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockStore struct {
	identities []model.Identity
	listErr    error
	deleted    []string
}

func (m *mockStore) List(_ context.Context) ([]model.Identity, error) {
	return m.identities, m.listErr
}

func (m *mockStore) Insert(_ context.Context, identity model.Identity) error {
	m.identities = append(m.identities, identity)
	return nil
}

func (m *mockStore) UpsertByGitHubID(_ context.Context, identity model.Identity) (model.Identity, error) {
	return identity, nil
}

func (m *mockStore) Get(_ context.Context, id string) (model.Identity, error) {
	for _, identity := range m.identities {
		if identity.ID == id {
			return identity, nil
		}
	}
	return model.Identity{}, driven.ErrIdentityNotFound
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) TouchLastUsed(_ context.Context, id string) (model.Identity, error) {
	return m.Get(context.Background(), id)
}

type mockOAuth struct {
	session    model.DeviceAuthorization
	sessionErr error
	pollToken  string
	pollErr    error
	profile    model.GitHubUser
	profileErr error
}

func (m *mockOAuth) RequestDeviceCode(_ context.Context, _ string) (model.DeviceAuthorization, error) {
	return m.session, m.sessionErr
}

func (m *mockOAuth) PollForToken(_ context.Context, _, _ string, _, _ int) (string, error) {
	return m.pollToken, m.pollErr
}

func (m *mockOAuth) FetchProfile(_ context.Context, _ string) (model.GitHubUser, error) {
	return m.profile, m.profileErr
}

type mockTarget struct {
	applied int
}

func (m *mockTarget) ReadActiveToken() (string, bool) { return "", false }

func (m *mockTarget) ApplyToken(_, _ string) error {
	m.applied++
	return nil
}

type fixture struct {
	store  *mockStore
	oauth  *mockOAuth
	target *mockTarget
	opened []string
	server http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  &mockStore{},
		oauth:  &mockOAuth{},
		target: &mockTarget{},
	}

	logger := slog.New(slog.DiscardHandler)
	svc := application.NewAccountService(f.store, f.oauth, f.target, logger)
	openURL := func(u string) error {
		f.opened = append(f.opened, u)
		return nil
	}
	handler := httphandler.NewHandler(svc, openURL, "default-client", logger)
	f.server = httphandler.NewServeMux(handler, logger)

	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestListIdentities(t *testing.T) {
	f := newFixture(t)
	email := "octocat@example.com"
	lastUsed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.store.identities = []model.Identity{{
		ID:          "id-1",
		Name:        "octocat",
		AccessToken: "secret-token",
		Email:       &email,
		GitHubID:    1001,
		CreatedAt:   time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		LastUsedAt:  &lastUsed,
	}}

	rec := f.do(t, http.MethodGet, "/api/v1/identities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "id-1", resp[0]["id"])
	assert.Equal(t, "octocat", resp[0]["name"])
	assert.Equal(t, "2025-05-01T09:00:00Z", resp[0]["created_at"])
	assert.Equal(t, "2025-06-01T12:00:00Z", resp[0]["last_used_at"])

	// The credential never crosses the command surface.
	assert.NotContains(t, rec.Body.String(), "secret-token")
}

func TestStartLink(t *testing.T) {
	f := newFixture(t)
	f.oauth.session = model.DeviceAuthorization{
		DeviceCode:      "dev-123",
		UserCode:        "ABCD-1234",
		VerificationURI: "https://github.com/login/device",
		ExpiresIn:       900,
		Interval:        5,
	}

	rec := f.do(t, http.MethodPost, "/api/v1/link/start", `{"client_id":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "dev-123", resp["device_code"])
	assert.Equal(t, "ABCD-1234", resp["user_code"])
	assert.Equal(t, float64(5), resp["interval"])
}

func TestStartLink_FallsBackToDefaultClientID(t *testing.T) {
	f := newFixture(t)
	f.oauth.session = model.DeviceAuthorization{DeviceCode: "dev-123", UserCode: "ABCD"}

	rec := f.do(t, http.MethodPost, "/api/v1/link/start", `{}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCompleteLink(t *testing.T) {
	f := newFixture(t)
	f.oauth.pollToken = "tok123"
	f.oauth.profile = model.GitHubUser{ID: 1001, Login: "octocat"}

	rec := f.do(t, http.MethodPost, "/api/v1/link/complete",
		`{"client_id":"abc","device_code":"dev-123","interval":5,"expires_in":15}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "octocat", resp["name"])
	assert.Equal(t, float64(1001), resp["github_id"])
	assert.NotEmpty(t, resp["id"])

	assert.Equal(t, 1, f.target.applied)
}

func TestCompleteLink_Expired(t *testing.T) {
	f := newFixture(t)
	f.oauth.pollErr = driven.ErrDeviceCodeExpired

	rec := f.do(t, http.MethodPost, "/api/v1/link/complete",
		`{"client_id":"abc","device_code":"dev-123","interval":5,"expires_in":15}`)
	require.Equal(t, http.StatusGone, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "expired", resp["code"])
}

func TestCompleteLink_AccessDenied(t *testing.T) {
	f := newFixture(t)
	f.oauth.pollErr = driven.ErrAccessDenied

	rec := f.do(t, http.MethodPost, "/api/v1/link/complete",
		`{"client_id":"abc","device_code":"dev-123","interval":5,"expires_in":15}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCompleteLink_ProtocolError(t *testing.T) {
	f := newFixture(t)
	f.oauth.pollErr = &driven.ProtocolError{Code: "unsupported_grant_type"}

	rec := f.do(t, http.MethodPost, "/api/v1/link/complete",
		`{"client_id":"abc","device_code":"dev-123","interval":5,"expires_in":15}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCompleteLink_MissingFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/link/complete", `{"client_id":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwitchIdentity(t *testing.T) {
	f := newFixture(t)
	f.store.identities = []model.Identity{{ID: "id-1", Name: "octocat", AccessToken: "tok"}}

	rec := f.do(t, http.MethodPost, "/api/v1/identities/id-1/switch", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, f.target.applied)
}

func TestSwitchIdentity_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/identities/missing/switch", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp["code"])
}

func TestDeleteIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/api/v1/identities/id-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"id-1"}, f.store.deleted)
}

func TestOpenURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/open-url", `{"url":"https://github.com/login/device"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"https://github.com/login/device"}, f.opened)
}

func TestOpenURL_RejectsNonHTTPSchemes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/open-url", `{"url":"file:///etc/passwd"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.opened)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/reconcile", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestListIdentities_StorageError(t *testing.T) {
	f := newFixture(t)
	f.store.listErr = errors.New("disk on fire")

	rec := f.do(t, http.MethodGet, "/api/v1/identities", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
