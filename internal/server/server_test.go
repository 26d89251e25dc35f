package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/limpopoconnect/classifieds-api/internal/config"
	"github.com/limpopoconnect/classifieds-api/internal/mail"
	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/storage/sqlite"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func newTestServer(t *testing.T, origins ...string) (*Server, *httptest.Server, *recordingSender) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg := config.Config{
		Port:           "0",
		JWTSecret:      "server-test-secret",
		JWTIssuer:      "limpopoconnect-api",
		JWTTTLMinutes:  "30",
		CORSOrigins:    origins,
		AdsMaxPageSize: 100,
	}
	sender := &recordingSender{}
	srv := newServer(cfg, store, sender, slog.New(slog.NewTextHandler(io.Discard, nil)), bcrypt.MinCost)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, sender
}

func call(t *testing.T, method, target, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func token(t *testing.T, base, email, password string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	resp, err := http.Post(base+"/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.AccessToken
}

func TestEndToEndOwnership(t *testing.T) {
	_, ts, _ := newTestServer(t)

	for _, u := range []map[string]string{
		{"username": "u1", "email": "u1@x.com", "password": "pw1"},
		{"username": "u2", "email": "u2@x.com", "password": "pw2"},
	} {
		require.Equal(t, http.StatusOK, call(t, http.MethodPost, ts.URL+"/register", "", u).StatusCode)
	}
	t1 := token(t, ts.URL, "u1@x.com", "pw1")
	t2 := token(t, ts.URL, "u2@x.com", "pw2")

	resp := call(t, http.MethodPost, ts.URL+"/ads", t1, map[string]any{
		"title": "Bicycle", "description": "Mountain bike", "category": "sport", "location": "Thohoyandou",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ad models.Ad
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ad))

	assert.Equal(t, http.StatusOK, call(t, http.MethodGet, ts.URL+"/ads/"+ad.ID, "", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, call(t, http.MethodPut, ts.URL+"/ads/"+ad.ID, t2, map[string]any{"title": "Mine"}).StatusCode)
	assert.Equal(t, http.StatusOK, call(t, http.MethodDelete, ts.URL+"/ads/"+ad.ID, t1, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, ts.URL+"/ads/"+ad.ID, "", nil).StatusCode)
}

func TestMetricsExposeRoutePatterns(t *testing.T) {
	_, ts, _ := newTestServer(t)
	call(t, http.MethodGet, ts.URL+"/ads/some-id", "", nil)
	call(t, http.MethodGet, ts.URL+"/health", "", nil)

	resp := call(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, `limpopoconnect_api_http_requests_total{method="GET",route="GET /ads/{id}",status="404"} 1`)
	assert.Contains(t, body, `limpopoconnect_api_http_requests_total{method="GET",route="GET /health",status="200"} 1`)
	assert.Contains(t, body, "limpopoconnect_api_http_request_duration_seconds_bucket")
	assert.NotContains(t, body, "some-id")
}

func TestCORSPreflight(t *testing.T) {
	_, ts, _ := newTestServer(t, "https://limpopoconnect.co.za")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/ads", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://limpopoconnect.co.za")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://limpopoconnect.co.za", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/ads", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	other, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer other.Body.Close()
	assert.Empty(t, other.Header.Get("Access-Control-Allow-Origin"))
}

func TestShutdownWaitsForMail(t *testing.T) {
	srv, ts, sender := newTestServer(t)
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, ts.URL+"/register", "", map[string]string{
		"username": "u1", "email": "u1@x.com", "password": "pw",
	}).StatusCode)
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, ts.URL+"/forgot-password?email=u1@x.com", "", nil).StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Password Reset", sender.sent[0].Subject)
}
