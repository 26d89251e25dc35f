package handlers

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
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/limpopoconnect/classifieds-api/internal/ads"
	"github.com/limpopoconnect/classifieds-api/internal/auth"
	"github.com/limpopoconnect/classifieds-api/internal/mail"
	"github.com/limpopoconnect/classifieds-api/internal/middleware"
	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/models/dto"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
	"github.com/limpopoconnect/classifieds-api/internal/storage/sqlite"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Dispatch(msg mail.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
}

func (o *outbox) messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.sent...)
}

type testAPI struct {
	url    string
	store  storage.Store
	tokens *auth.TokenManager
	outbox *outbox
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenManager("test-secret", "limpopoconnect-test", 30*time.Minute)
	box := &outbox{}
	accounts := auth.NewService(store, auth.NewPasswordHasher(bcrypt.MinCost), tokens, box, logger)
	requireUser := middleware.RequireUser(accounts, logger)

	mux := http.NewServeMux()
	NewHealthHandler(time.Now(), store.Ping).Register(mux)
	NewAuthHandler(accounts, requireUser, logger).Register(mux)
	NewAdsHandler(ads.NewService(store, ads.DefaultMaxLimit, logger), requireUser, logger).Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return testAPI{url: ts.URL, store: store, tokens: tokens, outbox: box}
}

func (a testAPI) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.url+path, reader)
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

func (a testAPI) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(a.url+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (a testAPI) register(t *testing.T, username, email, password string) models.User {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/register", "", dto.RegisterRequest{Username: username, Email: email, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[models.User](t, resp)
}

func (a testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := a.postForm(t, "/token", url.Values{"username": {email}, "password": {password}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[dto.TokenResponse](t, resp)
	require.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func detail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}
