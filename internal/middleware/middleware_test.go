package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limpopoconnect/classifieds-api/internal/auth"
	"github.com/limpopoconnect/classifieds-api/internal/models"
)

type identifierFunc func(ctx context.Context, token string) (models.User, error)

func (f identifierFunc) Identify(ctx context.Context, token string) (models.User, error) {
	return f(ctx, token)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "no user", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, user.ID)
})

func TestRequireUser(t *testing.T) {
	identifier := identifierFunc(func(_ context.Context, token string) (models.User, error) {
		switch token {
		case "good":
			return models.User{ID: "user-1"}, nil
		case "boom":
			return models.User{}, errors.New("store unavailable")
		default:
			return models.User{}, fmt.Errorf("%w: %w", auth.ErrUnauthorized, auth.ErrInvalidToken)
		}
	})
	handler := RequireUser(identifier, discardLogger())(echoUser)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer good", http.StatusOK, "user-1"},
		{"case insensitive scheme", "bearer good", http.StatusOK, "user-1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"no token", "Bearer", http.StatusUnauthorized, ""},
		{"extra parts", "Bearer good extra", http.StatusUnauthorized, ""},
		{"rejected token", "Bearer bad", http.StatusUnauthorized, ""},
		{"store failure", "Bearer boom", http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	listed := CORS([]string{"https://limpopoconnect.co.za"})(next)
	req := httptest.NewRequest(http.MethodGet, "/ads", nil)
	req.Header.Set("Origin", "https://LimpopoConnect.co.za")
	rec := httptest.NewRecorder()
	listed.ServeHTTP(rec, req)
	assert.Equal(t, "https://LimpopoConnect.co.za", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/ads", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	listed.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	wildcard := CORS([]string{"*"})(next)
	req = httptest.NewRequest(http.MethodOptions, "/ads", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	wildcard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestObserveRecordsRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ads/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	handler := Observe(discardLogger(), metrics, mux)(mux)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ads/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	expected := `
# HELP limpopoconnect_api_http_requests_total Count of processed HTTP requests
# TYPE limpopoconnect_api_http_requests_total counter
limpopoconnect_api_http_requests_total{method="GET",route="GET /ads/{id}",status="404"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "limpopoconnect_api_http_requests_total"))
}
