package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/limpopoconnect/classifieds-api/internal/auth"
	"github.com/limpopoconnect/classifieds-api/internal/http/respond"
	"github.com/limpopoconnect/classifieds-api/internal/models"
)

type userContextKey struct{}

// Identifier resolves a bearer token to a stored user.
type Identifier interface {
	Identify(ctx context.Context, token string) (models.User, error)
}

// RequireUser rejects requests without a valid bearer token for an existing
// user and passes the resolved user to next through the request context.
func RequireUser(identifier Identifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				logger.Warn("authorization header invalid", "error", err, "path", r.URL.Path)
				respond.Unauthorized(w, "Not authenticated")
				return
			}
			user, err := identifier.Identify(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					logger.Warn("token validation failed", "error", err, "path", r.URL.Path)
					respond.Unauthorized(w, "Could not validate credentials")
					return
				}
				logger.Error("resolve current user", "error", err, "path", r.URL.Path)
				respond.Error(w, http.StatusInternalServerError, "failed to resolve user")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser stores user on ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user stored by RequireUser.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(models.User)
	return user, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
