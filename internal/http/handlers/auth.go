package handlers

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/limpopoconnect/classifieds-api/internal/http/respond"
	"github.com/limpopoconnect/classifieds-api/internal/middleware"
	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/models/dto"
)

// AccountService is the account behavior the auth routes need.
type AccountService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) error
}

// AuthHandler owns registration, token issuance and current-user routes.
type AuthHandler struct {
	accounts    AccountService
	requireUser func(http.Handler) http.Handler
	logger      *slog.Logger
}

// NewAuthHandler constructs the handler. requireUser guards /users/me.
func NewAuthHandler(accounts AccountService, requireUser func(http.Handler) http.Handler, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, requireUser: requireUser, logger: logger}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("POST /token", h.handleToken)
	mux.Handle("GET /users/me", h.requireUser(http.HandlerFunc(h.handleMe)))
	mux.HandleFunc("POST /forgot-password", h.handleForgotPassword)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err, "")
		return
	}
	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err, "")
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

// handleToken implements the OAuth2 password grant form: username carries
// the email address.
func (h *AuthHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	email := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		respond.Error(w, http.StatusBadRequest, "username and password are required")
		return
	}
	token, err := h.accounts.Login(r.Context(), email, password)
	if err != nil {
		writeError(w, h.logger, err, "")
		return
	}
	respond.JSON(w, http.StatusOK, dto.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "Not authenticated")
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		var err error
		if email, err = h.emailFromBody(w, r); err != nil {
			writeError(w, h.logger, err, "")
			return
		}
	}
	if email == "" {
		respond.Error(w, http.StatusBadRequest, "email: field required")
		return
	}
	if err := h.accounts.RequestPasswordReset(r.Context(), email); err != nil {
		writeError(w, h.logger, err, "User not found")
		return
	}
	respond.JSON(w, http.StatusOK, dto.MessageResponse{Message: "Password reset email sent"})
}

func (h *AuthHandler) emailFromBody(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req dto.ForgotPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.Email), nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return "", &dto.ValidationError{Reason: "invalid form payload"}
	}
	return strings.TrimSpace(r.PostFormValue("email")), nil
}
