package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/limpopoconnect/classifieds-api/internal/ads"
	"github.com/limpopoconnect/classifieds-api/internal/auth"
	"github.com/limpopoconnect/classifieds-api/internal/http/respond"
	"github.com/limpopoconnect/classifieds-api/internal/models/dto"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &dto.ValidationError{Reason: "invalid JSON payload"}
	}
	return nil
}

// writeError maps a service error onto its status code. notFound is the
// detail used for storage.ErrNotFound.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, notFound string) {
	var verr *dto.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, ads.ErrInvalidPage):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		respond.Error(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respond.Unauthorized(w, "Incorrect email or password")
	case errors.Is(err, auth.ErrUnauthorized):
		respond.Unauthorized(w, "Could not validate credentials")
	case errors.Is(err, ads.ErrForbidden):
		respond.Error(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, notFound)
	default:
		logger.Error("request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
