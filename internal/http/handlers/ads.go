package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/limpopoconnect/classifieds-api/internal/ads"
	"github.com/limpopoconnect/classifieds-api/internal/http/respond"
	"github.com/limpopoconnect/classifieds-api/internal/middleware"
	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/models/dto"
)

const adNotFound = "Ad not found"

// AdService is the listing behavior the ad routes need.
type AdService interface {
	Create(ctx context.Context, owner models.User, ad models.Ad) (models.Ad, error)
	Get(ctx context.Context, id string) (models.Ad, error)
	List(ctx context.Context, skip, limit int) ([]models.Ad, error)
	Update(ctx context.Context, id string, caller models.User, patch models.AdPatch) (models.Ad, error)
	Delete(ctx context.Context, id string, caller models.User) error
}

// AdsHandler serves /ads. Reads are public; writes need a bearer token.
type AdsHandler struct {
	ads         AdService
	requireUser func(http.Handler) http.Handler
	logger      *slog.Logger
}

func NewAdsHandler(service AdService, requireUser func(http.Handler) http.Handler, logger *slog.Logger) *AdsHandler {
	return &AdsHandler{ads: service, requireUser: requireUser, logger: logger}
}

// Register attaches ad routes to the mux.
func (h *AdsHandler) Register(mux *http.ServeMux) {
	mux.Handle("POST /ads", h.requireUser(http.HandlerFunc(h.handleCreate)))
	mux.HandleFunc("GET /ads", h.handleList)
	mux.HandleFunc("GET /ads/{id}", h.handleGet)
	mux.Handle("PUT /ads/{id}", h.requireUser(http.HandlerFunc(h.handleUpdate)))
	mux.Handle("DELETE /ads/{id}", h.requireUser(http.HandlerFunc(h.handleDelete)))
}

func (h *AdsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "Not authenticated")
		return
	}
	var req dto.AdCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	ad, err := h.ads.Create(r.Context(), user, req.ToAd())
	if err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, ad)
}

func (h *AdsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	limit, err := queryInt(r, "limit", ads.DefaultLimit)
	if err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	list, err := h.ads.List(r.Context(), skip, limit)
	if err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

func (h *AdsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ad, err := h.ads.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, ad)
}

func (h *AdsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "Not authenticated")
		return
	}
	var req dto.AdUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	ad, err := h.ads.Update(r.Context(), r.PathValue("id"), user, req.Patch())
	if err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, ad)
}

func (h *AdsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.Unauthorized(w, "Not authenticated")
		return
	}
	if err := h.ads.Delete(r.Context(), r.PathValue("id"), user); err != nil {
		writeError(w, h.logger, err, adNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, dto.MessageResponse{Message: "Ad deleted"})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &dto.ValidationError{Field: key, Reason: "value is not a valid integer"}
	}
	return v, nil
}
