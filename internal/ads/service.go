// Package ads manages classified listings and enforces that only an ad's
// creator may change or remove it.
package ads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
)

const (
	DefaultLimit    = 10
	DefaultMaxLimit = 100
)

var (
	// ErrForbidden means the caller is authenticated but does not own the ad.
	ErrForbidden = errors.New("not authorized")
	// ErrInvalidPage rejects negative offsets and non-positive limits.
	ErrInvalidPage = errors.New("invalid pagination")
)

// AuthorizeMutation allows a write only when callerID created the ad.
func AuthorizeMutation(ad models.Ad, callerID string) error {
	if callerID == "" || ad.UserID != callerID {
		return ErrForbidden
	}
	return nil
}

// ApplyPartialUpdate returns existing with every non-nil patch field
// overwritten.
func ApplyPartialUpdate(existing models.Ad, patch models.AdPatch) models.Ad {
	return patch.Apply(existing)
}

// Service is the listing API over an AdStore.
type Service struct {
	store    storage.AdStore
	maxLimit int
	logger   *slog.Logger
}

// NewService creates a Service; maxLimit caps page sizes and falls back to
// DefaultMaxLimit when not positive.
func NewService(store storage.AdStore, maxLimit int, logger *slog.Logger) *Service {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Service{store: store, maxLimit: maxLimit, logger: logger}
}

// Create stores ad as owned by owner. Server-managed fields from the input
// are discarded.
func (s *Service) Create(ctx context.Context, owner models.User, ad models.Ad) (models.Ad, error) {
	ad.ID = ""
	ad.UserID = owner.ID
	ad.CreatedAt = time.Now().UTC()
	ad.Approved = false
	ad.Views = 0
	if ad.Images == nil {
		ad.Images = []string{}
	}
	created, err := s.store.CreateAd(ctx, ad)
	if err != nil {
		return models.Ad{}, fmt.Errorf("create ad: %w", err)
	}
	s.logger.Info("ad created", "ad_id", created.ID, "user_id", owner.ID)
	return created, nil
}

// Get returns one ad or storage.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.Ad, error) {
	return s.store.FindAdByID(ctx, id)
}

// List returns a page of ads. limit is clamped to the configured maximum.
func (s *Service) List(ctx context.Context, skip, limit int) ([]models.Ad, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must be greater than or equal to 0", ErrInvalidPage)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be greater than or equal to 1", ErrInvalidPage)
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.store.ListAds(ctx, skip, limit)
}

// Update applies patch for caller. Existence is checked before ownership, so
// a missing ad is storage.ErrNotFound even for a non-owner.
func (s *Service) Update(ctx context.Context, id string, caller models.User, patch models.AdPatch) (models.Ad, error) {
	existing, err := s.store.FindAdByID(ctx, id)
	if err != nil {
		return models.Ad{}, err
	}
	if err := AuthorizeMutation(existing, caller.ID); err != nil {
		return models.Ad{}, err
	}
	if patch.IsEmpty() {
		return ApplyPartialUpdate(existing, patch), nil
	}
	updated, err := s.store.UpdateAd(ctx, id, patch)
	if err != nil {
		return models.Ad{}, err
	}
	s.logger.Info("ad updated", "ad_id", id, "user_id", caller.ID)
	return updated, nil
}

// Delete removes the ad for caller with the same not-found-then-forbidden
// ordering as Update.
func (s *Service) Delete(ctx context.Context, id string, caller models.User) error {
	existing, err := s.store.FindAdByID(ctx, id)
	if err != nil {
		return err
	}
	if err := AuthorizeMutation(existing, caller.ID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteAd(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		// Removed by a concurrent request between the lookup and the delete.
		return storage.ErrNotFound
	}
	s.logger.Info("ad deleted", "ad_id", id, "user_id", caller.ID)
	return nil
}
