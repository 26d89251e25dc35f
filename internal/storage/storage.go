package storage

import (
	"context"
	"errors"

	"github.com/limpopoconnect/classifieds-api/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore persists user identities. Email uniqueness is enforced by the
// backend itself, so concurrent CreateUser calls with the same email yield
// exactly one success and ErrAlreadyExists for the rest.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// AdStore persists ads. ListAds orders by creation time, then id.
type AdStore interface {
	CreateAd(ctx context.Context, ad models.Ad) (models.Ad, error)
	FindAdByID(ctx context.Context, id string) (models.Ad, error)
	ListAds(ctx context.Context, skip, limit int) ([]models.Ad, error)
	UpdateAd(ctx context.Context, id string, patch models.AdPatch) (models.Ad, error)
	DeleteAd(ctx context.Context, id string) (bool, error)
}

// Store is a complete backend as wired by the server.
type Store interface {
	UserStore
	AdStore
	Ping(ctx context.Context) error
	Close() error
}
