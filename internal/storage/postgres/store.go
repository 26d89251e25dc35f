package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
	"github.com/limpopoconnect/classifieds-api/internal/storage/migrations"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users and ads.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Postgres())
	if err != nil {
		return fmt.Errorf("configure migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, hashed_password, role, profile_picture, created_at`

// CreateUser inserts a new user row. The unique index on email decides
// concurrent registrations.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, username, email, hashed_password, role, profile_picture, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, query,
		uuid.NewString(), user.Username, user.Email, user.HashedPassword, user.Role, user.ProfilePicture, user.CreatedAt)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// FindByEmail fetches a user by exact email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

const adColumns = `id, title, description, category, location, age, contact_info, images, user_id, created_at, approved, views`

// CreateAd inserts an ad and returns the stored row.
func (s *Store) CreateAd(ctx context.Context, ad models.Ad) (models.Ad, error) {
	const query = `
		INSERT INTO ads (id, title, description, category, location, age, contact_info, images, user_id, created_at, approved, views)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + adColumns
	if ad.Images == nil {
		ad.Images = []string{}
	}
	if ad.CreatedAt.IsZero() {
		ad.CreatedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, query,
		uuid.NewString(), ad.Title, ad.Description, ad.Category, ad.Location, ad.Age, ad.ContactInfo,
		ad.Images, ad.UserID, ad.CreatedAt, ad.Approved, ad.Views)
	created, err := scanAd(row)
	if err != nil {
		return models.Ad{}, fmt.Errorf("create ad: %w", err)
	}
	return created, nil
}

// FindAdByID fetches one ad.
func (s *Store) FindAdByID(ctx context.Context, id string) (models.Ad, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id)
	return scanAd(row)
}

// ListAds returns up to limit ads after skipping skip, oldest first.
func (s *Store) ListAds(ctx context.Context, skip, limit int) ([]models.Ad, error) {
	const query = `SELECT ` + adColumns + ` FROM ads ORDER BY created_at ASC, id ASC OFFSET $1 LIMIT $2`
	rows, err := s.pool.Query(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	defer rows.Close()

	ads := make([]models.Ad, 0, limit)
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("list ads: %w", err)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	return ads, nil
}

// UpdateAd overwrites the columns whose patch value is non-nil in a single
// statement; NULL parameters fall through COALESCE to the stored value.
func (s *Store) UpdateAd(ctx context.Context, id string, patch models.AdPatch) (models.Ad, error) {
	const query = `
		UPDATE ads SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			category = COALESCE($4, category),
			location = COALESCE($5, location),
			age = COALESCE($6, age),
			contact_info = COALESCE($7, contact_info),
			images = COALESCE($8, images)
		WHERE id = $1
		RETURNING ` + adColumns
	var images any
	if patch.Images != nil {
		images = append([]string{}, (*patch.Images)...)
	}
	row := s.pool.QueryRow(ctx, query, id,
		patch.Title, patch.Description, patch.Category, patch.Location, patch.Age, patch.ContactInfo, images)
	return scanAd(row)
}

// DeleteAd removes one ad and reports whether it existed.
func (s *Store) DeleteAd(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete ad: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.Role, &user.ProfilePicture, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func scanAd(row pgx.Row) (models.Ad, error) {
	var ad models.Ad
	if err := row.Scan(&ad.ID, &ad.Title, &ad.Description, &ad.Category, &ad.Location, &ad.Age, &ad.ContactInfo,
		&ad.Images, &ad.UserID, &ad.CreatedAt, &ad.Approved, &ad.Views); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ad{}, storage.ErrNotFound
		}
		return models.Ad{}, err
	}
	if ad.Images == nil {
		ad.Images = []string{}
	}
	ad.CreatedAt = ad.CreatedAt.UTC()
	return ad, nil
}
