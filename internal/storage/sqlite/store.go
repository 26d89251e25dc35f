// Package sqlite provides an embedded SQLite store for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
	"github.com/limpopoconnect/classifieds-api/internal/storage/migrations"
)

var _ storage.Store = (*Store)(nil)

// Store persists users and ads in a single SQLite file.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers, which keeps UpdateAd's
	// read-modify-write atomic.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.SQLite())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the handle is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, username, email, hashed_password, role, profile_picture, created_at`

// CreateUser inserts a user; a duplicate email returns storage.ErrAlreadyExists.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user.ID = uuid.NewString()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = fromMillis(toMillis(user.CreatedAt))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.HashedPassword, user.Role, user.ProfilePicture, toMillis(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// FindByEmail fetches a user by exact email.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

const adColumns = `id, title, description, category, location, age, contact_info, images, user_id, created_at, approved, views`

// CreateAd inserts an ad with a fresh id.
func (s *Store) CreateAd(ctx context.Context, ad models.Ad) (models.Ad, error) {
	ad.ID = uuid.NewString()
	if ad.Images == nil {
		ad.Images = []string{}
	}
	if ad.CreatedAt.IsZero() {
		ad.CreatedAt = time.Now()
	}
	ad.CreatedAt = fromMillis(toMillis(ad.CreatedAt))
	images, err := json.Marshal(ad.Images)
	if err != nil {
		return models.Ad{}, fmt.Errorf("encode images: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ads (`+adColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ad.ID, ad.Title, ad.Description, ad.Category, ad.Location, ad.Age, ad.ContactInfo,
		string(images), ad.UserID, toMillis(ad.CreatedAt), ad.Approved, ad.Views,
	)
	if err != nil {
		return models.Ad{}, fmt.Errorf("create ad: %w", err)
	}
	return ad, nil
}

// FindAdByID fetches one ad.
func (s *Store) FindAdByID(ctx context.Context, id string) (models.Ad, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id = ?`, id)
	return scanAd(row)
}

// ListAds returns one page of ads ordered by creation time, then id.
func (s *Store) ListAds(ctx context.Context, skip, limit int) ([]models.Ad, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adColumns+` FROM ads ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`,
		limit, skip,
	)
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

// UpdateAd applies patch inside a transaction.
func (s *Store) UpdateAd(ctx context.Context, id string, patch models.AdPatch) (models.Ad, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Ad{}, fmt.Errorf("update ad: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanAd(tx.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id = ?`, id))
	if err != nil {
		return models.Ad{}, err
	}
	updated := patch.Apply(existing)
	images, err := json.Marshal(updated.Images)
	if err != nil {
		return models.Ad{}, fmt.Errorf("encode images: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE ads SET title = ?, description = ?, category = ?, location = ?, age = ?, contact_info = ?, images = ?
		  WHERE id = ?`,
		updated.Title, updated.Description, updated.Category, updated.Location, updated.Age, updated.ContactInfo,
		string(images), id,
	)
	if err != nil {
		return models.Ad{}, fmt.Errorf("update ad: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Ad{}, fmt.Errorf("update ad: %w", err)
	}
	return updated, nil
}

// DeleteAd removes one ad and reports whether it existed.
func (s *Store) DeleteAd(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete ad: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete ad: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.User, error) {
	var (
		user      models.User
		picture   sql.NullString
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.Role, &picture, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	if picture.Valid {
		user.ProfilePicture = &picture.String
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

func scanAd(row scanner) (models.Ad, error) {
	var (
		ad        models.Ad
		age       sql.NullInt64
		contact   sql.NullString
		images    string
		createdAt int64
	)
	err := row.Scan(&ad.ID, &ad.Title, &ad.Description, &ad.Category, &ad.Location, &age, &contact,
		&images, &ad.UserID, &createdAt, &ad.Approved, &ad.Views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Ad{}, storage.ErrNotFound
		}
		return models.Ad{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		ad.Age = &v
	}
	if contact.Valid {
		ad.ContactInfo = &contact.String
	}
	if err := json.Unmarshal([]byte(images), &ad.Images); err != nil {
		return models.Ad{}, fmt.Errorf("decode images: %w", err)
	}
	if ad.Images == nil {
		ad.Images = []string{}
	}
	ad.CreatedAt = fromMillis(createdAt)
	return ad, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
