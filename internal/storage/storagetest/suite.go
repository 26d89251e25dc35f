// Package storagetest holds the behavioral contract every storage.Store
// implementation must satisfy.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
)

// Opener returns an empty store; cleanup is registered on t.
type Opener func(t *testing.T) storage.Store

// Run exercises the store contract against fresh stores from open.
func Run(t *testing.T, open Opener) {
	t.Run("CreateUserAndFind", func(t *testing.T) { testCreateUserAndFind(t, open(t)) })
	t.Run("DuplicateEmailRejected", func(t *testing.T) { testDuplicateEmail(t, open(t)) })
	t.Run("EmailIsCaseSensitive", func(t *testing.T) { testEmailCaseSensitive(t, open(t)) })
	t.Run("ConcurrentRegistrationSingleWinner", func(t *testing.T) { testConcurrentRegistration(t, open(t)) })
	t.Run("UnknownUser", func(t *testing.T) { testUnknownUser(t, open(t)) })
	t.Run("CreateAdAndFind", func(t *testing.T) { testCreateAdAndFind(t, open(t)) })
	t.Run("ListAdsPaginates", func(t *testing.T) { testListAdsPaginates(t, open(t)) })
	t.Run("UpdateAdPartial", func(t *testing.T) { testUpdateAdPartial(t, open(t)) })
	t.Run("UpdateMissingAd", func(t *testing.T) { testUpdateMissingAd(t, open(t)) })
	t.Run("DeleteAd", func(t *testing.T) { testDeleteAd(t, open(t)) })
}

func newUser(email string) models.User {
	return models.User{
		Username:       "seller",
		Email:          email,
		HashedPassword: "$2a$10$abcdefghijklmnopqrstuu5Gf0R7bGx0cW1Rj8Kx0h3W5yKx6x5Zq",
		Role:           models.RoleUser,
	}
}

func newAd(owner string, createdAt time.Time) models.Ad {
	age := 2
	contact := "sipho@example.com"
	return models.Ad{
		Title:       "Fridge",
		Description: "Defy double door, works well",
		Category:    "appliances",
		Location:    "Thohoyandou",
		Age:         &age,
		ContactInfo: &contact,
		Images:      []string{"https://img.example/fridge.jpg"},
		UserID:      owner,
		CreatedAt:   createdAt,
	}
}

func testCreateUserAndFind(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created, err := s.CreateUser(ctx, newUser("thandi@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.ProfilePicture)

	byEmail, err := s.FindByEmail(ctx, "thandi@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, created.HashedPassword, byEmail.HashedPassword)
	assert.True(t, created.CreatedAt.Equal(byEmail.CreatedAt))

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "thandi@example.com", byID.Email)
}

func testDuplicateEmail(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.CreateUser(ctx, newUser("dup@example.com"))
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, newUser("dup@example.com"))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func testEmailCaseSensitive(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.CreateUser(ctx, newUser("case@example.com"))
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, newUser("Case@example.com"))
	require.NoError(t, err)
	_, err = s.FindByEmail(ctx, "CASE@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testConcurrentRegistration(t *testing.T, s storage.Store) {
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(context.Background(), newUser("race@example.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, storage.ErrAlreadyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func testUnknownUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.FindByID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testCreateAdAndFind(t *testing.T, s storage.Store) {
	ctx := context.Background()
	now := time.Date(2026, time.May, 1, 8, 30, 0, 0, time.UTC)
	created, err := s.CreateAd(ctx, newAd("owner-1", now))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Approved)
	assert.Zero(t, created.Views)

	got, err := s.FindAdByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.UserID)
	assert.Equal(t, "Fridge", got.Title)
	require.NotNil(t, got.Age)
	assert.Equal(t, 2, *got.Age)
	require.NotNil(t, got.ContactInfo)
	assert.Equal(t, []string{"https://img.example/fridge.jpg"}, got.Images)
	assert.True(t, now.Equal(got.CreatedAt), "created_at = %v, want %v", got.CreatedAt, now)

	bare := models.Ad{Title: "t", Description: "d", Category: "c", Location: "l", UserID: "owner-1"}
	created, err = s.CreateAd(ctx, bare)
	require.NoError(t, err)
	got, err = s.FindAdByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Age)
	assert.Nil(t, got.ContactInfo)
	assert.NotNil(t, got.Images)
	assert.Empty(t, got.Images)

	_, err = s.FindAdByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListAdsPaginates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	want := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		ad := newAd("owner-1", base.Add(time.Duration(i)*time.Minute))
		ad.Title = fmt.Sprintf("ad-%02d", i)
		created, err := s.CreateAd(ctx, ad)
		require.NoError(t, err)
		want = append(want, created.ID)
	}

	first, err := s.ListAds(ctx, 0, 10)
	require.NoError(t, err)
	second, err := s.ListAds(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, first, 10)
	require.Len(t, second, 5)

	var got []string
	for _, ad := range append(first, second...) {
		got = append(got, ad.ID)
	}
	assert.Equal(t, want, got)

	empty, err := s.ListAds(ctx, 100, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testUpdateAdPartial(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created, err := s.CreateAd(ctx, newAd("owner-1", time.Now()))
	require.NoError(t, err)

	title := "Fridge, reduced"
	images := []string{}
	updated, err := s.UpdateAd(ctx, created.ID, models.AdPatch{Title: &title, Images: &images})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Empty(t, updated.Images)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.UserID, updated.UserID)
	require.NotNil(t, updated.Age)
	assert.Equal(t, *created.Age, *updated.Age)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	again, err := s.UpdateAd(ctx, created.ID, models.AdPatch{Title: &title, Images: &images})
	require.NoError(t, err)
	assert.Equal(t, updated, again)

	unchanged, err := s.UpdateAd(ctx, created.ID, models.AdPatch{})
	require.NoError(t, err)
	assert.Equal(t, updated, unchanged)

	stored, err := s.FindAdByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func testUpdateMissingAd(t *testing.T, s storage.Store) {
	title := "x"
	_, err := s.UpdateAd(context.Background(), "missing", models.AdPatch{Title: &title})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDeleteAd(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created, err := s.CreateAd(ctx, newAd("owner-1", time.Now()))
	require.NoError(t, err)

	deleted, err := s.DeleteAd(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteAd(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.FindAdByID(ctx, created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
