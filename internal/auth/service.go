package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/limpopoconnect/classifieds-api/internal/mail"
	"github.com/limpopoconnect/classifieds-api/internal/models"
	"github.com/limpopoconnect/classifieds-api/internal/models/dto"
	"github.com/limpopoconnect/classifieds-api/internal/storage"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrUnauthorized wraps every reason a bearer token cannot be turned into a user.
	ErrUnauthorized = errors.New("could not validate credentials")
)

// Mailer hands off outbound mail without waiting for delivery.
type Mailer interface {
	Dispatch(msg mail.Message)
}

// Service implements registration, login and bearer token resolution.
type Service struct {
	users  storage.UserStore
	hasher PasswordHasher
	tokens *TokenManager
	mailer Mailer
	logger *slog.Logger

	// dummyDigest is compared against when the email is unknown so login
	// takes the same time whether or not the account exists.
	dummyDigest func() string
}

// NewService wires the account flows to their collaborators.
func NewService(users storage.UserStore, hasher PasswordHasher, tokens *TokenManager, mailer Mailer, logger *slog.Logger) *Service {
	s := &Service{users: users, hasher: hasher, tokens: tokens, mailer: mailer, logger: logger}
	s.dummyDigest = sync.OnceValue(func() string {
		digest, err := hasher.Hash("dummy-password-for-unknown-accounts")
		if err != nil {
			logger.Error("hash dummy password", "error", err)
		}
		return digest
	})
	return s
}

// Register stores a new user with role "user". A duplicate email is
// reported by the store's unique index, not by a prior lookup.
func (s *Service) Register(ctx context.Context, req dto.RegisterRequest) (models.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.User{}, err
	}
	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return models.User{}, &dto.ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
		}
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, models.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: digest,
		Role:           models.RoleUser,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", created.ID)
	return created, nil
}

// Login checks the password for email and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.Verify(password, s.dummyDigest())
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	if !s.hasher.Verify(password, user.HashedPassword) {
		return "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Identify resolves a bearer token to the user it was issued for. Invalid
// or expired tokens and tokens whose user no longer exists all wrap
// ErrUnauthorized; store failures are returned as they are.
func (s *Service) Identify(ctx context.Context, token string) (models.User, error) {
	email, err := s.tokens.Verify(token)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, fmt.Errorf("%w: subject no longer exists", ErrUnauthorized)
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// RequestPasswordReset mails a reset notice to a registered email. Unknown
// emails return storage.ErrNotFound. No reset token is issued yet.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		return err
	}
	s.mailer.Dispatch(mail.Message{
		To:      email,
		Subject: "Password Reset",
		Body:    "Reset your password here",
	})
	return nil
}
