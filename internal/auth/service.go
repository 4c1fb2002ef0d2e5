package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/nerrad567/sensorhub/internal/apperr"
)

const minPasswordLength = 8

// Service is the identity provider used by the API and the channel store.
type Service struct {
	users  UserRepository
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates an identity service. secret signs access tokens.
func NewService(users UserRepository, secret string, ttl time.Duration) *Service {
	return &Service{users: users, secret: secret, ttl: ttl, now: time.Now}
}

// Register creates a new owner account.
func (s *Service) Register(ctx context.Context, email, fullName, password string) (*User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, apperr.InvalidInput("email is invalid")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.InvalidInput("password must be at least %d characters", minPasswordLength)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("failed to register user", err)
	}

	user := &User{Email: addr.Address, FullName: strings.TrimSpace(fullName), PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, apperr.InvalidInput("email is already registered")
		}
		return nil, apperr.Internal("failed to register user", err)
	}
	return user, nil
}

// Login checks credentials and returns a signed access token.
// Unknown email and wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, apperr.Unauthorized("invalid credentials")
		}
		return "", nil, apperr.Internal("failed to log in", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return "", nil, apperr.Unauthorized("invalid credentials")
	}

	token, err := GenerateAccessToken(user, s.secret, s.ttl, s.now())
	if err != nil {
		return "", nil, apperr.Internal("failed to log in", err)
	}
	return token, user, nil
}

// Authenticate validates an access token and confirms the account is still
// active.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := ParseAccessToken(token, s.secret)
	if err != nil {
		return Principal{}, apperr.Unauthorized("invalid or expired token")
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, apperr.Unauthorized("account no longer exists")
		}
		return Principal{}, apperr.Internal("failed to authenticate", err)
	}
	return Principal{ID: user.ID, Email: user.Email}, nil
}

// LookupByID returns the active user with id.
func (s *Service) LookupByID(ctx context.Context, id string) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	return user, nil
}

// LookupByEmail returns the active user with email.
func (s *Service) LookupByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	return user, nil
}
