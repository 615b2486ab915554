package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notedrive.org/internal/ids"
)

// UserStore describes the persistence operations the auth subsystem needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	FindUser(ctx context.Context, id string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUserStatus(ctx context.Context, id, status string) error
}

// DeletionChecker reports whether an email belongs to an account inside its
// deletion retention window. Implemented by the retention lifecycle; the
// call doubles as the lazy purge trigger.
type DeletionChecker interface {
	PendingFor(ctx context.Context, email string) (bool, time.Time, error)
}

// RetainedError rejects registration on an email whose previous account is
// still inside its retention window.
type RetainedError struct {
	ExpiresAt time.Time
}

func (e *RetainedError) Error() string {
	return fmt.Sprintf("account data retained until %s", e.ExpiresAt.UTC().Format(time.RFC3339))
}

// Service registers accounts, authenticates credentials and resolves
// session tokens into identities.
type Service struct {
	users     UserStore
	tokens    *Tokens
	deletions DeletionChecker
}

// NewService constructs the account service. deletions may be nil when no
// retention lifecycle is wired (tests).
func NewService(users UserStore, tokens *Tokens, deletions DeletionChecker) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token signer is required")
	}
	return &Service{users: users, tokens: tokens, deletions: deletions}, nil
}

// Register creates a new active account. An email colliding with a
// pending-deletion account is rejected with RetainedError carrying the
// remaining window; the check itself purges lazily if the window elapsed.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if s.deletions != nil {
		pending, expiresAt, err := s.deletions.PendingFor(ctx, email)
		if err != nil {
			return User{}, err
		}
		if pending {
			return User{}, &RetainedError{ExpiresAt: expiresAt}
		}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Status:       userStatusActive,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	return *user, nil
}

// Login verifies credentials and issues a session token. Every failure
// resolves to ErrUnauthorized so callers cannot probe which part failed.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", time.Time{}, User{}, ErrUnauthorized
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, User{}, ErrUnauthorized
	}
	if user.Banned || user.Status != userStatusActive {
		return "", time.Time{}, User{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, User{}, ErrUnauthorized
	}
	token, expiresAt, err := s.tokens.Issue(Identity{ID: user.ID, Email: user.Email, Admin: user.Admin})
	if err != nil {
		return "", time.Time{}, User{}, err
	}
	return token, expiresAt, user, nil
}

// Resolve turns a bearer token into the caller's identity. The account is
// re-read from storage so bans and closures take effect immediately, not at
// token expiry.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	claimed, err := s.tokens.Parse(token)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	user, err := s.users.FindUser(ctx, claimed.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if user.Banned || user.Status != userStatusActive {
		return Identity{}, ErrUnauthorized
	}
	return Identity{ID: user.ID, Email: user.Email, Admin: user.Admin}, nil
}
