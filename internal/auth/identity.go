package auth

import (
	"context"
	"strings"
	"time"
)

const (
	userStatusActive = "active"
	userStatusClosed = "closed"
)

// User is a persisted account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Admin        bool      `json:"admin"`
	Banned       bool      `json:"banned"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the resolved caller of one request. It is passed explicitly
// into every guard call and never read from ambient state.
type Identity struct {
	ID    string
	Email string
	Admin bool
}

// NormalizeEmail lower-cases and trims an address so that comparisons and
// storage keys agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &identity)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}
