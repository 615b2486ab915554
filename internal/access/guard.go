// Package access evaluates the authorization predicates gating every
// protected operation. Guards are pure read-only checks: they take the
// caller's identity explicitly, consult the Query interface, and return
// either a request-scoped Context or a terminal denial. A denial never
// says why: "access denied" covers missing resources too, so callers
// cannot enumerate which resources exist.
package access

import (
	"context"
	"net/http"
	"strings"

	"notedrive.org/internal/auth"
)

// Query is the read-only lookup surface the guards evaluate against.
// Implementations report ErrNotFound-style errors for missing rows; the
// guards absorb every lookup error into a denial.
type Query interface {
	// DocumentOwner returns the owner id of a document.
	DocumentOwner(ctx context.Context, documentID string) (string, error)
	// GrantLevel returns the active grant level for (document, user), if any.
	GrantLevel(ctx context.Context, documentID, userID string) (Level, bool, error)
	// NotificationReceiver returns the receiver id of a notification.
	NotificationReceiver(ctx context.Context, notificationID string) (string, error)
}

// Context is the transient result of a successful guard check. It lives
// for one request and is never persisted.
type Context struct {
	UserID string
	Email  string
	Level  Level
}

// DeniedError is the uniform terminal response of a failed guard check.
// The message is deliberately generic regardless of the underlying reason.
type DeniedError struct {
	Status int
}

func (e *DeniedError) Error() string {
	if e.Status == http.StatusUnauthorized {
		return "authentication required"
	}
	return "access denied"
}

func unauthenticated() error { return &DeniedError{Status: http.StatusUnauthorized} }
func denied() error          { return &DeniedError{Status: http.StatusForbidden} }

// Guard evaluates authorization predicates.
type Guard struct {
	query Query
}

// NewGuard constructs a Guard over the given lookup surface.
func NewGuard(query Query) *Guard {
	return &Guard{query: query}
}

// RequireAuth checks that the caller carries a valid identity.
func (g *Guard) RequireAuth(identity auth.Identity) (Context, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return Context{}, unauthenticated()
	}
	return Context{UserID: identity.ID, Email: identity.Email}, nil
}

// RequireDocumentAccess passes when the identity owns the document, holds
// any grant on it, or is an administrator. The resolved permission is edit
// for owners and admins and the grant's own level otherwise.
func (g *Guard) RequireDocumentAccess(ctx context.Context, identity auth.Identity, documentID string) (Context, error) {
	authz, err := g.RequireAuth(identity)
	if err != nil {
		return Context{}, err
	}
	owner, err := g.query.DocumentOwner(ctx, documentID)
	if err != nil {
		// Missing document and failed lookup both fail closed.
		return Context{}, denied()
	}
	if owner == identity.ID || identity.Admin {
		authz.Level = LevelEdit
		return authz, nil
	}
	level, ok, err := g.query.GrantLevel(ctx, documentID, identity.ID)
	if err != nil || !ok {
		return Context{}, denied()
	}
	authz.Level = level
	return authz, nil
}

// RequireDocumentOwnership passes only for the document's owner. Grants do
// not help here, whatever their level: invitation issuance and other
// destructive actions are ownership capabilities, not edit capabilities.
func (g *Guard) RequireDocumentOwnership(ctx context.Context, identity auth.Identity, documentID string) (Context, error) {
	authz, err := g.RequireAuth(identity)
	if err != nil {
		return Context{}, err
	}
	owner, err := g.query.DocumentOwner(ctx, documentID)
	if err != nil {
		return Context{}, denied()
	}
	if owner != identity.ID {
		return Context{}, denied()
	}
	authz.Level = LevelEdit
	return authz, nil
}

// RequireUserMatch passes when the identity is the target user. Admin
// override, where a resource allows it, belongs at the call site.
func (g *Guard) RequireUserMatch(identity auth.Identity, targetID string) (Context, error) {
	authz, err := g.RequireAuth(identity)
	if err != nil {
		return Context{}, err
	}
	if strings.TrimSpace(targetID) == "" || identity.ID != targetID {
		return Context{}, denied()
	}
	return authz, nil
}

// RequireEmailMatch passes when the identity's email equals the target
// address, compared case-insensitively after trimming.
func (g *Guard) RequireEmailMatch(identity auth.Identity, targetEmail string) (Context, error) {
	authz, err := g.RequireAuth(identity)
	if err != nil {
		return Context{}, err
	}
	target := auth.NormalizeEmail(targetEmail)
	if target == "" || auth.NormalizeEmail(identity.Email) != target {
		return Context{}, denied()
	}
	return authz, nil
}

// RequireAdmin passes only for administrator accounts.
func (g *Guard) RequireAdmin(identity auth.Identity) (Context, error) {
	authz, err := g.RequireAuth(identity)
	if err != nil {
		return Context{}, err
	}
	if !identity.Admin {
		return Context{}, denied()
	}
	return authz, nil
}

// RequireNotificationOwnership passes when the addressed notification is
// received by the identity.
func (g *Guard) RequireNotificationOwnership(ctx context.Context, identity auth.Identity, notificationID string) (Context, error) {
	authz, err := g.RequireAuth(identity)
	if err != nil {
		return Context{}, err
	}
	receiver, err := g.query.NotificationReceiver(ctx, notificationID)
	if err != nil {
		return Context{}, denied()
	}
	if receiver != identity.ID {
		return Context{}, denied()
	}
	return authz, nil
}
