package access

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"notedrive.org/internal/auth"
)

type stubQuery struct {
	owners    map[string]string
	grants    map[string]map[string]Level
	receivers map[string]string
	err       error
}

func (q *stubQuery) DocumentOwner(_ context.Context, documentID string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	owner, ok := q.owners[documentID]
	if !ok {
		return "", errors.New("not found")
	}
	return owner, nil
}

func (q *stubQuery) GrantLevel(_ context.Context, documentID, userID string) (Level, bool, error) {
	if q.err != nil {
		return "", false, q.err
	}
	level, ok := q.grants[documentID][userID]
	return level, ok, nil
}

func (q *stubQuery) NotificationReceiver(_ context.Context, notificationID string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	receiver, ok := q.receivers[notificationID]
	if !ok {
		return "", errors.New("not found")
	}
	return receiver, nil
}

func newStubQuery() *stubQuery {
	return &stubQuery{
		owners:    map[string]string{"doc-1": "owner-1"},
		grants:    map[string]map[string]Level{"doc-1": {"reader-1": LevelRead, "editor-1": LevelEdit}},
		receivers: map[string]string{"note-1": "owner-1"},
	}
}

func identity(id string) auth.Identity {
	return auth.Identity{ID: id, Email: id + "@example.com"}
}

func assertDenied(t *testing.T, err error, wantStatus int) {
	t.Helper()
	if err == nil {
		t.Fatal("expected denial")
	}
	var de *DeniedError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeniedError, got %T: %v", err, err)
	}
	if de.Status != wantStatus {
		t.Fatalf("expected status %d, got %d", wantStatus, de.Status)
	}
}

func TestRequireAuth(t *testing.T) {
	g := NewGuard(newStubQuery())

	if _, err := g.RequireAuth(auth.Identity{}); err == nil {
		t.Fatal("expected denial for anonymous caller")
	} else {
		assertDenied(t, err, http.StatusUnauthorized)
	}

	ctx, err := g.RequireAuth(identity("owner-1"))
	if err != nil {
		t.Fatalf("unexpected denial: %v", err)
	}
	if ctx.UserID != "owner-1" {
		t.Fatalf("unexpected context user: %q", ctx.UserID)
	}
}

func TestRequireDocumentAccess(t *testing.T) {
	g := NewGuard(newStubQuery())
	ctx := context.Background()

	t.Run("owner passes with edit", func(t *testing.T) {
		authz, err := g.RequireDocumentAccess(ctx, identity("owner-1"), "doc-1")
		if err != nil {
			t.Fatalf("unexpected denial: %v", err)
		}
		if authz.Level != LevelEdit {
			t.Fatalf("expected edit level for owner, got %q", authz.Level)
		}
	})

	t.Run("read grant passes", func(t *testing.T) {
		authz, err := g.RequireDocumentAccess(ctx, identity("reader-1"), "doc-1")
		if err != nil {
			t.Fatalf("read-only grant must pass the access check: %v", err)
		}
		if authz.Level != LevelRead {
			t.Fatalf("expected read level, got %q", authz.Level)
		}
	})

	t.Run("admin passes without grant", func(t *testing.T) {
		admin := auth.Identity{ID: "admin-1", Email: "admin@example.com", Admin: true}
		authz, err := g.RequireDocumentAccess(ctx, admin, "doc-1")
		if err != nil {
			t.Fatalf("unexpected denial: %v", err)
		}
		if authz.Level != LevelEdit {
			t.Fatalf("expected edit level for admin, got %q", authz.Level)
		}
	})

	t.Run("stranger denied", func(t *testing.T) {
		_, err := g.RequireDocumentAccess(ctx, identity("stranger-1"), "doc-1")
		assertDenied(t, err, http.StatusForbidden)
	})

	t.Run("missing document denied, not 404", func(t *testing.T) {
		_, err := g.RequireDocumentAccess(ctx, identity("owner-1"), "doc-missing")
		assertDenied(t, err, http.StatusForbidden)
	})
}

func TestRequireDocumentOwnership(t *testing.T) {
	g := NewGuard(newStubQuery())
	ctx := context.Background()

	if _, err := g.RequireDocumentOwnership(ctx, identity("owner-1"), "doc-1"); err != nil {
		t.Fatalf("owner must pass: %v", err)
	}

	// An edit grant does not confer ownership.
	_, err := g.RequireDocumentOwnership(ctx, identity("editor-1"), "doc-1")
	assertDenied(t, err, http.StatusForbidden)

	// Neither does the admin flag.
	admin := auth.Identity{ID: "admin-1", Admin: true}
	_, err = g.RequireDocumentOwnership(ctx, admin, "doc-1")
	assertDenied(t, err, http.StatusForbidden)
}

func TestGuardFailsClosedOnLookupError(t *testing.T) {
	q := newStubQuery()
	q.err = errors.New("connection reset")
	g := NewGuard(q)
	ctx := context.Background()

	_, err := g.RequireDocumentAccess(ctx, identity("owner-1"), "doc-1")
	assertDenied(t, err, http.StatusForbidden)

	_, err = g.RequireDocumentOwnership(ctx, identity("owner-1"), "doc-1")
	assertDenied(t, err, http.StatusForbidden)

	_, err = g.RequireNotificationOwnership(ctx, identity("owner-1"), "note-1")
	assertDenied(t, err, http.StatusForbidden)
}

func TestDenialMessagesAreGeneric(t *testing.T) {
	g := NewGuard(newStubQuery())
	ctx := context.Background()

	_, missingErr := g.RequireDocumentAccess(ctx, identity("owner-1"), "doc-missing")
	_, forbiddenErr := g.RequireDocumentAccess(ctx, identity("stranger-1"), "doc-1")

	if missingErr == nil || forbiddenErr == nil {
		t.Fatal("expected both checks to fail")
	}
	// A missing document and a denied one must be indistinguishable.
	if missingErr.Error() != forbiddenErr.Error() {
		t.Fatalf("denial messages differ: %q vs %q", missingErr.Error(), forbiddenErr.Error())
	}
	if missingErr.Error() != "access denied" {
		t.Fatalf("unexpected denial message: %q", missingErr.Error())
	}
}

func TestRequireUserMatch(t *testing.T) {
	g := NewGuard(newStubQuery())

	if _, err := g.RequireUserMatch(identity("u1"), "u1"); err != nil {
		t.Fatalf("matching user must pass: %v", err)
	}
	_, err := g.RequireUserMatch(identity("u1"), "u2")
	assertDenied(t, err, http.StatusForbidden)
	_, err = g.RequireUserMatch(identity("u1"), "")
	assertDenied(t, err, http.StatusForbidden)
}

func TestRequireEmailMatch(t *testing.T) {
	g := NewGuard(newStubQuery())
	id := auth.Identity{ID: "u1", Email: "Alice@Example.com"}

	if _, err := g.RequireEmailMatch(id, "  alice@example.COM "); err != nil {
		t.Fatalf("case-insensitive match must pass: %v", err)
	}
	_, err := g.RequireEmailMatch(id, "bob@example.com")
	assertDenied(t, err, http.StatusForbidden)
}

func TestRequireAdmin(t *testing.T) {
	g := NewGuard(newStubQuery())

	if _, err := g.RequireAdmin(auth.Identity{ID: "a", Admin: true}); err != nil {
		t.Fatalf("admin must pass: %v", err)
	}
	_, err := g.RequireAdmin(identity("u1"))
	assertDenied(t, err, http.StatusForbidden)
}

func TestRequireNotificationOwnership(t *testing.T) {
	g := NewGuard(newStubQuery())
	ctx := context.Background()

	if _, err := g.RequireNotificationOwnership(ctx, identity("owner-1"), "note-1"); err != nil {
		t.Fatalf("receiver must pass: %v", err)
	}
	_, err := g.RequireNotificationOwnership(ctx, identity("stranger-1"), "note-1")
	assertDenied(t, err, http.StatusForbidden)
	_, err = g.RequireNotificationOwnership(ctx, identity("owner-1"), "note-missing")
	assertDenied(t, err, http.StatusForbidden)
}

func TestParseLevel(t *testing.T) {
	for _, raw := range []string{"read", "comment", "edit", " EDIT "} {
		if _, err := ParseLevel(raw); err != nil {
			t.Fatalf("expected %q to parse: %v", raw, err)
		}
	}
	if _, err := ParseLevel("owner"); err == nil {
		t.Fatal("expected unknown level to fail")
	}
	if !LevelEdit.AtLeast(LevelRead) || LevelRead.AtLeast(LevelEdit) {
		t.Fatal("level ordering broken")
	}
}
