package document_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"notedrive.org/internal/access"
	"notedrive.org/internal/document"
	"notedrive.org/internal/store/memory"
)

func newService(t *testing.T) (*document.Service, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	svc, err := document.NewService(st)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, st
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "owner-1", "  Quarterly plan  ", "draft")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected generated id")
	}
	if doc.Title != "Quarterly plan" {
		t.Fatalf("title not trimmed: %q", doc.Title)
	}

	got, err := svc.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerID != "owner-1" || got.Content != "draft" {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		ownerID string
		title   string
	}{
		{"missing owner", "", "t"},
		{"missing title", "owner-1", "   "},
		{"title too long", "owner-1", strings.Repeat("x", 600)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.ownerID, tc.title, ""); !errors.Is(err, document.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "owner-1", "first", "body")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "second"
	updated, err := svc.Update(ctx, doc.ID, document.Update{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "second" || updated.Content != "body" {
		t.Fatalf("partial update touched the wrong fields: %+v", updated)
	}

	empty := "  "
	if _, err := svc.Update(ctx, doc.ID, document.Update{Title: &empty}); !errors.Is(err, document.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank title, got %v", err)
	}
}

func TestGrantRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "owner-1", "plan", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	grant, err := svc.Grant(ctx, doc.ID, "u2", "B@Example.com", access.LevelRead)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if grant.GranteeEmail != "b@example.com" {
		t.Fatalf("email not normalized: %q", grant.GranteeEmail)
	}

	// Re-granting the same pair updates the level in place.
	grant, err = svc.Grant(ctx, doc.ID, "u2", "b@example.com", access.LevelEdit)
	if err != nil {
		t.Fatalf("re-grant: %v", err)
	}
	if grant.Level != access.LevelEdit {
		t.Fatalf("expected level upgrade, got %q", grant.Level)
	}
	grants, err := svc.Grants(ctx, doc.ID)
	if err != nil {
		t.Fatalf("grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("expected one grant after upsert, got %d", len(grants))
	}

	if err := svc.Revoke(ctx, doc.ID, "u2"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := svc.Revoke(ctx, doc.ID, "u2"); !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revoke, got %v", err)
	}
}

func TestSharedListings(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "owner-1", "plan", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Grant(ctx, doc.ID, "u2", "b@example.com", access.LevelRead); err != nil {
		t.Fatalf("grant: %v", err)
	}

	byID, err := svc.ListSharedWith(ctx, "u2")
	if err != nil {
		t.Fatalf("list shared: %v", err)
	}
	byEmail, err := svc.ListSharedWithEmail(ctx, "B@example.com ")
	if err != nil {
		t.Fatalf("list shared by email: %v", err)
	}
	if len(byID) != 1 || len(byEmail) != 1 || byID[0].ID != doc.ID || byEmail[0].ID != doc.ID {
		t.Fatalf("expected the document in both listings, got %v / %v", byID, byEmail)
	}

	owned, err := svc.ListOwned(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("expected one owned document, got %d", len(owned))
	}
}

func TestGrantValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "", "u2", "b@example.com", access.LevelRead); !errors.Is(err, document.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Grant(ctx, "doc-1", "u2", "b@example.com", access.Level("owner")); !errors.Is(err, document.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown level, got %v", err)
	}
}
