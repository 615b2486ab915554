package share

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"notedrive.org/internal/access"
	"notedrive.org/internal/auth"
	"notedrive.org/internal/document"
	"notedrive.org/internal/mail"
	"notedrive.org/internal/notification"
)

type fakeDocs struct {
	docs   map[string]document.Document
	grants map[string]document.AccessGrant // documentID + "/" + granteeID
	getErr error
}

func (f *fakeDocs) Get(_ context.Context, id string) (document.Document, error) {
	if f.getErr != nil {
		return document.Document{}, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocs) Grant(_ context.Context, documentID, granteeID, granteeEmail string, level access.Level) (document.AccessGrant, error) {
	grant := document.AccessGrant{
		DocumentID:   documentID,
		GranteeID:    granteeID,
		GranteeEmail: granteeEmail,
		Level:        level,
	}
	f.grants[documentID+"/"+granteeID] = grant
	return grant, nil
}

type fakeUsers struct {
	users map[string]auth.User
}

func (f *fakeUsers) FindUserByEmail(_ context.Context, email string) (auth.User, error) {
	u, ok := f.users[email]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to string, _ mail.TemplateContext) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeNotifier struct {
	created []notification.Notification
	err     error
}

func (f *fakeNotifier) Notify(_ context.Context, receiverID, kind, message, documentID string) (notification.Notification, error) {
	if f.err != nil {
		return notification.Notification{}, f.err
	}
	n := notification.Notification{ReceiverID: receiverID, Kind: kind, Message: message, DocumentID: documentID}
	f.created = append(f.created, n)
	return n, nil
}

type fixture struct {
	protocol *Protocol
	docs     *fakeDocs
	users    *fakeUsers
	mailer   *fakeMailer
	notifier *fakeNotifier
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		docs: &fakeDocs{
			docs: map[string]document.Document{
				"42": {ID: "42", OwnerID: "alice-id", Title: "Quarterly plan"},
			},
			grants: make(map[string]document.AccessGrant),
		},
		users: &fakeUsers{users: map[string]auth.User{
			"b@example.com": {ID: "bob-id", Email: "b@example.com"},
		}},
		mailer:   &fakeMailer{},
		notifier: &fakeNotifier{},
		now:      &now,
	}
	p, err := NewProtocol("test-secret", "notedrive", "https://notes.example.com", f.docs, f.users, f.mailer, f.notifier,
		WithClock(func() time.Time { return *f.now }))
	if err != nil {
		t.Fatalf("new protocol: %v", err)
	}
	f.protocol = p
	return f
}

func inviter() access.Context {
	return access.Context{UserID: "alice-id", Email: "a@example.com", Level: access.LevelEdit}
}

func TestIssueAndRedeemRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.protocol.Issue(ctx, inviter(), "42", "b@example.com", access.LevelEdit)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if inv.Token == "" {
		t.Fatal("expected a signed token")
	}
	if !strings.Contains(inv.RedeemURL, "/v1/share/redeem?token=") {
		t.Fatalf("unexpected redeem url: %q", inv.RedeemURL)
	}
	if want := f.now.Add(InviteTTL); !inv.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, inv.ExpiresAt)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != "b@example.com" {
		t.Fatalf("expected one email to invitee, got %v", f.mailer.sent)
	}
	if len(f.notifier.created) != 1 || f.notifier.created[0].ReceiverID != "bob-id" {
		t.Fatalf("expected one in-app notification for invitee, got %v", f.notifier.created)
	}

	grant, err := f.protocol.Redeem(ctx, inv.Token)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if grant.DocumentID != "42" || grant.GranteeID != "bob-id" || grant.Level != access.LevelEdit {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if len(f.docs.grants) != 1 {
		t.Fatalf("expected exactly one grant, got %d", len(f.docs.grants))
	}

	// Second redemption of the same token: no duplicate, no error.
	if _, err := f.protocol.Redeem(ctx, inv.Token); err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if len(f.docs.grants) != 1 {
		t.Fatalf("expected grant count to stay 1, got %d", len(f.docs.grants))
	}
}

func TestRedeemExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.protocol.Issue(ctx, inviter(), "42", "b@example.com", access.LevelRead)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	*f.now = f.now.Add(InviteTTL + time.Minute)

	_, err = f.protocol.Redeem(ctx, inv.Token)
	if !errors.Is(err, ErrInvitationInvalid) {
		t.Fatalf("expected ErrInvitationInvalid for expired token, got %v", err)
	}
	if len(f.docs.grants) != 0 {
		t.Fatal("expired redemption must not create a grant")
	}
}

func TestRedeemTamperedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.protocol.Issue(ctx, inviter(), "42", "b@example.com", access.LevelRead)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, token := range []string{
		"",
		"not-a-jwt",
		inv.Token[:len(inv.Token)-3] + "xyz",
	} {
		if _, err := f.protocol.Redeem(ctx, token); !errors.Is(err, ErrInvitationInvalid) {
			t.Fatalf("token %q: expected ErrInvitationInvalid, got %v", token, err)
		}
	}
}

func TestIssueRejectsSelfInvite(t *testing.T) {
	f := newFixture(t)

	_, err := f.protocol.Issue(context.Background(), inviter(), "42", "A@Example.com ", access.LevelEdit)
	if !errors.Is(err, ErrSelfInvite) {
		t.Fatalf("expected ErrSelfInvite, got %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatal("self-invite must be rejected before anything is dispatched")
	}
}

func TestIssueUnknownInvitee(t *testing.T) {
	f := newFixture(t)

	_, err := f.protocol.Issue(context.Background(), inviter(), "42", "nobody@example.com", access.LevelRead)
	if !errors.Is(err, ErrInviteeNotFound) {
		t.Fatalf("expected ErrInviteeNotFound, got %v", err)
	}
}

func TestIssueMailFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("relay refused")

	_, err := f.protocol.Issue(context.Background(), inviter(), "42", "b@example.com", access.LevelRead)
	if err == nil {
		t.Fatal("expected issue to fail when the email cannot be dispatched")
	}
	if len(f.notifier.created) != 0 {
		t.Fatal("no notification should exist for an undelivered invitation")
	}
}

func TestIssueNotificationFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("notifications down")

	inv, err := f.protocol.Issue(context.Background(), inviter(), "42", "b@example.com", access.LevelRead)
	if err != nil {
		t.Fatalf("notification failure must not fail the issue: %v", err)
	}
	if inv.Token == "" {
		t.Fatal("expected a token despite notification failure")
	}
}

func TestRedeemDeletedDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.protocol.Issue(ctx, inviter(), "42", "b@example.com", access.LevelEdit)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// The document disappears between issue and redemption.
	delete(f.docs.docs, "42")

	_, err = f.protocol.Redeem(ctx, inv.Token)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRedeemRejectsForeignSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := NewProtocol("other-secret", "notedrive", "https://notes.example.com", f.docs, f.users, f.mailer, f.notifier,
		WithClock(func() time.Time { return *f.now }))
	if err != nil {
		t.Fatalf("new protocol: %v", err)
	}
	inv, err := other.Issue(ctx, inviter(), "42", "b@example.com", access.LevelEdit)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := f.protocol.Redeem(ctx, inv.Token); !errors.Is(err, ErrInvitationInvalid) {
		t.Fatalf("expected ErrInvitationInvalid for foreign signature, got %v", err)
	}
}

func TestIssueValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.protocol.Issue(ctx, inviter(), "42", "not-an-email", access.LevelRead); !errors.Is(err, document.ErrInvalidInput) {
		t.Fatalf("expected invalid-input for bad email, got %v", err)
	}
	if _, err := f.protocol.Issue(ctx, inviter(), "42", "b@example.com", access.Level("owner")); !errors.Is(err, document.ErrInvalidInput) {
		t.Fatalf("expected invalid-input for unknown level, got %v", err)
	}
	if _, err := f.protocol.Issue(ctx, inviter(), "missing", "b@example.com", access.LevelRead); !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected not-found for missing document, got %v", err)
	}
}
