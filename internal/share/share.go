// Package share implements the sharing-invitation protocol: stateless,
// signed, time-limited capability tokens that convert into access grants
// only upon redemption. Nothing about an invitation is stored server-side;
// its validity is the signature plus the embedded expiry.
package share

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"notedrive.org/internal/access"
	"notedrive.org/internal/auth"
	"notedrive.org/internal/document"
	"notedrive.org/internal/mail"
	"notedrive.org/internal/notification"
	"notedrive.org/internal/obs"
)

// InviteTTL is the fixed, non-extendable expiry horizon of an invitation.
const InviteTTL = 48 * time.Hour

var (
	// ErrInvitationInvalid marks a malformed, forged or expired token. It is
	// deliberately distinct from the authorization denial: the holder can
	// recover by asking for a new link.
	ErrInvitationInvalid = errors.New("invalid or expired invitation")

	// ErrSelfInvite rejects an owner inviting their own address.
	ErrSelfInvite = errors.New("cannot share a document with yourself")

	// ErrInviteeNotFound fires when no account exists for the invitee email.
	// Surfaced as a generic denial upstream.
	ErrInviteeNotFound = errors.New("invitee account not found")

	// ErrUnavailable fires at redemption when the document or invitee
	// account disappeared after issue. Surfaced as a generic denial: a
	// valid signature must not reveal whether the resource still exists.
	ErrUnavailable = errors.New("resource no longer available")
)

// InviteClaims is the signed payload of an invitation token. Subject is
// the invitee email.
type InviteClaims struct {
	DocumentID string `json:"doc"`
	Permission string `json:"perm"`
	jwt.RegisteredClaims
}

// Invitation is the issue result handed back to the owner.
type Invitation struct {
	Token     string    `json:"token"`
	RedeemURL string    `json:"redeem_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Documents is the slice of the document service the protocol needs.
type Documents interface {
	Get(ctx context.Context, id string) (document.Document, error)
	Grant(ctx context.Context, documentID, granteeID, granteeEmail string, level access.Level) (document.AccessGrant, error)
}

// Users resolves invitee accounts by address.
type Users interface {
	FindUserByEmail(ctx context.Context, email string) (auth.User, error)
}

// Notifier creates in-app notifications. Best-effort on the issue path.
type Notifier interface {
	Notify(ctx context.Context, receiverID, kind, message, documentID string) (notification.Notification, error)
}

// Protocol issues and redeems share invitations.
type Protocol struct {
	secret  []byte
	issuer  string
	baseURL string
	docs    Documents
	users   Users
	mailer  mail.Mailer
	notes   Notifier
	now     func() time.Time
}

// Option configures Protocol.
type Option func(*Protocol)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(p *Protocol) {
		if fn != nil {
			p.now = fn
		}
	}
}

// NewProtocol constructs the protocol. baseURL is the public address the
// redemption link is built on.
func NewProtocol(secret, issuer, baseURL string, docs Documents, users Users, mailer mail.Mailer, notes Notifier, opts ...Option) (*Protocol, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("share: signing secret is required")
	}
	if docs == nil || users == nil || mailer == nil {
		return nil, errors.New("share: documents, users and mailer are required")
	}
	p := &Protocol{
		secret:  []byte(secret),
		issuer:  strings.TrimSpace(issuer),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		docs:    docs,
		users:   users,
		mailer:  mailer,
		notes:   notes,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Issue mints a signed invitation for (document, invitee, level), emails
// the redemption link and best-effort notifies the invitee in-app. The
// caller must already have passed the document-ownership guard. If the
// email cannot be dispatched the invitation is not considered issued.
func (p *Protocol) Issue(ctx context.Context, inviter access.Context, documentID, inviteeEmail string, level access.Level) (Invitation, error) {
	inviteeEmail = auth.NormalizeEmail(inviteeEmail)
	if inviteeEmail == "" || !strings.Contains(inviteeEmail, "@") {
		return Invitation{}, fmt.Errorf("%w: valid invitee email is required", document.ErrInvalidInput)
	}
	if !level.Valid() {
		return Invitation{}, fmt.Errorf("%w: unknown permission level", document.ErrInvalidInput)
	}
	if inviteeEmail == auth.NormalizeEmail(inviter.Email) {
		return Invitation{}, ErrSelfInvite
	}

	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return Invitation{}, err
	}
	invitee, err := p.users.FindUserByEmail(ctx, inviteeEmail)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return Invitation{}, ErrInviteeNotFound
		}
		return Invitation{}, err
	}

	token, expiresAt, err := p.sign(doc.ID, inviteeEmail, level)
	if err != nil {
		return Invitation{}, err
	}
	redeemURL := p.redeemURL(token)

	if err := p.mailer.Send(ctx, inviteeEmail, mail.TemplateContext{
		DocumentTitle: doc.Title,
		InviterEmail:  inviter.Email,
		Permission:    string(level),
		RedeemURL:     redeemURL,
		ExpiresAt:     expiresAt,
	}); err != nil {
		return Invitation{}, fmt.Errorf("dispatch invitation: %w", err)
	}

	// The invitation stands on its own; a failed notification must not
	// unwind an already-dispatched email.
	if p.notes != nil {
		message := fmt.Sprintf("%s shared %q with you", inviter.Email, doc.Title)
		if _, err := p.notes.Notify(ctx, invitee.ID, notification.KindShareInvite, message, doc.ID); err != nil {
			obs.LogEntry(map[string]any{
				"level":    "warn",
				"msg":      "invite_notification_failed",
				"document": doc.ID,
				"error":    err.Error(),
			})
		}
	}

	obs.CountInvitationIssued()
	return Invitation{Token: token, RedeemURL: redeemURL, ExpiresAt: expiresAt}, nil
}

// Redeem verifies a token and upserts the grant it encodes. Redeeming the
// same still-valid token again is a no-op success: the grant upsert keys
// on (document, grantee).
func (p *Protocol) Redeem(ctx context.Context, token string) (document.AccessGrant, error) {
	claims, err := p.verify(token)
	if err != nil {
		return document.AccessGrant{}, ErrInvitationInvalid
	}
	level, err := access.ParseLevel(claims.Permission)
	if err != nil {
		return document.AccessGrant{}, ErrInvitationInvalid
	}

	invitee, err := p.users.FindUserByEmail(ctx, auth.NormalizeEmail(claims.Subject))
	if err != nil {
		return document.AccessGrant{}, ErrUnavailable
	}
	doc, err := p.docs.Get(ctx, claims.DocumentID)
	if err != nil {
		return document.AccessGrant{}, ErrUnavailable
	}

	grant, err := p.docs.Grant(ctx, doc.ID, invitee.ID, invitee.Email, level)
	if err != nil {
		return document.AccessGrant{}, err
	}
	obs.CountInvitationRedeemed()
	return grant, nil
}

func (p *Protocol) sign(documentID, inviteeEmail string, level access.Level) (string, time.Time, error) {
	now := p.now().UTC()
	expiresAt := now.Add(InviteTTL)
	claims := InviteClaims{
		DocumentID: documentID,
		Permission: string(level),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   inviteeEmail,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (p *Protocol) verify(token string) (*InviteClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &InviteClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvitationInvalid
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now), jwt.WithIssuer(p.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvitationInvalid
	}
	claims, ok := parsed.Claims.(*InviteClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvitationInvalid
	}
	if strings.TrimSpace(claims.DocumentID) == "" || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvitationInvalid
	}
	return claims, nil
}

func (p *Protocol) redeemURL(token string) string {
	return p.baseURL + "/v1/share/redeem?token=" + url.QueryEscape(token)
}
