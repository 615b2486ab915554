package document

import (
	"context"
	"errors"
	"time"

	"notedrive.org/internal/access"
)

var (
	ErrInvalidInput = errors.New("document: invalid input")
	ErrNotFound     = errors.New("document: not found")
	ErrConflict     = errors.New("document: resource conflict")
)

// Document is a protected resource owned by exactly one user. Trashed
// documents keep their id but are excluded from normal listings; they
// belong to the owner's deletion retention window.
type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Trashed   bool      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccessGrant links a grantee to a document at a permission level. At most
// one active grant exists per (document, grantee); re-granting updates the
// level in place.
type AccessGrant struct {
	DocumentID   string       `json:"document_id"`
	GranteeID    string       `json:"grantee_id"`
	GranteeEmail string       `json:"grantee_email"`
	Level        access.Level `json:"permission"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Update carries a partial document modification.
type Update struct {
	Title   *string
	Content *string
}

// Store describes persistence for documents and grants.
type Store interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	UpdateDocument(ctx context.Context, id string, upd Update) (Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]Document, error)
	ListDocumentsSharedWith(ctx context.Context, userID string) ([]Document, error)
	ListDocumentsSharedWithEmail(ctx context.Context, email string) ([]Document, error)

	// UpsertGrant inserts or updates the single grant for the pair; races
	// on the same (document, grantee) resolve last-write-wins on level.
	UpsertGrant(ctx context.Context, grant *AccessGrant) error
	GetGrant(ctx context.Context, documentID, userID string) (AccessGrant, error)
	DeleteGrant(ctx context.Context, documentID, userID string) error
	ListGrants(ctx context.Context, documentID string) ([]AccessGrant, error)
}
