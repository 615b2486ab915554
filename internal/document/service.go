package document

import (
	"context"
	"fmt"
	"strings"

	"notedrive.org/internal/access"
	"notedrive.org/internal/ids"
)

const maxTitleLength = 512

// Service validates input and delegates to the store. Authorization is the
// guard layer's job; callers run the relevant predicate first.
type Service struct {
	store Store
}

// NewService constructs the document service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	return &Service{store: store}, nil
}

// Create makes a new document owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID, title, content string) (Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Document{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Document{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > maxTitleLength {
		return Document{}, fmt.Errorf("%w: title too long", ErrInvalidInput)
	}
	doc := &Document{
		ID:      ids.New(),
		OwnerID: ownerID,
		Title:   title,
		Content: content,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return Document{}, err
	}
	return *doc, nil
}

// Get fetches one document by id.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	return s.store.GetDocument(ctx, id)
}

// Update applies a partial modification.
func (s *Service) Update(ctx context.Context, id string, upd Update) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return Document{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		if len(title) > maxTitleLength {
			return Document{}, fmt.Errorf("%w: title too long", ErrInvalidInput)
		}
		upd.Title = &title
	}
	return s.store.UpdateDocument(ctx, id, upd)
}

// Delete removes a document and, through the store's cascade, its grants.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	return s.store.DeleteDocument(ctx, id)
}

// ListOwned returns the caller's own documents, trash excluded.
func (s *Service) ListOwned(ctx context.Context, ownerID string) ([]Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	return s.store.ListDocumentsByOwner(ctx, ownerID)
}

// ListSharedWith returns documents the user can reach through grants.
func (s *Service) ListSharedWith(ctx context.Context, userID string) ([]Document, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.ListDocumentsSharedWith(ctx, userID)
}

// ListSharedWithEmail returns documents shared to an address. Used on the
// email-addressed lookup path, behind the email-match guard.
func (s *Service) ListSharedWithEmail(ctx context.Context, email string) ([]Document, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.ListDocumentsSharedWithEmail(ctx, email)
}

// Grant upserts the access grant for (documentID, granteeID).
func (s *Service) Grant(ctx context.Context, documentID, granteeID, granteeEmail string, level access.Level) (AccessGrant, error) {
	documentID = strings.TrimSpace(documentID)
	granteeID = strings.TrimSpace(granteeID)
	if documentID == "" || granteeID == "" {
		return AccessGrant{}, fmt.Errorf("%w: document id and grantee id are required", ErrInvalidInput)
	}
	if !level.Valid() {
		return AccessGrant{}, fmt.Errorf("%w: unknown permission level", ErrInvalidInput)
	}
	grant := &AccessGrant{
		DocumentID:   documentID,
		GranteeID:    granteeID,
		GranteeEmail: strings.TrimSpace(strings.ToLower(granteeEmail)),
		Level:        level,
	}
	if err := s.store.UpsertGrant(ctx, grant); err != nil {
		return AccessGrant{}, err
	}
	return *grant, nil
}

// Revoke removes the grant for (documentID, granteeID).
func (s *Service) Revoke(ctx context.Context, documentID, granteeID string) error {
	documentID = strings.TrimSpace(documentID)
	granteeID = strings.TrimSpace(granteeID)
	if documentID == "" || granteeID == "" {
		return fmt.Errorf("%w: document id and grantee id are required", ErrInvalidInput)
	}
	return s.store.DeleteGrant(ctx, documentID, granteeID)
}

// Grants lists the active grants on a document.
func (s *Service) Grants(ctx context.Context, documentID string) ([]AccessGrant, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	return s.store.ListGrants(ctx, documentID)
}
