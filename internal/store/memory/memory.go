// Package memory implements the service's store interfaces in process
// memory. It backs the API tests and DSN-less local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notedrive.org/internal/access"
	"notedrive.org/internal/auth"
	"notedrive.org/internal/document"
	"notedrive.org/internal/notification"
	"notedrive.org/internal/retention"
)

// Store holds all state behind one mutex; operations are short and the
// coarse lock keeps the multi-step archive and purge atomic.
type Store struct {
	mu       sync.Mutex
	users    map[string]*auth.User
	docs     map[string]*document.Document
	grants   map[string]map[string]*document.AccessGrant // documentID -> granteeID
	notes    map[string]*notification.Notification
	deleted  map[string]*retention.DeletedAccountRecord // keyed by email
	failNext error
}

var (
	_ auth.UserStore     = (*Store)(nil)
	_ document.Store     = (*Store)(nil)
	_ notification.Store = (*Store)(nil)
	_ retention.Store    = (*Store)(nil)
	_ access.Query       = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]*auth.User),
		docs:    make(map[string]*document.Document),
		grants:  make(map[string]map[string]*document.AccessGrant),
		notes:   make(map[string]*notification.Notification),
		deleted: make(map[string]*retention.DeletedAccountRecord),
	}
}

// FailNext makes the next store call return err. Test hook.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// SetAdmin toggles the admin flag on a stored user. Test hook.
func (s *Store) SetAdmin(id string, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Admin = admin
	}
}

func (s *Store) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) FindUser(_ context.Context, id string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return auth.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return *u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return auth.User{}, err
	}
	for _, u := range s.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (s *Store) UpdateUserStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- documents ---

func (s *Store) CreateDocument(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return document.Document{}, err
	}
	doc, ok := s.docs[id]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}
	return *doc, nil
}

func (s *Store) UpdateDocument(_ context.Context, id string, upd document.Update) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Trashed {
		return document.Document{}, document.ErrNotFound
	}
	if upd.Title != nil {
		doc.Title = *upd.Title
	}
	if upd.Content != nil {
		doc.Content = *upd.Content
	}
	doc.UpdatedAt = time.Now().UTC()
	return *doc, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return document.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.grants, id)
	return nil
}

func (s *Store) ListDocumentsByOwner(_ context.Context, ownerID string) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []document.Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID && !doc.Trashed {
			docs = append(docs, *doc)
		}
	}
	sortDocs(docs)
	return docs, nil
}

func (s *Store) ListDocumentsSharedWith(_ context.Context, userID string) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []document.Document
	for docID, byGrantee := range s.grants {
		if _, ok := byGrantee[userID]; !ok {
			continue
		}
		if doc, ok := s.docs[docID]; ok && !doc.Trashed {
			docs = append(docs, *doc)
		}
	}
	sortDocs(docs)
	return docs, nil
}

func (s *Store) ListDocumentsSharedWithEmail(_ context.Context, email string) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []document.Document
	for docID, byGrantee := range s.grants {
		matched := false
		for _, grant := range byGrantee {
			if grant.GranteeEmail == email {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if doc, ok := s.docs[docID]; ok && !doc.Trashed {
			docs = append(docs, *doc)
		}
	}
	sortDocs(docs)
	return docs, nil
}

func sortDocs(docs []document.Document) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
}

// --- grants ---

func (s *Store) UpsertGrant(_ context.Context, grant *document.AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.docs[grant.DocumentID]; !ok {
		return document.ErrNotFound
	}
	byGrantee, ok := s.grants[grant.DocumentID]
	if !ok {
		byGrantee = make(map[string]*document.AccessGrant)
		s.grants[grant.DocumentID] = byGrantee
	}
	now := time.Now().UTC()
	if existing, ok := byGrantee[grant.GranteeID]; ok {
		existing.Level = grant.Level
		existing.GranteeEmail = grant.GranteeEmail
		existing.UpdatedAt = now
		*grant = *existing
		return nil
	}
	grant.CreatedAt = now
	grant.UpdatedAt = now
	cp := *grant
	byGrantee[grant.GranteeID] = &cp
	return nil
}

func (s *Store) GetGrant(_ context.Context, documentID, userID string) (document.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if grant, ok := s.grants[documentID][userID]; ok {
		return *grant, nil
	}
	return document.AccessGrant{}, document.ErrNotFound
}

func (s *Store) DeleteGrant(_ context.Context, documentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[documentID][userID]; !ok {
		return document.ErrNotFound
	}
	delete(s.grants[documentID], userID)
	return nil
}

func (s *Store) ListGrants(_ context.Context, documentID string) ([]document.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var grants []document.AccessGrant
	for _, grant := range s.grants[documentID] {
		grants = append(grants, *grant)
	}
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].CreatedAt.Before(grants[j].CreatedAt)
	})
	return grants, nil
}

// --- notifications ---

func (s *Store) CreateNotification(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	n.CreatedAt = time.Now().UTC()
	cp := *n
	s.notes[n.ID] = &cp
	return nil
}

func (s *Store) ListNotifications(_ context.Context, receiverID string) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var notes []notification.Notification
	for _, n := range s.notes {
		if n.ReceiverID == receiverID {
			notes = append(notes, *n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *Store) DeleteNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return notification.ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

// --- retention ---

func (s *Store) ArchiveAccount(_ context.Context, rec *retention.DeletedAccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.users[rec.UserID]; !ok {
		return retention.ErrNotFound
	}
	for docID, byGrantee := range s.grants {
		delete(byGrantee, rec.UserID)
		if doc, ok := s.docs[docID]; ok && doc.OwnerID == rec.UserID {
			delete(s.grants, docID)
		}
	}
	for _, doc := range s.docs {
		if doc.OwnerID == rec.UserID {
			doc.Trashed = true
		}
	}
	for id, n := range s.notes {
		if n.ReceiverID == rec.UserID {
			delete(s.notes, id)
		}
	}
	delete(s.users, rec.UserID)
	cp := *rec
	s.deleted[rec.Email] = &cp
	return nil
}

func (s *Store) FindDeletedAccount(_ context.Context, email string) (retention.DeletedAccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return retention.DeletedAccountRecord{}, err
	}
	rec, ok := s.deleted[email]
	if !ok {
		return retention.DeletedAccountRecord{}, retention.ErrNotFound
	}
	return *rec, nil
}

func (s *Store) PurgeAccount(_ context.Context, rec retention.DeletedAccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	for id, doc := range s.docs {
		if doc.OwnerID == rec.UserID && doc.Trashed {
			delete(s.docs, id)
			delete(s.grants, id)
		}
	}
	delete(s.deleted, rec.Email)
	return nil
}

// --- access query ---

func (s *Store) DocumentOwner(_ context.Context, documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return "", err
	}
	doc, ok := s.docs[documentID]
	if !ok {
		return "", document.ErrNotFound
	}
	return doc.OwnerID, nil
}

func (s *Store) GrantLevel(_ context.Context, documentID, userID string) (access.Level, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return "", false, err
	}
	if grant, ok := s.grants[documentID][userID]; ok {
		return grant.Level, true, nil
	}
	return "", false, nil
}

func (s *Store) NotificationReceiver(_ context.Context, notificationID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return "", err
	}
	n, ok := s.notes[notificationID]
	if !ok {
		return "", notification.ErrNotFound
	}
	return n.ReceiverID, nil
}
