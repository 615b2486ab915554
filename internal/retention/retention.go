// Package retention manages the soft-delete lifecycle of closed accounts:
// archive on close, a fixed retention window, then an irreversible atomic
// purge. Purges run lazily, at the moment a caller asks about a specific
// email; there is no scheduled sweep.
package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notedrive.org/internal/obs"
)

// Window is the fixed retention interval after account deletion.
const Window = 30 * 24 * time.Hour

var (
	ErrInvalidInput = errors.New("retention: invalid input")
	ErrNotFound     = errors.New("retention: not found")
)

// DeletedAccountRecord anchors a closed account's retained data. It is
// created once per deletion and removed exactly once, atomically with the
// purge of the account's trashed documents.
type DeletedAccountRecord struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	DeletedAt time.Time `json:"deleted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is the outcome of a lazy check.
type State string

const (
	// StateNone: no deletion record exists for the email.
	StateNone State = "none"
	// StatePending: the record exists and the window has not elapsed.
	StatePending State = "pending"
	// StatePurged: the window had elapsed; the check purged the data.
	StatePurged State = "purged"
)

// Status reports a lazy-check result. ExpiresAt is set only for pending.
type Status struct {
	State     State     `json:"state"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Store describes the persistence the lifecycle needs. ArchiveAccount and
// PurgeAccount are each a single atomic transaction.
type Store interface {
	// ArchiveAccount marks the user closed, moves their documents to the
	// trash state and creates the deletion record, all-or-nothing.
	ArchiveAccount(ctx context.Context, rec *DeletedAccountRecord) error
	// FindDeletedAccount looks up the record by normalized email.
	FindDeletedAccount(ctx context.Context, email string) (DeletedAccountRecord, error)
	// PurgeAccount deletes the user's trashed documents and then the
	// record itself in one transaction. A failed purge leaves everything
	// in place for the next lazy check.
	PurgeAccount(ctx context.Context, rec DeletedAccountRecord) error
}

// Lifecycle reacts to account deletion and answers lazy checks.
type Lifecycle struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// Option configures Lifecycle.
type Option func(*Lifecycle)

// WithWindow overrides the retention window.
func WithWindow(d time.Duration) Option {
	return func(l *Lifecycle) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Lifecycle) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLifecycle constructs the lifecycle over the given store.
func NewLifecycle(store Store, opts ...Option) (*Lifecycle, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	l := &Lifecycle{store: store, window: Window, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CloseAccount archives userID's data under a fresh retention record. The
// deletion trigger itself belongs to the account owner's flow; this only
// reacts to it.
func (l *Lifecycle) CloseAccount(ctx context.Context, userID, email string) (DeletedAccountRecord, error) {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(strings.ToLower(email))
	if userID == "" || email == "" {
		return DeletedAccountRecord{}, fmt.Errorf("%w: user id and email are required", ErrInvalidInput)
	}
	now := l.now().UTC()
	rec := &DeletedAccountRecord{
		UserID:    userID,
		Email:     email,
		DeletedAt: now,
		ExpiresAt: now.Add(l.window),
	}
	if err := l.store.ArchiveAccount(ctx, rec); err != nil {
		return DeletedAccountRecord{}, err
	}
	return *rec, nil
}

// Check is the lazy-expiry query: look up the email's deletion record and,
// if its window has elapsed, purge record and trashed documents in one
// transaction. The purge is structurally idempotent: once gone, the
// record cannot be found again, so a second purge cannot happen.
func (l *Lifecycle) Check(ctx context.Context, email string) (Status, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return Status{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	rec, err := l.store.FindDeletedAccount(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Status{State: StateNone}, nil
		}
		return Status{}, err
	}
	if l.now().UTC().Before(rec.ExpiresAt) {
		return Status{State: StatePending, ExpiresAt: rec.ExpiresAt}, nil
	}
	if err := l.store.PurgeAccount(ctx, rec); err != nil {
		return Status{}, err
	}
	obs.CountRetentionPurge()
	obs.LogEntry(map[string]any{
		"level":   "info",
		"msg":     "retention_purge",
		"user_id": rec.UserID,
	})
	return Status{State: StatePurged}, nil
}

// PendingFor adapts Check for the registration collision path: it reports
// whether the email still sits inside a retention window, purging first if
// the window elapsed.
func (l *Lifecycle) PendingFor(ctx context.Context, email string) (bool, time.Time, error) {
	status, err := l.Check(ctx, email)
	if err != nil {
		return false, time.Time{}, err
	}
	if status.State == StatePending {
		return true, status.ExpiresAt, nil
	}
	return false, time.Time{}, nil
}
