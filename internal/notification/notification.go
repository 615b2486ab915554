package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notedrive.org/internal/ids"
)

var (
	ErrInvalidInput = errors.New("notification: invalid input")
	ErrNotFound     = errors.New("notification: not found")
)

const (
	KindShareInvite = "share_invite"
	KindSystem      = "system"
)

// Notification is a row in a user's self-scoped inbox.
type Notification struct {
	ID         string    `json:"id"`
	ReceiverID string    `json:"receiver_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	DocumentID string    `json:"document_id,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store describes notification persistence.
type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, receiverID string) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
}

// Service validates input and delegates to the store.
type Service struct {
	store Store
}

// NewService constructs the notification service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	return &Service{store: store}, nil
}

// Notify creates an inbox entry for receiverID.
func (s *Service) Notify(ctx context.Context, receiverID, kind, message, documentID string) (Notification, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return Notification{}, fmt.Errorf("%w: receiver id is required", ErrInvalidInput)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Notification{}, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if kind == "" {
		kind = KindSystem
	}
	n := &Notification{
		ID:         ids.New(),
		ReceiverID: receiverID,
		Kind:       kind,
		Message:    message,
		DocumentID: strings.TrimSpace(documentID),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return Notification{}, err
	}
	return *n, nil
}

// List returns the receiver's inbox, newest first.
func (s *Service) List(ctx context.Context, receiverID string) ([]Notification, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return nil, fmt.Errorf("%w: receiver id is required", ErrInvalidInput)
	}
	return s.store.ListNotifications(ctx, receiverID)
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: notification id is required", ErrInvalidInput)
	}
	return s.store.MarkNotificationRead(ctx, id)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: notification id is required", ErrInvalidInput)
	}
	return s.store.DeleteNotification(ctx, id)
}
