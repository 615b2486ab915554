package pg

import (
	"context"
	"database/sql"
	"errors"

	"notedrive.org/internal/notification"
)

var _ notification.Store = (*Store)(nil)

func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification) error {
	row := s.db.QueryRowContext(ctx, `
		insert into notifications (id, receiver_id, kind, message, document_id)
		values ($1, $2, $3, $4, nullif($5, ''))
		returning created_at
	`, n.ID, n.ReceiverID, n.Kind, n.Message, n.DocumentID)
	if err := row.Scan(&n.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return notification.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, receiverID string) ([]notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, receiver_id, kind, message, coalesce(document_id, ''), read, created_at
		from notifications
		where receiver_id = $1
		order by created_at desc
	`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.ReceiverID, &n.Kind, &n.Message, &n.DocumentID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	return s.notificationExec(ctx, `update notifications set read = true where id = $1`, id)
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	return s.notificationExec(ctx, `delete from notifications where id = $1`, id)
}

func (s *Store) NotificationReceiver(ctx context.Context, notificationID string) (string, error) {
	var receiver string
	err := s.db.QueryRowContext(ctx, `select receiver_id from notifications where id = $1`, notificationID).Scan(&receiver)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notification.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return receiver, nil
}

func (s *Store) notificationExec(ctx context.Context, query, id string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return notification.ErrNotFound
	}
	return nil
}
