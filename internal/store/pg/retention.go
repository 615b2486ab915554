package pg

import (
	"context"
	"database/sql"
	"errors"

	"notedrive.org/internal/retention"
)

var _ retention.Store = (*Store)(nil)

// ArchiveAccount runs the whole soft-delete as one transaction: revoke
// grants touching the account, trash the account's documents, drop the
// user row and create the retention record. Partial archives are never
// visible.
func (s *Store) ArchiveAccount(ctx context.Context, rec *retention.DeletedAccountRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var dummy int
	if err := tx.QueryRowContext(ctx, `select 1 from users where id = $1 for update`, rec.UserID).Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return retention.ErrNotFound
		}
		return err
	}

	// Shared access to and from the account ends with the account.
	if _, err := tx.ExecContext(ctx, `
		delete from access_grants
		where grantee_id = $1
		   or document_id in (select id from documents where owner_id = $1)
	`, rec.UserID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update documents set trashed = true, trashed_at = $2
		where owner_id = $1 and not trashed
	`, rec.UserID, rec.DeletedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from notifications where receiver_id = $1`, rec.UserID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from users where id = $1`, rec.UserID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into deleted_accounts (user_id, email, deleted_at, expires_at)
		values ($1, $2, $3, $4)
	`, rec.UserID, rec.Email, rec.DeletedAt, rec.ExpiresAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return retention.ErrInvalidInput
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) FindDeletedAccount(ctx context.Context, email string) (retention.DeletedAccountRecord, error) {
	var rec retention.DeletedAccountRecord
	err := s.db.QueryRowContext(ctx, `
		select user_id, email, deleted_at, expires_at
		from deleted_accounts
		where email = $1
	`, email).Scan(&rec.UserID, &rec.Email, &rec.DeletedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return retention.DeletedAccountRecord{}, retention.ErrNotFound
	}
	if err != nil {
		return retention.DeletedAccountRecord{}, err
	}
	return rec, nil
}

// PurgeAccount deletes the account's trashed documents and then the
// retention record, in that order, inside one transaction. A concurrent
// lazy check either sees everything or nothing; a failed purge leaves the
// record for the next check.
func (s *Store) PurgeAccount(ctx context.Context, rec retention.DeletedAccountRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from documents where owner_id = $1 and trashed
	`, rec.UserID); err != nil {
		return err
	}
	// Zero rows here means a concurrent check already purged; committing an
	// empty transaction keeps the operation idempotent.
	if _, err := tx.ExecContext(ctx, `
		delete from deleted_accounts where user_id = $1
	`, rec.UserID); err != nil {
		return err
	}
	return tx.Commit()
}
