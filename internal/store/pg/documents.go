package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notedrive.org/internal/access"
	"notedrive.org/internal/document"
)

var (
	_ document.Store = (*Store)(nil)
	_ access.Query   = (*Store)(nil)
)

func (s *Store) CreateDocument(ctx context.Context, doc *document.Document) error {
	row := s.db.QueryRowContext(ctx, `
		insert into documents (id, owner_id, title, content)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, doc.ID, doc.OwnerID, doc.Title, doc.Content)
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return document.ErrConflict
			case pgErrForeignKeyViolation:
				return document.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var doc document.Document
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, title, content, trashed, created_at, updated_at
		from documents
		where id = $1
	`, id).Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.Trashed, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, document.ErrNotFound
	}
	if err != nil {
		return document.Document{}, err
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, id string, upd document.Update) (document.Document, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", idx))
		args = append(args, *upd.Title)
		idx++
	}
	if upd.Content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", idx))
		args = append(args, *upd.Content)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update documents set %s where id = $%d and not trashed`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return document.Document{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return document.Document{}, err
		}
		if aff == 0 {
			return document.Document{}, document.ErrNotFound
		}
	}
	return s.GetDocument(ctx, id)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from documents where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (s *Store) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]document.Document, error) {
	return s.listDocuments(ctx, `
		select id, owner_id, title, content, trashed, created_at, updated_at
		from documents
		where owner_id = $1 and not trashed
		order by updated_at desc
	`, ownerID)
}

func (s *Store) ListDocumentsSharedWith(ctx context.Context, userID string) ([]document.Document, error) {
	return s.listDocuments(ctx, `
		select d.id, d.owner_id, d.title, d.content, d.trashed, d.created_at, d.updated_at
		from documents d
		join access_grants g on g.document_id = d.id
		where g.grantee_id = $1 and not d.trashed
		order by d.updated_at desc
	`, userID)
}

func (s *Store) ListDocumentsSharedWithEmail(ctx context.Context, email string) ([]document.Document, error) {
	return s.listDocuments(ctx, `
		select d.id, d.owner_id, d.title, d.content, d.trashed, d.created_at, d.updated_at
		from documents d
		join access_grants g on g.document_id = d.id
		where g.grantee_email = $1 and not d.trashed
		order by d.updated_at desc
	`, email)
}

func (s *Store) listDocuments(ctx context.Context, query string, args ...any) ([]document.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var doc document.Document
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.Trashed, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// --- grants ---

func (s *Store) UpsertGrant(ctx context.Context, grant *document.AccessGrant) error {
	row := s.db.QueryRowContext(ctx, `
		insert into access_grants (document_id, grantee_id, grantee_email, level)
		values ($1, $2, $3, $4)
		on conflict (document_id, grantee_id) do update
		set level = excluded.level, grantee_email = excluded.grantee_email, updated_at = now()
		returning created_at, updated_at
	`, grant.DocumentID, grant.GranteeID, grant.GranteeEmail, string(grant.Level))
	if err := row.Scan(&grant.CreatedAt, &grant.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return document.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, documentID, userID string) (document.AccessGrant, error) {
	var (
		grant document.AccessGrant
		level string
	)
	err := s.db.QueryRowContext(ctx, `
		select document_id, grantee_id, grantee_email, level, created_at, updated_at
		from access_grants
		where document_id = $1 and grantee_id = $2
	`, documentID, userID).Scan(&grant.DocumentID, &grant.GranteeID, &grant.GranteeEmail, &level, &grant.CreatedAt, &grant.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return document.AccessGrant{}, document.ErrNotFound
	}
	if err != nil {
		return document.AccessGrant{}, err
	}
	grant.Level = access.Level(level)
	return grant, nil
}

func (s *Store) DeleteGrant(ctx context.Context, documentID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from access_grants where document_id = $1 and grantee_id = $2
	`, documentID, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, documentID string) ([]document.AccessGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select document_id, grantee_id, grantee_email, level, created_at, updated_at
		from access_grants
		where document_id = $1
		order by created_at asc
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []document.AccessGrant
	for rows.Next() {
		var (
			grant document.AccessGrant
			level string
		)
		if err := rows.Scan(&grant.DocumentID, &grant.GranteeID, &grant.GranteeEmail, &level, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
			return nil, err
		}
		grant.Level = access.Level(level)
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// --- access query ---

func (s *Store) DocumentOwner(ctx context.Context, documentID string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `select owner_id from documents where id = $1`, documentID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", document.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return owner, nil
}

func (s *Store) GrantLevel(ctx context.Context, documentID, userID string) (access.Level, bool, error) {
	var level string
	err := s.db.QueryRowContext(ctx, `
		select level from access_grants where document_id = $1 and grantee_id = $2
	`, documentID, userID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return access.Level(level), true, nil
}
