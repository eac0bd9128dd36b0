package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// UpsertDocuments implements LexicalIndex. Rewriting identical content is a no-op
// apart from updated_at.
func (s *SQLiteStore) UpsertDocuments(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mserrors.StoreError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (owner_id, id, subject, sender_name, sender_email,
			snippet, body_text, received_at, status, unread, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, id) DO UPDATE SET
			subject = excluded.subject,
			sender_name = excluded.sender_name,
			sender_email = excluded.sender_email,
			snippet = excluded.snippet,
			body_text = excluded.body_text,
			received_at = excluded.received_at,
			status = excluded.status,
			unread = excluded.unread,
			updated_at = excluded.updated_at`)
	if err != nil {
		return mserrors.StoreError("prepare document upsert", err)
	}
	defer stmt.Close()

	now := toMillis(s.now())
	for _, d := range docs {
		if d == nil || d.OwnerID == "" || d.ID == "" {
			return mserrors.ValidationError("document requires owner id and id", nil)
		}
		unread := 0
		if d.Unread {
			unread = 1
		}
		if _, err := stmt.ExecContext(ctx, d.OwnerID, d.ID, d.Subject, d.SenderName, d.SenderEmail,
			d.Snippet, d.BodyText, toMillis(d.ReceivedAt), d.Status, unread, now); err != nil {
			return mserrors.StoreError(fmt.Sprintf("upsert document %s", d.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mserrors.StoreError("commit documents", err)
	}
	return nil
}

// DeleteDocuments implements LexicalIndex.
func (s *SQLiteStore) DeleteDocuments(ctx context.Context, ownerID string, ids []string) error {
	return s.deleteByIDs(ctx, "documents", "id", ownerID, ids)
}

func (s *SQLiteStore) deleteByIDs(ctx context.Context, table, idColumn, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	for _, chunk := range idChunks(ids, 500) {
		query := fmt.Sprintf("DELETE FROM %s WHERE owner_id = ? AND %s IN (%s)", table, idColumn, placeholders(len(chunk)))
		args := make([]any, 0, len(chunk)+1)
		args = append(args, ownerID)
		for _, id := range chunk {
			args = append(args, id)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return mserrors.StoreError("delete from "+table, err)
		}
	}
	return nil
}

// GetDocument implements LexicalIndex.
func (s *SQLiteStore) GetDocument(ctx context.Context, ownerID, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM documents WHERE owner_id = ? AND id = ?", documentColumns("")),
		ownerID, id)
	if err != nil {
		return nil, mserrors.StoreError("get document", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mserrors.StoreError("get document", err)
		}
		return nil, mserrors.New(mserrors.ErrCodeDocumentNotFound,
			fmt.Sprintf("document %s not found for owner %s", id, ownerID), nil)
	}
	d, err := scanDocument(rows, false)
	if err != nil {
		return nil, mserrors.StoreError("scan document", err)
	}
	return &d.Document, nil
}

// CountDocuments implements LexicalIndex.
func (s *SQLiteStore) CountDocuments(ctx context.Context, ownerID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM documents WHERE owner_id = ?", ownerID)
}

func (s *SQLiteStore) count(ctx context.Context, query string, args ...any) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return 0, mserrors.StoreError("count", err)
	}
	return n, nil
}

// SearchLexical implements LexicalIndex.
func (s *SQLiteStore) SearchLexical(ctx context.Context, q LexicalQuery) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	_, pageSize, offset := normalizePaging(q.Page, q.PageSize)
	filters, filterArgs := filterClause(q.Filters, "")
	query := strings.TrimSpace(q.Query)

	var (
		inner string
		args  []any
		where string
	)
	if query == "" {
		inner = fmt.Sprintf("SELECT %s, 0.0 AS score FROM documents WHERE owner_id = ?%s",
			documentColumns(""), filters)
		args = append([]any{q.OwnerID}, filterArgs...)
	} else {
		inner = fmt.Sprintf(`SELECT %s,
			lexical_score(subject, sender_name, sender_email, snippet, ?, ?) AS score
			FROM documents WHERE owner_id = ?%s`, documentColumns(""), filters)
		args = append([]any{query, q.threshold(), q.OwnerID}, filterArgs...)
		where = "WHERE score > 0"
	}

	page, err := s.queryPage(ctx, inner, args, where, lexicalOrder(q.Sort), pageSize, offset)
	if err != nil {
		return nil, mserrors.New(mserrors.ErrCodeStoreUnavailable, "lexical search failed", err)
	}
	return page, nil
}

// lexicalOrder maps a sort mode to ORDER BY terms. Relevance with an empty
// query has all scores at zero, so it falls through to newest first.
func lexicalOrder(mode SortMode) string {
	switch mode {
	case SortReceivedAsc:
		return "received_at ASC, id ASC"
	case SortReceivedDesc:
		return "received_at DESC, id ASC"
	default:
		return "score DESC, received_at DESC, id ASC"
	}
}
