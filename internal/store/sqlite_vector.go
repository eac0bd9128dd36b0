package store

import (
	"context"
	"fmt"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// UpsertEmbeddings implements VectorIndex. Each row is replaced whole.
func (s *SQLiteStore) UpsertEmbeddings(ctx context.Context, records []*EmbeddingRecord) error {
	if len(records) == 0 {
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
		INSERT INTO embeddings (owner_id, document_id, vector, dimensions, model, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, document_id) DO UPDATE SET
			vector = excluded.vector,
			dimensions = excluded.dimensions,
			model = excluded.model,
			updated_at = excluded.updated_at`)
	if err != nil {
		return mserrors.StoreError("prepare embedding upsert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r == nil || len(r.Vector) == 0 {
			return mserrors.ValidationError("embedding record requires a vector", nil)
		}
		updated := r.UpdatedAt
		if updated.IsZero() {
			updated = s.now()
		}
		if _, err := stmt.ExecContext(ctx, r.OwnerID, r.DocumentID, encodeVector(r.Vector),
			len(r.Vector), r.Model, toMillis(updated)); err != nil {
			return mserrors.StoreError(fmt.Sprintf("upsert embedding %s", r.DocumentID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mserrors.StoreError("commit embeddings", err)
	}
	return nil
}

// DeleteEmbeddings implements VectorIndex.
func (s *SQLiteStore) DeleteEmbeddings(ctx context.Context, ownerID string, documentIDs []string) error {
	return s.deleteByIDs(ctx, "embeddings", "document_id", ownerID, documentIDs)
}

// MissingEmbeddings implements VectorIndex.
func (s *SQLiteStore) MissingEmbeddings(ctx context.Context, ownerID string, documentIDs []string) ([]string, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	have := make(map[string]bool, len(documentIDs))
	for _, chunk := range idChunks(documentIDs, 500) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, ownerID)
		for _, id := range chunk {
			args = append(args, id)
		}
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf("SELECT document_id FROM embeddings WHERE owner_id = ? AND document_id IN (%s)", placeholders(len(chunk))),
			args...)
		if err != nil {
			return nil, mserrors.StoreError("query embeddings", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, mserrors.StoreError("scan embedding id", err)
			}
			have[id] = true
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, mserrors.StoreError("query embeddings", err)
		}
	}

	missing := make([]string, 0, len(documentIDs))
	for _, id := range documentIDs {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CountEmbeddings implements VectorIndex.
func (s *SQLiteStore) CountEmbeddings(ctx context.Context, ownerID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM embeddings WHERE owner_id = ?", ownerID)
}

// SearchVector implements VectorIndex. Rows stored at a different width than
// the query are skipped.
func (s *SQLiteStore) SearchVector(ctx context.Context, q VectorQuery) (*Page, error) {
	if len(q.Vector) == 0 {
		return nil, mserrors.ValidationError("query vector is empty", nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	_, pageSize, offset := normalizePaging(q.Page, q.PageSize)
	filters, filterArgs := filterClause(q.Filters, "d.")

	inner := fmt.Sprintf(`SELECT %s, cosine_similarity(e.vector, ?) AS score
		FROM embeddings e
		JOIN documents d ON d.owner_id = e.owner_id AND d.id = e.document_id
		WHERE e.owner_id = ? AND e.dimensions = ?%s`, documentColumns("d."), filters)
	args := append([]any{encodeVector(q.Vector), q.OwnerID, len(q.Vector)}, filterArgs...)

	where := ""
	if q.MinScore > 0 {
		where = "WHERE score >= ?"
		args = append(args, q.MinScore)
	}

	page, err := s.queryPage(ctx, inner, args, where, "score DESC, received_at DESC, id ASC", pageSize, offset)
	if err != nil {
		return nil, mserrors.New(mserrors.ErrCodeStoreUnavailable, "vector search failed", err)
	}
	return page, nil
}
