package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// pgDocument is the mail_documents row.
type pgDocument struct {
	OwnerID     string `gorm:"primaryKey"`
	ID          string `gorm:"primaryKey"`
	Subject     string
	SenderName  string
	SenderEmail string
	Snippet     string
	BodyText    string
	ReceivedAt  time.Time
	Status      string
	Unread      bool
	UpdatedAt   time.Time
}

func (pgDocument) TableName() string { return "mail_documents" }

// pgEmbedding is the mail_embeddings row. The vector column is unconstrained
// so a width change does not need a table rewrite; queries filter on dimensions.
type pgEmbedding struct {
	OwnerID    string `gorm:"primaryKey"`
	DocumentID string `gorm:"primaryKey"`
	Embedding  pgvector.Vector
	Dimensions int
	Model      string
	UpdatedAt  time.Time
}

func (pgEmbedding) TableName() string { return "mail_embeddings" }

// pgHit is one ranked row.
type pgHit struct {
	pgDocument
	Score float64
}

// PostgresStore serves both views from Postgres using pg_trgm similarity()
// and the pgvector <=> cosine distance operator.
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects and creates extensions, tables and indexes if missing.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, mserrors.StoreError("connect to postgres", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, mserrors.StoreError("initialize postgres schema", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS mail_documents (
			owner_id     TEXT NOT NULL,
			id           TEXT NOT NULL,
			subject      TEXT NOT NULL DEFAULT '',
			sender_name  TEXT NOT NULL DEFAULT '',
			sender_email TEXT NOT NULL DEFAULT '',
			snippet      TEXT NOT NULL DEFAULT '',
			body_text    TEXT NOT NULL DEFAULT '',
			received_at  TIMESTAMPTZ NOT NULL,
			status       TEXT NOT NULL DEFAULT '',
			unread       BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (owner_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mail_documents_owner_received ON mail_documents (owner_id, received_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_mail_documents_subject_trgm ON mail_documents USING gin (subject gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_mail_documents_sender_trgm ON mail_documents USING gin (sender_name gin_trgm_ops, sender_email gin_trgm_ops)`,
		`CREATE TABLE IF NOT EXISTS mail_embeddings (
			owner_id    TEXT NOT NULL,
			document_id TEXT NOT NULL,
			embedding   vector NOT NULL,
			dimensions  INTEGER NOT NULL,
			model       TEXT NOT NULL DEFAULT '',
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (owner_id, document_id)
		)`,
	}
	for _, stmt := range stmts {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Backend implements Store.
func (s *PostgresStore) Backend() string { return "postgres" }

// Close implements Store.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertDocuments implements LexicalIndex.
func (s *PostgresStore) UpsertDocuments(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]pgDocument, 0, len(docs))
	for _, d := range docs {
		if d == nil || d.OwnerID == "" || d.ID == "" {
			return mserrors.ValidationError("document requires owner id and id", nil)
		}
		rows = append(rows, pgDocument{
			OwnerID: d.OwnerID, ID: d.ID, Subject: d.Subject, SenderName: d.SenderName,
			SenderEmail: d.SenderEmail, Snippet: d.Snippet, BodyText: d.BodyText,
			ReceivedAt: d.ReceivedAt, Status: d.Status, Unread: d.Unread,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return mserrors.StoreError("upsert documents", err)
	}
	return nil
}

// DeleteDocuments implements LexicalIndex.
func (s *PostgresStore) DeleteDocuments(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Where("owner_id = ? AND id IN ?", ownerID, ids).Delete(&pgDocument{}).Error
	if err != nil {
		return mserrors.StoreError("delete documents", err)
	}
	return nil
}

// GetDocument implements LexicalIndex.
func (s *PostgresStore) GetDocument(ctx context.Context, ownerID, id string) (*Document, error) {
	var row pgDocument
	err := s.db.WithContext(ctx).First(&row, "owner_id = ? AND id = ?", ownerID, id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, mserrors.New(mserrors.ErrCodeDocumentNotFound,
			fmt.Sprintf("document %s not found for owner %s", id, ownerID), nil)
	}
	if err != nil {
		return nil, mserrors.StoreError("get document", err)
	}
	d := row.toDocument()
	return &d, nil
}

// CountDocuments implements LexicalIndex.
func (s *PostgresStore) CountDocuments(ctx context.Context, ownerID string) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&pgDocument{}).Where("owner_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, mserrors.StoreError("count documents", err)
	}
	return int(n), nil
}

// pgLexicalScore mirrors LexicalScore with pg_trgm operators.
const pgLexicalScore = `CASE
	WHEN strpos(lower(subject), @q) > 0 THEN 3.0::float8
	WHEN strpos(lower(sender_name), @q) > 0 OR strpos(lower(sender_email), @q) > 0 THEN 2.5::float8
	WHEN strpos(lower(snippet), @q) > 0 THEN 1.5::float8
	ELSE GREATEST(
		CASE WHEN similarity(subject, @q) > @threshold THEN similarity(subject, @q) * 2.0 ELSE 0 END,
		CASE WHEN similarity(sender_name, @q) > @threshold THEN similarity(sender_name, @q) * 1.5 ELSE 0 END,
		CASE WHEN similarity(sender_email, @q) > @threshold THEN similarity(sender_email, @q) * 1.5 ELSE 0 END
	)::float8
END`

// SearchLexical implements LexicalIndex.
func (s *PostgresStore) SearchLexical(ctx context.Context, q LexicalQuery) (*Page, error) {
	_, pageSize, offset := normalizePaging(q.Page, q.PageSize)
	args := map[string]any{"owner": q.OwnerID}
	filters := pgFilterClause(q.Filters, "", args)

	query := strings.ToLower(strings.TrimSpace(q.Query))
	scoreExpr, where := "0::float8", ""
	if query != "" {
		args["q"] = query
		args["threshold"] = q.threshold()
		scoreExpr, where = pgLexicalScore, "WHERE score > 0"
	}

	inner := fmt.Sprintf(`SELECT owner_id, id, subject, sender_name, sender_email, snippet,
		body_text, received_at, status, unread, updated_at, %s AS score
		FROM mail_documents WHERE owner_id = @owner%s`, scoreExpr, filters)

	page, err := s.queryPage(ctx, inner, where, lexicalOrder(q.Sort), args, pageSize, offset)
	if err != nil {
		return nil, mserrors.New(mserrors.ErrCodeStoreUnavailable, "lexical search failed", err)
	}
	return page, nil
}

// UpsertEmbeddings implements VectorIndex.
func (s *PostgresStore) UpsertEmbeddings(ctx context.Context, records []*EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]pgEmbedding, 0, len(records))
	for _, r := range records {
		if r == nil || len(r.Vector) == 0 {
			return mserrors.ValidationError("embedding record requires a vector", nil)
		}
		rows = append(rows, pgEmbedding{
			OwnerID: r.OwnerID, DocumentID: r.DocumentID, Embedding: pgvector.NewVector(r.Vector),
			Dimensions: len(r.Vector), Model: r.Model, UpdatedAt: r.UpdatedAt,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "document_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return mserrors.StoreError("upsert embeddings", err)
	}
	return nil
}

// DeleteEmbeddings implements VectorIndex.
func (s *PostgresStore) DeleteEmbeddings(ctx context.Context, ownerID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Where("owner_id = ? AND document_id IN ?", ownerID, documentIDs).
		Delete(&pgEmbedding{}).Error
	if err != nil {
		return mserrors.StoreError("delete embeddings", err)
	}
	return nil
}

// MissingEmbeddings implements VectorIndex.
func (s *PostgresStore) MissingEmbeddings(ctx context.Context, ownerID string, documentIDs []string) ([]string, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var have []string
	err := s.db.WithContext(ctx).Model(&pgEmbedding{}).
		Where("owner_id = ? AND document_id IN ?", ownerID, documentIDs).
		Pluck("document_id", &have).Error
	if err != nil {
		return nil, mserrors.StoreError("query embeddings", err)
	}

	seen := make(map[string]bool, len(have))
	for _, id := range have {
		seen[id] = true
	}
	missing := make([]string, 0, len(documentIDs))
	for _, id := range documentIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CountEmbeddings implements VectorIndex.
func (s *PostgresStore) CountEmbeddings(ctx context.Context, ownerID string) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&pgEmbedding{}).Where("owner_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, mserrors.StoreError("count embeddings", err)
	}
	return int(n), nil
}

// SearchVector implements VectorIndex.
func (s *PostgresStore) SearchVector(ctx context.Context, q VectorQuery) (*Page, error) {
	if len(q.Vector) == 0 {
		return nil, mserrors.ValidationError("query vector is empty", nil)
	}
	_, pageSize, offset := normalizePaging(q.Page, q.PageSize)
	args := map[string]any{
		"owner": q.OwnerID,
		"vec":   pgvector.NewVector(q.Vector),
		"dims":  len(q.Vector),
	}
	filters := pgFilterClause(q.Filters, "d.", args)

	inner := fmt.Sprintf(`SELECT d.owner_id, d.id, d.subject, d.sender_name, d.sender_email, d.snippet,
		d.body_text, d.received_at, d.status, d.unread, d.updated_at,
		(1 - (e.embedding <=> @vec))::float8 AS score
		FROM mail_embeddings e
		JOIN mail_documents d ON d.owner_id = e.owner_id AND d.id = e.document_id
		WHERE e.owner_id = @owner AND e.dimensions = @dims%s`, filters)

	where := ""
	if q.MinScore > 0 {
		args["min_score"] = q.MinScore
		where = "WHERE score >= @min_score"
	}

	page, err := s.queryPage(ctx, inner, where, "score DESC, received_at DESC, id ASC", args, pageSize, offset)
	if err != nil {
		return nil, mserrors.New(mserrors.ErrCodeStoreUnavailable, "vector search failed", err)
	}
	return page, nil
}

func (s *PostgresStore) queryPage(ctx context.Context, inner, where, orderBy string, args map[string]any, pageSize, offset int) (*Page, error) {
	var total int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS scored %s", inner, where)
	if err := s.db.WithContext(ctx).Raw(countSQL, args).Scan(&total).Error; err != nil {
		return nil, err
	}

	page := &Page{Total: int(total), Documents: []ScoredDocument{}}
	if total == 0 || int64(offset) >= total {
		return page, nil
	}

	args["limit"], args["offset"] = pageSize, offset
	var hits []pgHit
	pageSQL := fmt.Sprintf("SELECT * FROM (%s) AS scored %s ORDER BY %s LIMIT @limit OFFSET @offset", inner, where, orderBy)
	if err := s.db.WithContext(ctx).Raw(pageSQL, args).Scan(&hits).Error; err != nil {
		return nil, err
	}
	for _, h := range hits {
		page.Documents = append(page.Documents, ScoredDocument{Document: h.toDocument(), Score: h.Score})
	}
	return page, nil
}

func pgFilterClause(f Filters, prefix string, args map[string]any) string {
	var parts []string
	if f.Status != "" {
		parts = append(parts, prefix+"status = @status")
		args["status"] = f.Status
	}
	if sender := strings.ToLower(strings.TrimSpace(f.Sender)); sender != "" {
		parts = append(parts, fmt.Sprintf("(strpos(lower(%ssender_name), @sender) > 0 OR strpos(lower(%ssender_email), @sender) > 0)", prefix, prefix))
		args["sender"] = sender
	}
	if f.UnreadOnly {
		parts = append(parts, prefix+"unread")
	}
	if len(parts) == 0 {
		return ""
	}
	return " AND " + strings.Join(parts, " AND ")
}

func (r pgDocument) toDocument() Document {
	return Document{
		ID: r.ID, OwnerID: r.OwnerID, Subject: r.Subject, SenderName: r.SenderName,
		SenderEmail: r.SenderEmail, Snippet: r.Snippet, BodyText: r.BodyText,
		ReceivedAt: r.ReceivedAt.UTC(), Status: r.Status, Unread: r.Unread,
	}
}
