// Package store persists searchable mail documents and their embeddings and
// ranks them. The lexical view (substring + trigram) and the vector view
// (cosine similarity) share document identity but are written independently.
package store

import (
	"context"
	"time"
)

// Lexical ranking weights. These are tuning constants: literal hits always
// carry a higher tier than trigram-only hits of the same field.
const (
	WeightSubjectLiteral  = 3.0
	WeightSenderLiteral   = 2.5
	WeightSnippetLiteral  = 1.5
	WeightSubjectTrigram  = 2.0
	WeightSenderNameTrgm  = 1.5
	WeightSenderEmailTrgm = 1.5

	// DefaultTrigramThreshold favors recall: a missed match is unrecoverable,
	// a weak one is merely scrolled past.
	DefaultTrigramThreshold = 0.05
)

// Paging defaults shared by every backend.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Document is the searchable projection of one mail message.
// (OwnerID, ID) is unique.
type Document struct {
	ID          string
	OwnerID     string
	Subject     string
	SenderName  string
	SenderEmail string
	Snippet     string // at most 200 runes
	BodyText    string // at most 5000 runes of normalized plain text
	ReceivedAt  time.Time
	Status      string
	Unread      bool
}

// EmbeddingRecord is the stored vector for one document, always at the
// canonical width.
type EmbeddingRecord struct {
	OwnerID    string
	DocumentID string
	Vector     []float32
	Model      string
	UpdatedAt  time.Time
}

// SortMode orders lexical results.
type SortMode string

const (
	SortRelevance    SortMode = "relevance"
	SortReceivedAsc  SortMode = "received_asc"
	SortReceivedDesc SortMode = "received_desc"
)

// ParseSortMode maps user input to a SortMode, defaulting to relevance.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortReceivedAsc, SortReceivedDesc:
		return SortMode(s)
	default:
		return SortRelevance
	}
}

// Filters are AND-ed with the match predicate and never affect scores.
type Filters struct {
	// Status requires an exact status match when set.
	Status string
	// Sender requires a case-insensitive substring hit on sender name or email.
	Sender string
	// UnreadOnly restricts results to unread documents.
	UnreadOnly bool
}

// LexicalQuery is a paged lexical search request.
type LexicalQuery struct {
	OwnerID  string
	Query    string
	Filters  Filters
	Sort     SortMode
	Page     int // 1-based
	PageSize int
	// Threshold is the trigram similarity floor. Zero uses DefaultTrigramThreshold.
	Threshold float64
}

// VectorQuery is a paged nearest-neighbor request. Vector must already be at
// the canonical width.
type VectorQuery struct {
	OwnerID  string
	Vector   []float32
	Filters  Filters
	Page     int
	PageSize int
	// MinScore drops hits with similarity below it when positive.
	MinScore float64
}

// ScoredDocument is a ranked hit. Scores are not comparable across lexical
// and vector searches.
type ScoredDocument struct {
	Document
	Score float64
}

// Page is one page of ranked hits plus the total number of matches.
type Page struct {
	Total     int
	Documents []ScoredDocument
}

// LexicalIndex stores documents and ranks them by substring and trigram matches.
type LexicalIndex interface {
	// UpsertDocuments inserts or overwrites documents by (OwnerID, ID).
	UpsertDocuments(ctx context.Context, docs []*Document) error

	// DeleteDocuments removes documents; unknown ids are ignored.
	DeleteDocuments(ctx context.Context, ownerID string, ids []string) error

	// GetDocument returns errors.ErrDocumentNotFound for unknown ids.
	GetDocument(ctx context.Context, ownerID, id string) (*Document, error)

	// CountDocuments returns the number of documents stored for the owner.
	CountDocuments(ctx context.Context, ownerID string) (int, error)

	SearchLexical(ctx context.Context, q LexicalQuery) (*Page, error)
}

// VectorIndex stores one canonical-width embedding per document and ranks by
// cosine similarity.
type VectorIndex interface {
	// UpsertEmbeddings writes each record atomically: a full vector with its
	// timestamp, or nothing.
	UpsertEmbeddings(ctx context.Context, records []*EmbeddingRecord) error

	DeleteEmbeddings(ctx context.Context, ownerID string, documentIDs []string) error

	// MissingEmbeddings returns the subset of ids without an embedding, in input order.
	MissingEmbeddings(ctx context.Context, ownerID string, documentIDs []string) ([]string, error)

	CountEmbeddings(ctx context.Context, ownerID string) (int, error)

	SearchVector(ctx context.Context, q VectorQuery) (*Page, error)
}

// Store is a backend that serves both views.
type Store interface {
	LexicalIndex
	VectorIndex

	// Backend names the implementation ("sqlite", "postgres").
	Backend() string

	Close() error
}

// normalizePaging clamps page and pageSize and returns the row offset.
func normalizePaging(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

// threshold returns the effective trigram floor for q.
func (q LexicalQuery) threshold() float64 {
	if q.Threshold <= 0 {
		return DefaultTrigramThreshold
	}
	return q.Threshold
}
