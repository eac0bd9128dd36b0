package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/mailsearch/internal/embed"
	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
	"github.com/Aman-CERP/mailsearch/internal/store"
	"github.com/Aman-CERP/mailsearch/internal/telemetry"
)

// Config wires a Service.
type Config struct {
	Lexical  store.LexicalIndex
	Vectors  store.VectorIndex
	Provider embed.Provider

	CanonicalDimensions int
	DefaultPageSize     int
	MaxPageSize         int
	TrigramThreshold    float64
	// SemanticMinScore drops semantic hits below it when positive.
	SemanticMinScore float64

	// Metrics records every query served through Search. Optional.
	Metrics *telemetry.QueryMetrics

	Logger *slog.Logger
}

// Service routes queries to one index. Failures never reach the caller:
// they are logged and the result is empty, so the mail UI keeps working.
type Service struct {
	config Config
	logger *slog.Logger
}

// NewService creates a search service.
func NewService(config Config) *Service {
	if config.Provider == nil {
		config.Provider = embed.Disabled()
	}
	if config.CanonicalDimensions <= 0 {
		config.CanonicalDimensions = embed.DefaultCanonicalDimensions
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = store.DefaultPageSize
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = store.MaxPageSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Service{config: config, logger: config.Logger}
}

// paging applies defaults and the page size cap.
func (s *Service) paging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.config.DefaultPageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}
	return page, pageSize
}

// SearchLexical ranks the owner's documents by substring and trigram
// matches. An empty query lists every document newest first.
func (s *Service) SearchLexical(ctx context.Context, req Request) *Results {
	start := time.Now()
	page, pageSize := s.paging(req.Page, req.PageSize)

	result, err := s.config.Lexical.SearchLexical(ctx, store.LexicalQuery{
		OwnerID:   req.OwnerID,
		Query:     strings.TrimSpace(req.Query),
		Filters:   req.Filters,
		Sort:      req.Sort,
		Page:      page,
		PageSize:  pageSize,
		Threshold: s.config.TrigramThreshold,
	})
	if err != nil {
		s.logFailure("lexical", req, err)
		return Empty()
	}

	s.logger.Debug("search_completed",
		slog.String("mode", string(ModeLexical)),
		slog.String("owner_id", req.OwnerID),
		slog.Int("total", result.Total),
		slog.Duration("duration", time.Since(start)))
	return fromPage(result)
}

// SearchSemantic ranks the owner's embedded documents by similarity to the
// query. It returns empty results without calling the provider when the
// query is blank, the provider is unavailable or the owner has no
// embeddings.
func (s *Service) SearchSemantic(ctx context.Context, req Request) *Results {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Empty()
	}
	if !s.config.Provider.Available(ctx) {
		s.logger.Debug("semantic_search_skipped",
			slog.String("owner_id", req.OwnerID),
			slog.String("reason", "provider unavailable"))
		return Empty()
	}

	count, err := s.config.Vectors.CountEmbeddings(ctx, req.OwnerID)
	if err != nil {
		s.logFailure("semantic", req, err)
		return Empty()
	}
	if count == 0 {
		s.logger.Debug("semantic_search_skipped",
			slog.String("owner_id", req.OwnerID),
			slog.String("reason", "no embeddings"))
		return Empty()
	}

	vector, err := s.config.Provider.Embed(ctx, query)
	if err != nil {
		s.logFailure("semantic", req, err)
		return Empty()
	}

	page, pageSize := s.paging(req.Page, req.PageSize)
	result, err := s.config.Vectors.SearchVector(ctx, store.VectorQuery{
		OwnerID:  req.OwnerID,
		Vector:   embed.Adapt(vector, s.config.CanonicalDimensions),
		Filters:  req.Filters,
		Page:     page,
		PageSize: pageSize,
		MinScore: s.config.SemanticMinScore,
	})
	if err != nil {
		s.logFailure("semantic", req, err)
		return Empty()
	}

	s.logger.Debug("search_completed",
		slog.String("mode", string(ModeSemantic)),
		slog.String("owner_id", req.OwnerID),
		slog.Int("total", result.Total),
		slog.Duration("duration", time.Since(start)))
	return fromPage(result)
}

// EmbeddingServiceAvailable reports whether semantic search can run at all.
func (s *Service) EmbeddingServiceAvailable(ctx context.Context) bool {
	return s.config.Provider.Available(ctx)
}

// ResolveMode turns ModeAuto into a concrete mode for req's owner. Callers
// check once and then search; the service itself never falls back.
func (s *Service) ResolveMode(ctx context.Context, mode Mode, ownerID string) Mode {
	if mode != ModeAuto {
		return mode
	}
	if !s.EmbeddingServiceAvailable(ctx) {
		return ModeLexical
	}
	if n, err := s.config.Vectors.CountEmbeddings(ctx, ownerID); err != nil || n == 0 {
		return ModeLexical
	}
	return ModeSemantic
}

// Search runs req in the given mode, resolving ModeAuto first.
func (s *Service) Search(ctx context.Context, mode Mode, req Request) (Mode, *Results) {
	start := time.Now()
	mode = s.ResolveMode(ctx, mode, req.OwnerID)

	var results *Results
	if mode == ModeSemantic {
		results = s.SearchSemantic(ctx, req)
	} else {
		mode = ModeLexical
		results = s.SearchLexical(ctx, req)
	}

	if s.config.Metrics != nil {
		s.config.Metrics.Record(telemetry.QueryEvent{
			Mode:    string(mode),
			Query:   req.Query,
			Results: results.Total,
			Latency: time.Since(start),
		})
	}
	return mode, results
}

// Metrics returns the query recorder, or nil when none is configured.
func (s *Service) Metrics() *telemetry.QueryMetrics {
	return s.config.Metrics
}

// logFailure records a search that failed open. The underlying error's code
// stays visible in the cause.
func (s *Service) logFailure(mode string, req Request, err error) {
	s.logger.Warn("search_failed",
		slog.String("mode", mode),
		slog.String("owner_id", req.OwnerID),
		mserrors.LogAttr(mserrors.New(mserrors.ErrCodeSearchFailed, mode+" search failed", err)))
}
