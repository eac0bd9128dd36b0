// Package index keeps the lexical and vector indexes in step with the
// mailbox: documents are written synchronously, embeddings in debounced
// per-owner batches.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/Aman-CERP/mailsearch/internal/embed"
	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
	"github.com/Aman-CERP/mailsearch/internal/store"
)

// Defaults for CoordinatorConfig.
const (
	DefaultDebounce = 5 * time.Second
	DefaultPoolSize = 4
)

// DocumentSource fetches raw messages by id. The mail layer implements it;
// mailsource.Maildir is the shipped implementation.
type DocumentSource interface {
	GetDocument(ctx context.Context, ownerID, id string) (*normalize.RawMessage, error)
}

// CoordinatorConfig contains configuration for the Coordinator.
type CoordinatorConfig struct {
	Lexical  store.LexicalIndex
	Vectors  store.VectorIndex
	Provider embed.Provider

	// Source is used by Reindex. Optional.
	Source DocumentSource

	// CanonicalDimensions is the stored vector width.
	CanonicalDimensions int

	// Debounce is how long an owner's batch waits for more documents.
	Debounce time.Duration

	// PoolSize bounds concurrently running embedding batches.
	PoolSize int

	Logger *slog.Logger
}

// Stats counts batch outcomes since the coordinator started.
type Stats struct {
	BatchesRun     int64
	BatchesSkipped int64
	Embedded       int64
	Failed         int64
}

// pendingBatch is an owner's queued documents. At most one exists per owner.
type pendingBatch struct {
	docs       map[string]*store.Document
	order      []string
	timer      *time.Timer
	generation uint64
}

func (b *pendingBatch) add(doc *store.Document) {
	if _, ok := b.docs[doc.ID]; !ok {
		b.order = append(b.order, doc.ID)
	}
	b.docs[doc.ID] = doc
}

func (b *pendingBatch) remove(id string) {
	if _, ok := b.docs[id]; !ok {
		return
	}
	delete(b.docs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *pendingBatch) list() []*store.Document {
	out := make([]*store.Document, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.docs[id])
	}
	return out
}

// Coordinator writes documents to the lexical index and schedules their
// embeddings. Embedding work never runs on the caller's goroutine.
type Coordinator struct {
	config CoordinatorConfig
	logger *slog.Logger
	pool   *ants.Pool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*pendingBatch
	closed  bool
	timers  uint64 // last timer generation handed out, across all batches
	running sync.WaitGroup

	// writeMu orders embedding writes against RemoveDocument.
	writeMu sync.Mutex

	batchesRun     atomic.Int64
	batchesSkipped atomic.Int64
	embedded       atomic.Int64
	failed         atomic.Int64
}

// NewCoordinator creates a coordinator and its worker pool.
func NewCoordinator(config CoordinatorConfig) (*Coordinator, error) {
	if config.Lexical == nil || config.Vectors == nil {
		return nil, mserrors.ValidationError("coordinator needs lexical and vector indexes", nil)
	}
	if config.Provider == nil {
		config.Provider = embed.Disabled()
	}
	if config.CanonicalDimensions <= 0 {
		config.CanonicalDimensions = embed.DefaultCanonicalDimensions
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.PoolSize <= 0 {
		config.PoolSize = DefaultPoolSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	pool, err := ants.NewPool(config.PoolSize)
	if err != nil {
		return nil, mserrors.InternalError("failed to create embedding worker pool", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		config:  config,
		logger:  config.Logger,
		pool:    pool,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*pendingBatch),
	}, nil
}

// IndexDocument upserts one document. See IndexDocuments.
func (c *Coordinator) IndexDocument(ctx context.Context, ownerID string, doc *store.Document) {
	c.IndexDocuments(ctx, ownerID, []*store.Document{doc})
}

// IndexDocuments writes docs to the lexical index and queues them for
// embedding. Re-indexing a document overwrites it. Failures are logged and
// never returned: indexing must not break the caller's request.
func (c *Coordinator) IndexDocuments(ctx context.Context, ownerID string, docs []*store.Document) {
	valid := make([]*store.Document, 0, len(docs))
	for _, doc := range docs {
		if doc == nil || strings.TrimSpace(doc.ID) == "" {
			c.logger.Warn("index_document_skipped",
				slog.String("owner_id", ownerID),
				slog.String("reason", "missing id"))
			continue
		}
		doc.OwnerID = ownerID
		normalize.Clamp(doc)
		valid = append(valid, doc)
	}
	if len(valid) == 0 {
		return
	}

	if err := c.config.Lexical.UpsertDocuments(ctx, valid); err != nil {
		c.logger.Error("index_upsert_failed",
			slog.String("owner_id", ownerID),
			slog.Int("count", len(valid)),
			mserrors.LogAttr(mserrors.New(mserrors.ErrCodeIndexFailed, "lexical upsert failed", err)))
		return
	}
	c.logger.Debug("index_upserted", slog.String("owner_id", ownerID), slog.Int("count", len(valid)))

	c.EnqueueEmbeddingBatch(ownerID, valid)
}

// IndexMessage normalizes a raw message and indexes it.
func (c *Coordinator) IndexMessage(ctx context.Context, ownerID string, raw *normalize.RawMessage) {
	c.IndexDocument(ctx, ownerID, normalize.Normalize(ownerID, raw))
}

// Reindex fetches a message from the configured DocumentSource and indexes
// it again. Its embedding is dropped first so the new content is embedded.
func (c *Coordinator) Reindex(ctx context.Context, ownerID, id string) error {
	if c.config.Source == nil {
		return mserrors.ValidationError("no document source configured", nil)
	}
	raw, err := c.config.Source.GetDocument(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := c.config.Vectors.DeleteEmbeddings(ctx, ownerID, []string{raw.ID}); err != nil {
		c.logger.Warn("reindex_embedding_delete_failed",
			slog.String("owner_id", ownerID),
			slog.String("id", raw.ID),
			mserrors.LogAttr(err))
	}
	c.IndexMessage(ctx, ownerID, raw)
	return nil
}

// RemoveDocument deletes a document from both indexes and from the owner's
// pending batch. The two deletes are independent; failures are logged.
func (c *Coordinator) RemoveDocument(ctx context.Context, ownerID, id string) {
	c.mu.Lock()
	if b, ok := c.pending[ownerID]; ok {
		b.remove(id)
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.config.Lexical.DeleteDocuments(ctx, ownerID, []string{id}); err != nil {
		c.logger.Error("remove_document_failed",
			slog.String("owner_id", ownerID),
			slog.String("id", id),
			mserrors.LogAttr(err))
	}
	if err := c.config.Vectors.DeleteEmbeddings(ctx, ownerID, []string{id}); err != nil {
		c.logger.Error("remove_embedding_failed",
			slog.String("owner_id", ownerID),
			slog.String("id", id),
			mserrors.LogAttr(err))
	}
}

// EnqueueEmbeddingBatch adds docs to the owner's pending batch and restarts
// its debounce timer. When the timer fires the batch runs on the worker pool.
func (c *Coordinator) EnqueueEmbeddingBatch(ownerID string, docs []*store.Document) {
	if len(docs) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	b, ok := c.pending[ownerID]
	if !ok {
		b = &pendingBatch{docs: make(map[string]*store.Document)}
		c.pending[ownerID] = b
	}
	for _, doc := range docs {
		b.add(doc)
	}

	c.timers++
	b.generation = c.timers
	gen := b.generation
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(c.config.Debounce, func() {
		c.fire(ownerID, gen)
	})
}

// fire hands the owner's batch to the pool unless a newer enqueue replaced
// the timer that called it.
func (c *Coordinator) fire(ownerID string, gen uint64) {
	c.mu.Lock()
	b, ok := c.pending[ownerID]
	if !ok || b.generation != gen {
		c.mu.Unlock()
		return
	}
	delete(c.pending, ownerID)
	docs := b.list()
	c.running.Add(1)
	c.mu.Unlock()

	c.submit(ownerID, docs)
}

// submit runs a batch on the pool. running must already count it.
func (c *Coordinator) submit(ownerID string, docs []*store.Document) {
	err := c.pool.Submit(func() {
		defer c.running.Done()
		c.runBatch(c.ctx, ownerID, docs)
	})
	if err != nil {
		c.running.Done()
		c.batchesSkipped.Add(1)
		c.logger.Error("embedding_batch_submit_failed",
			slog.String("owner_id", ownerID),
			slog.Int("documents", len(docs)),
			mserrors.LogAttr(err))
	}
}

// runBatch embeds the documents that have a body and no stored vector,
// with a single EmbedBatch call.
func (c *Coordinator) runBatch(ctx context.Context, ownerID string, docs []*store.Document) {
	logger := c.logger.With(
		slog.String("batch_id", uuid.NewString()),
		slog.String("owner_id", ownerID))
	start := time.Now()

	candidates := make([]*store.Document, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.BodyText) == "" {
			continue
		}
		candidates = append(candidates, doc)
		ids = append(ids, doc.ID)
	}
	if len(candidates) == 0 {
		logger.Debug("embedding_batch_empty", slog.Int("queued", len(docs)))
		return
	}

	missing, err := c.config.Vectors.MissingEmbeddings(ctx, ownerID, ids)
	if err != nil {
		c.batchesSkipped.Add(1)
		logger.Warn("embedding_batch_skipped",
			slog.String("reason", "vector store unavailable"),
			mserrors.LogAttr(err))
		return
	}
	if len(missing) == 0 {
		logger.Debug("embedding_batch_empty", slog.Int("queued", len(docs)))
		return
	}
	want := make(map[string]bool, len(missing))
	for _, id := range missing {
		want[id] = true
	}
	todo := candidates[:0]
	for _, doc := range candidates {
		if want[doc.ID] {
			todo = append(todo, doc)
		}
	}

	provider := c.config.Provider
	if !provider.Available(ctx) {
		c.batchesSkipped.Add(1)
		logger.Info("embedding_batch_skipped",
			slog.String("reason", "provider unavailable"),
			slog.String("provider", provider.Name()),
			slog.Int("documents", len(todo)))
		return
	}

	texts := make([]string, len(todo))
	for i, doc := range todo {
		texts[i] = EmbeddingText(doc)
	}

	c.batchesRun.Add(1)
	vectors, embedErr := provider.EmbedBatch(ctx, texts)

	now := time.Now().UTC()
	records := make([]*store.EmbeddingRecord, 0, len(todo))
	embedded := make(map[string]string, len(todo))
	for i, doc := range todo {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		records = append(records, &store.EmbeddingRecord{
			OwnerID:    ownerID,
			DocumentID: doc.ID,
			Vector:     embed.Adapt(vectors[i], c.config.CanonicalDimensions),
			Model:      provider.Name(),
			UpdatedAt:  now,
		})
		embedded[doc.ID] = texts[i]
	}
	produced := len(records)

	c.writeMu.Lock()
	records = c.current(ctx, ownerID, records, embedded)
	var storeErr error
	if len(records) > 0 {
		storeErr = c.config.Vectors.UpsertEmbeddings(ctx, records)
	}
	c.writeMu.Unlock()

	stale := produced - len(records)
	if storeErr != nil {
		c.failed.Add(int64(len(todo) - stale))
		logger.Error("embedding_store_failed",
			slog.Int("records", len(records)),
			mserrors.LogAttr(mserrors.New(mserrors.ErrCodeIndexFailed, "embedding upsert failed", storeErr)))
		return
	}
	c.embedded.Add(int64(len(records)))
	c.failed.Add(int64(len(todo) - produced))

	attrs := []any{
		slog.Int("requested", len(todo)),
		slog.Int("stored", len(records)),
		slog.Duration("duration", time.Since(start)),
	}
	if stale > 0 {
		attrs = append(attrs, slog.Int("stale", stale))
	}
	if embedErr != nil {
		logger.Warn("embedding_batch_partial", append(attrs,
			mserrors.LogAttr(embedErr))...)
		return
	}
	logger.Info("embedding_batch_completed", attrs...)
}

// current drops records whose document was removed, or rewritten with other
// text, while the batch was embedding. A lookup that fails for another
// reason keeps the record. Callers hold writeMu.
func (c *Coordinator) current(ctx context.Context, ownerID string, records []*store.EmbeddingRecord, embedded map[string]string) []*store.EmbeddingRecord {
	kept := records[:0]
	for _, r := range records {
		doc, err := c.config.Lexical.GetDocument(ctx, ownerID, r.DocumentID)
		switch {
		case mserrors.Is(err, mserrors.ErrDocumentNotFound):
			continue
		case err == nil && EmbeddingText(doc) != embedded[r.DocumentID]:
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// EmbeddingText is the text embedded for a document.
func EmbeddingText(doc *store.Document) string {
	if doc.Subject == "" {
		return doc.BodyText
	}
	return doc.Subject + "\n\n" + doc.BodyText
}

// Pending returns the number of documents queued for ownerID.
func (c *Coordinator) Pending(ownerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.pending[ownerID]; ok {
		return len(b.order)
	}
	return 0
}

// Stats returns batch counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		BatchesRun:     c.batchesRun.Load(),
		BatchesSkipped: c.batchesSkipped.Load(),
		Embedded:       c.embedded.Load(),
		Failed:         c.failed.Load(),
	}
}

// Flush runs every pending batch now and waits for all running batches.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	batches := make(map[string][]*store.Document, len(c.pending))
	for owner, b := range c.pending {
		if b.timer != nil {
			b.timer.Stop()
		}
		batches[owner] = b.list()
		c.running.Add(1)
	}
	c.pending = make(map[string]*pendingBatch)
	c.mu.Unlock()

	for owner, docs := range batches {
		c.submit(owner, docs)
	}

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush interrupted: %w", ctx.Err())
	}
}

// Close stops accepting batches, flushes pending ones and releases the pool.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Flush(context.Background())
	c.cancel()
	c.pool.Release()
	return err
}
