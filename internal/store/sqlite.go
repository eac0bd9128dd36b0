package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// SQL functions backing the ranking. Registered once per process; every
// connection opened afterwards sees them.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("lexical_score", 6, sqlLexicalScore)
	sqlite.MustRegisterDeterministicScalarFunction("contains_fold", 2, sqlContainsFold)
	sqlite.MustRegisterDeterministicScalarFunction("cosine_similarity", 2, sqlCosineSimilarity)
}

// SQLiteOptions configures the embedded backend.
type SQLiteOptions struct {
	// CacheMB is the page cache size (default 64).
	CacheMB int
}

// SQLiteStore keeps documents and embeddings in one SQLite database.
// Ranking runs inside SQLite through the functions registered above.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLiteStore, error) {
	if opts.CacheMB <= 0 {
		opts.CacheMB = 64
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, mserrors.StoreError("create data directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, mserrors.StoreError("open database", err)
	}

	// Single writer; also keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, mserrors.StoreError("set pragma", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, mserrors.StoreError("initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		owner_id     TEXT NOT NULL,
		id           TEXT NOT NULL,
		subject      TEXT NOT NULL DEFAULT '',
		sender_name  TEXT NOT NULL DEFAULT '',
		sender_email TEXT NOT NULL DEFAULT '',
		snippet      TEXT NOT NULL DEFAULT '',
		body_text    TEXT NOT NULL DEFAULT '',
		received_at  INTEGER NOT NULL,
		status       TEXT NOT NULL DEFAULT '',
		unread       INTEGER NOT NULL DEFAULT 0,
		updated_at   INTEGER NOT NULL,
		PRIMARY KEY (owner_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_owner_received
		ON documents(owner_id, received_at DESC);

	-- No foreign key to documents: the two views are written independently.
	CREATE TABLE IF NOT EXISTS embeddings (
		owner_id    TEXT NOT NULL,
		document_id TEXT NOT NULL,
		vector      BLOB NOT NULL,
		dimensions  INTEGER NOT NULL,
		model       TEXT NOT NULL DEFAULT '',
		updated_at  INTEGER NOT NULL,
		PRIMARY KEY (owner_id, document_id)
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Backend implements Store.
func (s *SQLiteStore) Backend() string { return "sqlite" }

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// checkOpen must be called with mu held.
func (s *SQLiteStore) checkOpen() error {
	if s.closed {
		return mserrors.StoreError("store is closed", nil)
	}
	return nil
}

// filterClause renders Filters as SQL predicates on the documents table
// aliased by prefix ("" or "d.").
func filterClause(f Filters, prefix string) (string, []any) {
	var parts []string
	var args []any
	if f.Status != "" {
		parts = append(parts, prefix+"status = ?")
		args = append(args, f.Status)
	}
	if sender := strings.ToLower(strings.TrimSpace(f.Sender)); sender != "" {
		parts = append(parts, fmt.Sprintf("(contains_fold(%ssender_name, ?) OR contains_fold(%ssender_email, ?))", prefix, prefix))
		args = append(args, sender, sender)
	}
	if f.UnreadOnly {
		parts = append(parts, prefix+"unread = 1")
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(parts, " AND "), args
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// idChunks splits ids so IN lists stay well below SQLite's variable limit.
func idChunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// CosineSimilarity returns 1 - cosine distance, or 0 when either vector has
// zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func argString(v driver.Value) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func argFloat(v driver.Value) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	default:
		return 0
	}
}

func sqlLexicalScore(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	score, ok := LexicalScore(argString(args[0]), argString(args[1]), argString(args[2]),
		argString(args[3]), argString(args[4]), argFloat(args[5]))
	if !ok {
		return 0.0, nil
	}
	return score, nil
}

func sqlContainsFold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if containsFold(argString(args[0]), argString(args[1])) {
		return int64(1), nil
	}
	return int64(0), nil
}

func sqlCosineSimilarity(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, ok1 := args[0].([]byte)
	b, ok2 := args[1].([]byte)
	if !ok1 || !ok2 {
		return nil, nil
	}
	va, err := decodeVector(a)
	if err != nil {
		return nil, err
	}
	vb, err := decodeVector(b)
	if err != nil {
		return nil, err
	}
	return CosineSimilarity(va, vb), nil
}

// scanDocument reads the documentColumns projection plus an optional score.
func scanDocument(rows *sql.Rows, withScore bool) (ScoredDocument, error) {
	var (
		d          ScoredDocument
		receivedAt int64
		unread     int64
	)
	dest := []any{&d.OwnerID, &d.ID, &d.Subject, &d.SenderName, &d.SenderEmail,
		&d.Snippet, &d.BodyText, &receivedAt, &d.Status, &unread}
	if withScore {
		dest = append(dest, &d.Score)
	}
	if err := rows.Scan(dest...); err != nil {
		return d, err
	}
	d.ReceivedAt = fromMillis(receivedAt)
	d.Unread = unread != 0
	return d, nil
}

func documentColumns(prefix string) string {
	cols := []string{"owner_id", "id", "subject", "sender_name", "sender_email",
		"snippet", "body_text", "received_at", "status", "unread"}
	for i, c := range cols {
		cols[i] = prefix + c
	}
	return strings.Join(cols, ", ")
}

// queryPage runs a COUNT over inner and then one page of it.
// inner must select documentColumns("") plus a score column.
func (s *SQLiteStore) queryPage(ctx context.Context, inner string, args []any, where, orderBy string, pageSize, offset int) (*Page, error) {
	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) %s", inner, where)
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, err
	}

	page := &Page{Total: total, Documents: []ScoredDocument{}}
	if total == 0 || offset >= total {
		return page, nil
	}

	pageSQL := fmt.Sprintf("SELECT %s, score FROM (%s) %s ORDER BY %s LIMIT ? OFFSET ?",
		documentColumns(""), inner, where, orderBy)
	rows, err := s.db.QueryContext(ctx, pageSQL, append(args, pageSize, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDocument(rows, true)
		if err != nil {
			return nil, err
		}
		page.Documents = append(page.Documents, d)
	}
	return page, rows.Err()
}
