// Package telemetry keeps in-process statistics about search queries.
// Nothing is persisted or reported outside the process.
package telemetry

import (
	"crypto/sha256"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketUnder10ms  LatencyBucket = "lt_10ms"
	BucketUnder50ms  LatencyBucket = "lt_50ms"
	BucketUnder100ms LatencyBucket = "lt_100ms"
	BucketUnder500ms LatencyBucket = "lt_500ms"
	BucketSlow       LatencyBucket = "ge_500ms"
)

// BucketFor maps a latency to its bucket.
func BucketFor(d time.Duration) LatencyBucket {
	switch ms := d.Milliseconds(); {
	case ms < 10:
		return BucketUnder10ms
	case ms < 50:
		return BucketUnder50ms
	case ms < 100:
		return BucketUnder100ms
	case ms < 500:
		return BucketUnder500ms
	default:
		return BucketSlow
	}
}

// QueryEvent is one served search.
type QueryEvent struct {
	// Mode is the mode that actually served the query.
	Mode    string
	Query   string
	Results int
	Latency time.Duration
}

// Config bounds the memory QueryMetrics uses.
type Config struct {
	TopTerms      int // distinct terms tracked (default 100)
	ZeroResults   int // recent zero-result queries kept (default 50)
	RecentQueries int // query hashes remembered for repeat detection (default 500)
}

// DefaultConfig returns the default capacities.
func DefaultConfig() Config {
	return Config{TopTerms: 100, ZeroResults: 50, RecentQueries: 500}
}

// TermCount is a query term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Since       time.Time               `json:"since"`
	Total       int64                   `json:"total"`
	ZeroResults int64                   `json:"zeroResults"`
	Repeats     int64                   `json:"repeats"`
	Modes       map[string]int64        `json:"modes"`
	Latency     map[LatencyBucket]int64 `json:"latency"`
	TopTerms    []TermCount             `json:"topTerms"`
	// RecentZeroResult lists the latest queries that found nothing, oldest first.
	RecentZeroResult []string `json:"recentZeroResult"`
}

// ZeroResultRate is the fraction of queries that returned nothing.
func (s Snapshot) ZeroResultRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ZeroResults) / float64(s.Total)
}

// QueryMetrics aggregates QueryEvents. Safe for concurrent use.
type QueryMetrics struct {
	mu        sync.Mutex
	since     time.Time
	total     int64
	zero      int64
	repeats   int64
	modes     map[string]int64
	latencies map[LatencyBucket]int64

	terms       *lru.Cache[string, int64]
	recent      *lru.Cache[[16]byte, struct{}]
	zeroQueries *ring[string]
}

// NewQueryMetrics creates an empty recorder.
func NewQueryMetrics(cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTerms <= 0 {
		cfg.TopTerms = def.TopTerms
	}
	if cfg.ZeroResults <= 0 {
		cfg.ZeroResults = def.ZeroResults
	}
	if cfg.RecentQueries <= 0 {
		cfg.RecentQueries = def.RecentQueries
	}

	// lru.New only fails for non-positive sizes.
	terms, _ := lru.New[string, int64](cfg.TopTerms)
	recent, _ := lru.New[[16]byte, struct{}](cfg.RecentQueries)

	return &QueryMetrics{
		since:       time.Now(),
		modes:       make(map[string]int64),
		latencies:   make(map[LatencyBucket]int64),
		terms:       terms,
		recent:      recent,
		zeroQueries: newRing[string](cfg.ZeroResults),
	}
}

// Record counts one query.
func (m *QueryMetrics) Record(e QueryEvent) {
	query := strings.ToLower(strings.TrimSpace(e.Query))

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.modes[e.Mode]++
	m.latencies[BucketFor(e.Latency)]++

	for _, term := range Terms(query) {
		n, _ := m.terms.Get(term)
		m.terms.Add(term, n+1)
	}

	if e.Results == 0 {
		m.zero++
		if query != "" {
			m.zeroQueries.add(query)
		}
	}

	key := queryKey(e.Mode, query)
	if m.recent.Contains(key) {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// Snapshot copies the counters. topN limits TopTerms; zero means all tracked.
func (m *QueryMetrics) Snapshot(topN int) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Since:            m.since,
		Total:            m.total,
		ZeroResults:      m.zero,
		Repeats:          m.repeats,
		Modes:            make(map[string]int64, len(m.modes)),
		Latency:          make(map[LatencyBucket]int64, len(m.latencies)),
		RecentZeroResult: m.zeroQueries.list(),
	}
	for k, v := range m.modes {
		s.Modes[k] = v
	}
	for k, v := range m.latencies {
		s.Latency[k] = v
	}

	for _, term := range m.terms.Keys() {
		n, _ := m.terms.Peek(term)
		s.TopTerms = append(s.TopTerms, TermCount{Term: term, Count: n})
	}
	sort.Slice(s.TopTerms, func(i, j int) bool {
		if s.TopTerms[i].Count != s.TopTerms[j].Count {
			return s.TopTerms[i].Count > s.TopTerms[j].Count
		}
		return s.TopTerms[i].Term < s.TopTerms[j].Term
	})
	if topN > 0 && len(s.TopTerms) > topN {
		s.TopTerms = s.TopTerms[:topN]
	}
	return s
}

// Terms splits a query into lowercase words of three or more letters or digits.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func queryKey(mode, query string) [16]byte {
	sum := sha256.Sum256([]byte(mode + "\x00" + query))
	var key [16]byte
	copy(key[:], sum[:16])
	return key
}
