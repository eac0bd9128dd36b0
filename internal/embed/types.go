// Package embed generates vector embeddings for mail text through a local
// model or a quota-limited remote service.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultCanonicalDimensions is the storage width every vector is adapted to.
	DefaultCanonicalDimensions = 768

	// DefaultLocalDimensions is the width of the built-in hashing model.
	DefaultLocalDimensions = 384

	// DefaultRemoteDimensions is the width returned by the default remote model.
	DefaultRemoteDimensions = 768

	// DefaultRequestTimeout bounds one remote request, including retries.
	DefaultRequestTimeout = 15 * time.Second
)

// Provider generates embeddings for text.
type Provider interface {
	// Embed returns the embedding of one text. Errors carry the codes
	// ERR_301_PROVIDER_UNAVAILABLE, ERR_302_RATE_LIMITED, ERR_303_QUOTA_EXCEEDED
	// or ERR_401_INVALID_RESPONSE.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one entry per text. Failed items are nil. A non-nil
	// error explains why the batch stopped early; the vectors already
	// returned stay valid.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Available reports whether calls can currently succeed.
	Available(ctx context.Context) bool

	// Dimensions returns the native vector width.
	Dimensions() int

	// Name identifies the model, and is stored alongside each vector.
	Name() string

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length. Zero vectors are returned as is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
