package embed

import (
	"fmt"
	"log/slog"
	"sync"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

var truncateWarning sync.Once

// Adapt returns vector at exactly width entries. A vector already at width
// is returned unchanged; a shorter one is zero-padded on the right, which
// keeps cosine similarity intact as long as queries are padded the same way.
// A longer one is truncated, which means the configured provider is wider
// than storage; that is logged once per process.
func Adapt(vector []float32, width int) []float32 {
	switch {
	case width <= 0 || len(vector) == width:
		return vector
	case len(vector) < width:
		padded := make([]float32, width)
		copy(padded, vector)
		return padded
	default:
		truncateWarning.Do(func() {
			err := mserrors.New(mserrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("provider returned %d dimensions, storage holds %d", len(vector), width), nil).
				WithSuggestion("Match embeddings.canonical_dimensions to the provider model")
			slog.Warn("embedding_truncated",
				slog.Int("native_dimensions", len(vector)),
				slog.Int("canonical_dimensions", width),
				mserrors.LogAttr(err))
		})
		return vector[:width:width]
	}
}
