package embed

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// fakeProvider returns a constant vector per text and counts calls.
type fakeProvider struct {
	dims       int
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	// failAt makes EmbedBatch leave a hole at these indexes.
	failAt map[int]bool
	err    error
}

func newFakeProvider(dims int) *fakeProvider {
	return &fakeProvider{dims: dims}
}

func (f *fakeProvider) vector(text string) []float32 {
	v := make([]float32, f.dims)
	for i, r := range text {
		v[i%f.dims] += float32(r)
	}
	return v
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failAt[i] {
			continue
		}
		out[i] = f.vector(t)
	}
	return out, f.err
}

func (f *fakeProvider) Available(context.Context) bool { return f.err == nil }
func (f *fakeProvider) Dimensions() int                { return f.dims }
func (f *fakeProvider) Name() string                   { return "fake" }
func (f *fakeProvider) Close() error                   { return nil }

var errFakeUnavailable = mserrors.ProviderError("fake provider down", nil)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
