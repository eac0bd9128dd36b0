package embed

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// Model is a loaded on-device embedding model.
type Model interface {
	// Embed returns the unit-length embedding of text. It must be safe for
	// concurrent use.
	Embed(text string) []float32
	Dimensions() int
	Name() string
}

// mailStopWords are frequent words that carry no topic in mail text.
var mailStopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"i": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "our": true, "re": true, "fw": true, "fwd": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "we": true, "will": true,
	"with": true, "you": true, "your": true,
}

// Feature weights for the hashing model.
const (
	wordWeight    = 0.6
	bigramWeight  = 0.25
	trigramWeight = 0.15
	charGramSize  = 3
)

// HashingModel is a deterministic feature-hashing embedder: word unigrams,
// word bigrams and character trigrams are hashed into a fixed number of
// signed buckets, then L2-normalized. It needs no download and no network.
type HashingModel struct {
	dims int
}

// NewHashingModel returns a hashing model producing dims-wide vectors.
func NewHashingModel(dims int) *HashingModel {
	if dims <= 0 {
		dims = DefaultLocalDimensions
	}
	return &HashingModel{dims: dims}
}

// Embed implements Model.
func (m *HashingModel) Embed(text string) []float32 {
	vector := make([]float32, m.dims)
	words := filterStopWords(tokenize(text))
	if len(words) == 0 {
		return vector
	}

	for i, w := range words {
		m.add(vector, "w:"+w, wordWeight)
		if i > 0 {
			m.add(vector, "b:"+words[i-1]+" "+w, bigramWeight)
		}
		for _, g := range charGrams(w, charGramSize) {
			m.add(vector, "c:"+g, trigramWeight)
		}
	}
	return normalizeVector(vector)
}

// add hashes feature into a bucket; the top hash bit picks the sign so that
// collisions cancel out on average.
func (m *HashingModel) add(vector []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(m.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vector[idx] += weight
}

// Dimensions implements Model.
func (m *HashingModel) Dimensions() int {
	return m.dims
}

// Name implements Model.
func (m *HashingModel) Name() string {
	return fmt.Sprintf("hashing-%d", m.dims)
}

// tokenize lowercases text and splits it into letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// filterStopWords drops stop words and single-rune tokens.
func filterStopWords(tokens []string) []string {
	filtered := tokens[:0:0]
	for _, t := range tokens {
		if mailStopWords[t] || len([]rune(t)) < 2 {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// charGrams returns the n-rune sliding windows of word padded with one space
// on each side, so short words still yield grams.
func charGrams(word string, n int) []string {
	runes := []rune(" " + word + " ")
	if len(runes) < n {
		return []string{}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}
