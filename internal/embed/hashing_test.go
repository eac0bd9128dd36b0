package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashingModel_ReturnsUnitVectors(t *testing.T) {
	// Given: a 384-wide hashing model
	m := NewHashingModel(384)

	// When: embedding mail text
	v := m.Embed("Your invoice for March is attached")

	// Then: the vector has the configured width and unit length
	assert.Len(t, v, 384)
	assert.InDelta(t, 1.0, vectorMagnitude(v), 0.001)
	assert.Equal(t, "hashing-384", m.Name())
}

func TestHashingModel_IsDeterministic(t *testing.T) {
	m := NewHashingModel(128)

	assert.Equal(t, m.Embed("quarterly report"), m.Embed("quarterly report"))
}

func TestHashingModel_RelatedTextIsCloser(t *testing.T) {
	m := NewHashingModel(384)
	query := m.Embed("invoice payment")

	related := cosineSimilarity(query, m.Embed("Invoice payment overdue for March"))
	unrelated := cosineSimilarity(query, m.Embed("Team lunch on Friday at noon"))

	assert.Greater(t, related, unrelated)
}

func TestHashingModel_StopWordsOnlyGivesZeroVector(t *testing.T) {
	m := NewHashingModel(64)

	v := m.Embed("the and of to")

	assert.Equal(t, 0.0, vectorMagnitude(v))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"re", "invoice", "100", "café"}, tokenize("Re: Invoice #100, Café!"))
	assert.Equal(t, []string{"invoice", "100", "café"}, filterStopWords(tokenize("Re: Invoice #100, Café!")))
}

func TestCharGrams(t *testing.T) {
	assert.Equal(t, []string{" ab", "ab "}, charGrams("ab", 3))
	assert.Equal(t, []string{" é", "é "}, charGrams("é", 2))
}
