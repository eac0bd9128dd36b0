package store

import (
	"strings"
	"unicode"
)

// Trigrams returns the trigram set of s the way pg_trgm builds it: the text
// is lowercased and split into alphanumeric words, each word is padded with
// two leading spaces and one trailing space, and every 3-rune window of the
// padded word is collected.
func Trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity returns |A∩B| / |A∪B| over the trigram sets of a and b, in [0, 1].
func Similarity(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// LexicalScore ranks one document against query. It reports false when the
// document does not match at all.
//
// Literal (case-insensitive substring) hits are tiered: subject, then sender
// name or email, then snippet. Without a literal hit the score is the best
// weighted trigram similarity over subject, sender name and sender email,
// counting only similarities above threshold.
func LexicalScore(subject, senderName, senderEmail, snippet, query string, threshold float64) (float64, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0, false
	}

	switch {
	case containsFold(subject, q):
		return WeightSubjectLiteral, true
	case containsFold(senderName, q), containsFold(senderEmail, q):
		return WeightSenderLiteral, true
	case containsFold(snippet, q):
		return WeightSnippetLiteral, true
	}

	best, matched := 0.0, false
	for _, f := range []struct {
		text   string
		weight float64
	}{
		{subject, WeightSubjectTrigram},
		{senderName, WeightSenderNameTrgm},
		{senderEmail, WeightSenderEmailTrgm},
	} {
		sim := Similarity(f.text, q)
		if sim <= threshold {
			continue
		}
		matched = true
		if s := sim * f.weight; s > best {
			best = s
		}
	}
	return best, matched
}

// containsFold reports whether lowered needle occurs in haystack, ignoring case.
func containsFold(haystack, loweredNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), loweredNeedle)
}
