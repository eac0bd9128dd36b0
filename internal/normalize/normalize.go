// Package normalize turns raw mail messages into indexable search documents.
package normalize

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Aman-CERP/mailsearch/internal/store"
)

// Field limits for indexed documents, in runes.
const (
	MaxBodyRunes    = 5000
	MaxSnippetRunes = 200
)

// DefaultStatus is used when a message has no folder status.
const DefaultStatus = "inbox"

// RawMessage is a message as supplied by the mail layer, before normalization.
type RawMessage struct {
	ID          string
	Subject     string
	SenderName  string
	SenderEmail string
	// Body is either plain text or HTML; HTML marks it explicitly, otherwise
	// markup is detected.
	Body       string
	HTML       bool
	ReceivedAt time.Time
	Status     string
	Unread     bool
}

// Normalize converts raw into a Document owned by ownerID. The snippet is
// derived from the cleaned body.
func Normalize(ownerID string, raw *RawMessage) *store.Document {
	body := raw.Body
	if raw.HTML || LooksLikeHTML(body) {
		body = StripMarkup(body)
	}
	body = CleanText(body)

	status := strings.ToLower(strings.TrimSpace(raw.Status))
	if status == "" {
		status = DefaultStatus
	}

	doc := &store.Document{
		ID:          strings.TrimSpace(raw.ID),
		OwnerID:     ownerID,
		Subject:     CleanText(raw.Subject),
		SenderName:  CleanText(raw.SenderName),
		SenderEmail: strings.ToLower(CleanText(raw.SenderEmail)),
		BodyText:    body,
		Snippet:     body,
		ReceivedAt:  raw.ReceivedAt.UTC(),
		Status:      status,
		Unread:      raw.Unread,
	}
	Clamp(doc)
	return doc
}

// Clamp enforces the body and snippet limits on an already normalized
// document. Documents built by callers go through it before indexing.
func Clamp(doc *store.Document) {
	doc.BodyText = Truncate(doc.BodyText, MaxBodyRunes)
	doc.Snippet = Truncate(doc.Snippet, MaxSnippetRunes)
}

var cleaner = transform.Chain(
	norm.NFC,
	runes.Remove(runes.Predicate(isInvisible)),
)

// isInvisible reports runes that carry no searchable text: control
// characters other than whitespace, and format characters such as
// zero-width spaces and soft hyphens.
func isInvisible(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}

// CleanText applies NFC normalization, drops invisible runes, repairs
// invalid UTF-8 and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	out, _, err := transform.String(cleaner, s)
	if err != nil {
		out = s
	}
	return CollapseWhitespace(out)
}

// CollapseWhitespace replaces every whitespace run with one space and trims
// both ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimRightFunc(s[:pos], unicode.IsSpace)
		}
		i++
	}
	return s
}
