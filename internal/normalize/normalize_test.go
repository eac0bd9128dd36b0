package normalize

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PlainTextMessage(t *testing.T) {
	// Given: a plain text message with messy whitespace
	raw := &RawMessage{
		ID:          " <abc@x.com> ",
		Subject:     "  Invoice\t#100 ",
		SenderName:  "Billing  Team",
		SenderEmail: "Billing@X.com",
		Body:        "Hello,\n\n  your invoice   is attached.\r\n",
		ReceivedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600)),
	}

	// When: normalizing for owner 42
	doc := Normalize("42", raw)

	// Then: fields are cleaned and defaults applied
	assert.Equal(t, "<abc@x.com>", doc.ID)
	assert.Equal(t, "42", doc.OwnerID)
	assert.Equal(t, "Invoice #100", doc.Subject)
	assert.Equal(t, "Billing Team", doc.SenderName)
	assert.Equal(t, "billing@x.com", doc.SenderEmail)
	assert.Equal(t, "Hello, your invoice is attached.", doc.BodyText)
	assert.Equal(t, doc.BodyText, doc.Snippet)
	assert.Equal(t, DefaultStatus, doc.Status)
	assert.Equal(t, time.UTC, doc.ReceivedAt.Location())
}

func TestNormalize_HTMLBody(t *testing.T) {
	raw := &RawMessage{
		ID: "1",
		Body: `<html><head><title>ignored</title><style>p{color:red}</style></head>
<body><p>Your&nbsp;invoice&amp;receipt</p><div>is<br>ready</div>
<script>alert("x")</script></body></html>`,
	}

	doc := Normalize("42", raw)

	assert.Equal(t, "Your invoice&receipt is ready", doc.BodyText)
	assert.NotContains(t, doc.BodyText, "ignored")
	assert.NotContains(t, doc.BodyText, "alert")
}

func TestNormalize_ExplicitHTMLFlag(t *testing.T) {
	doc := Normalize("42", &RawMessage{ID: "1", Body: "a <b>bold</b> move", HTML: true})

	assert.Equal(t, "a bold move", doc.BodyText)
}

func TestNormalize_ClampsBodyAndSnippet(t *testing.T) {
	body := strings.Repeat("é", MaxBodyRunes+50)

	doc := Normalize("42", &RawMessage{ID: "1", Body: body})

	assert.Equal(t, MaxBodyRunes, utf8.RuneCountInString(doc.BodyText))
	assert.Equal(t, MaxSnippetRunes, utf8.RuneCountInString(doc.Snippet))
	assert.True(t, utf8.ValidString(doc.BodyText))
}

func TestNormalize_StatusIsLowercased(t *testing.T) {
	doc := Normalize("42", &RawMessage{ID: "1", Status: " Archive "})

	assert.Equal(t, "archive", doc.Status)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapse", " a \n\t b ", "a b"},
		{"zero width removed", "in\u200bvoice", "invoice"},
		{"soft hyphen removed", "in\u00advoice", "invoice"},
		{"control removed", "a\x00b\x07c", "abc"},
		{"nfc composed", "cafe\u0301", "caf\u00e9"},
		{"invalid utf8 repaired", "ok\xffok", "ok\ufffdok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "a", Truncate("a bc", 2), "trailing space is trimmed")
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<!DOCTYPE html><html></html>"))
	assert.True(t, LooksLikeHTML("Hi<br>there"))
	assert.False(t, LooksLikeHTML("a < b and c > d"))
	assert.False(t, LooksLikeHTML("plain text"))
}

func TestStripMarkup_MalformedInputKeepsText(t *testing.T) {
	out := StripMarkup("<p>unclosed <b>text")

	require.NotEmpty(t, out)
	assert.Equal(t, "unclosed text", CollapseWhitespace(out))
}

func TestClamp_LeavesShortFieldsAlone(t *testing.T) {
	doc := Normalize("42", &RawMessage{ID: "1", Body: "short"})
	Clamp(doc)

	assert.Equal(t, "short", doc.BodyText)
	assert.Equal(t, "short", doc.Snippet)
}
