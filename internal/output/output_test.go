package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mailsearch/internal/search"
)

func TestWriter_StatusMessages(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		icon  string
		text  string
	}{
		{name: "status", write: func(w *Writer) { w.Status("🔍", "Scanning maildir") }, icon: "🔍", text: "Scanning maildir"},
		{name: "success", write: func(w *Writer) { w.Successf("Indexed %d messages", 3) }, icon: "✅", text: "Indexed 3 messages"},
		{name: "warning", write: func(w *Writer) { w.Warning("Embedding provider unavailable") }, icon: "⚠️", text: "Embedding provider unavailable"},
		{name: "error", write: func(w *Writer) { w.Errorf("open %s", "x.eml") }, icon: "❌", text: "open x.eml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.write(New(buf))

			assert.Contains(t, buf.String(), tt.icon)
			assert.Contains(t, buf.String(), tt.text)
		})
	}
}

func TestWriter_Status_WithoutIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Status("", "details")

	assert.Equal(t, "   details\n", buf.String())
}

func TestNew_BufferIsPlain(t *testing.T) {
	// Given: a non-terminal writer
	buf := &bytes.Buffer{}

	// When: creating a writer and printing styled text
	w := New(buf)
	w.Header("Results")

	// Then: no escape sequences are emitted
	assert.False(t, w.Colored())
	assert.Equal(t, "Results\n", buf.String())
	assert.False(t, IsTTY(buf))
	assert.False(t, IsTTY(nil))
}

func TestWriter_KeyValue(t *testing.T) {
	buf := &bytes.Buffer{}

	NewPlain(buf).KeyValue("Documents", 12)

	assert.Equal(t, "  Documents:     12\n", buf.String())
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewPlain(buf).JSON(search.Empty()))

	assert.JSONEq(t, `{"total":0,"items":[]}`, buf.String())
}

func TestWriter_Progress(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewPlain(buf)

	w.Progress(5, 10, "indexing")
	w.Progress(10, 10, "done")
	w.Progress(1, 0, "ignored")

	out := buf.String()
	assert.Contains(t, out, "50% indexing")
	assert.True(t, strings.HasSuffix(out, "100% done\n"))
	assert.NotContains(t, out, "ignored")
}

func TestRenderProgressBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 4), renderProgressBar(0, 0, 4))
	assert.Equal(t, "██░░", renderProgressBar(1, 2, 4))
	assert.Equal(t, "████", renderProgressBar(9, 2, 4))
}

func TestWriter_SearchResults(t *testing.T) {
	// Given: the second page of a lexical search
	buf := &bytes.Buffer{}
	res := &search.Results{Total: 3, Items: []search.Item{{
		ID:          "A",
		Subject:     "Invoice #100",
		SenderName:  "Billing",
		SenderEmail: "billing@x.com",
		Snippet:     "Please pay",
		ReceivedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:      "inbox",
		Score:       3,
	}}}

	// When: printing
	NewPlain(buf).SearchResults("invoice", search.ModeLexical, 2, 2, res)

	// Then: numbering continues from the page offset
	out := buf.String()
	assert.Contains(t, out, `3-3 of 3 for "invoice" (lexical)`)
	assert.Contains(t, out, "  3. Invoice #100  [3.000]")
	assert.Contains(t, out, "Billing <billing@x.com>")
	assert.Contains(t, out, "Please pay")
}

func TestWriter_SearchResults_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	NewPlain(buf).SearchResults("lunch", search.ModeSemantic, 1, 20, search.Empty())

	assert.Equal(t, "No messages found for \"lunch\" (semantic)\n", buf.String())
}
