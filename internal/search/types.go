// Package search answers mail queries from the lexical or the vector index
// and shapes the results for callers.
package search

import (
	"time"

	"github.com/Aman-CERP/mailsearch/internal/store"
)

// Mode selects the index a query runs against.
type Mode string

const (
	// ModeLexical ranks by substring and trigram matches.
	ModeLexical Mode = "lexical"
	// ModeSemantic ranks by embedding similarity.
	ModeSemantic Mode = "semantic"
	// ModeAuto uses semantic when the embedding service is available and
	// the owner has embeddings, lexical otherwise.
	ModeAuto Mode = "auto"
)

// ParseMode maps user input to a Mode, defaulting to lexical.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeSemantic, ModeAuto:
		return Mode(s)
	default:
		return ModeLexical
	}
}

// Request is one paged query for an owner.
type Request struct {
	OwnerID  string
	Query    string
	Page     int
	PageSize int
	Filters  store.Filters
	// Sort applies to lexical searches only; semantic results are always
	// ordered by similarity.
	Sort store.SortMode
}

// Item is one search hit as returned to callers.
type Item struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail"`
	Snippet     string    `json:"snippet"`
	ReceivedAt  time.Time `json:"receivedAt"`
	Status      string    `json:"status"`
	Score       float64   `json:"score"`
}

// Results is a page of hits and the total number of matches.
type Results struct {
	Total int    `json:"total"`
	Items []Item `json:"items"`
}

// Empty returns results with no hits.
func Empty() *Results {
	return &Results{Total: 0, Items: []Item{}}
}

func fromPage(page *store.Page) *Results {
	out := &Results{Total: page.Total, Items: make([]Item, 0, len(page.Documents))}
	for _, d := range page.Documents {
		out.Items = append(out.Items, Item{
			ID:          d.ID,
			Subject:     d.Subject,
			SenderName:  d.SenderName,
			SenderEmail: d.SenderEmail,
			Snippet:     d.Snippet,
			ReceivedAt:  d.ReceivedAt,
			Status:      d.Status,
			Score:       d.Score,
		})
	}
	return out
}
