package mcp

import (
	"time"

	"github.com/Aman-CERP/mailsearch/internal/async"
	"github.com/Aman-CERP/mailsearch/internal/search"
	"github.com/Aman-CERP/mailsearch/internal/telemetry"
)

// SearchMailInput defines the input schema for the search_mail tool.
type SearchMailInput struct {
	OwnerID    string `json:"owner_id,omitempty" jsonschema:"mailbox owner, defaults to the server's owner"`
	Query      string `json:"query" jsonschema:"text to search for"`
	Mode       string `json:"mode,omitempty" jsonschema:"lexical, semantic or auto (default lexical)"`
	Page       int    `json:"page,omitempty" jsonschema:"1-based page number, default 1"`
	PageSize   int    `json:"page_size,omitempty" jsonschema:"results per page, default 20, max 100"`
	Status     string `json:"status,omitempty" jsonschema:"only messages with this status, e.g. inbox or archive"`
	Sender     string `json:"sender,omitempty" jsonschema:"only messages whose sender name or email contains this text"`
	UnreadOnly bool   `json:"unread_only,omitempty" jsonschema:"only unread messages"`
	Sort       string `json:"sort,omitempty" jsonschema:"relevance, received_asc or received_desc (lexical only)"`
}

// SearchMailOutput defines the output schema for the search_mail tool.
type SearchMailOutput struct {
	Mode  string        `json:"mode" jsonschema:"the index that served the query"`
	Total int           `json:"total" jsonschema:"number of matching messages"`
	Items []search.Item `json:"items" jsonschema:"the requested page of hits"`
}

// GetMessageInput defines the input schema for the get_message tool.
type GetMessageInput struct {
	OwnerID string `json:"owner_id,omitempty" jsonschema:"mailbox owner, defaults to the server's owner"`
	ID      string `json:"id" jsonschema:"message id from a search result"`
}

// MessageOutput is one stored message.
type MessageOutput struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail"`
	ReceivedAt  time.Time `json:"receivedAt"`
	Status      string    `json:"status"`
	Unread      bool      `json:"unread"`
	Body        string    `json:"body"`
}

// IndexStatusInput defines the input schema for the index_status tool.
type IndexStatusInput struct {
	OwnerID string `json:"owner_id,omitempty" jsonschema:"mailbox owner, defaults to the server's owner"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	OwnerID    string        `json:"owner_id"`
	Backend    string        `json:"backend"`
	Documents  int           `json:"documents"`
	Embeddings int           `json:"embeddings"`
	Pending    int           `json:"pending"`
	Provider   EmbeddingInfo `json:"provider"`

	// Scan is the progress of the initial Maildir scan when serving with --watch.
	Scan *async.ProgressSnapshot `json:"scan,omitempty"`
	// Queries summarizes searches served by this process, when recorded.
	Queries *telemetry.Snapshot `json:"queries,omitempty"`
}

// EmbeddingInfo describes the embedding provider's runtime state.
type EmbeddingInfo struct {
	Name       string `json:"name"`
	Available  bool   `json:"available"`
	Dimensions int    `json:"dimensions"`
	// Quota is present for providers with a quota governor.
	Quota *QuotaInfo `json:"quota,omitempty"`
}

// QuotaInfo mirrors the governor's snapshot.
type QuotaInfo struct {
	State         string     `json:"state"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Cooldown      string     `json:"cooldown"`
}
