package mcp

import (
	"fmt"
	"strings"
	"time"
)

// FormatSearchResults formats a page of hits as markdown.
func FormatSearchResults(query string, out *SearchMailOutput) string {
	if out == nil || len(out.Items) == 0 {
		return fmt.Sprintf("No messages found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Mail results for \"%s\" (%s)\n\n", query, out.Mode)
	fmt.Fprintf(&sb, "Showing %d of %d message", len(out.Items), out.Total)
	if out.Total != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, item := range out.Items {
		fmt.Fprintf(&sb, "### %d. %s (score: %.2f)\n", i+1, subjectOrPlaceholder(item.Subject), item.Score)
		fmt.Fprintf(&sb, "**From:** %s | **Received:** %s | **Status:** %s | **ID:** `%s`\n\n",
			sender(item.SenderName, item.SenderEmail),
			item.ReceivedAt.Format(time.RFC3339),
			item.Status,
			item.ID)
		if item.Snippet != "" {
			fmt.Fprintf(&sb, "> %s\n\n", item.Snippet)
		}
	}
	return sb.String()
}

// FormatMessage formats one message as markdown.
func FormatMessage(m *MessageOutput) string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", subjectOrPlaceholder(m.Subject))
	fmt.Fprintf(&sb, "**From:** %s\n", sender(m.SenderName, m.SenderEmail))
	fmt.Fprintf(&sb, "**Received:** %s\n", m.ReceivedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Status:** %s", m.Status)
	if m.Unread {
		sb.WriteString(" (unread)")
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.Body)
	sb.WriteString("\n")
	return sb.String()
}

func subjectOrPlaceholder(s string) string {
	if s == "" {
		return "(no subject)"
	}
	return s
}

func sender(name, email string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case email != "":
		return email
	case name != "":
		return name
	default:
		return "(unknown sender)"
	}
}
