package output

import (
	"fmt"
	"time"

	"github.com/Aman-CERP/mailsearch/internal/search"
)

// SearchResults prints a page of hits.
func (w *Writer) SearchResults(query string, mode search.Mode, page, pageSize int, res *search.Results) {
	if res == nil || len(res.Items) == 0 {
		_, _ = fmt.Fprintf(w.out, "No messages found for %q (%s)\n", query, mode)
		return
	}

	first := (page-1)*pageSize + 1
	w.Header(fmt.Sprintf("%d-%d of %d for %q (%s)", first, first+len(res.Items)-1, res.Total, query, mode))
	w.Newline()

	for i, item := range res.Items {
		subject := item.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		_, _ = fmt.Fprintf(w.out, "%3d. %s  %s\n",
			first+i,
			w.styles.Subject.Render(subject),
			w.styles.Score.Render(fmt.Sprintf("[%.3f]", item.Score)))
		_, _ = fmt.Fprintf(w.out, "     %s  %s  %s  %s\n",
			w.styles.Label.Render(item.ID),
			from(item),
			item.ReceivedAt.Local().Format(time.DateTime),
			item.Status)
		if item.Snippet != "" {
			_, _ = fmt.Fprintf(w.out, "     %s\n", w.styles.Snippet.Render(item.Snippet))
		}
	}
}

func from(item search.Item) string {
	switch {
	case item.SenderName != "" && item.SenderEmail != "":
		return fmt.Sprintf("%s <%s>", item.SenderName, item.SenderEmail)
	case item.SenderEmail != "":
		return item.SenderEmail
	default:
		return item.SenderName
	}
}
