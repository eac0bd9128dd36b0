package normalize

import (
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Title:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// block elements separate words from their neighbours.
var block = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.Td: true, atom.Th: true, atom.Table: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Blockquote: true,
	atom.Hr: true, atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true,
	atom.Pre: true,
}

// StripMarkup returns the visible text of an HTML fragment with entities
// decoded. Whitespace is not collapsed.
func StripMarkup(s string) string {
	z := xhtml.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	depth := 0

	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read.
			return b.String()
		case xhtml.TextToken:
			if depth == 0 {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] {
				depth++
			}
			if block[a] {
				b.WriteByte(' ')
			}
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipped[a] && depth > 0 {
				depth--
			}
			if block[a] {
				b.WriteByte(' ')
			}
		case xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			if block[atom.Lookup(name)] {
				b.WriteByte(' ')
			}
		}
	}
}

// LooksLikeHTML guesses whether a body without a content type is HTML.
func LooksLikeHTML(s string) bool {
	head := strings.ToLower(s)
	if len(head) > 512 {
		head = head[:512]
	}
	for _, marker := range []string{"<html", "<!doctype html", "<body", "<div", "<p>", "<br", "<table", "<span"} {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
