// Package mailsource reads messages from Maildir folders and .eml files.
package mailsource

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // registers non-UTF-8 decoders
	"github.com/emersion/go-message/mail"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
	"github.com/Aman-CERP/mailsearch/internal/normalize"
)

// maxPartBytes bounds how much of one text part is read.
const maxPartBytes = 1 << 20

// Parse reads one RFC 5322 message. fallbackID is used when the message has
// no Message-ID header.
func Parse(r io.Reader, fallbackID string) (*normalize.RawMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, mserrors.New(mserrors.ErrCodeMessageMalformed, "failed to read message header", err)
	}
	if err != nil {
		slog.Debug("unknown_charset", slog.String("id", fallbackID), slog.String("error", err.Error()))
	}
	defer func() { _ = mr.Close() }()

	raw := &normalize.RawMessage{ID: fallbackID, Unread: true}
	h := mr.Header

	if id, err := h.MessageID(); err == nil && id != "" {
		raw.ID = id
	}
	if raw.ID == "" {
		return nil, mserrors.New(mserrors.ErrCodeMessageMalformed, "message has no Message-ID and no fallback id", nil)
	}
	if subject, err := h.Subject(); err == nil {
		raw.Subject = subject
	} else {
		raw.Subject = h.Get("Subject")
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		raw.SenderName = from[0].Name
		raw.SenderEmail = from[0].Address
	} else {
		raw.SenderEmail = strings.TrimSpace(h.Get("From"))
	}
	// A missing or unparsable Date leaves ReceivedAt zero for the caller to fill.
	if date, err := h.Date(); err == nil {
		raw.ReceivedAt = date
	}

	plain, html, err := readBodies(mr)
	if err != nil {
		return nil, mserrors.New(mserrors.ErrCodeMessageMalformed,
			fmt.Sprintf("failed to read body of %s", raw.ID), err)
	}
	switch {
	case strings.TrimSpace(plain) != "":
		raw.Body = plain
	case html != "":
		raw.Body = html
		raw.HTML = true
	}
	return raw, nil
}

// readBodies returns the first text/plain and first text/html inline parts.
func readBodies(mr *mail.Reader) (plain, html string, err error) {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return plain, html, nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return plain, html, err
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		if contentType != "text/plain" && contentType != "text/html" {
			continue
		}

		b, err := io.ReadAll(io.LimitReader(p.Body, maxPartBytes))
		if err != nil {
			return plain, html, err
		}
		switch {
		case contentType == "text/plain" && plain == "":
			plain = string(b)
		case contentType == "text/html" && html == "":
			html = string(b)
		}
	}
}
