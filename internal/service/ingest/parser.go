package ingest

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	gmailapi "google.golang.org/api/gmail/v1"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
)

const (
	defaultSubject = "No Subject"
	unknownParty   = "Unknown"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// ParseMessage normalizes a full provider payload. Header names match
// case-insensitively and the last occurrence wins.
func ParseMessage(msg *gmailapi.Message) *gmail_domain.Message {
	if msg == nil {
		return nil
	}

	headers := map[string]string{}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if h == nil {
				continue
			}
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}
	header := func(name, fallback string) string {
		if v, ok := headers[name]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		return fallback
	}

	out := &gmail_domain.Message{
		ID:              msg.Id,
		ThreadID:        msg.ThreadId,
		Subject:         header("subject", defaultSubject),
		From:            header("from", unknownParty),
		To:              header("to", unknownParty),
		Cc:              header("cc", ""),
		MessageIDHeader: header("message-id", ""),
		InReplyTo:       header("in-reply-to", ""),
		References:      header("references", ""),
		InternalDate:    time.UnixMilli(msg.InternalDate).UTC(),
		Snippet:         msg.Snippet,
		Body:            extractBody(msg.Payload),
		LabelIDs:        msg.LabelIds,
	}

	if raw := header("date", ""); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			out.Date = &t
		}
	}

	if out.To != unknownParty {
		out.Recipients = ExtractAddresses(out.To)
	}

	return out
}

// ExtractAddresses finds every address-shaped token in a header value,
// in order of first appearance.
func ExtractAddresses(value string) []string {
	return lo.Uniq(emailPattern.FindAllString(value, -1))
}

// extractBody concatenates every text/plain part, depth first. Attachments
// and other media types are skipped.
func extractBody(part *gmailapi.MessagePart) string {
	var b strings.Builder
	var walk func(p *gmailapi.MessagePart)
	walk = func(p *gmailapi.MessagePart) {
		if p == nil {
			return
		}
		if p.MimeType == "text/plain" && p.Filename == "" && p.Body != nil && p.Body.Data != "" {
			b.WriteString(decodeBody(p.Body.Data))
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(part)
	return strings.TrimSpace(b.String())
}

// decodeBody decodes URL-safe base64 with or without padding. Bytes after a
// corrupt symbol and invalid UTF-8 sequences are dropped.
func decodeBody(data string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', ' ', '\t':
			return -1
		case '+':
			return '-'
		case '/':
			return '_'
		}
		return r
	}, data)
	cleaned = strings.TrimRight(cleaned, "=")

	buf := make([]byte, base64.RawURLEncoding.DecodedLen(len(cleaned)))
	n, _ := base64.RawURLEncoding.Decode(buf, []byte(cleaned))
	return strings.ToValidUTF8(string(buf[:n]), "")
}
