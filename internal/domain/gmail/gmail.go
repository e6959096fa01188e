package gmail

import (
	"context"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
)

// MessageRef is a search hit; only the ids are known until the message is fetched.
type MessageRef struct {
	ID       string
	ThreadID string
}

type Label struct {
	ID   string
	Name string
	Type string
}

// Message is a provider message normalized into the fields the tracker reads.
type Message struct {
	ID              string
	ThreadID        string
	Subject         string
	From            string
	To              string
	Cc              string
	MessageIDHeader string
	InReplyTo       string
	References      string
	// Date is the parsed Date header; nil when absent or unparseable.
	Date         *time.Time
	InternalDate time.Time
	Snippet      string
	Body         string
	LabelIDs     []string
	Recipients   []string
}

// SentAt prefers the Date header and falls back to the provider timestamp.
func (m *Message) SentAt() time.Time {
	if m.Date != nil {
		return *m.Date
	}
	return m.InternalDate
}

// ThreadMessage is the minimum needed to order a conversation.
type ThreadMessage struct {
	ID           string
	InternalDate time.Time
}

type SearchPage struct {
	Refs          []MessageRef
	NextPageToken string
}

type Profile struct {
	EmailAddress  string
	MessagesTotal int64
	ThreadsTotal  int64
}

// MailClient is the provider boundary for read-only mailbox access.
type MailClient interface {
	ListLabels(ctx context.Context) ([]Label, error)
	Search(ctx context.Context, query string, labelIDs []string, pageSize int64, pageToken string) (*SearchPage, error)
	// GetMessage returns the full provider payload; ingest.ParseMessage normalizes it.
	GetMessage(ctx context.Context, messageID string) (*gmailapi.Message, error)
	GetThread(ctx context.Context, threadID string) ([]ThreadMessage, error)
	GetProfile(ctx context.Context) (*Profile, error)
	WatchMailbox(ctx context.Context, topicName string) error
}
