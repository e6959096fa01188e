package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/retry"
)

var testPolicy = retry.Policy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

type fakeMail struct {
	mu sync.Mutex

	// pages are keyed by page token; "" is the first page.
	pages       map[string]*gmail_domain.SearchPage
	searchErrs  map[string]error
	messages    map[string]*gmailapi.Message
	threads     map[string][]gmail_domain.ThreadMessage
	threadErr   error
	labels      []gmail_domain.Label
	searchSizes []int64
}

var _ gmail_domain.MailClient = (*fakeMail)(nil)

func newFakeMail() *fakeMail {
	return &fakeMail{
		pages:      map[string]*gmail_domain.SearchPage{},
		searchErrs: map[string]error{},
		messages:   map[string]*gmailapi.Message{},
		threads:    map[string][]gmail_domain.ThreadMessage{},
	}
}

func (f *fakeMail) ListLabels(ctx context.Context) ([]gmail_domain.Label, error) {
	return f.labels, nil
}

func (f *fakeMail) Search(ctx context.Context, query string, labelIDs []string, pageSize int64, pageToken string) (*gmail_domain.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchSizes = append(f.searchSizes, pageSize)

	if err := f.searchErrs[pageToken]; err != nil {
		return nil, err
	}
	page, ok := f.pages[pageToken]
	if !ok {
		return &gmail_domain.SearchPage{}, nil
	}
	out := *page
	if int64(len(out.Refs)) > pageSize {
		out.Refs = out.Refs[:pageSize]
	}
	return &out, nil
}

func (f *fakeMail) GetMessage(ctx context.Context, messageID string) (*gmailapi.Message, error) {
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (f *fakeMail) GetThread(ctx context.Context, threadID string) ([]gmail_domain.ThreadMessage, error) {
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	return f.threads[threadID], nil
}

func (f *fakeMail) GetProfile(ctx context.Context) (*gmail_domain.Profile, error) {
	return &gmail_domain.Profile{EmailAddress: "me@example.com"}, nil
}

func (f *fakeMail) WatchMailbox(ctx context.Context, topicName string) error {
	return nil
}

// addMessage registers a single-part sent message and a thread holding it.
func (f *fakeMail) addMessage(id, threadID, subject, to string, sent time.Time, body string) {
	f.messages[id] = &gmailapi.Message{
		Id:           id,
		ThreadId:     threadID,
		InternalDate: sent.UnixMilli(),
		Snippet:      body,
		LabelIds:     []string{"SENT"},
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: subject},
				{Name: "To", Value: to},
				{Name: "Date", Value: sent.Format(time.RFC1123Z)},
			},
			Body: &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
	f.threads[threadID] = append(f.threads[threadID], gmail_domain.ThreadMessage{ID: id, InternalDate: sent})
}

func refs(prefix string, n int) []gmail_domain.MessageRef {
	out := make([]gmail_domain.MessageRef, n)
	for i := range out {
		out[i] = gmail_domain.MessageRef{ID: fmt.Sprintf("%s%d", prefix, i), ThreadID: "t"}
	}
	return out
}

type memStore struct {
	mu      sync.Mutex
	emails  []tracking.TrackedEmail
	saveErr error
	saves   int
	now     time.Time
}

var _ tracking.Store = (*memStore)(nil)

func (s *memStore) Load(ctx context.Context) (*tracking.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emails := make([]tracking.TrackedEmail, len(s.emails))
	copy(emails, s.emails)
	return tracking.NewSnapshot(emails), nil
}

func (s *memStore) Save(ctx context.Context, snapshot *tracking.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.emails = make([]tracking.TrackedEmail, snapshot.Len())
	copy(s.emails, snapshot.Emails)
	for i := range s.emails {
		s.emails[i].LastUpdated = s.now
	}
	return nil
}

func (s *memStore) Restore(ctx context.Context, backupID string) error {
	return tracking.ErrBackupNotFound
}

func (s *memStore) ListBackups(ctx context.Context) ([]tracking.BackupInfo, error) {
	return []tracking.BackupInfo{}, nil
}
