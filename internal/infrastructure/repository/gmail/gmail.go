package gmail

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/infrastructure/google"
)

const user = "me"

type gmailRepo struct {
	clients google.ClientProvider
	opts    []option.ClientOption
}

var _ gmail_domain.MailClient = (*gmailRepo)(nil)

func NewGmailRepo(clients google.ClientProvider, opts ...option.ClientOption) gmail_domain.MailClient {
	return &gmailRepo{
		clients: clients,
		opts:    opts,
	}
}

// service creates a Gmail service with the current account token
func (r *gmailRepo) service(ctx context.Context) (*gmail.Service, error) {
	client, err := r.clients.Client(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, r.opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	return srv, nil
}

func (r *gmailRepo) ListLabels(ctx context.Context) ([]gmail_domain.Label, error) {
	srv, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve labels: %w", err)
	}

	labels := make([]gmail_domain.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, gmail_domain.Label{ID: l.Id, Name: l.Name, Type: l.Type})
	}
	return labels, nil
}

func (r *gmailRepo) Search(ctx context.Context, query string, labelIDs []string, pageSize int64, pageToken string) (*gmail_domain.SearchPage, error) {
	srv, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	call := srv.Users.Messages.List(user).Q(query).MaxResults(pageSize).Context(ctx)
	if len(labelIDs) > 0 {
		call = call.LabelIds(labelIDs...)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("unable to search messages: %w", err)
	}

	page := &gmail_domain.SearchPage{
		Refs:          make([]gmail_domain.MessageRef, 0, len(resp.Messages)),
		NextPageToken: resp.NextPageToken,
	}
	for _, m := range resp.Messages {
		page.Refs = append(page.Refs, gmail_domain.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return page, nil
}

func (r *gmailRepo) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	srv, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(user, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %w", err)
	}
	return msg, nil
}

func (r *gmailRepo) GetThread(ctx context.Context, threadID string) ([]gmail_domain.ThreadMessage, error) {
	srv, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	thread, err := srv.Users.Threads.Get(user, threadID).Format("minimal").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve thread: %w", err)
	}

	messages := make([]gmail_domain.ThreadMessage, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		messages = append(messages, gmail_domain.ThreadMessage{
			ID:           m.Id,
			InternalDate: time.UnixMilli(m.InternalDate),
		})
	}
	return messages, nil
}

func (r *gmailRepo) GetProfile(ctx context.Context) (*gmail_domain.Profile, error) {
	srv, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve profile: %w", err)
	}
	return &gmail_domain.Profile{
		EmailAddress:  profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
		ThreadsTotal:  profile.ThreadsTotal,
	}, nil
}

func (r *gmailRepo) WatchMailbox(ctx context.Context, topicName string) error {
	srv, err := r.service(ctx)
	if err != nil {
		return err
	}

	watchRequest := &gmail.WatchRequest{
		TopicName:         topicName,
		LabelIds:          []string{"INBOX", "SENT"},
		LabelFilterAction: "include",
	}

	if _, err := srv.Users.Watch(user, watchRequest).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to watch mailbox: %w", err)
	}
	return nil
}
