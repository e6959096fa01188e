package ingest

import (
	"context"
	"log/slog"
	"sort"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/retry"
)

type ReplyDetector struct {
	client gmail_domain.MailClient
	policy retry.Policy
}

func NewReplyDetector(client gmail_domain.MailClient, policy retry.Policy) *ReplyDetector {
	return &ReplyDetector{client: client, policy: policy}
}

// Detect reports whether the thread holds messages after originalID and how
// many. Provider failures are logged and read as no reply.
func (d *ReplyDetector) Detect(ctx context.Context, threadID, originalID string) (bool, int) {
	if threadID == "" {
		return false, 0
	}

	messages, err := retry.Do(ctx, d.policy, "threads.get", func(ctx context.Context) ([]gmail_domain.ThreadMessage, error) {
		return d.client.GetThread(ctx, threadID)
	})
	if err != nil {
		slog.Warn("failed to check thread for replies", "thread_id", threadID, "error", err)
		return false, 0
	}

	return CountReplies(messages, originalID)
}

// CountReplies orders the thread by provider timestamp and counts the
// messages that come after originalID.
func CountReplies(messages []gmail_domain.ThreadMessage, originalID string) (bool, int) {
	if len(messages) <= 1 {
		return false, 0
	}

	ordered := make([]gmail_domain.ThreadMessage, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].InternalDate.Before(ordered[j].InternalDate)
	})

	for i, m := range ordered {
		if m.ID == originalID {
			replies := len(ordered) - i - 1
			return replies > 0, replies
		}
	}
	return false, 0
}
