package line

import "context"

// Notifier sends chat messages to a LINE user.
type Notifier interface {
	PushText(ctx context.Context, userID, text string) error
	ReplyText(ctx context.Context, replyToken, text string) error
	PushButton(ctx context.Context, userID, text, buttonText, buttonURL string) error
}
