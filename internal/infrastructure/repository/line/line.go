package line

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	line_domain "github.com/huavcjj/followup/internal/domain/line"
)

// LINE rejects text messages above this many characters.
const maxTextLength = 5000

type lineRepo struct {
	bot *messaging_api.MessagingApiAPI
}

var _ line_domain.Notifier = (*lineRepo)(nil)

func NewLineRepo(channelToken string, opts ...messaging_api.MessagingApiAPIOption) (line_domain.Notifier, error) {
	if channelToken == "" {
		return nil, fmt.Errorf("line channel token is empty")
	}

	bot, err := messaging_api.NewMessagingApiAPI(channelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging API: %w", err)
	}

	return &lineRepo{
		bot: bot,
	}, nil
}

func (r *lineRepo) PushText(ctx context.Context, userID, text string) error {
	if userID == "" {
		return fmt.Errorf("user ID is empty")
	}

	_, err := r.bot.PushMessage(
		&messaging_api.PushMessageRequest{
			To: userID,
			Messages: []messaging_api.MessageInterface{
				messaging_api.TextMessage{
					Text: truncate(text),
				},
			},
		},
		"",
	)
	if err != nil {
		return fmt.Errorf("failed to push text message: %w", err)
	}

	return nil
}

func (r *lineRepo) ReplyText(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return fmt.Errorf("reply token is empty")
	}

	_, err := r.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages: []messaging_api.MessageInterface{
				messaging_api.TextMessage{
					Text: truncate(text),
				},
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to reply text message: %w", err)
	}

	return nil
}

func (r *lineRepo) PushButton(ctx context.Context, userID, text, buttonText, buttonURL string) error {
	if userID == "" {
		return fmt.Errorf("user ID is empty")
	}

	_, err := r.bot.PushMessage(
		&messaging_api.PushMessageRequest{
			To: userID,
			Messages: []messaging_api.MessageInterface{
				&messaging_api.TemplateMessage{
					AltText: text,
					Template: &messaging_api.ButtonsTemplate{
						Text: text,
						Actions: []messaging_api.ActionInterface{
							&messaging_api.UriAction{
								Label: buttonText,
								Uri:   buttonURL,
							},
						},
					},
				},
			},
		},
		"",
	)
	if err != nil {
		return fmt.Errorf("failed to send button message: %w", err)
	}

	return nil
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTextLength {
		return text
	}
	return string(runes[:maxTextLength-3]) + "..."
}
