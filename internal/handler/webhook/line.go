package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

type CommandHandler interface {
	HandleCommand(ctx context.Context, userID, replyToken, text string) error
}

type LineWebhookHandler struct {
	commands      CommandHandler
	channelSecret string
}

func NewLineWebhookHandler(commands CommandHandler, channelSecret string) *LineWebhookHandler {
	return &LineWebhookHandler{
		commands:      commands,
		channelSecret: channelSecret,
	}
}

func (h *LineWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	// Allow GET for verification
	if r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse webhook request (includes signature validation)
	cb, err := webhook.ParseRequest(h.channelSecret, r)
	if err != nil {
		slog.Error("failed to parse webhook request", "error", err)
		http.Error(w, "Failed to parse request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			h.handleMessageEvent(ctx, e)
		default:
			slog.Info("received unhandled event", "type", fmt.Sprintf("%T", event))
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (h *LineWebhookHandler) handleMessageEvent(ctx context.Context, event webhook.MessageEvent) {
	switch message := event.Message.(type) {
	case webhook.TextMessageContent:
		h.handleTextMessage(ctx, event.Source, event.ReplyToken, message.Text)
	default:
		slog.Info("received unhandled message type", "type", fmt.Sprintf("%T", message))
	}
}

func (h *LineWebhookHandler) handleTextMessage(ctx context.Context, source webhook.SourceInterface, replyToken, text string) {
	userID := sourceUserID(source)
	if userID == "" {
		slog.Error("could not extract user ID from source")
		return
	}

	text = strings.TrimSpace(text)
	slog.Info("received text message", "user_id", userID, "text", text)

	if err := h.commands.HandleCommand(ctx, userID, replyToken, text); err != nil {
		slog.Error("failed to process text message",
			"user_id", userID,
			"text", text,
			"error", err,
		)
	}
}

// sourceUserID reads userId from any source kind (user, group or room).
func sourceUserID(source webhook.SourceInterface) string {
	data, err := json.Marshal(source)
	if err != nil {
		return ""
	}
	var fields struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	return fields.UserID
}
