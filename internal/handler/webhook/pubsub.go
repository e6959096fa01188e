package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/huavcjj/followup/internal/service/ingest"
)

const syncTimeout = 10 * time.Minute

type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		Attributes  map[string]string `json:"attributes"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// mailboxChange is the payload Gmail publishes on every mailbox update.
type mailboxChange struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

type Syncer interface {
	Sync(ctx context.Context) (*ingest.Result, error)
}

type PubSubWebhookHandler struct {
	syncer  Syncer
	running atomic.Bool
	pending atomic.Bool
}

func NewPubSubWebhookHandler(syncer Syncer) *PubSubWebhookHandler {
	return &PubSubWebhookHandler{syncer: syncer}
}

// HandlePubSub acknowledges the push at once and syncs in the background.
// Pushes arriving while a sync is running are coalesced into one follow-up sync.
func (h *PubSubWebhookHandler) HandlePubSub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg PubSubMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		slog.Error("failed to decode pubsub message", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var change mailboxChange
	if data, err := base64.StdEncoding.DecodeString(msg.Message.Data); err == nil {
		_ = json.Unmarshal(data, &change)
	}

	slog.Info("received Gmail notification",
		"message_id", msg.Message.MessageID,
		"publish_time", msg.Message.PublishTime,
		"email", change.EmailAddress,
		"history_id", change.HistoryID,
	)

	h.pending.Store(true)
	if h.running.CompareAndSwap(false, true) {
		go h.drain()
	} else {
		slog.Info("sync already running, queued one more")
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// drain syncs until no push is pending. The pending check after releasing
// running catches a push that lost the race with the release.
func (h *PubSubWebhookHandler) drain() {
	for {
		for h.pending.Swap(false) {
			h.sync()
		}
		h.running.Store(false)
		if !h.pending.Load() || !h.running.CompareAndSwap(false, true) {
			return
		}
	}
}

func (h *PubSubWebhookHandler) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if _, err := h.syncer.Sync(ctx); err != nil {
		slog.Error("failed to process Gmail notification", "error", err)
	}
}
