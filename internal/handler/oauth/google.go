package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	calendar_domain "github.com/huavcjj/followup/internal/domain/calendar"
	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/infrastructure/google"
)

const (
	htmlError   = `<html><body><h1>❌ Authentication failed</h1><p>Start again from /oauth/google/start.</p></body></html>`
	htmlSuccess = `<html><body><h1>✅ Google account connected</h1><p>You can close this window.</p></body></html>`
)

type Authenticator interface {
	AuthURL() (string, string)
	Exchange(ctx context.Context, state, code string) error
	IsAuthenticated(ctx context.Context) bool
	Revoke(ctx context.Context) error
}

type GoogleOAuthHandler struct {
	auth        Authenticator
	mail        gmail_domain.MailClient
	calendar    calendar_domain.Client
	pubsubTopic string
}

func NewGoogleOAuthHandler(auth Authenticator, mail gmail_domain.MailClient, calendar calendar_domain.Client, pubsubTopic string) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		auth:        auth,
		mail:        mail,
		calendar:    calendar,
		pubsubTopic: pubsubTopic,
	}
}

func (h *GoogleOAuthHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	url, _ := h.auth.AuthURL()
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *GoogleOAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		slog.Warn("consent denied", "error", errParam)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, htmlError)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" || state == "" {
		slog.Error("missing code or state", "has_code", code != "", "has_state", state != "")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.auth.Exchange(ctx, state, code); err != nil {
		slog.Error("failed to complete Google auth", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, google.ErrInvalidState) {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprint(w, htmlError)
		return
	}

	// Push notifications are optional; the API still works without a watch.
	if h.pubsubTopic != "" {
		if err := h.mail.WatchMailbox(ctx, h.pubsubTopic); err != nil {
			slog.Warn("failed to setup Gmail watch, push notifications may not work",
				"topic", h.pubsubTopic,
				"error", err,
			)
		} else {
			slog.Info("Gmail watch setup successfully", "topic", h.pubsubTopic)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, htmlSuccess)
}

func (h *GoogleOAuthHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(r.Context()); err != nil {
		slog.Error("failed to revoke credentials", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type connectionStatus struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Calendar      string `json:"calendar,omitempty"`
	MailError     string `json:"mail_error,omitempty"`
	CalendarError string `json:"calendar_error,omitempty"`
}

// HandleStatus tests both provider connections with the stored credentials.
func (h *GoogleOAuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := connectionStatus{Authenticated: h.auth.IsAuthenticated(ctx)}

	if status.Authenticated {
		if profile, err := h.mail.GetProfile(ctx); err != nil {
			status.MailError = err.Error()
		} else {
			status.Email = profile.EmailAddress
		}
		if cal, err := h.calendar.PrimaryCalendar(ctx); err != nil {
			status.CalendarError = err.Error()
		} else {
			status.Calendar = cal
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Error("failed to encode status", "error", err)
	}
}
