package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	calendar_domain "github.com/huavcjj/followup/internal/domain/calendar"
	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/infrastructure/google"
)

type fakeAuth struct {
	authenticated bool
	exchangeErr   error
	revoked       bool
}

func (f *fakeAuth) AuthURL() (string, string) {
	return "https://accounts.example.com/o/oauth2/auth?state=s1", "s1"
}

func (f *fakeAuth) Exchange(ctx context.Context, state, code string) error {
	if f.exchangeErr != nil {
		return f.exchangeErr
	}
	f.authenticated = true
	return nil
}

func (f *fakeAuth) IsAuthenticated(ctx context.Context) bool {
	return f.authenticated
}

func (f *fakeAuth) Revoke(ctx context.Context) error {
	f.revoked = true
	f.authenticated = false
	return nil
}

type fakeMail struct {
	gmail_domain.MailClient
	watched []string
}

func (f *fakeMail) WatchMailbox(ctx context.Context, topicName string) error {
	f.watched = append(f.watched, topicName)
	return nil
}

func (f *fakeMail) GetProfile(ctx context.Context) (*gmail_domain.Profile, error) {
	return &gmail_domain.Profile{EmailAddress: "me@example.com"}, nil
}

func (f *fakeMail) GetMessage(ctx context.Context, id string) (*gmailapi.Message, error) {
	return nil, errors.New("unused")
}

type fakeCalendar struct {
	calendar_domain.Client
}

func (fakeCalendar) PrimaryCalendar(ctx context.Context) (string, error) {
	return "", fmt.Errorf("calendar: %w", errors.New("forbidden"))
}

func (fakeCalendar) ListEvents(ctx context.Context, from, to time.Time, q string, n int64) ([]calendar_domain.Event, error) {
	return nil, nil
}

func TestStartRedirects(t *testing.T) {
	h := NewGoogleOAuthHandler(&fakeAuth{}, &fakeMail{}, fakeCalendar{}, "")

	rec := httptest.NewRecorder()
	h.HandleStart(rec, httptest.NewRequest(http.MethodGet, "/oauth/google/start", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://accounts.example.com/o/oauth2/auth?state=s1", rec.Header().Get("Location"))
}

func TestCallback(t *testing.T) {
	auth := &fakeAuth{}
	mail := &fakeMail{}
	h := NewGoogleOAuthHandler(auth, mail, fakeCalendar{}, "projects/p/topics/gmail")

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/oauth/google/callback?state=s1&code=c1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connected")
	assert.True(t, auth.authenticated)
	assert.Equal(t, []string{"projects/p/topics/gmail"}, mail.watched)
}

func TestCallbackFailures(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{name: "missing code", query: "?state=s1", status: http.StatusBadRequest},
		{name: "consent denied", query: "?error=access_denied", status: http.StatusForbidden},
		{name: "stale state", query: "?state=old&code=c", err: google.ErrInvalidState, status: http.StatusBadRequest},
		{name: "exchange failed", query: "?state=s1&code=c", err: errors.New("boom"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGoogleOAuthHandler(&fakeAuth{exchangeErr: tt.err}, &fakeMail{}, fakeCalendar{}, "")

			rec := httptest.NewRecorder()
			h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/oauth/google/callback"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRevokeAndStatus(t *testing.T) {
	auth := &fakeAuth{authenticated: true}
	h := NewGoogleOAuthHandler(auth, &fakeMail{}, fakeCalendar{}, "")

	rec := httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/oauth/google/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status connectionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, "me@example.com", status.Email)
	assert.Contains(t, status.CalendarError, "forbidden")

	rec = httptest.NewRecorder()
	h.HandleRevoke(rec, httptest.NewRequest(http.MethodPost, "/oauth/google/revoke", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, auth.revoked)

	rec = httptest.NewRecorder()
	h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/oauth/google/status", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Authenticated)
}
