package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	calendar_domain "github.com/huavcjj/followup/internal/domain/calendar"
	"github.com/huavcjj/followup/internal/infrastructure/google"
)

func newTestRepo(t *testing.T, handler http.HandlerFunc) calendar_domain.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCalendarRepo(google.StaticClient{HTTP: srv.Client()}, option.WithEndpoint(srv.URL+"/"))
}

func TestCreateEventSendsReminderOverrides(t *testing.T) {
	var sent calendar.Event
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"evt-1","summary":"s","start":{"dateTime":"2026-10-19T09:00:00-04:00"},"end":{"dateTime":"2026-10-19T09:30:00-04:00"}}`)
	})

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, loc)

	event, err := repo.CreateEvent(context.Background(), calendar_domain.EventInput{
		Summary:      "s",
		Start:        start,
		End:          start.Add(30 * time.Minute),
		TimeZone:     "America/New_York",
		PopupMinutes: []int64{15, 60},
		ColorID:      "9",
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", event.ID)
	assert.True(t, event.Start.Equal(start))
	assert.Equal(t, "9", sent.ColorId)
	assert.Equal(t, "America/New_York", sent.Start.TimeZone)
	require.NotNil(t, sent.Reminders)
	require.Len(t, sent.Reminders.Overrides, 2)
	assert.Equal(t, int64(60), sent.Reminders.Overrides[1].Minutes)
}

func TestListEventsQueriesWindow(t *testing.T) {
	from := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Follow-up", q.Get("q"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.Equal(t, from.Format(time.RFC3339), q.Get("timeMin"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"id":"a","summary":"x","start":{"date":"2026-10-17"},"end":{"date":"2026-10-18"}}]}`)
	})

	events, err := repo.ListEvents(context.Background(), from, from.AddDate(0, 0, 7), "Follow-up", 50)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "2026-10-17", events[0].Start.Format(time.DateOnly))
}

func TestCreateEventValidatesInput(t *testing.T) {
	repo := NewCalendarRepo(google.StaticClient{HTTP: http.DefaultClient})

	_, err := repo.CreateEvent(context.Background(), calendar_domain.EventInput{Summary: "x"})
	assert.Error(t, err)
}
