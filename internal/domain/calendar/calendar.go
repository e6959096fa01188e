package calendar

import (
	"context"
	"time"
)

type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	HTMLLink    string
}

type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	// PopupMinutes overrides the calendar default reminders when non-empty.
	PopupMinutes []int64
	ColorID      string
}

// Client is the provider boundary for the user's primary calendar.
type Client interface {
	CreateEvent(ctx context.Context, in EventInput) (*Event, error)
	ListEvents(ctx context.Context, from, to time.Time, query string, maxResults int64) ([]Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	PrimaryCalendar(ctx context.Context) (string, error)
}
