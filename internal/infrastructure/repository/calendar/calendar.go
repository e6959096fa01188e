package calendar

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	calendar_domain "github.com/huavcjj/followup/internal/domain/calendar"
	"github.com/huavcjj/followup/internal/infrastructure/google"
)

const calendarID = "primary"

type calendarRepo struct {
	clients google.ClientProvider
	opts    []option.ClientOption
}

var _ calendar_domain.Client = (*calendarRepo)(nil)

func NewCalendarRepo(clients google.ClientProvider, opts ...option.ClientOption) calendar_domain.Client {
	return &calendarRepo{
		clients: clients,
		opts:    opts,
	}
}

func (r *calendarRepo) service(ctx context.Context) (*calendar.Service, error) {
	client, err := r.clients.Client(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, r.opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Calendar service: %w", err)
	}
	return srv, nil
}

func (r *calendarRepo) CreateEvent(ctx context.Context, in calendar_domain.EventInput) (*calendar_domain.Event, error) {
	if in.Summary == "" || in.Start.IsZero() || in.End.IsZero() {
		return nil, fmt.Errorf("summary, start time, and end time are required")
	}

	srv, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       &calendar.EventDateTime{DateTime: in.Start.Format(time.RFC3339), TimeZone: in.TimeZone},
		End:         &calendar.EventDateTime{DateTime: in.End.Format(time.RFC3339), TimeZone: in.TimeZone},
		ColorId:     in.ColorID,
	}

	if len(in.PopupMinutes) > 0 {
		overrides := make([]*calendar.EventReminder, 0, len(in.PopupMinutes))
		for _, m := range in.PopupMinutes {
			overrides = append(overrides, &calendar.EventReminder{Method: "popup", Minutes: m})
		}
		event.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}

	created, err := srv.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("error creating calendar event: %w", err)
	}
	return toDomain(created), nil
}

func (r *calendarRepo) ListEvents(ctx context.Context, from, to time.Time, query string, maxResults int64) ([]calendar_domain.Event, error) {
	srv, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	call := srv.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	if query != "" {
		call = call.Q(query)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("error listing calendar events: %w", err)
	}

	out := make([]calendar_domain.Event, 0, len(events.Items))
	for _, e := range events.Items {
		out = append(out, *toDomain(e))
	}
	return out, nil
}

func (r *calendarRepo) DeleteEvent(ctx context.Context, eventID string) error {
	srv, err := r.service(ctx)
	if err != nil {
		return err
	}

	if err := srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("error deleting calendar event: %w", err)
	}
	return nil
}

func (r *calendarRepo) PrimaryCalendar(ctx context.Context) (string, error) {
	srv, err := r.service(ctx)
	if err != nil {
		return "", err
	}

	cal, err := srv.Calendars.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("error fetching primary calendar: %w", err)
	}
	return cal.Summary, nil
}

func toDomain(e *calendar.Event) *calendar_domain.Event {
	out := &calendar_domain.Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		HTMLLink:    e.HtmlLink,
	}
	out.Start = parseEventTime(e.Start)
	out.End = parseEventTime(e.End)
	return out
}

// parseEventTime handles both timed events (DateTime) and all-day events (Date).
func parseEventTime(t *calendar.EventDateTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse(time.DateOnly, t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
