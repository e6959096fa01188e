package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/api/googleapi"

	calendar_domain "github.com/huavcjj/followup/internal/domain/calendar"
	settings_domain "github.com/huavcjj/followup/internal/domain/settings"
	"github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/metrics"
	"github.com/huavcjj/followup/internal/retry"
)

const (
	eventDuration   = 30 * time.Minute
	eventColorID    = "9"
	summaryPrefix   = "📧 Follow-up: "
	summaryMaxRunes = 50
	// UpcomingQuery matches the summaries this service creates.
	UpcomingQuery    = "Follow-up"
	upcomingMax      = 250
	workdayStartHour = 9
	workdayEndHour   = 17
)

var (
	ErrNoReminder = errors.New("no reminder scheduled")

	popupMinutes = []int64{15, 60}
)

type Service struct {
	calendar calendar_domain.Client
	guard    *tracking.Guard
	settings settings_domain.Repo
	policy   retry.Policy
	now      func() time.Time
}

func NewService(calendar calendar_domain.Client, guard *tracking.Guard, settings settings_domain.Repo, policy retry.Policy, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		calendar: calendar,
		guard:    guard,
		settings: settings,
		policy:   policy,
		now:      now,
	}
}

type Scheduled struct {
	EmailID     string    `json:"email_id"`
	EventID     string    `json:"event_id"`
	EventLink   string    `json:"event_link"`
	Subject     string    `json:"subject"`
	ScheduledAt time.Time `json:"scheduled_time"`
}

func (s *Service) loadSettings(ctx context.Context) settings_domain.Settings {
	st, err := s.settings.Load(ctx)
	if err != nil {
		slog.Warn("using default settings for reminders", "error", err)
	}
	return st
}

// Schedule creates one reminder for emailID. A zero at means reminder_days
// from today at the reminder time, in the settings timezone.
func (s *Service) Schedule(ctx context.Context, emailID string, at time.Time) (*Scheduled, error) {
	st := s.loadSettings(ctx)
	if at.IsZero() {
		at = atClock(s.now(), st, st.ReminderDays)
	}

	scheduled, err := s.schedule(ctx, st, []string{emailID}, func(int) time.Time { return at })
	if err != nil {
		return nil, err
	}
	if len(scheduled) == 0 {
		return nil, fmt.Errorf("failed to create reminder for %s", emailID)
	}
	return &scheduled[0], nil
}

// ScheduleBulk creates one reminder per email, spaced spacing apart from
// base and kept inside working hours on weekdays. A zero base means tomorrow
// at the reminder time. Emails whose event cannot be created are skipped.
func (s *Service) ScheduleBulk(ctx context.Context, emailIDs []string, base time.Time, spacing time.Duration) ([]Scheduled, error) {
	st := s.loadSettings(ctx)
	if base.IsZero() {
		base = atClock(s.now(), st, 1)
	}
	if spacing <= 0 {
		spacing = time.Hour
	}

	return s.schedule(ctx, st, emailIDs, func(i int) time.Time {
		return AdjustSlot(base.Add(time.Duration(i) * spacing))
	})
}

func (s *Service) schedule(ctx context.Context, st settings_domain.Settings, emailIDs []string, slot func(int) time.Time) ([]Scheduled, error) {
	snapshot, err := s.guard.Load(ctx)
	if err != nil && !errors.Is(err, tracking.ErrUnreadableSnapshot) {
		return nil, err
	}

	loc := st.Location()
	scheduled := make([]Scheduled, 0, len(emailIDs))
	for i, id := range emailIDs {
		row, ok := snapshot.Find(id)
		if !ok {
			if len(emailIDs) == 1 {
				return nil, fmt.Errorf("%w: %s", tracking.ErrNotFound, id)
			}
			slog.Warn("skipping reminder for unknown email", "id", id)
			continue
		}

		start := slot(i).In(loc)
		in := calendar_domain.EventInput{
			Summary:      Summary(row.Subject),
			Description:  s.description(row),
			Start:        start,
			End:          start.Add(eventDuration),
			TimeZone:     loc.String(),
			PopupMinutes: popupMinutes,
			ColorID:      eventColorID,
		}
		// Not retried: events.insert is not idempotent.
		event, err := s.calendar.CreateEvent(ctx, in)
		if err != nil {
			slog.Error("failed to create reminder", "id", id, "error", err)
			if len(emailIDs) == 1 {
				return nil, fmt.Errorf("failed to create reminder: %w", err)
			}
			continue
		}

		metrics.RemindersCreated.Inc()
		scheduled = append(scheduled, Scheduled{
			EmailID:     id,
			EventID:     event.ID,
			EventLink:   event.HTMLLink,
			Subject:     row.Subject,
			ScheduledAt: start,
		})
	}

	if len(scheduled) == 0 {
		return scheduled, nil
	}

	err = s.guard.Update(ctx, func(snapshot *tracking.Snapshot) error {
		for _, sc := range scheduled {
			row, ok := snapshot.Find(sc.EmailID)
			if !ok {
				continue
			}
			at := sc.ScheduledAt
			row.FollowUpDate = &at
			row.CreatedReminder = true
			row.CalendarEventID = sc.EventID
		}
		return nil
	})
	if err != nil {
		return scheduled, fmt.Errorf("reminders created but tracking data not saved: %w", err)
	}

	slog.Info("reminders scheduled", "count", len(scheduled))
	return scheduled, nil
}

// Upcoming lists follow-up events starting within the next days days.
func (s *Service) Upcoming(ctx context.Context, days int) ([]calendar_domain.Event, error) {
	if days < 1 {
		days = 7
	}
	now := s.now()
	events, err := retry.Do(ctx, s.policy, "events.list", func(ctx context.Context) ([]calendar_domain.Event, error) {
		return s.calendar.ListEvents(ctx, now, now.AddDate(0, 0, days), UpcomingQuery, upcomingMax)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming follow-ups: %w", err)
	}
	return events, nil
}

// Cancel deletes the reminder event of emailID and clears its reminder fields.
// An event already gone from the calendar counts as deleted.
func (s *Service) Cancel(ctx context.Context, emailID string) error {
	snapshot, err := s.guard.Load(ctx)
	if err != nil && !errors.Is(err, tracking.ErrUnreadableSnapshot) {
		return err
	}
	row, ok := snapshot.Find(emailID)
	if !ok {
		return fmt.Errorf("%w: %s", tracking.ErrNotFound, emailID)
	}
	if row.CalendarEventID == "" {
		return fmt.Errorf("%w: %s", ErrNoReminder, emailID)
	}

	eventID := row.CalendarEventID
	_, err = retry.Do(ctx, s.policy, "events.delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.calendar.DeleteEvent(ctx, eventID)
	})
	if err != nil && !isGone(err) {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}

	return s.guard.Update(ctx, func(snapshot *tracking.Snapshot) error {
		row, ok := snapshot.Find(emailID)
		if !ok {
			return fmt.Errorf("%w: %s", tracking.ErrNotFound, emailID)
		}
		row.CalendarEventID = ""
		row.CreatedReminder = false
		row.FollowUpDate = nil
		return nil
	})
}

func (s *Service) description(row *tracking.TrackedEmail) string {
	days := max(0, int(s.now().Sub(row.DateSent).Hours()/24))

	var b strings.Builder
	b.WriteString("🔄 EMAIL FOLLOW-UP REMINDER\n\n")
	fmt.Fprintf(&b, "📧 Original Email: %s\n", row.Subject)
	fmt.Fprintf(&b, "👤 Recipient: %s\n", row.To)
	fmt.Fprintf(&b, "📅 Original Date: %s\n", row.DateSent.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "⏰ Days Since Sent: %d\n\n", days)
	b.WriteString("📝 ACTION ITEMS:\n")
	b.WriteString("• Review original email and any responses\n")
	b.WriteString("• Prepare follow-up message if no response received\n")
	b.WriteString("• Consider alternative contact methods if appropriate\n")
	b.WriteString("• Update tracking status after action taken\n")
	if row.Notes != "" {
		fmt.Fprintf(&b, "\n🗒 Notes: %s\n", row.Notes)
	}
	return b.String()
}

// Summary is the event title for a follow-up on subject.
func Summary(subject string) string {
	if utf8.RuneCountInString(subject) > summaryMaxRunes {
		subject = string([]rune(subject)[:summaryMaxRunes]) + "..."
	}
	return summaryPrefix + subject
}

// AdjustSlot moves t onto a weekday between 09:00 and 17:00 in t's location.
// Weekend slots roll forward keeping their time of day, early slots move to
// 09:00 and late slots to 09:00 the next day.
func AdjustSlot(t time.Time) time.Time {
	for {
		switch {
		case t.Weekday() == time.Saturday || t.Weekday() == time.Sunday:
			t = t.AddDate(0, 0, 1)
		case t.Hour() < workdayStartHour:
			t = time.Date(t.Year(), t.Month(), t.Day(), workdayStartHour, 0, 0, 0, t.Location())
		case t.Hour() >= workdayEndHour:
			t = time.Date(t.Year(), t.Month(), t.Day()+1, workdayStartHour, 0, 0, 0, t.Location())
		default:
			return t
		}
	}
}

// atClock returns the reminder time of day, days after now's date, in the
// settings timezone.
func atClock(now time.Time, st settings_domain.Settings, days int) time.Time {
	loc := st.Location()
	hour, minute, err := st.ReminderClock()
	if err != nil {
		hour, minute = workdayStartHour, 0
	}
	d := now.In(loc).AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
