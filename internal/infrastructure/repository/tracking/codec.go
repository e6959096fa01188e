package tracking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tracking_domain "github.com/huavcjj/followup/internal/domain/tracking"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

func parseInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	// Spreadsheet editors may turn counters into floats.
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return int(f), nil
}

func parseBool(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
	return b, nil
}

// cellValue returns the typed value stored in the spreadsheet for one column.
func cellValue(column string, e *tracking_domain.TrackedEmail) any {
	switch column {
	case "id":
		return e.ID
	case "thread_id":
		return e.ThreadID
	case "subject":
		return e.Subject
	case "to":
		return e.To
	case "to_emails":
		return e.ToEmails
	case "date_sent":
		return formatTime(e.DateSent)
	case "snippet":
		return e.Snippet
	case "has_reply":
		return e.HasReply
	case "reply_count":
		return e.ReplyCount
	case "status":
		return string(e.Status)
	case "priority":
		return string(e.Priority)
	case "days_since_sent":
		return e.DaysSinceSent
	case "body_preview":
		return e.BodyPreview
	case "labels":
		return e.Labels
	case "notes":
		return e.Notes
	case "follow_up_date":
		if e.FollowUpDate == nil {
			return ""
		}
		return formatTime(*e.FollowUpDate)
	case "created_reminder":
		return e.CreatedReminder
	case "last_updated":
		return formatTime(e.LastUpdated)
	case "calendar_event_id":
		return e.CalendarEventID
	case "follow_up_count":
		return e.FollowUpCount
	case "final_outcome":
		if e.FinalOutcome == nil {
			return ""
		}
		return *e.FinalOutcome
	}
	return ""
}

// cellText renders a column the way the CSV mirror stores it.
func cellText(column string, e *tracking_domain.TrackedEmail) string {
	switch v := cellValue(column, e).(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// setField decodes raw into the column's field. Unknown columns are ignored.
func setField(column, raw string, e *tracking_domain.TrackedEmail) error {
	var err error
	switch column {
	case "id":
		e.ID = strings.TrimSpace(raw)
	case "thread_id":
		e.ThreadID = raw
	case "subject":
		e.Subject = raw
	case "to":
		e.To = raw
	case "to_emails":
		e.ToEmails = raw
	case "date_sent":
		e.DateSent, err = parseTime(raw)
	case "snippet":
		e.Snippet = raw
	case "has_reply":
		e.HasReply, err = parseBool(raw)
	case "reply_count":
		e.ReplyCount, err = parseInt(raw)
	case "status":
		e.Status = tracking_domain.Status(strings.TrimSpace(raw))
	case "priority":
		e.Priority = tracking_domain.Priority(strings.TrimSpace(raw))
	case "days_since_sent":
		e.DaysSinceSent, err = parseInt(raw)
	case "body_preview":
		e.BodyPreview = raw
	case "labels":
		e.Labels = raw
	case "notes":
		e.Notes = raw
	case "follow_up_date":
		var t time.Time
		if t, err = parseTime(raw); err == nil && !t.IsZero() {
			e.FollowUpDate = &t
		}
	case "created_reminder":
		e.CreatedReminder, err = parseBool(raw)
	case "last_updated":
		e.LastUpdated, err = parseTime(raw)
	case "calendar_event_id":
		e.CalendarEventID = strings.TrimSpace(raw)
	case "follow_up_count":
		e.FollowUpCount, err = parseInt(raw)
	case "final_outcome":
		if raw != "" {
			v := raw
			e.FinalOutcome = &v
		}
	}
	if err != nil {
		return fmt.Errorf("column %s: %w", column, err)
	}
	return nil
}

// decodeRows turns a header row plus data rows into tracked emails. Rows
// without an id are skipped; trailing empty cells may be missing.
func decodeRows(rows [][]string) ([]tracking_domain.TrackedEmail, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := make(map[int]string, len(rows[0]))
	hasID := false
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(name))
		header[i] = name
		if name == "id" {
			hasID = true
		}
	}
	if !hasID {
		return nil, fmt.Errorf("header has no id column")
	}

	emails := make([]tracking_domain.TrackedEmail, 0, len(rows)-1)
	for n, row := range rows[1:] {
		var e tracking_domain.TrackedEmail
		for i, raw := range row {
			column, ok := header[i]
			if !ok {
				continue
			}
			if err := setField(column, raw, &e); err != nil {
				return nil, fmt.Errorf("row %d: %w", n+2, err)
			}
		}
		if e.ID == "" {
			continue
		}
		emails = append(emails, e)
	}
	return emails, nil
}
