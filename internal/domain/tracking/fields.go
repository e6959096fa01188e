package tracking

// FieldClass decides who owns a column once a row exists.
type FieldClass int

const (
	// Refresh fields are recomputed on every fetch; the latest fetch wins.
	Refresh FieldClass = iota
	// Sticky fields belong to the user after creation; a fetch never overwrites a set value.
	Sticky
)

func (c FieldClass) String() string {
	if c == Sticky {
		return "sticky"
	}
	return "refresh"
}

type Field struct {
	Name  string
	Class FieldClass
	// IsSet reports whether the row holds a value for this field.
	IsSet func(e *TrackedEmail) bool
	// Copy moves the value of this field from src to dst.
	Copy func(dst, src *TrackedEmail)
}

func always(*TrackedEmail) bool { return true }

// Fields is the classification table for every persisted column, in column order.
var Fields = []Field{
	{Name: "id", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.ID = s.ID }},
	{Name: "thread_id", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.ThreadID = s.ThreadID }},
	{Name: "subject", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.Subject = s.Subject }},
	{Name: "to", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.To = s.To }},
	{Name: "to_emails", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.ToEmails = s.ToEmails }},
	{Name: "date_sent", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.DateSent = s.DateSent }},
	{Name: "snippet", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.Snippet = s.Snippet }},
	{Name: "has_reply", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.HasReply = s.HasReply }},
	{Name: "reply_count", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.ReplyCount = s.ReplyCount }},
	{
		Name:  "status",
		Class: Sticky,
		IsSet: func(e *TrackedEmail) bool { return e.Status != "" },
		Copy:  func(d, s *TrackedEmail) { d.Status = s.Status },
	},
	{Name: "priority", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.Priority = s.Priority }},
	{Name: "days_since_sent", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.DaysSinceSent = s.DaysSinceSent }},
	{Name: "body_preview", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.BodyPreview = s.BodyPreview }},
	{Name: "labels", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.Labels = s.Labels }},
	{
		Name:  "notes",
		Class: Sticky,
		IsSet: func(e *TrackedEmail) bool { return e.Notes != "" },
		Copy:  func(d, s *TrackedEmail) { d.Notes = s.Notes },
	},
	{
		Name:  "follow_up_date",
		Class: Sticky,
		IsSet: func(e *TrackedEmail) bool { return e.FollowUpDate != nil },
		Copy: func(d, s *TrackedEmail) {
			t := *s.FollowUpDate
			d.FollowUpDate = &t
		},
	},
	{
		Name:  "created_reminder",
		Class: Sticky,
		IsSet: always,
		Copy:  func(d, s *TrackedEmail) { d.CreatedReminder = s.CreatedReminder },
	},
	{Name: "last_updated", Class: Refresh, IsSet: always, Copy: func(d, s *TrackedEmail) { d.LastUpdated = s.LastUpdated }},
	{
		Name:  "calendar_event_id",
		Class: Sticky,
		IsSet: func(e *TrackedEmail) bool { return e.CalendarEventID != "" },
		Copy:  func(d, s *TrackedEmail) { d.CalendarEventID = s.CalendarEventID },
	},
	{
		Name:  "follow_up_count",
		Class: Sticky,
		IsSet: always,
		Copy:  func(d, s *TrackedEmail) { d.FollowUpCount = s.FollowUpCount },
	},
	{
		Name:  "final_outcome",
		Class: Sticky,
		IsSet: func(e *TrackedEmail) bool { return e.FinalOutcome != nil },
		Copy: func(d, s *TrackedEmail) {
			v := *s.FinalOutcome
			d.FinalOutcome = &v
		},
	},
}

// Columns returns the persisted column names in order.
func Columns() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// Merge left-joins newRows with existing on id. Sticky fields keep the existing
// value whenever it is set; everything else takes the new value. Rows only
// present in existing are not part of the result. Duplicate ids in newRows
// keep their first occurrence.
func Merge(newRows []TrackedEmail, existing *Snapshot) []TrackedEmail {
	idx := existing.index()
	seen := make(map[string]struct{}, len(newRows))
	merged := make([]TrackedEmail, 0, len(newRows))

	for _, row := range newRows {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}

		out := row
		if prev, ok := idx[row.ID]; ok {
			for _, f := range Fields {
				if f.Class == Sticky && f.IsSet(prev) {
					f.Copy(&out, prev)
				}
			}
		}
		merged = append(merged, out)
	}

	return merged
}

// Upsert merges newRows into existing and carries over every existing row the
// fetch did not return, so the pipeline never drops a tracked email.
func Upsert(newRows []TrackedEmail, existing *Snapshot) *Snapshot {
	merged := Merge(newRows, existing)

	fetched := make(map[string]struct{}, len(merged))
	for _, row := range merged {
		fetched[row.ID] = struct{}{}
	}

	if existing != nil {
		for _, row := range existing.Emails {
			if _, ok := fetched[row.ID]; ok {
				continue
			}
			fetched[row.ID] = struct{}{}
			merged = append(merged, row)
		}
	}

	return NewSnapshot(merged)
}
