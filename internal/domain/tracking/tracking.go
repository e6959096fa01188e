package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNotFound           = errors.New("tracked email not found")
	ErrUnreadableSnapshot = errors.New("tracking data unreadable")
	ErrBackupNotFound     = errors.New("backup not found")
)

type Status string

const (
	StatusPending          Status = "Pending"
	StatusFollowingUp      Status = "Following Up"
	StatusContactedAgain   Status = "Contacted Again"
	StatusClosed           Status = "Closed"
	StatusNoResponseNeeded Status = "No Response Needed"
)

var Statuses = []Status{
	StatusPending,
	StatusFollowingUp,
	StatusContactedAgain,
	StatusClosed,
	StatusNoResponseNeeded,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsFollowUp reports whether moving a row into s counts as another follow-up.
func (s Status) IsFollowUp() bool {
	return s == StatusFollowingUp || s == StatusContactedAgain
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank orders priorities from Low (0) to High (2).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

type TrackedEmail struct {
	ID              string     `json:"id"`
	ThreadID        string     `json:"thread_id"`
	Subject         string     `json:"subject"`
	To              string     `json:"to"`
	ToEmails        string     `json:"to_emails"`
	DateSent        time.Time  `json:"date_sent"`
	Snippet         string     `json:"snippet"`
	HasReply        bool       `json:"has_reply"`
	ReplyCount      int        `json:"reply_count"`
	Status          Status     `json:"status"`
	Priority        Priority   `json:"priority"`
	DaysSinceSent   int        `json:"days_since_sent"`
	BodyPreview     string     `json:"body_preview"`
	Labels          string     `json:"labels"`
	Notes           string     `json:"notes"`
	FollowUpDate    *time.Time `json:"follow_up_date,omitempty"`
	CreatedReminder bool       `json:"created_reminder"`
	CalendarEventID string     `json:"calendar_event_id,omitempty"`
	FollowUpCount   int        `json:"follow_up_count"`
	FinalOutcome    *string    `json:"final_outcome,omitempty"`
	LastUpdated     time.Time  `json:"last_updated"`
}

// Snapshot is the full set of tracked rows as persisted at one point in time.
type Snapshot struct {
	Emails []TrackedEmail
}

func NewSnapshot(emails []TrackedEmail) *Snapshot {
	return &Snapshot{Emails: emails}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Emails)
}

// Find returns a pointer into the snapshot so callers can edit the row in place.
func (s *Snapshot) Find(id string) (*TrackedEmail, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Emails {
		if s.Emails[i].ID == id {
			return &s.Emails[i], true
		}
	}
	return nil, false
}

func (s *Snapshot) index() map[string]*TrackedEmail {
	idx := make(map[string]*TrackedEmail, s.Len())
	if s == nil {
		return idx
	}
	for i := range s.Emails {
		if _, dup := idx[s.Emails[i].ID]; !dup {
			idx[s.Emails[i].ID] = &s.Emails[i]
		}
	}
	return idx
}

type BackupInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Created   time.Time `json:"created"`
	AgeDays   int       `json:"age_days"`
}

// Store persists the tracked snapshot. Load always returns a usable snapshot;
// a non-nil error alongside it wraps ErrUnreadableSnapshot and is a warning.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	Restore(ctx context.Context, backupID string) error
	ListBackups(ctx context.Context) ([]BackupInfo, error)
}

// Exporter writes a shareable report of a snapshot and returns its path.
type Exporter interface {
	Export(ctx context.Context, snapshot *Snapshot) (string, error)
}

// Guard serializes read-modify-write cycles against a Store within one process.
type Guard struct {
	store Store
	mu    sync.Mutex
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

func (g *Guard) Store() Store {
	return g.store
}

// Load reads the current snapshot; see Store.Load for the warning contract.
func (g *Guard) Load(ctx context.Context) (*Snapshot, error) {
	return g.store.Load(ctx)
}

// Update loads the snapshot, applies fn and saves the result while holding
// the write lock. An unreadable snapshot is logged and replaced; the previous
// file survives as a backup.
func (g *Guard) Update(ctx context.Context, fn func(*Snapshot) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot, err := g.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnreadableSnapshot) {
			return err
		}
		slog.Warn("starting from an empty snapshot", "error", err)
	}

	if err := fn(snapshot); err != nil {
		return err
	}
	return g.store.Save(ctx, snapshot)
}

func (g *Guard) Restore(ctx context.Context, backupID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Restore(ctx, backupID)
}
