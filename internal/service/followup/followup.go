package followup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/huavcjj/followup/internal/domain/analytics"
	settings_domain "github.com/huavcjj/followup/internal/domain/settings"
	"github.com/huavcjj/followup/internal/domain/tracking"
)

var (
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidSettings = errors.New("invalid settings")
)

// Service covers the user-facing edits and reports on the tracked snapshot.
type Service struct {
	guard    *tracking.Guard
	exporter tracking.Exporter
	settings settings_domain.Repo
	now      func() time.Time
}

func NewService(guard *tracking.Guard, exporter tracking.Exporter, settings settings_domain.Repo, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		guard:    guard,
		exporter: exporter,
		settings: settings,
		now:      now,
	}
}

type Filter struct {
	Statuses   []tracking.Status
	Priorities []tracking.Priority
	// Query matches subject, recipients or notes, case-insensitively.
	Query string
}

func (f Filter) match(e tracking.TrackedEmail) bool {
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, e.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !lo.Contains(f.Priorities, e.Priority) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		haystack := strings.ToLower(e.Subject + "\n" + e.To + "\n" + e.ToEmails + "\n" + e.Notes)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// snapshot loads the store; an unreadable file is reported and read as empty.
func (s *Service) snapshot(ctx context.Context) (*tracking.Snapshot, error) {
	snapshot, err := s.guard.Load(ctx)
	if err != nil {
		if !errors.Is(err, tracking.ErrUnreadableSnapshot) {
			return nil, err
		}
		slog.Warn("tracking data unreadable, showing an empty list", "error", err)
	}
	return snapshot, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]tracking.TrackedEmail, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(snapshot.Emails, func(e tracking.TrackedEmail, _ int) bool {
		return filter.match(e)
	}), nil
}

func (s *Service) Get(ctx context.Context, id string) (*tracking.TrackedEmail, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := snapshot.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", tracking.ErrNotFound, id)
	}
	return row, nil
}

// edit applies fn to one row under the store lock and returns the saved row.
func (s *Service) edit(ctx context.Context, id string, fn func(*tracking.TrackedEmail)) (*tracking.TrackedEmail, error) {
	var updated tracking.TrackedEmail
	err := s.guard.Update(ctx, func(snapshot *tracking.Snapshot) error {
		row, ok := snapshot.Find(id)
		if !ok {
			return fmt.Errorf("%w: %s", tracking.ErrNotFound, id)
		}
		fn(row)
		updated = *row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateStatus sets the status and, when notes is non-nil, the notes. Moving
// into Following Up or Contacted Again counts one more follow-up.
func (s *Service) UpdateStatus(ctx context.Context, id string, status tracking.Status, notes *string) (*tracking.TrackedEmail, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	row, err := s.edit(ctx, id, func(e *tracking.TrackedEmail) {
		e.Status = status
		if notes != nil {
			e.Notes = *notes
		}
		if status.IsFollowUp() {
			e.FollowUpCount++
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	slog.Info("status updated", "id", id, "status", status, "follow_up_count", row.FollowUpCount)
	return row, nil
}

func (s *Service) UpdatePriority(ctx context.Context, id string, priority tracking.Priority) (*tracking.TrackedEmail, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	row, err := s.edit(ctx, id, func(e *tracking.TrackedEmail) { e.Priority = priority })
	if err != nil {
		return nil, fmt.Errorf("failed to update priority: %w", err)
	}
	return row, nil
}

func (s *Service) UpdateNotes(ctx context.Context, id, notes string) (*tracking.TrackedEmail, error) {
	row, err := s.edit(ctx, id, func(e *tracking.TrackedEmail) { e.Notes = notes })
	if err != nil {
		return nil, fmt.Errorf("failed to update notes: %w", err)
	}
	return row, nil
}

// SetOutcome records how the conversation ended; an empty outcome clears it.
func (s *Service) SetOutcome(ctx context.Context, id, outcome string) (*tracking.TrackedEmail, error) {
	row, err := s.edit(ctx, id, func(e *tracking.TrackedEmail) {
		if outcome == "" {
			e.FinalOutcome = nil
			return
		}
		v := outcome
		e.FinalOutcome = &v
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set outcome: %w", err)
	}
	return row, nil
}

func (s *Service) Analytics(ctx context.Context) (analytics.Summary, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Compute(snapshot, s.now()), nil
}

func (s *Service) StatusSummary(ctx context.Context) ([]analytics.StatusRow, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.ByStatus(snapshot), nil
}

func (s *Service) Backups(ctx context.Context) ([]tracking.BackupInfo, error) {
	return s.guard.Store().ListBackups(ctx)
}

func (s *Service) Restore(ctx context.Context, backupID string) error {
	if err := s.guard.Restore(ctx, backupID); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// Export writes the current snapshot as a report and returns its path.
func (s *Service) Export(ctx context.Context) (string, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return "", err
	}
	path, err := s.exporter.Export(ctx, snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to export: %w", err)
	}
	slog.Info("tracking data exported", "path", path, "rows", snapshot.Len())
	return path, nil
}

// Settings returns the stored settings, or defaults with a warning logged when
// the stored document is unreadable.
func (s *Service) Settings(ctx context.Context) settings_domain.Settings {
	st, err := s.settings.Load(ctx)
	if err != nil {
		slog.Warn("using default settings", "error", err)
	}
	return st
}

func (s *Service) SaveSettings(ctx context.Context, st settings_domain.Settings) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.settings.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
