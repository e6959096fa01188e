package tracking

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/huavcjj/followup/internal/domain/analytics"
	tracking_domain "github.com/huavcjj/followup/internal/domain/tracking"
)

const (
	analyticsSheet = "Analytics"
	summarySheet   = "Status Summary"
)

type reportExporter struct {
	dir string
	now func() time.Time
}

var _ tracking_domain.Exporter = (*reportExporter)(nil)

func NewExporter(dir string, now func() time.Time) tracking_domain.Exporter {
	if now == nil {
		now = time.Now
	}
	return &reportExporter{dir: dir, now: now}
}

// Export writes the tracking rows, the analytics summary and a per-status
// breakdown into a new workbook under the exports directory.
func (e *reportExporter) Export(ctx context.Context, snapshot *tracking_domain.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create exports directory: %w", err)
	}

	now := e.now()
	f, err := newWorkbook(snapshotEmails(snapshot))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if snapshot.Len() > 0 {
		if err := writeAnalyticsSheet(f, analytics.Compute(snapshot, now)); err != nil {
			return "", err
		}
		if err := writeSummarySheet(f, analytics.ByStatus(snapshot)); err != nil {
			return "", err
		}
	}

	path := filepath.Join(e.dir, fmt.Sprintf("email_followup_export_%s.xlsx", now.Format("20060102_150405")))
	if err := writeAtomic(path, func(w io.Writer) error { return f.Write(w) }); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

func snapshotEmails(snapshot *tracking_domain.Snapshot) []tracking_domain.TrackedEmail {
	if snapshot == nil {
		return nil
	}
	return snapshot.Emails
}

func writeAnalyticsSheet(f *excelize.File, s analytics.Summary) error {
	if _, err := f.NewSheet(analyticsSheet); err != nil {
		return fmt.Errorf("failed to add analytics sheet: %w", err)
	}

	rows := [][]any{
		{"metric", "value"},
		{"total_emails", s.TotalEmails},
		{"pending_emails", s.PendingEmails},
		{"replied_emails", s.RepliedEmails},
		{"closed_emails", s.ClosedEmails},
		{"response_rate", s.ResponseRate},
		{"follow_up_rate", s.FollowUpRate},
		{"weekly_count", s.WeeklyCount},
		{"avg_response_time", s.AvgResponseTime},
	}
	for _, p := range tracking_domain.Priorities {
		rows = append(rows, []any{"priority_" + string(p), s.PriorityDistribution[p]})
	}
	rows = append(rows, []any{"generated_at", s.GeneratedAt.Format("2006-01-02 15:04")})

	return writeTable(f, analyticsSheet, rows)
}

func writeSummarySheet(f *excelize.File, groups []analytics.StatusRow) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	rows := [][]any{{"status", "count", "high", "medium", "low", "avg_days_since_sent"}}
	for _, g := range groups {
		rows = append(rows, []any{
			string(g.Status),
			g.Count,
			g.PriorityDistribution[tracking_domain.PriorityHigh],
			g.PriorityDistribution[tracking_domain.PriorityMedium],
			g.PriorityDistribution[tracking_domain.PriorityLow],
			g.AvgDaysSinceSent,
		})
	}
	return writeTable(f, summarySheet, rows)
}

func writeTable(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
