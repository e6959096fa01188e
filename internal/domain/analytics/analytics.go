package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/huavcjj/followup/internal/domain/tracking"
)

type Summary struct {
	TotalEmails          int                       `json:"total_emails"`
	PendingEmails        int                       `json:"pending_emails"`
	RepliedEmails        int                       `json:"replied_emails"`
	ClosedEmails         int                       `json:"closed_emails"`
	ResponseRate         float64                   `json:"response_rate"`
	FollowUpRate         float64                   `json:"follow_up_rate"`
	WeeklyCount          int                       `json:"weekly_count"`
	AvgResponseTime      float64                   `json:"avg_response_time"`
	PriorityDistribution map[tracking.Priority]int `json:"priority_distribution"`
	StatusDistribution   map[tracking.Status]int   `json:"status_distribution"`
	GeneratedAt          time.Time                 `json:"generated_at"`
}

// StatusRow aggregates the rows sharing one status.
type StatusRow struct {
	Status               tracking.Status           `json:"status"`
	Count                int                       `json:"count"`
	PriorityDistribution map[tracking.Priority]int `json:"priority_distribution"`
	AvgDaysSinceSent     float64                   `json:"avg_days_since_sent"`
}

// Compute derives the dashboard counters from a snapshot. It never fails;
// an empty snapshot yields zero counters and empty histograms.
func Compute(snapshot *tracking.Snapshot, now time.Time) Summary {
	s := Summary{
		PriorityDistribution: map[tracking.Priority]int{},
		StatusDistribution:   map[tracking.Status]int{},
		GeneratedAt:          now,
	}
	if snapshot.Len() == 0 {
		return s
	}
	rows := snapshot.Emails

	s.TotalEmails = len(rows)
	s.PendingEmails = lo.CountBy(rows, func(e tracking.TrackedEmail) bool { return e.Status == tracking.StatusPending })
	s.ClosedEmails = lo.CountBy(rows, func(e tracking.TrackedEmail) bool { return e.Status == tracking.StatusClosed })

	replied := lo.Filter(rows, func(e tracking.TrackedEmail, _ int) bool { return e.HasReply })
	s.RepliedEmails = len(replied)

	s.ResponseRate = percent(s.RepliedEmails, s.TotalEmails)
	s.FollowUpRate = percent(s.PendingEmails, s.TotalEmails)

	if len(replied) > 0 {
		days := lo.SumBy(replied, func(e tracking.TrackedEmail) int { return e.DaysSinceSent })
		s.AvgResponseTime = round1(float64(days) / float64(len(replied)))
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	s.WeeklyCount = lo.CountBy(rows, func(e tracking.TrackedEmail) bool {
		return !e.DateSent.IsZero() && !e.DateSent.Before(weekAgo)
	})

	for _, e := range rows {
		if e.Priority != "" {
			s.PriorityDistribution[e.Priority]++
		}
		if e.Status != "" {
			s.StatusDistribution[e.Status]++
		}
	}

	return s
}

// ByStatus groups rows per status, ordered by the canonical status order with
// unknown statuses last.
func ByStatus(snapshot *tracking.Snapshot) []StatusRow {
	if snapshot.Len() == 0 {
		return nil
	}

	groups := lo.GroupBy(snapshot.Emails, func(e tracking.TrackedEmail) tracking.Status { return e.Status })
	out := make([]StatusRow, 0, len(groups))
	for status, rows := range groups {
		row := StatusRow{
			Status:               status,
			Count:                len(rows),
			PriorityDistribution: lo.CountValuesBy(rows, func(e tracking.TrackedEmail) tracking.Priority { return e.Priority }),
		}
		days := lo.SumBy(rows, func(e tracking.TrackedEmail) int { return e.DaysSinceSent })
		row.AvgDaysSinceSent = round1(float64(days) / float64(len(rows)))
		out = append(out, row)
	}

	order := func(s tracking.Status) int {
		if i := lo.IndexOf(tracking.Statuses, s); i >= 0 {
			return i
		}
		return len(tracking.Statuses)
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := order(out[i].Status), order(out[j].Status)
		if oi != oj {
			return oi < oj
		}
		return out[i].Status < out[j].Status
	})

	return out
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
