package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huavcjj/followup/internal/domain/tracking"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func TestComputeEmptySnapshot(t *testing.T) {
	for _, snapshot := range []*tracking.Snapshot{nil, tracking.NewSnapshot(nil)} {
		s := Compute(snapshot, now)

		assert.Zero(t, s.TotalEmails)
		assert.Zero(t, s.ResponseRate)
		assert.Zero(t, s.FollowUpRate)
		assert.Zero(t, s.AvgResponseTime)
		assert.Zero(t, s.WeeklyCount)
		assert.Empty(t, s.PriorityDistribution)
		assert.Equal(t, now, s.GeneratedAt)
	}
}

func TestComputeCounters(t *testing.T) {
	snapshot := tracking.NewSnapshot([]tracking.TrackedEmail{
		{ID: "1", Status: tracking.StatusPending, Priority: tracking.PriorityHigh, DateSent: now.AddDate(0, 0, -1), DaysSinceSent: 1},
		{ID: "2", Status: tracking.StatusClosed, Priority: tracking.PriorityLow, HasReply: true, DateSent: now.AddDate(0, 0, -10), DaysSinceSent: 10},
		{ID: "3", Status: tracking.StatusClosed, Priority: tracking.PriorityLow, HasReply: true, DateSent: now.AddDate(0, 0, -5), DaysSinceSent: 5},
	})

	s := Compute(snapshot, now)

	assert.Equal(t, 3, s.TotalEmails)
	assert.Equal(t, 1, s.PendingEmails)
	assert.Equal(t, 2, s.RepliedEmails)
	assert.Equal(t, 2, s.ClosedEmails)
	assert.Equal(t, 66.7, s.ResponseRate)
	assert.Equal(t, 33.3, s.FollowUpRate)
	assert.Equal(t, 7.5, s.AvgResponseTime)
	assert.Equal(t, 2, s.WeeklyCount)
	assert.Equal(t, map[tracking.Priority]int{tracking.PriorityHigh: 1, tracking.PriorityLow: 2}, s.PriorityDistribution)
	assert.Equal(t, map[tracking.Status]int{tracking.StatusPending: 1, tracking.StatusClosed: 2}, s.StatusDistribution)
}

func TestByStatusOrdersCanonically(t *testing.T) {
	snapshot := tracking.NewSnapshot([]tracking.TrackedEmail{
		{ID: "1", Status: tracking.StatusClosed, Priority: tracking.PriorityLow, DaysSinceSent: 4},
		{ID: "2", Status: tracking.StatusPending, Priority: tracking.PriorityHigh, DaysSinceSent: 1},
		{ID: "3", Status: tracking.StatusClosed, Priority: tracking.PriorityMedium, DaysSinceSent: 1},
	})

	rows := ByStatus(snapshot)

	require.Len(t, rows, 2)
	assert.Equal(t, tracking.StatusPending, rows[0].Status)
	assert.Equal(t, tracking.StatusClosed, rows[1].Status)
	assert.Equal(t, 2, rows[1].Count)
	assert.Equal(t, 2.5, rows[1].AvgDaysSinceSent)
	assert.Equal(t, map[tracking.Priority]int{tracking.PriorityLow: 1, tracking.PriorityMedium: 1}, rows[1].PriorityDistribution)
	assert.Nil(t, ByStatus(nil))
}
