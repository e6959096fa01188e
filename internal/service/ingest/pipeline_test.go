package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/domain/tracking"
)

var pipelineNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newTestPipeline(mail *fakeMail, store *memStore) *Pipeline {
	return NewPipeline(
		NewFetcher(mail, testPolicy),
		NewReplyDetector(mail, testPolicy),
		tracking.NewGuard(store),
		func() time.Time { return pipelineNow },
	)
}

func seededMail() *fakeMail {
	mail := newFakeMail()
	m1Sent := pipelineNow.AddDate(0, 0, -2)
	m2Sent := pipelineNow.AddDate(0, 0, -9)
	mail.addMessage("m1", "t1", "Interview follow up", "Jane <jane@example.com>", m1Sent, "Following up on the interview")
	mail.addMessage("m2", "t2", "Proposal", "bob@example.org", m2Sent, "Attached")
	mail.threads["t2"] = append(mail.threads["t2"], gmail_domain.ThreadMessage{ID: "r1", InternalDate: m2Sent.Add(time.Hour)})

	mail.pages[""] = &gmail_domain.SearchPage{Refs: []gmail_domain.MessageRef{
		{ID: "m2", ThreadID: "t2"},
		{ID: "m1", ThreadID: "t1"},
		{ID: "m3", ThreadID: "t3"},
	}}
	return mail
}

func TestPipelineRun(t *testing.T) {
	store := &memStore{
		now: pipelineNow,
		emails: []tracking.TrackedEmail{
			{ID: "m2", Subject: "Proposal", Status: tracking.StatusFollowingUp, Notes: "called", FollowUpCount: 1, Priority: tracking.PriorityLow},
			{ID: "old", Subject: "Outside window", Status: tracking.StatusPending},
		},
	}

	result, err := newTestPipeline(seededMail(), store).Run(context.Background(), Params{
		LookbackDays: 30,
		Keywords:     "interview",
		MaxResults:   100,
	})
	require.NoError(t, err)

	assert.Equal(t, `in:sent after:2026/09/16 before:2026/10/17 ("interview")`, result.Query)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.New)
	assert.Equal(t, 3, result.Total)
	assert.True(t, result.Saved)

	require.Len(t, result.Emails, 2)
	m1, m2 := result.Emails[0], result.Emails[1]

	assert.Equal(t, "m1", m1.ID)
	assert.Equal(t, tracking.StatusPending, m1.Status)
	assert.Equal(t, tracking.PriorityHigh, m1.Priority)
	assert.Equal(t, 2, m1.DaysSinceSent)
	assert.Equal(t, "jane@example.com", m1.ToEmails)
	assert.Equal(t, "SENT", m1.Labels)
	assert.Equal(t, "Following up on the interview", m1.BodyPreview)
	assert.False(t, m1.HasReply)

	assert.Equal(t, "m2", m2.ID)
	assert.True(t, m2.HasReply)
	assert.Equal(t, 1, m2.ReplyCount)
	assert.Equal(t, tracking.StatusFollowingUp, m2.Status, "user status survives a refresh")
	assert.Equal(t, "called", m2.Notes)
	assert.Equal(t, 1, m2.FollowUpCount)
	assert.Equal(t, tracking.PriorityHigh, m2.Priority)
	assert.Equal(t, 9, m2.DaysSinceSent)

	require.Len(t, store.emails, 3)
	assert.Equal(t, []string{"m1", "m2", "old"}, []string{store.emails[0].ID, store.emails[1].ID, store.emails[2].ID})
	assert.Equal(t, 1, store.saves)
}

func TestPipelineRunIsIdempotent(t *testing.T) {
	store := &memStore{now: pipelineNow}
	p := newTestPipeline(seededMail(), store)

	first, err := p.Run(context.Background(), Params{LookbackDays: 30, MaxResults: 100})
	require.NoError(t, err)
	second, err := p.Run(context.Background(), Params{LookbackDays: 30, MaxResults: 100})
	require.NoError(t, err)

	assert.Equal(t, 2, first.New)
	assert.Zero(t, second.New)
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, tracking.StatusClosed, second.Emails[1].Status)
}

func TestPipelineRunNothingMatched(t *testing.T) {
	store := &memStore{now: pipelineNow}

	result, err := newTestPipeline(newFakeMail(), store).Run(context.Background(), Params{LookbackDays: 7, MaxResults: 10})
	require.NoError(t, err)

	assert.Zero(t, result.Fetched)
	assert.False(t, result.Saved)
	assert.Empty(t, result.Emails)
	assert.Zero(t, store.saves)
}

func TestPipelineRunSaveFailure(t *testing.T) {
	store := &memStore{now: pipelineNow, saveErr: errors.New("disk full")}

	result, err := newTestPipeline(seededMail(), store).Run(context.Background(), Params{LookbackDays: 30, MaxResults: 100})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Saved)
	assert.ErrorContains(t, err, "disk full")
}

func TestPipelineRunRejectsNegativeLookback(t *testing.T) {
	_, err := newTestPipeline(newFakeMail(), &memStore{}).Run(context.Background(), Params{LookbackDays: -1})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestBuildRecordPreview(t *testing.T) {
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'é'
	}
	msg := &gmail_domain.Message{ID: "m", Subject: "x", Body: string(long), InternalDate: pipelineNow.Add(time.Hour)}

	row := BuildRecord(msg, false, 0, "", pipelineNow)

	assert.Equal(t, string(long[:200])+"...", row.BodyPreview)
	assert.Zero(t, row.DaysSinceSent, "future timestamps clamp to zero")
}

// cancellingMail cancels the caller's context after the first message fetch.
type cancellingMail struct {
	*fakeMail
	cancel context.CancelFunc
}

func (m *cancellingMail) GetMessage(ctx context.Context, messageID string) (*gmailapi.Message, error) {
	defer m.cancel()
	return m.fakeMail.GetMessage(ctx, messageID)
}

func TestPipelineRunCompletesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mail := &cancellingMail{fakeMail: seededMail(), cancel: cancel}
	store := &memStore{now: pipelineNow}
	p := NewPipeline(
		NewFetcher(mail, testPolicy),
		NewReplyDetector(mail, testPolicy),
		tracking.NewGuard(store),
		func() time.Time { return pipelineNow },
	)

	result, err := p.Run(ctx, Params{LookbackDays: 30, MaxResults: 100})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 1, result.Skipped)
	assert.True(t, result.Saved)
	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.emails, 2)
}
