package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	"github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/metrics"
)

const bodyPreviewLength = 200

var ErrInvalidParams = errors.New("invalid search parameters")

type Params struct {
	LookbackDays     int
	Keywords         string
	ExcludeAutomated bool
	MaxResults       int
	LabelIDs         []string
}

type Result struct {
	Query   string `json:"query"`
	Fetched int    `json:"fetched"`
	Skipped int    `json:"skipped"`
	New     int    `json:"new"`
	Total   int    `json:"total"`
	Saved   bool   `json:"saved"`
	// Emails are the fetched rows after merging, newest first.
	Emails   []tracking.TrackedEmail `json:"emails"`
	Duration time.Duration           `json:"duration"`
}

// Pipeline runs one ingestion pass: search, fetch, reply detection, scoring
// and the merge into the tracking store.
type Pipeline struct {
	fetcher *Fetcher
	replies *ReplyDetector
	guard   *tracking.Guard
	now     func() time.Time
}

func NewPipeline(fetcher *Fetcher, replies *ReplyDetector, guard *tracking.Guard, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		fetcher: fetcher,
		replies: replies,
		guard:   guard,
		now:     now,
	}
}

func (p *Pipeline) Labels(ctx context.Context) []gmail_domain.Label {
	return p.fetcher.Labels(ctx)
}

// Run fetches sent mail for the window and upserts it into the store. Messages
// that cannot be fetched are skipped. A save failure is returned alongside
// the result with Saved left false. Once started a run is not cancellable, so
// rows already fetched are always saved.
func (p *Pipeline) Run(ctx context.Context, params Params) (result *Result, err error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		metrics.RecordPipelineRun(status, time.Since(start))
	}()

	if params.LookbackDays < 0 {
		return nil, fmt.Errorf("%w: lookback days must not be negative: %d", ErrInvalidParams, params.LookbackDays)
	}

	now := p.now()
	query := BuildQuery(QueryParams{
		Start:            now.AddDate(0, 0, -params.LookbackDays),
		End:              now,
		Keywords:         params.Keywords,
		ExcludeAutomated: params.ExcludeAutomated,
	})
	result = &Result{Query: query, Emails: []tracking.TrackedEmail{}}

	refs := p.fetcher.Fetch(ctx, query, params.LabelIDs, params.MaxResults)
	result.Fetched = len(refs)

	rows := make([]tracking.TrackedEmail, 0, len(refs))
	for _, ref := range refs {
		msg, err := p.fetcher.Message(ctx, ref.ID)
		if err != nil {
			slog.Warn("skipping message", "message_id", ref.ID, "error", err)
			result.Skipped++
			continue
		}

		hasReply, replyCount := p.replies.Detect(ctx, msg.ThreadID, msg.ID)
		rows = append(rows, BuildRecord(msg, hasReply, replyCount, params.Keywords, now))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].DateSent.After(rows[j].DateSent)
	})

	if len(rows) == 0 {
		slog.Info("no messages matched", "query", query)
		result.Duration = time.Since(start)
		return result, nil
	}

	err = p.guard.Update(ctx, func(s *tracking.Snapshot) error {
		existing := make(map[string]struct{}, s.Len())
		for _, e := range s.Emails {
			existing[e.ID] = struct{}{}
		}
		for _, row := range rows {
			if _, ok := existing[row.ID]; !ok {
				existing[row.ID] = struct{}{}
				result.New++
			}
		}

		result.Emails = tracking.Merge(rows, s)
		s.Emails = tracking.Upsert(rows, s).Emails
		result.Total = s.Len()
		return nil
	})
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("failed to save tracking data: %w", err)
	}
	result.Saved = true

	slog.Info("ingestion finished",
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"new", result.New,
		"total", result.Total,
		"duration", result.Duration,
	)
	return result, nil
}

// BuildRecord turns a normalized message into a tracked row as of now.
func BuildRecord(msg *gmail_domain.Message, hasReply bool, replyCount int, keywords string, now time.Time) tracking.TrackedEmail {
	sentAt := msg.SentAt()
	days := max(0, int(now.Sub(sentAt).Hours()/24))

	status := tracking.StatusPending
	if hasReply {
		status = tracking.StatusClosed
	}

	return tracking.TrackedEmail{
		ID:            msg.ID,
		ThreadID:      msg.ThreadID,
		Subject:       msg.Subject,
		To:            msg.To,
		ToEmails:      strings.Join(msg.Recipients, ", "),
		DateSent:      sentAt,
		Snippet:       msg.Snippet,
		HasReply:      hasReply,
		ReplyCount:    replyCount,
		Status:        status,
		Priority:      Prioritize(msg.Subject, msg.Body, keywords, days),
		DaysSinceSent: days,
		BodyPreview:   preview(msg.Body),
		Labels:        strings.Join(msg.LabelIDs, ", "),
	}
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= bodyPreviewLength {
		return body
	}
	return string([]rune(body)[:bodyPreviewLength]) + "..."
}
