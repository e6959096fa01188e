package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	line_domain "github.com/huavcjj/followup/internal/domain/line"
	"github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/service/followup"
	"github.com/huavcjj/followup/internal/service/ingest"
)

const digestLimit = 10

const helpMessage = `📮 Follow-up tracker commands

summary - tracking counters
pending - pending high-priority emails
search <text> - find tracked emails
sync - fetch sent mail now
connect - link your Google account
help - this message`

// AuthLinker issues the consent URL used by the connect command.
type AuthLinker interface {
	AuthURL() (string, string)
}

// Service pushes follow-up digests to LINE and answers chat commands.
type Service struct {
	pipeline   *ingest.Pipeline
	followups  *followup.Service
	lineRepo   line_domain.Notifier
	auth       AuthLinker
	notifyUser string
	maxResults int
}

func NewService(pipeline *ingest.Pipeline, followups *followup.Service, lineRepo line_domain.Notifier, auth AuthLinker, notifyUser string, maxResults int) *Service {
	return &Service{
		pipeline:   pipeline,
		followups:  followups,
		lineRepo:   lineRepo,
		auth:       auth,
		notifyUser: notifyUser,
		maxResults: maxResults,
	}
}

func (s *Service) Enabled() bool {
	return s.lineRepo != nil
}

// Sync runs the pipeline with the saved settings and, when a LINE user is
// configured, pushes the pending digest afterwards.
func (s *Service) Sync(ctx context.Context) (*ingest.Result, error) {
	result, err := s.pipeline.Run(ctx, s.defaultParams(ctx))
	if err != nil {
		return result, fmt.Errorf("failed to run pipeline: %w", err)
	}

	if s.Enabled() && s.notifyUser != "" {
		if err := s.PushDigest(ctx, s.notifyUser); err != nil {
			slog.Error("failed to push digest", "user_id", s.notifyUser, "error", err)
		}
	}
	return result, nil
}

// PushDigest sends the pending high-priority emails to userID.
func (s *Service) PushDigest(ctx context.Context, userID string) error {
	text, err := s.pendingText(ctx)
	if err != nil {
		return err
	}
	if err := s.lineRepo.PushText(ctx, userID, text); err != nil {
		return fmt.Errorf("failed to send LINE notification: %w", err)
	}
	slog.Info("digest sent successfully", "user_id", userID)
	return nil
}

// HandleCommand answers one chat message.
func (s *Service) HandleCommand(ctx context.Context, userID, replyToken, text string) error {
	command, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	arg = strings.TrimSpace(arg)

	var reply string
	var err error
	switch strings.ToLower(command) {
	case "summary":
		reply, err = s.summaryText(ctx)
	case "pending":
		reply, err = s.pendingText(ctx)
	case "search":
		reply, err = s.searchText(ctx, arg)
	case "sync":
		var result *ingest.Result
		if result, err = s.pipeline.Run(ctx, s.defaultParams(ctx)); err == nil {
			reply = fmt.Sprintf("🔄 Sync finished\n\nFetched: %d\nNew: %d\nTracked: %d", result.Fetched, result.New, result.Total)
		}
	case "connect":
		return s.sendAuthLink(ctx, userID)
	default:
		reply = helpMessage
	}
	if err != nil {
		slog.Error("command failed", "user_id", userID, "command", command, "error", err)
		reply = "⚠️ Something went wrong. Please try again later."
	}

	if err := s.lineRepo.ReplyText(ctx, replyToken, reply); err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

func (s *Service) defaultParams(ctx context.Context) ingest.Params {
	st := s.followups.Settings(ctx)
	return ingest.Params{
		LookbackDays:     st.DefaultLookbackDays,
		Keywords:         st.DefaultKeywords,
		ExcludeAutomated: true,
		MaxResults:       s.maxResults,
	}
}

func (s *Service) sendAuthLink(ctx context.Context, userID string) error {
	if s.auth == nil {
		return s.lineRepo.PushText(ctx, userID, "Google sign-in is not configured.")
	}
	url, _ := s.auth.AuthURL()
	if err := s.lineRepo.PushButton(ctx, userID, "Open the link in your browser to connect Gmail and Calendar.", "Connect Google", url); err != nil {
		return fmt.Errorf("failed to send auth link: %w", err)
	}
	slog.Info("auth link sent", "user_id", userID)
	return nil
}

func (s *Service) summaryText(ctx context.Context) (string, error) {
	sum, err := s.followups.Analytics(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"📊 Follow-up summary\n\nTracked: %d\nPending: %d\nReplied: %d\nClosed: %d\nResponse rate: %.1f%%\nSent this week: %d",
		sum.TotalEmails,
		sum.PendingEmails,
		sum.RepliedEmails,
		sum.ClosedEmails,
		sum.ResponseRate,
		sum.WeeklyCount,
	), nil
}

func (s *Service) pendingText(ctx context.Context) (string, error) {
	rows, err := s.followups.List(ctx, followup.Filter{
		Statuses:   []tracking.Status{tracking.StatusPending},
		Priorities: []tracking.Priority{tracking.PriorityHigh},
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "📭 No high-priority emails are waiting for a reply", nil
	}
	return formatRows(fmt.Sprintf("⏳ Waiting for a reply (%d)", len(rows)), rows), nil
}

func (s *Service) searchText(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "Usage: search <text>", nil
	}
	rows, err := s.followups.List(ctx, followup.Filter{Query: query})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("🔍 Nothing matches %q", query), nil
	}
	return formatRows(fmt.Sprintf("🔍 %d match(es) for %q", len(rows), query), rows), nil
}

func formatRows(title string, rows []tracking.TrackedEmail) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for i, row := range rows {
		if i == digestLimit {
			fmt.Fprintf(&b, "…and %d more", len(rows)-digestLimit)
			break
		}
		fmt.Fprintf(&b, "%d. %s\nTo: %s\n%s · %d days ago\n\n",
			i+1,
			row.Subject,
			row.To,
			row.Status,
			row.DaysSinceSent,
		)
	}
	return strings.TrimSpace(b.String())
}
