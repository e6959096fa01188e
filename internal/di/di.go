package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huavcjj/followup/internal/config"
	calendar_domain "github.com/huavcjj/followup/internal/domain/calendar"
	gmail_domain "github.com/huavcjj/followup/internal/domain/gmail"
	line_domain "github.com/huavcjj/followup/internal/domain/line"
	settings_domain "github.com/huavcjj/followup/internal/domain/settings"
	token_domain "github.com/huavcjj/followup/internal/domain/token"
	"github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/infrastructure/db"
	"github.com/huavcjj/followup/internal/infrastructure/google"
	calendar_repo "github.com/huavcjj/followup/internal/infrastructure/repository/calendar"
	gmail_repo "github.com/huavcjj/followup/internal/infrastructure/repository/gmail"
	line_repo "github.com/huavcjj/followup/internal/infrastructure/repository/line"
	settings_repo "github.com/huavcjj/followup/internal/infrastructure/repository/settings"
	token_repo "github.com/huavcjj/followup/internal/infrastructure/repository/token"
	tracking_repo "github.com/huavcjj/followup/internal/infrastructure/repository/tracking"
	"github.com/huavcjj/followup/internal/retry"
	"github.com/huavcjj/followup/internal/service/followup"
	"github.com/huavcjj/followup/internal/service/ingest"
	"github.com/huavcjj/followup/internal/service/notification"
	"github.com/huavcjj/followup/internal/service/reminder"
)

type Container struct {
	Config *config.Config
	DB     *sql.DB

	TokenRepo    token_domain.TokenRepo
	Auth         *google.Auth
	GmailRepo    gmail_domain.MailClient
	CalendarRepo calendar_domain.Client
	LineRepo     line_domain.Notifier
	SettingsRepo settings_domain.Repo
	TrackingRepo tracking.Store
	Guard        *tracking.Guard

	Pipeline            *ingest.Pipeline
	FollowupService     *followup.Service
	ReminderService     *reminder.Service
	NotificationService *notification.Service
}

// NewContainer wires every repository and service from cfg. Missing Google
// credentials or LINE settings disable those integrations instead of failing.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	if cfg.DBEnabled() {
		dbConn, err := db.Open(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		c.DB = dbConn
		c.TokenRepo = token_repo.NewMySQLRepo(dbConn)
		slog.Info("database connected", "host", cfg.DB.Host)
	} else {
		c.TokenRepo = token_repo.NewFileRepo(cfg.TokenPath())
	}

	var clients google.ClientProvider
	auth, err := google.NewAuth(cfg.GoogleCredentialsFile, cfg.OAuthRedirectURL, c.TokenRepo, cfg.GoogleAccount)
	switch {
	case err == nil:
		c.Auth = auth
		clients = auth
	case errors.Is(err, google.ErrCredentialsMissing):
		slog.Warn("Google integration disabled", "error", err)
		clients = google.Unavailable{Err: err}
	default:
		c.Close()
		return nil, fmt.Errorf("failed to initialize Google auth: %w", err)
	}

	c.GmailRepo = gmail_repo.NewGmailRepo(clients)
	c.CalendarRepo = calendar_repo.NewCalendarRepo(clients)

	if cfg.Line.ChannelToken != "" {
		lineRepo, err := line_repo.NewLineRepo(cfg.Line.ChannelToken)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize LINE repository: %w", err)
		}
		c.LineRepo = lineRepo
	}

	c.SettingsRepo = settings_repo.NewTOMLRepo(cfg.SettingsFile())
	c.TrackingRepo = tracking_repo.NewXLSXStore(cfg.TrackingFile(), tracking_repo.Options{MaxBackups: cfg.MaxBackups})
	c.Guard = tracking.NewGuard(c.TrackingRepo)

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts

	c.Pipeline = ingest.NewPipeline(
		ingest.NewFetcher(c.GmailRepo, policy),
		ingest.NewReplyDetector(c.GmailRepo, policy),
		c.Guard,
		time.Now,
	)
	c.FollowupService = followup.NewService(c.Guard, tracking_repo.NewExporter(cfg.ExportsDir, time.Now), c.SettingsRepo, time.Now)
	c.ReminderService = reminder.NewService(c.CalendarRepo, c.Guard, c.SettingsRepo, policy, time.Now)

	var linker notification.AuthLinker
	if c.Auth != nil {
		linker = c.Auth
	}
	c.NotificationService = notification.NewService(
		c.Pipeline,
		c.FollowupService,
		c.LineRepo,
		linker,
		cfg.Line.NotifyUser,
		cfg.MaxResults,
	)

	return c, nil
}

func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
