package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huavcjj/followup/internal/config"
	"github.com/huavcjj/followup/internal/di"
	"github.com/huavcjj/followup/internal/handler/api"
	"github.com/huavcjj/followup/internal/handler/oauth"
	"github.com/huavcjj/followup/internal/handler/webhook"
	"github.com/huavcjj/followup/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer container.Close()

	mux := http.NewServeMux()

	api.NewHandler(
		container.Pipeline,
		container.FollowupService,
		container.ReminderService,
		cfg.MaxResults,
	).Register(mux)

	if container.Auth != nil {
		googleOAuthHandler := oauth.NewGoogleOAuthHandler(container.Auth, container.GmailRepo, container.CalendarRepo, cfg.PubSubTopic)
		mux.HandleFunc("GET /oauth/google/start", googleOAuthHandler.HandleStart)
		mux.HandleFunc("GET /oauth/google/callback", googleOAuthHandler.HandleCallback)
		mux.HandleFunc("POST /oauth/google/revoke", googleOAuthHandler.HandleRevoke)
		mux.HandleFunc("GET /oauth/google/status", googleOAuthHandler.HandleStatus)
	}

	if container.NotificationService.Enabled() {
		lineWebhookHandler := webhook.NewLineWebhookHandler(container.NotificationService, cfg.Line.ChannelSecret)
		mux.HandleFunc("POST /webhook/line", lineWebhookHandler.HandleWebhook)
	} else {
		slog.Info("LINE channel token not set, chat webhook disabled")
	}

	pubsubWebhookHandler := webhook.NewPubSubWebhookHandler(container.NotificationService)
	mux.HandleFunc("POST /webhook/pubsub", pubsubWebhookHandler.HandlePubSub)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "address", server.Addr, "data_dir", cfg.DataDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("shutdown completed")
	return nil
}
