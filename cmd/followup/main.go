package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/huavcjj/followup/internal/config"
	"github.com/huavcjj/followup/internal/di"
	"github.com/huavcjj/followup/internal/logging"
)

type options struct {
	Verbose bool `short:"v" long:"verbose" description:"Log at debug level"`
	JSON    bool `long:"json" description:"Print results as JSON"`

	Auth      authCommand      `command:"auth" description:"Connect a Google account"`
	Revoke    revokeCommand    `command:"revoke" description:"Disconnect the Google account"`
	Search    searchCommand    `command:"search" description:"Fetch sent mail and update the tracking sheet"`
	List      listCommand      `command:"list" description:"List tracked emails"`
	Status    statusCommand    `command:"status" description:"Change the status of a tracked email"`
	Remind    remindCommand    `command:"remind" description:"Create calendar reminders"`
	Upcoming  upcomingCommand  `command:"upcoming" description:"List upcoming follow-up reminders"`
	Analytics analyticsCommand `command:"analytics" description:"Show tracking analytics"`
	Backups   backupsCommand   `command:"backups" description:"List tracking backups"`
	Restore   restoreCommand   `command:"restore" description:"Restore a tracking backup"`
	Export    exportCommand    `command:"export" description:"Write an analytics workbook"`
	Settings  settingsCommand  `command:"settings" description:"Show or change settings"`
}

// app holds what every command shares; it is filled in before a command runs.
type app struct {
	ctx       context.Context
	opts      *options
	container *di.Container
}

var cli = &app{}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := &options{}
	parser := flags.NewParser(opts, flags.Default)
	parser.ShortDescription = "Email follow-up tracker"
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		level := cfg.LogLevel
		if opts.Verbose {
			level = "debug"
		}
		logging.Setup(level, cfg.LogFormat)

		container, err := di.NewContainer(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer container.Close()

		cli.ctx = ctx
		cli.opts = opts
		cli.container = container
		return command.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
