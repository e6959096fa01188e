package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/service/followup"
	"github.com/huavcjj/followup/internal/service/ingest"
)

const timeLayout = "2006-01-02 15:04"

var errGoogleDisabled = errors.New("google credentials are not configured")

type authCommand struct{}

func (c *authCommand) Execute([]string) error {
	auth := cli.container.Auth
	if auth == nil {
		return errGoogleDisabled
	}

	url, state := auth.AuthURL()
	fmt.Printf("Open this URL in your browser and paste the code below:\n\n%s\n\nCode: ", url)

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && code == "" {
		return fmt.Errorf("failed to read code: %w", err)
	}
	if err := auth.Exchange(cli.ctx, state, strings.TrimSpace(code)); err != nil {
		return err
	}
	fmt.Printf("Connected %s\n", auth.Account())
	return nil
}

type revokeCommand struct{}

func (c *revokeCommand) Execute([]string) error {
	if cli.container.Auth == nil {
		return errGoogleDisabled
	}
	if err := cli.container.Auth.Revoke(cli.ctx); err != nil {
		return err
	}
	fmt.Println("Disconnected")
	return nil
}

type searchCommand struct {
	Days       int      `short:"d" long:"days" description:"Look back this many days (default from settings)"`
	Keywords   string   `short:"k" long:"keywords" description:"Comma-separated subject keywords (default from settings)"`
	Automated  bool     `long:"include-automated" description:"Keep notifications and no-reply senders"`
	MaxResults int      `short:"n" long:"max" description:"Maximum messages to fetch"`
	Labels     []string `short:"l" long:"label" description:"Restrict to a Gmail label ID (repeatable)"`
}

func (c *searchCommand) Execute([]string) error {
	st := cli.container.FollowupService.Settings(cli.ctx)
	params := ingest.Params{
		LookbackDays:     lo.Ternary(c.Days > 0, c.Days, st.DefaultLookbackDays),
		Keywords:         lo.Ternary(c.Keywords != "", c.Keywords, st.DefaultKeywords),
		ExcludeAutomated: !c.Automated,
		MaxResults:       lo.Ternary(c.MaxResults > 0, c.MaxResults, cli.container.Config.MaxResults),
		LabelIDs:         c.Labels,
	}

	result, err := cli.container.Pipeline.Run(cli.ctx, params)
	if err != nil {
		return err
	}
	if cli.opts.JSON {
		return printJSON(result)
	}

	fmt.Printf("Query:   %s\nFetched: %d (skipped %d)\nNew:     %d\nTracked: %d\nTook:    %s\n\n",
		result.Query, result.Fetched, result.Skipped, result.New, result.Total, result.Duration.Round(time.Millisecond))
	printEmails(result.Emails)
	return nil
}

type listCommand struct {
	Statuses   []string `short:"s" long:"status" description:"Filter by status (repeatable)"`
	Priorities []string `short:"p" long:"priority" description:"Filter by priority (repeatable)"`
	Query      string   `short:"q" long:"query" description:"Match subject, recipients or notes"`
}

func (c *listCommand) Execute([]string) error {
	filter := followup.Filter{
		Statuses:   lo.Map(c.Statuses, func(s string, _ int) tracking.Status { return tracking.Status(s) }),
		Priorities: lo.Map(c.Priorities, func(p string, _ int) tracking.Priority { return tracking.Priority(p) }),
		Query:      c.Query,
	}
	rows, err := cli.container.FollowupService.List(cli.ctx, filter)
	if err != nil {
		return err
	}
	if cli.opts.JSON {
		return printJSON(rows)
	}
	printEmails(rows)
	return nil
}

type statusCommand struct {
	Notes string `long:"notes" description:"Replace the notes"`
	Args  struct {
		ID     string `positional-arg-name:"id" required:"yes"`
		Status string `positional-arg-name:"status" required:"yes"`
	} `positional-args:"yes"`
}

func (c *statusCommand) Execute([]string) error {
	var notes *string
	if c.Notes != "" {
		notes = &c.Notes
	}
	row, err := cli.container.FollowupService.UpdateStatus(cli.ctx, c.Args.ID, tracking.Status(c.Args.Status), notes)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s (follow-ups: %d)\n", row.ID, row.Status, row.FollowUpCount)
	return nil
}

type remindCommand struct {
	At      string        `long:"at" description:"First reminder time, YYYY-MM-DD HH:MM in local time"`
	Spacing time.Duration `long:"spacing" description:"Gap between bulk reminders" default:"1h"`
	Args    struct {
		IDs []string `positional-arg-name:"id" required:"1"`
	} `positional-args:"yes"`
}

func (c *remindCommand) Execute([]string) error {
	var at time.Time
	if c.At != "" {
		t, err := time.ParseInLocation(timeLayout, c.At, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
		at = t
	}

	reminders := cli.container.ReminderService
	if len(c.Args.IDs) == 1 {
		scheduled, err := reminders.Schedule(cli.ctx, c.Args.IDs[0], at)
		if err != nil {
			return err
		}
		fmt.Printf("Reminder for %q at %s\n%s\n", scheduled.Subject, scheduled.ScheduledAt.Format(timeLayout), scheduled.EventLink)
		return nil
	}

	scheduled, err := reminders.ScheduleBulk(cli.ctx, c.Args.IDs, at, c.Spacing)
	if err != nil {
		return err
	}
	if cli.opts.JSON {
		return printJSON(scheduled)
	}
	w := newTable("EMAIL", "WHEN", "SUBJECT")
	for _, s := range scheduled {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.EmailID, s.ScheduledAt.Format(timeLayout), s.Subject)
	}
	w.Flush()
	fmt.Printf("\n%d of %d reminders created\n", len(scheduled), len(c.Args.IDs))
	return nil
}

type upcomingCommand struct {
	Days int `short:"d" long:"days" description:"Window in days" default:"7"`
}

func (c *upcomingCommand) Execute([]string) error {
	events, err := cli.container.ReminderService.Upcoming(cli.ctx, c.Days)
	if err != nil {
		return err
	}
	if cli.opts.JSON {
		return printJSON(events)
	}
	w := newTable("WHEN", "SUMMARY", "ID")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Start.Local().Format(timeLayout), e.Summary, e.ID)
	}
	return w.Flush()
}

type analyticsCommand struct{}

func (c *analyticsCommand) Execute([]string) error {
	summary, err := cli.container.FollowupService.Analytics(cli.ctx)
	if err != nil {
		return err
	}
	groups, err := cli.container.FollowupService.StatusSummary(cli.ctx)
	if err != nil {
		return err
	}
	if cli.opts.JSON {
		return printJSON(map[string]any{"summary": summary, "by_status": groups})
	}

	fmt.Printf("Tracked:        %d\nPending:        %d\nReplied:        %d\nClosed:         %d\n",
		summary.TotalEmails, summary.PendingEmails, summary.RepliedEmails, summary.ClosedEmails)
	fmt.Printf("Response rate:  %.1f%%\nFollow-up rate: %.1f%%\nThis week:      %d\n\n",
		summary.ResponseRate, summary.FollowUpRate, summary.WeeklyCount)

	w := newTable("STATUS", "COUNT", "HIGH", "MEDIUM", "LOW", "AVG DAYS")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f\n",
			g.Status,
			g.Count,
			g.PriorityDistribution[tracking.PriorityHigh],
			g.PriorityDistribution[tracking.PriorityMedium],
			g.PriorityDistribution[tracking.PriorityLow],
			g.AvgDaysSinceSent,
		)
	}
	return w.Flush()
}

type backupsCommand struct{}

func (c *backupsCommand) Execute([]string) error {
	backups, err := cli.container.FollowupService.Backups(cli.ctx)
	if err != nil {
		return err
	}
	if cli.opts.JSON {
		return printJSON(backups)
	}
	w := newTable("ID", "CREATED", "SIZE", "AGE (DAYS)")
	for _, b := range backups {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", b.ID, b.Created.Local().Format(timeLayout), b.SizeBytes, b.AgeDays)
	}
	return w.Flush()
}

type restoreCommand struct {
	Args struct {
		ID string `positional-arg-name:"backup-id" required:"yes"`
	} `positional-args:"yes"`
}

func (c *restoreCommand) Execute([]string) error {
	if err := cli.container.FollowupService.Restore(cli.ctx, c.Args.ID); err != nil {
		return err
	}
	fmt.Printf("Restored %s\n", c.Args.ID)
	return nil
}

type exportCommand struct{}

func (c *exportCommand) Execute([]string) error {
	path, err := cli.container.FollowupService.Export(cli.ctx)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type settingsCommand struct {
	Keywords     *string `long:"keywords" description:"Default subject keywords"`
	LookbackDays *int    `long:"lookback-days" description:"Default search window"`
	ReminderTime *string `long:"reminder-time" description:"Reminder time of day, HH:MM"`
	ReminderDays *int    `long:"reminder-days" description:"Days until a reminder"`
	Timezone     *string `long:"timezone" description:"IANA timezone for reminders"`
	Theme        *string `long:"theme" description:"UI theme"`
}

func (c *settingsCommand) Execute([]string) error {
	svc := cli.container.FollowupService
	st := svc.Settings(cli.ctx)

	changed := false
	set := func(apply func()) {
		apply()
		changed = true
	}
	if c.Keywords != nil {
		set(func() { st.DefaultKeywords = *c.Keywords })
	}
	if c.LookbackDays != nil {
		set(func() { st.DefaultLookbackDays = *c.LookbackDays })
	}
	if c.ReminderTime != nil {
		set(func() { st.ReminderDefaultTime = *c.ReminderTime })
	}
	if c.ReminderDays != nil {
		set(func() { st.ReminderDays = *c.ReminderDays })
	}
	if c.Timezone != nil {
		set(func() { st.Timezone = *c.Timezone })
	}
	if c.Theme != nil {
		set(func() { st.Theme = *c.Theme })
	}

	if changed {
		if err := svc.SaveSettings(cli.ctx, st); err != nil {
			return err
		}
	}
	return printJSON(st)
}

func printEmails(rows []tracking.TrackedEmail) {
	w := newTable("ID", "SENT", "PRIORITY", "STATUS", "REPLIES", "SUBJECT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			r.DateSent.Local().Format(timeLayout),
			r.Priority,
			r.Status,
			r.ReplyCount,
			r.Subject,
		)
	}
	w.Flush()
}

func newTable(headers ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return w
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
