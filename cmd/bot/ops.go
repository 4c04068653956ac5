package main

import (
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"care_reminder_bot/internal/app"
	"care_reminder_bot/internal/domain/notification"
)

func newSweepCommand() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one care sweep and print its summary",
		Long: `Run one care sweep and print its summary. Running it again for the same day
creates nothing new.

Example:
  care-bot sweep
  care-bot sweep --at 2025-04-10
  care-bot sweep --at 2025-04-10T09:00:00+02:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			now, err := parseAt(at, cfg.Location)
			if err != nil {
				return err
			}

			c, err := wire(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.close()

			summary, runErr := c.sweep.RunSweep(cmd.Context(), now)
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			if runErr != nil {
				return runErr
			}
			return summary.Err()
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "evaluate as of this instant (RFC3339 or YYYY-MM-DD), default now")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mainLogger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			mainLogger.WithField("driver", db.Driver()).Info("Schema applied")
			return nil
		},
	}
}

// NotifyOptions holds flags for the notify command.
type NotifyOptions struct {
	Kind         string
	Recipient    int64
	Actor        int64
	Subject      int64
	ActorName    string
	ContentKind  string
	ContentTitle string
}

func newNotifyCommand() *cobra.Command {
	opts := &NotifyOptions{}

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Emit one event notification",
		Long: `Emit one event notification (LIKE, COMMENT or NEW_FOLLOWER) through the
sliding-window dedup. A repeat inside DEDUP_WINDOW is suppressed.

Example:
  care-bot notify --kind LIKE --recipient 3 --actor 8 --actor-name Bob --subject 41 --content-title "My fern"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := opts.event()
			if err != nil {
				return err
			}
			cfg, mainLogger, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := wire(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.close()

			n, err := c.events.Notify(cmd.Context(), ev)
			if err != nil {
				return err
			}
			if n == nil {
				mainLogger.WithField("kind", ev.Kind).Info("Event notification suppressed")
				fmt.Fprintln(cmd.OutOrStdout(), "suppressed")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "LIKE | COMMENT | NEW_FOLLOWER (required)")
	cmd.Flags().Int64Var(&opts.Recipient, "recipient", 0, "recipient owner ID (required)")
	cmd.Flags().Int64Var(&opts.Actor, "actor", 0, "acting owner ID")
	cmd.Flags().Int64Var(&opts.Subject, "subject", 0, "content ID the event refers to")
	cmd.Flags().StringVar(&opts.ActorName, "actor-name", "", "display name of the actor")
	cmd.Flags().StringVar(&opts.ContentKind, "content-kind", "post", "kind of content")
	cmd.Flags().StringVar(&opts.ContentTitle, "content-title", "", "title of the content")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}

func (o *NotifyOptions) event() (app.Event, error) {
	ev := app.Event{Kind: notification.Kind(strings.ToUpper(strings.TrimSpace(o.Kind))), RecipientID: o.Recipient}
	if o.Recipient <= 0 {
		return app.Event{}, fmt.Errorf("--recipient must be a positive owner ID")
	}
	if o.Actor > 0 {
		ev.ActorID = sql.NullInt64{Int64: o.Actor, Valid: true}
	}
	if o.Subject > 0 {
		ev.SubjectID = sql.NullInt64{Int64: o.Subject, Valid: true}
	}

	switch ev.Kind {
	case notification.KindLike, notification.KindComment:
		ev.Context = notification.SocialContext{ActorName: o.ActorName, ContentKind: o.ContentKind, ContentTitle: o.ContentTitle}
	case notification.KindNewFollower:
		ev.Context = notification.FollowContext{ActorName: o.ActorName}
	default:
		return app.Event{}, fmt.Errorf("unsupported event kind %q", o.Kind)
	}
	return ev, nil
}

// parseAt reads the --at flag. A bare date means midnight in loc; empty means now.
func parseAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(notification.DayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func printSummary(w io.Writer, s *app.SweepSummary) {
	fmt.Fprintf(w, "sweep at:     %s\n", s.At.Format(time.RFC3339))
	fmt.Fprintf(w, "evaluated:    %d\n", s.Evaluated)
	fmt.Fprintf(w, "candidates:   %d\n", s.Candidates)
	fmt.Fprintf(w, "created:      %d\n", s.Created)
	for _, c := range notification.Categories() {
		fmt.Fprintf(w, "  %-10s  %d\n", c, s.ByCategory[c])
	}
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-18s  %d\n", k, s.ByKind[notification.Kind(k)])
	}
	fmt.Fprintf(w, "deduplicated: %d\n", s.Deduplicated)
	fmt.Fprintf(w, "duplicates:   %d\n", s.Duplicates)
	fmt.Fprintf(w, "skipped:      %d\n", s.Skipped)
	fmt.Fprintf(w, "failures:     %d\n", len(s.Failures))
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  %s\n", f.Error())
	}
}
