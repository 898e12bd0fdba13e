package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/store"
	"github.com/soyeahso/supportline/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show supportline status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Supportline %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Database:  %s\n", paths.Database)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}
			printConfigSummary(out, cfg)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			if _, err := os.Stat(paths.Database); err != nil {
				return nil
			}
			db, err := store.Open(paths.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()
			return printJournal(cmd.Context(), out, store.NewJournal(db), recent)
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 5, "number of recent failovers to list")
	return cmd
}

func printConfigSummary(out io.Writer, cfg config.Config) {
	bridge := cfg.Bridge.URL
	if bridge == "" {
		bridge = "(not configured)"
	}
	fmt.Fprintf(out, "Bridge:    %s transports=%s timeout=%s\n",
		bridge, strings.Join(cfg.Bridge.Transports, ","), cfg.Bridge.ConnectTimeout())
	fmt.Fprintf(out, "Failover:  maxAttempts=%d backoff=%dms..%dms x%.1f\n",
		cfg.Failover.MaxAttempts, cfg.Failover.Backoff.InitialMs, cfg.Failover.Backoff.MaxMs, cfg.Failover.Backoff.Multiplier)
	if cfg.Secondary.ControlURL != "" {
		fmt.Fprintf(out, "Widget:    %s tag=%s\n", cfg.Secondary.ControlURL, cfg.Secondary.InquiryTag)
	} else {
		fmt.Fprintln(out, "Widget:    (not configured, deep link only)")
	}
	fmt.Fprintf(out, "Deep link: %s/%s\n", cfg.DeepLink.BaseURL, cfg.DeepLink.Phone)
	fmt.Fprintf(out, "Pages:     %s latch=%s\n", strings.Join(cfg.Visibility.AllowedPaths, " "), cfg.Visibility.LatchScope)
	if cfg.Profile.BaseURL != "" {
		fmt.Fprintf(out, "Profile:   %s\n", cfg.Profile.BaseURL)
	}
}

func printJournal(ctx context.Context, out io.Writer, j *store.Journal, limit int) error {
	fmt.Fprintln(out)
	for _, ev := range []string{hooks.EventChatStarted, hooks.EventFallbackTriggered, hooks.EventDeepLinkOpened, hooks.EventWidgetDismissed} {
		n, err := j.Count(ctx, ev)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-20s %d\n", ev, n)
	}

	records, err := j.Recent(ctx, hooks.EventFallbackTriggered, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nRecent failovers:")
	for _, r := range records {
		fmt.Fprintf(out, "  %s channel=%v\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Data["channel"])
	}
	return nil
}
