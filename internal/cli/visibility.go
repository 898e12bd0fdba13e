package cli

import (
	"fmt"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/visibility"
	"github.com/spf13/cobra"
)

func newVisibilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visibility",
		Short: "Inspect where the support widget renders",
	}

	cmd.AddCommand(newVisibilityCheckCmd())
	return cmd
}

func newVisibilityCheckCmd() *cobra.Command {
	var (
		anonymous bool
		role      string
		dismissed bool
	)

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Report whether the widget renders on each path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			id := domain.Identity{Authenticated: !anonymous, Role: domain.ParseRole(role)}
			vis := domain.VisibilityState{PermanentlyHidden: dismissed}
			out := cmd.OutOrStdout()
			for _, path := range args {
				page := visibility.PageContext(cfg.Visibility, path)
				fmt.Fprintf(out, "%-40s %s\n", visibility.Normalize(path), shownOrHidden(visibility.ShouldRender(page, id, vis)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "check as a visitor who is not logged in")
	cmd.Flags().StringVar(&role, "role", "client", "visitor role: guest, client or admin")
	cmd.Flags().BoolVar(&dismissed, "dismissed", false, "check as a visitor who chose don't show again")
	return cmd
}
