package cli

import (
	"os"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supportline",
		Short: "Supportline, support chat with live-chat failover",
		Long: "Supportline runs the rental site's support widget: a primary messaging bridge " +
			"with automatic failover to a third-party live-chat widget or a messaging app deep link.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			log = newLogger(logLevel)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.supportline/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newBridgeCmd())
	cmd.AddCommand(newVisibilityCmd())

	return cmd
}

// newLogger honours the flag first, then the config file's logging section.
func newLogger(flagLevel string) *logging.Logger {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		cfg = config.Defaults()
	}
	level := flagLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	if level == "" {
		level = "info"
	}
	return logging.New(logging.ConsoleWriter(os.Stderr, cfg.Logging.ConsoleStyle), level)
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
