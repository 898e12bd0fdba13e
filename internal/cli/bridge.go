package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soyeahso/supportline/internal/bridge"
	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/metrics"
	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"
)

func newBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the development messaging bridge",
	}

	cmd.AddCommand(newBridgeServeCmd())
	return cmd
}

func newBridgeServeCmd() *cobra.Command {
	var (
		port  int
		bind  string
		agent string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket and polling endpoints the connector dials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if agent != "" {
				cfg.Server.AgentName = agent
			}

			if watch {
				// Re-execs the process when its binary is rebuilt.
				go autorestart.RestartOnChange()
			}

			hm := hooks.NewManager(log)
			hm.On(hooks.EventBridgeStart, "log", func(_ context.Context, p hooks.Payload) error {
				log.Info().Interface("addr", p.Data["addr"]).Msg("connect the widget with bridge.url=ws://<addr>")
				return nil
			})

			srv := bridge.New(cfg.Server, log,
				bridge.WithHooks(hm),
				bridge.WithMetrics(metrics.New()),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback, lan or custom")
	cmd.Flags().StringVar(&agent, "agent", "", "agent name used in replies")
	cmd.Flags().BoolVar(&watch, "watch", false, "restart when the binary changes")
	return cmd
}
