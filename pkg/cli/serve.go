package cli

import (
	"os"
	"os/signal"
	"syscall"

	"evmxfer/pkg/server"

	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	var connect bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the headless HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, err := a.newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctrl, p, err := newController(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			ctrl.Start(ctx)
			defer ctrl.Stop()

			if connect {
				if _, err := ctrl.Connect(ctx); err != nil {
					logger.Warn("initial connect failed", "err", err)
				}
			}
			return server.NewServer(ctrl, logger.WithPrefix("api")).Start(ctx, a.v.GetInt("port"))
		},
	}
	cmd.Flags().Int("port", 8080, "port for the API server")
	cmd.Flags().BoolVar(&connect, "connect", false, "connect to the wallet on startup")
	_ = a.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

