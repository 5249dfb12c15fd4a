package cli

import (
	"context"

	"evmxfer/pkg/tui"

	"github.com/spf13/cobra"
)

func (a *app) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}

func (a *app) runTUI(ctx context.Context) error {
	cfg, _, err := a.loadConfig()
	if err != nil {
		return err
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logs := tui.NewLogBuffer()
	logger := tui.NewLogger(logs, level)

	ctrl, p, err := newController(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()
	return tui.Start(ctrl, cfg.GlobalConfig, logs, a.version)
}
