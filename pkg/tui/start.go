package tui

import (
	"context"
	"fmt"

	"evmxfer/pkg/config"
	"evmxfer/pkg/wallet"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the interactive UI until the user quits. The controller's watch
// loop runs for the lifetime of the program.
func Start(ctrl *wallet.Controller, globalCfg config.GlobalConfig, logs *LogBuffer, version string) error {
	Version = version

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl.Start(ctx)
	defer ctrl.Stop()

	m := initialModel(ctrl, globalCfg, logs)
	defer ctrl.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}
