package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"evmxfer/pkg/config"
	"evmxfer/pkg/rpc"
	"evmxfer/pkg/wallet"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every command needs. Flags and EVMXFER_* environment
// variables are resolved through v.
type app struct {
	v       *viper.Viper
	version string
	stdout  io.Writer
	stderr  io.Writer
}

// Execute runs the root command.
func Execute(version string) error {
	return NewRootCmd(version, os.Stdout, os.Stderr).Execute()
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(version string, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), version: version, stdout: stdout, stderr: stderr}
	a.v.SetEnvPrefix("EVMXFER")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "evmxfer",
		Short:         "Connect an EVM wallet, inspect balances and send ERC-20 tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "path to configuration file (default ~/"+config.ConfigFileName+")")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("wallet-url", "", "JSON-RPC endpoint of the wallet")
	_ = a.v.BindPFlag("config", pf.Lookup("config"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("wallet_url", pf.Lookup("wallet-url"))

	root.AddCommand(
		a.tuiCmd(),
		a.serveCmd(),
		a.sendCmd(),
		a.balanceCmd(),
		a.checkCmd(),
		a.initCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) configPath() (string, error) {
	return config.GetConfigPath(a.v.GetString("config"))
}

// loadConfig reads the config file and applies flag and environment overrides.
func (a *app) loadConfig() (config.Config, string, error) {
	path, err := a.configPath()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determining config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("loading config from %s: %w", path, err)
	}
	if url := a.v.GetString("wallet_url"); url != "" {
		cfg.WalletURL = url
	}
	if level := a.v.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, path, nil
}

func parseLevel(s string) (log.Level, error) {
	if s == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// newLogger returns the stderr logger used by the non-interactive commands.
func (a *app) newLogger(level string) (*log.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(a.stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "evmxfer",
		Level:           lvl,
	}), nil
}

// newController dials the wallet and wires a controller around it. The caller
// closes the returned provider.
func newController(ctx context.Context, cfg config.Config, logger *log.Logger) (*wallet.Controller, *rpc.WalletProvider, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	p, err := rpc.Dial(ctx, cfg.WalletURL, cfg.ReceiptPoll(), logger.WithPrefix("rpc"))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing wallet at %s: %w", cfg.WalletURL, err)
	}
	ctrl := wallet.NewController(p, config.RegistryFromConfig(cfg), wallet.OptionsFromConfig(cfg.GlobalConfig, logger))
	return ctrl, p, nil
}
