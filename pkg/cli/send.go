package cli

import (
	"context"
	"fmt"
	"time"

	"evmxfer/pkg/config"
	"evmxfer/pkg/rpc"
	"evmxfer/pkg/utils"
	"evmxfer/pkg/wallet"
	"evmxfer/pkg/walleterr"

	"github.com/spf13/cobra"
)

// session holds a connected controller for the one-shot commands.
type session struct {
	cfg      config.Config
	ctrl     *wallet.Controller
	provider *rpc.WalletProvider
}

func (s *session) Close() {
	s.ctrl.Disconnect()
	s.provider.Close()
}

// connect dials the wallet, selects token when given and connects on network (or
// the configured default). A balance that failed to load fails the command.
func (a *app) connect(ctx context.Context, network, token string) (*session, error) {
	cfg, _, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if network != "" {
		if !hasNetwork(cfg.Networks, network) {
			return nil, fmt.Errorf("unknown network %q", network)
		}
		cfg.DefaultNetwork = network
	}
	// One-shot commands do not follow wallet-side changes.
	cfg.PollIntervalSeconds = 0

	logger, err := a.newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	ctrl, p, err := newController(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, ctrl: ctrl, provider: p}

	// Disconnected, SetToken only selects; the connect loads the balances once.
	if token != "" {
		if err := ctrl.SetToken(ctx, token); err != nil {
			p.Close()
			return nil, err
		}
	}

	sub := ctrl.Subscribe()
	defer ctrl.Unsubscribe(sub)
	if _, err := ctrl.Connect(ctx); err != nil {
		p.Close()
		return nil, err
	}
	if err := firstError(sub); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// firstError returns the first error notification already queued on sub.
func firstError(sub wallet.Subscriber) error {
	for {
		select {
		case e := <-sub:
			if n, ok := e.Data.(wallet.Notification); ok && e.Type == wallet.EventNotification && n.Level == "error" {
				return walleterr.New(walleterr.Category(n.Category), "%s", n.Message)
			}
		default:
			return nil
		}
	}
}

func (a *app) sendCmd() *cobra.Command {
	var network, token string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send <recipient> <amount>",
		Short: "Send ERC-20 tokens from the connected wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			s, err := a.connect(ctx, network, token)
			if err != nil {
				return err
			}
			defer s.Close()

			st := s.ctrl.State()
			if st.Selection.Token == nil {
				return fmt.Errorf("no token is available on %s", st.Network.Name)
			}
			fmt.Fprintf(a.stdout, "Sending %s %s to %s on %s, confirm in your wallet...\n",
				args[1], st.Selection.Token.Symbol, args[0], st.Network.Name)

			receipt, err := s.ctrl.Transfer(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Transaction confirmed: %s\n", receipt.TxID)
			if receipt.ExplorerURL != "" {
				fmt.Fprintf(a.stdout, "%s\n", receipt.ExplorerURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "network id (default from config)")
	cmd.Flags().StringVarP(&token, "token", "t", "", "token symbol (default first token of the network)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall time limit including confirmation")
	return cmd
}

func (a *app) balanceCmd() *cobra.Command {
	var network, token string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the native and token balance of the connected wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.connect(cmd.Context(), network, token)
			if err != nil {
				return err
			}
			defer s.Close()

			st := s.ctrl.State()
			places := int32(s.cfg.TokenDecimals)

			fmt.Fprintf(a.stdout, "Address: %s\n", st.Session.Address)
			fmt.Fprintf(a.stdout, "Network: %s (%d)\n", st.Network.Name, st.Network.ChainID)
			fmt.Fprintf(a.stdout, "%-8s %s\n", st.Network.Symbol, utils.FormatDecimal(st.Native.Value, places))
			if st.Selection.Token != nil {
				fmt.Fprintf(a.stdout, "%-8s %s\n", st.Selection.Token.Symbol, utils.FormatDecimal(st.Token.Value, places))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&network, "network", "n", "", "network id (default from config)")
	cmd.Flags().StringVarP(&token, "token", "t", "", "token symbol (default first token of the network)")
	return cmd
}

func hasNetwork(networks []config.NetworkConfig, key string) bool {
	for _, n := range networks {
		if n.Key == key {
			return true
		}
	}
	return false
}
