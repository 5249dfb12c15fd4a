package tui

import (
	"context"
	"fmt"
	"time"

	"evmxfer/pkg/models"
	"evmxfer/pkg/utils"
	"evmxfer/pkg/wallet"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m *model) setStatus(msg string, isErr bool) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = isErr
	if isErr {
		return clearStatusAfter(5 * time.Second)
	}
	return clearStatusAfter(2 * time.Second)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case wallet.Event:
		cmds = append(cmds, listenForEvents(m.sub))
		m.state = m.ctrl.State()
		m.lastUpdate = time.Now()

		switch msg.Type {
		case wallet.EventSelectionUpdated:
			m.tokenHistory = nil
			m.send = &sendInput{}
			if m.showSend {
				// The form was built for the previous token.
				m.showSend = false
				m.sendForm = nil
				cmds = append(cmds, m.setStatus("Selection changed, send cancelled", false))
			}
		case wallet.EventBalanceUpdated:
			if e, ok := msg.Data.(models.BalanceEntry); ok && e.Kind == models.BalanceToken && !e.IsRefreshing {
				m.tokenHistory = appendHistory(m.tokenHistory, utils.DecimalToFloat64(e.Value), historyLimit)
			}
		case wallet.EventTransferConfirmed:
			if r, ok := msg.Data.(models.TransferReceipt); ok {
				m.lastReceipt = &r
			}
		case wallet.EventNotification:
			if n, ok := msg.Data.(wallet.Notification); ok {
				cmds = append(cmds, m.setStatus(n.Message, n.Level == "error"))
			}
		}

	case opResultMsg:
		m.busy = ""
		m.state = m.ctrl.State()
		if msg.err != nil {
			cmds = append(cmds, m.setStatus(errorText(msg.err), true))
			break
		}
		if msg.receipt != nil {
			m.send = &sendInput{}
			m.lastReceipt = msg.receipt
			cmds = append(cmds, m.setStatus("Sent "+utils.ShortAddress(msg.receipt.TxID), false))
		}

	case uiTickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case clearStatusMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case tea.KeyMsg:
		if m.showSend && m.sendForm != nil {
			return m.updateSendForm(msg)
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	if m.showSend && m.sendForm != nil {
		form, cmd := m.sendForm.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.sendForm = f
		}
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) updateSendForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.showSend = false
		m.sendForm = nil
		return m, m.setStatus("Send cancelled", false)
	}

	form, cmd := m.sendForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.sendForm = f
	}

	switch m.sendForm.State {
	case huh.StateCompleted:
		m.showSend = false
		m.sendForm = nil
		m.busy = "send"
		recipient, amount := m.send.Recipient, m.send.Amount
		return m, tea.Batch(
			m.setStatus(fmt.Sprintf("Sending %s %s, confirm in your wallet...", amount, m.tokenSymbol()), false),
			transferCmd(m.ctrl, recipient, amount),
		)
	case huh.StateAborted:
		m.showSend = false
		m.sendForm = nil
		return m, m.setStatus("Send cancelled", false)
	}
	return m, cmd
}

// handleKey applies a key press outside the send form. It reports false for
// keys it does not own so they reach the embedded components.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()

	if m.showHelp {
		if key == "q" || key == "esc" || key == "?" {
			m.showHelp = false
		}
		return nil, true
	}
	if m.showReceive {
		switch key {
		case "y":
			return m.copyToClipboard(m.state.Session.Address, "Address"), true
		case "q", "esc", "v":
			m.showReceive = false
		}
		return nil, true
	}

	switch key {
	case "q", "ctrl+c":
		if m.showLogs && key == "q" {
			m.showLogs = false
			return nil, true
		}
		return tea.Quit, true
	case "?":
		m.showHelp = true
	case "l":
		m.showLogs = !m.showLogs
	case "c":
		if m.state.Session.Connected() {
			return m.setStatus("Already connected", false), true
		}
		m.busy = "connect"
		ctrl := m.ctrl
		return tea.Batch(
			m.setStatus("Connecting, approve the request in your wallet...", false),
			runOp("connect", func(ctx context.Context) error {
				_, err := ctrl.Connect(ctx)
				return err
			}),
		), true
	case "d":
		if !m.state.Session.Connected() {
			return nil, true
		}
		m.ctrl.Disconnect()
		m.state = m.ctrl.State()
		return m.setStatus("Disconnected", false), true
	case "n", "N":
		step := 1
		if key == "N" {
			step = -1
		}
		target := nextNetworkID(m.ctrl.Registry().Networks(), m.state.Selection.NetworkID, step)
		if target == m.state.Selection.NetworkID {
			return nil, true
		}
		m.busy = "network"
		ctrl := m.ctrl
		return runOp("network", func(ctx context.Context) error {
			return ctrl.ChangeNetwork(ctx, target)
		}), true
	case "t":
		symbol := nextTokenSymbol(m.state.AvailableTokens, m.state.Selection.Token)
		if symbol == "" {
			return m.setStatus("No tokens on this network", false), true
		}
		ctrl := m.ctrl
		return runOp("token", func(ctx context.Context) error {
			return ctrl.SetToken(ctx, symbol)
		}), true
	case "r":
		if !m.state.Session.Connected() {
			return m.setStatus("Connect a wallet first", true), true
		}
		ctrl := m.ctrl
		return runOp("refresh", ctrl.Refresh), true
	case "s":
		return m.openSendForm(), true
	case "v":
		if !m.state.Session.Connected() {
			return m.setStatus("Connect a wallet first", true), true
		}
		m.qrCode = renderQR(m.state.Session.Address)
		m.showReceive = true
	case "y":
		if !m.state.Session.Connected() {
			return nil, true
		}
		return m.copyToClipboard(m.state.Session.Address, "Address"), true
	case "Y":
		if m.lastReceipt == nil {
			return m.setStatus("No transaction yet", false), true
		}
		return m.copyToClipboard(m.lastReceipt.TxID, "Transaction hash"), true
	case "o":
		return m.openExplorer(), true
	default:
		return nil, false
	}
	return nil, true
}

func (m *model) openSendForm() tea.Cmd {
	if !m.state.Session.Connected() {
		return m.setStatus("Connect a wallet first", true)
	}
	if m.state.Selection.Token == nil {
		return m.setStatus("No token is available on this network", true)
	}
	if m.busy == "send" || m.state.Transferring {
		return m.setStatus("A transfer is already in progress", true)
	}

	// Values from a failed attempt are kept for the retry.
	if m.send == nil {
		m.send = &sendInput{}
	}
	balance := m.state.Token.Value
	m.sendForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recipient").
				Description("Destination address (0x...)").
				Placeholder("0x...").
				Value(&m.send.Recipient).
				Validate(validateRecipient),
			huh.NewInput().
				Title("Amount").
				Description(fmt.Sprintf("Available: %s %s (max %s)",
					utils.FormatDecimal(balance, int32(m.decimals())), m.tokenSymbol(), wallet.MaxAmount(balance))).
				Placeholder("0.0").
				Value(&m.send.Amount).
				Validate(validateAmount),
		),
	).WithTheme(huh.ThemeCatppuccin())
	m.showSend = true
	return m.sendForm.Init()
}

func (m *model) copyToClipboard(text, label string) tea.Cmd {
	if err := clipboard.WriteAll(text); err != nil {
		return m.setStatus("Failed to copy to clipboard", true)
	}
	return m.setStatus(label+" copied to clipboard!", false)
}

func (m *model) openExplorer() tea.Cmd {
	url := ""
	if m.lastReceipt != nil {
		url = m.lastReceipt.ExplorerURL
	} else if m.state.Session.Connected() {
		url = utils.ExplorerAddressURL(m.state.Network.ExplorerURL, m.state.Session.Address)
	}
	if url == "" {
		return m.setStatus("Explorer URL not configured for this network", true)
	}
	if err := openBrowser(url); err != nil {
		return m.setStatus(fmt.Sprintf("Failed to open browser: %v", err), true)
	}
	return m.setStatus("Opened in browser", false)
}

func (m model) tokenSymbol() string {
	if t := m.state.Selection.Token; t != nil {
		return t.Symbol
	}
	return ""
}

func (m model) decimals() int {
	if m.config.TokenDecimals > 0 {
		return m.config.TokenDecimals
	}
	return 4
}
