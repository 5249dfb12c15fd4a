package tui

import (
	"fmt"
	"strings"
	"time"

	"evmxfer/pkg/models"
	"evmxfer/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.showReceive {
		return m.viewReceive()
	}
	if m.showSend && m.sendForm != nil {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
				titleStyle.Render(fmt.Sprintf("Send %s on %s", m.tokenSymbol(), m.state.Network.Name)),
				"",
				m.sendForm.View(),
				subtleStyle.Render("Enter to continue • Esc to cancel"),
			)))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("evmxfer"),
		" ",
		m.viewNetworkTabs(),
	)

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(m.viewSession()),
		" ",
		boxStyle.Render(m.viewBalances()),
	)

	sections := []string{header, "", panels}
	if graph := m.viewHistory(); graph != "" {
		sections = append(sections, "", boxStyle.Render(graph))
	}
	if m.lastReceipt != nil {
		sections = append(sections, "", m.viewReceipt())
	}
	if m.showLogs {
		sections = append(sections, "", m.viewLogs())
	}
	sections = append(sections, "", m.viewStatus(), m.viewFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) viewNetworkTabs() string {
	var tabs []string
	for _, n := range m.ctrl.Registry().Networks() {
		if n.ID == m.state.Selection.NetworkID {
			tabs = append(tabs, activeTabStyle.Render(n.Name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(n.Name))
		}
	}
	return strings.Join(tabs, subtleStyle.Render(" | "))
}

func (m model) viewSession() string {
	s := m.state.Session
	var status string
	switch s.Status {
	case models.StatusConnected:
		status = infoStyle.Render("● Connected")
	case models.StatusConnecting:
		status = warnStyle.Render(m.spinner.View() + " Connecting")
	default:
		status = subtleStyle.Render("○ Disconnected")
	}

	address := subtleStyle.Render("-")
	if s.Address != "" {
		address = utils.ShortAddress(s.Address)
	}
	chain := fmt.Sprintf("%s (%d)", m.state.Network.Name, m.state.Network.ChainID)

	return lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("Wallet"),
		status,
		fmt.Sprintf("%-9s %s", "Address", address),
		fmt.Sprintf("%-9s %s", "Network", chain),
	)
}

func (m model) viewBalances() string {
	rows := []string{labelStyle.Render("Balances")}
	rows = append(rows, m.balanceRow(m.state.Network.Symbol, m.state.Native))
	if m.state.Selection.Token != nil {
		rows = append(rows, m.balanceRow(m.tokenSymbol(), m.state.Token))
	} else {
		rows = append(rows, subtleStyle.Render("No tokens on this network"))
	}
	if m.state.Transferring || m.busy == "send" {
		rows = append(rows, warnStyle.Render(m.spinner.View()+" Transfer pending"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m model) balanceRow(symbol string, e models.BalanceEntry) string {
	if !m.state.Session.Connected() {
		return fmt.Sprintf("%-8s %16s", symbol, subtleStyle.Render("-"))
	}
	value := utils.FormatDecimal(e.Value, int32(m.decimals()))
	if e.IsRefreshing {
		return fmt.Sprintf("%-8s %16s %s", symbol, subtleStyle.Render(value), m.spinner.View())
	}
	return fmt.Sprintf("%-8s %16s", symbol, value)
}

func (m model) viewHistory() string {
	if len(m.tokenHistory) < 2 {
		return ""
	}
	width := m.width - 16
	if width < 20 {
		width = 20
	}
	return asciigraph.Plot(m.tokenHistory,
		asciigraph.Height(6),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("%s balance this session", m.tokenSymbol())),
	)
}

func (m model) viewReceipt() string {
	r := m.lastReceipt
	line := fmt.Sprintf("Last tx: %s", r.TxID)
	if r.ExplorerURL != "" {
		line += subtleStyle.Render("  " + r.ExplorerURL)
	}
	return infoStyle.Render(line)
}

func (m model) viewLogs() string {
	n := 8
	if m.height > 30 {
		n = m.height / 3
	}
	var lines []string
	if m.logs != nil {
		lines = m.logs.Tail(n)
	}
	if len(lines) == 0 {
		lines = []string{subtleStyle.Render("No log output yet.")}
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		append([]string{labelStyle.Render("Logs")}, lines...)...))
}

func (m model) viewStatus() string {
	if m.statusMessage == "" {
		return subtleStyle.Render(fmt.Sprintf("Updated %s ago", time.Since(m.lastUpdate).Truncate(time.Second)))
	}
	if m.statusIsError {
		return errStyle.Render(m.statusMessage)
	}
	return infoStyle.Render(m.statusMessage)
}

func (m model) viewFooter() string {
	return subtleStyle.Render("c: connect • d: disconnect • n/N: network • t: token • s: send • v: receive • r: refresh • ?: help • q: quit")
}

func (m model) viewReceive() string {
	addr := m.state.Session.Address
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render(fmt.Sprintf("Receive on %s", m.state.Network.Name)),
			"",
			m.qrCode,
			addr,
			"",
			subtleStyle.Render("y: copy address • v/q/esc: back"),
		)))
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"c: Connect Wallet",
		"d: Disconnect",
		"n/N: Next/Previous Network",
		"t: Next Token",
		"r: Refresh Balances",
		"s: Send Tokens",
		"v: Receive (QR Code)",
		"y: Copy Address",
		"Y: Copy Last Tx Hash",
		"o: Open in Explorer",
		"l: Toggle Logs",
		"?: Toggle Help",
		"q/ctrl+c: Quit",
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Keyboard Shortcuts"),
			"",
			strings.Join(shortcuts, "\n"),
			"",
			subtleStyle.Render(fmt.Sprintf("evmxfer %s • ?/q/esc: close", Version)),
		)))
}
