package tui

import (
	"time"

	"evmxfer/pkg/config"
	"evmxfer/pkg/models"
	"evmxfer/pkg/wallet"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

const historyLimit = 120

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time

// opResultMsg reports the end of a controller call started from the UI.
type opResultMsg struct {
	op      string
	err     error
	receipt *models.TransferReceipt
}

// sendInput holds the values bound to the send form fields.
type sendInput struct {
	Recipient string
	Amount    string
}

// --- Model ---

type model struct {
	ctrl   *wallet.Controller
	sub    wallet.Subscriber
	state  wallet.State
	config config.GlobalConfig
	logs   *LogBuffer

	width  int
	height int

	spinner       spinner.Model
	busy          string // operation in flight, "" when idle
	statusMessage string
	statusIsError bool
	lastUpdate    time.Time

	sendForm    *huh.Form
	send        *sendInput
	showSend    bool
	showReceive bool
	showHelp    bool
	showLogs    bool
	qrCode      string

	tokenHistory []float64
	lastReceipt  *models.TransferReceipt
}

func initialModel(ctrl *wallet.Controller, globalCfg config.GlobalConfig, logs *LogBuffer) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		ctrl:       ctrl,
		sub:        ctrl.Subscribe(),
		state:      ctrl.State(),
		config:     globalCfg,
		logs:       logs,
		spinner:    s,
		send:       &sendInput{},
		lastUpdate: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listenForEvents(m.sub),
		m.spinner.Tick,
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }),
	)
}
