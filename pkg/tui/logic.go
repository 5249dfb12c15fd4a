package tui

import (
	"context"
	"errors"
	"strings"

	"evmxfer/pkg/models"
	"evmxfer/pkg/wallet"
	"evmxfer/pkg/walleterr"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
)

// nextNetworkID returns the id step positions away from current, wrapping around.
func nextNetworkID(networks []models.NetworkDescriptor, current string, step int) string {
	if len(networks) == 0 {
		return current
	}
	idx := 0
	for i, n := range networks {
		if n.ID == current {
			idx = i
			break
		}
	}
	idx = ((idx+step)%len(networks) + len(networks)) % len(networks)
	return networks[idx].ID
}

// nextTokenSymbol returns the symbol after current in tokens, wrapping around.
func nextTokenSymbol(tokens []models.TokenDescriptor, current *models.TokenDescriptor) string {
	if len(tokens) == 0 {
		return ""
	}
	if current == nil {
		return tokens[0].Symbol
	}
	for i, t := range tokens {
		if t.Same(*current) {
			return tokens[(i+1)%len(tokens)].Symbol
		}
	}
	return tokens[0].Symbol
}

func appendHistory(hist []float64, v float64, limit int) []float64 {
	hist = append(hist, v)
	if len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	return hist
}

func validateRecipient(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return errors.New("invalid recipient address")
	}
	return nil
}

func validateAmount(s string) error {
	if _, err := wallet.ParseAmount(s); err != nil {
		return errors.New(walleterr.Classify(err).Message)
	}
	return nil
}

// errorText renders err the way the status bar shows it.
func errorText(err error) string {
	ce := walleterr.Classify(err)
	if ce == nil {
		return ""
	}
	return ce.Message
}

// --- Commands ---

func listenForEvents(sub wallet.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func runOp(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opResultMsg{op: op, err: fn(context.Background())}
	}
}

func transferCmd(ctrl *wallet.Controller, recipient, amount string) tea.Cmd {
	return func() tea.Msg {
		receipt, err := ctrl.Transfer(context.Background(), recipient, amount)
		if err != nil {
			return opResultMsg{op: "send", err: err}
		}
		return opResultMsg{op: "send", receipt: &receipt}
	}
}
