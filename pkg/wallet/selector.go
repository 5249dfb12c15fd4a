package wallet

import (
	"context"
	"io"
	"strings"
	"sync"

	"evmxfer/pkg/config"
	"evmxfer/pkg/models"
	"evmxfer/pkg/walleterr"

	"github.com/charmbracelet/log"
)

// Selector owns the selected network and token.
type Selector struct {
	provider Provider
	registry *config.Registry
	logger   *log.Logger

	mu        sync.RWMutex
	selection models.Selection
	available []models.TokenDescriptor
	onChange  func(models.Selection)
}

// NewSelector starts on initialNetworkID, or on the first registered network when
// that id is unknown.
func NewSelector(p Provider, r *config.Registry, initialNetworkID string, logger *log.Logger) *Selector {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Selector{provider: p, registry: r, logger: logger}
	if _, ok := r.Network(initialNetworkID); !ok {
		if ns := r.Networks(); len(ns) > 0 {
			initialNetworkID = ns[0].ID
		}
	}
	s.commitLocked(initialNetworkID)
	return s
}

// OnChange registers fn to be called after every committed selection change. It
// must be set before the selector is shared.
func (s *Selector) OnChange(fn func(models.Selection)) {
	s.onChange = fn
}

// Selection returns a copy of the current selection.
func (s *Selector) Selection() models.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySelection(s.selection)
}

// Network returns the descriptor of the selected network.
func (s *Selector) Network() (models.NetworkDescriptor, bool) {
	s.mu.RLock()
	id := s.selection.NetworkID
	s.mu.RUnlock()
	return s.registry.Network(id)
}

// AvailableTokens returns the tokens registered for the selected network.
func (s *Selector) AvailableTokens() []models.TokenDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TokenDescriptor(nil), s.available...)
}

// ChangeNetwork selects networkID. While connected the wallet is switched first and
// the selection is only committed if the switch succeeds. While disconnected the
// selection changes locally without touching the provider. It reports whether the
// selection changed.
func (s *Selector) ChangeNetwork(ctx context.Context, networkID string, connected bool) (bool, error) {
	s.mu.RLock()
	current := s.selection.NetworkID
	s.mu.RUnlock()
	if networkID == current {
		return false, nil
	}

	target, ok := s.registry.Network(networkID)
	if !ok {
		return false, walleterr.UnsupportedNetwork(networkID)
	}

	if connected {
		chainID, err := s.provider.ChainID(ctx)
		if err != nil {
			return false, walleterr.Classify(err)
		}
		if err := SwitchNetwork(ctx, s.provider, chainID, target); err != nil {
			s.logger.Warn("network switch failed", "network", networkID, "err", err)
			return false, err
		}
	}

	s.commit(networkID)
	s.logger.Info("network selected", "network", networkID, "chain_id", target.ChainID)
	return true, nil
}

// Adopt commits a network the wallet already moved to on its own.
func (s *Selector) Adopt(networkID string) bool {
	if _, ok := s.registry.Network(networkID); !ok {
		return false
	}
	s.mu.RLock()
	same := s.selection.NetworkID == networkID
	s.mu.RUnlock()
	if same {
		return false
	}
	s.commit(networkID)
	s.logger.Info("following wallet network change", "network", networkID)
	return true
}

// SetToken selects token without any validation.
func (s *Selector) SetToken(token models.TokenDescriptor) {
	s.mu.Lock()
	t := token
	s.selection.Token = &t
	sel := copySelection(s.selection)
	s.mu.Unlock()
	s.changed(sel)
}

// SetTokenBySymbol selects the available token with the given symbol.
func (s *Selector) SetTokenBySymbol(symbol string) (models.TokenDescriptor, error) {
	s.mu.RLock()
	var found *models.TokenDescriptor
	for i := range s.available {
		if strings.EqualFold(s.available[i].Symbol, symbol) {
			t := s.available[i]
			found = &t
			break
		}
	}
	s.mu.RUnlock()
	if found == nil {
		return models.TokenDescriptor{}, walleterr.New(walleterr.Unsupported, "Unsupported token: %s", symbol)
	}
	s.SetToken(*found)
	return *found, nil
}

func (s *Selector) commit(networkID string) {
	s.mu.Lock()
	s.commitLocked(networkID)
	sel := copySelection(s.selection)
	s.mu.Unlock()
	s.changed(sel)
}

// commitLocked switches the network and keeps the token when the new network
// still offers it, otherwise falls back to the first available token.
func (s *Selector) commitLocked(networkID string) {
	s.selection.NetworkID = networkID
	s.available = s.registry.TokensFor(networkID)

	if len(s.available) == 0 {
		s.selection.Token = nil
		return
	}
	if cur := s.selection.Token; cur != nil {
		for _, t := range s.available {
			if t.Same(*cur) {
				return
			}
		}
	}
	first := s.available[0]
	s.selection.Token = &first
}

func (s *Selector) changed(sel models.Selection) {
	if s.onChange != nil {
		s.onChange(sel)
	}
}

func copySelection(sel models.Selection) models.Selection {
	if sel.Token != nil {
		t := *sel.Token
		sel.Token = &t
	}
	return sel
}
