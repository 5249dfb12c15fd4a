package wallet

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"evmxfer/pkg/config"
	"evmxfer/pkg/models"
	"evmxfer/pkg/walleterr"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultConnectTimeout bounds the account request of a connect handshake.
const DefaultConnectTimeout = 30 * time.Second

// ConnectionManager owns the wallet session. It is the only component that
// changes the session status.
type ConnectionManager struct {
	provider Provider
	registry *config.Registry
	timeout  time.Duration
	logger   *log.Logger

	mu       sync.RWMutex
	session  models.WalletSession
	attempt  uint64
	onChange func(models.WalletSession)
	notifyMu sync.Mutex
}

// NewConnectionManager creates a manager in the disconnected state. A zero
// timeout selects DefaultConnectTimeout.
func NewConnectionManager(p Provider, r *config.Registry, timeout time.Duration, logger *log.Logger) *ConnectionManager {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ConnectionManager{
		provider: p,
		registry: r,
		timeout:  timeout,
		logger:   logger,
		session:  models.WalletSession{Status: models.StatusDisconnected},
	}
}

// OnChange registers fn to be called after every session transition. It must be
// set before the manager is shared.
func (c *ConnectionManager) OnChange(fn func(models.WalletSession)) {
	c.onChange = fn
}

// publish reports the session as it is when the observer runs. Calls are
// serialized, so the last report always matches the final state even when a
// transition and its report are separated by another transition.
func (c *ConnectionManager) publish() {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onChange(c.Session())
}

// Session returns a copy of the current session.
func (c *ConnectionManager) Session() models.WalletSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Status returns the current session status.
func (c *ConnectionManager) Status() models.SessionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Status
}

// Connect requests wallet access, makes sure the wallet is on targetNetworkID and
// marks the session connected. On any failure the session ends up disconnected.
func (c *ConnectionManager) Connect(ctx context.Context, targetNetworkID string) (string, error) {
	c.mu.Lock()
	if c.session.Status == models.StatusConnecting {
		c.mu.Unlock()
		return "", walleterr.NewRequestPending()
	}
	c.attempt++
	attempt := c.attempt
	c.session = models.WalletSession{Status: models.StatusConnecting}
	c.mu.Unlock()
	c.publish()

	c.logger.Debug("connecting wallet", "network", targetNetworkID)
	address, err := c.handshake(ctx, targetNetworkID)

	c.mu.Lock()
	if attempt != c.attempt {
		// Disconnect was called while the handshake was running.
		c.mu.Unlock()
		c.publish()
		c.logger.Debug("discarding superseded connect attempt", "network", targetNetworkID)
		return "", walleterr.New(walleterr.Unknown, "Wallet connection was cancelled.")
	}
	if err != nil {
		c.session = models.WalletSession{Status: models.StatusDisconnected}
		c.mu.Unlock()
		c.publish()
		ce := walleterr.Classify(err)
		c.logger.Warn("wallet connect failed", "network", targetNetworkID, "category", ce.Category, "err", ce.Message)
		return "", ce
	}
	c.session = models.WalletSession{
		ID:      uuid.NewString(),
		Address: address,
		Status:  models.StatusConnected,
	}
	c.mu.Unlock()
	c.publish()
	c.logger.Info("wallet connected", "address", address, "network", targetNetworkID)
	return address, nil
}

func (c *ConnectionManager) handshake(ctx context.Context, targetNetworkID string) (string, error) {
	address, err := c.requestAccount(ctx)
	if err != nil {
		return "", err
	}

	target, ok := c.registry.Network(targetNetworkID)
	if !ok {
		return "", walleterr.UnsupportedNetwork(targetNetworkID)
	}

	current, err := c.provider.ChainID(ctx)
	if err != nil {
		return "", walleterr.Classify(err)
	}
	if err := SwitchNetwork(ctx, c.provider, current, target); err != nil {
		return "", err
	}
	return address, nil
}

// requestAccount races the provider's account request against the connect timeout.
// A late provider answer lands in the buffered channel and is dropped.
func (c *ConnectionManager) requestAccount(ctx context.Context) (string, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		accounts []string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		accounts, err := c.provider.RequestAccounts(reqCtx)
		done <- result{accounts: accounts, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return "", walleterr.Classify(r.err)
		}
		if len(r.accounts) == 0 || strings.TrimSpace(r.accounts[0]) == "" {
			return "", walleterr.New(walleterr.Unknown, "No account was returned by the wallet.")
		}
		return strings.TrimSpace(r.accounts[0]), nil
	case <-timer.C:
		return "", walleterr.NewTimeout()
	case <-ctx.Done():
		return "", walleterr.Classify(ctx.Err())
	}
}

// Disconnect resets the session. It is idempotent and also aborts a connect in flight.
func (c *ConnectionManager) Disconnect() {
	c.mu.Lock()
	c.attempt++
	was := c.session
	c.session = models.WalletSession{Status: models.StatusDisconnected}
	c.mu.Unlock()
	if was.Status != models.StatusDisconnected {
		c.logger.Info("wallet disconnected", "address", was.Address)
		c.publish()
	}
}

// AdoptAccount follows an account switch made inside the wallet. An empty address
// disconnects. It reports whether the session changed.
func (c *ConnectionManager) AdoptAccount(address string) bool {
	address = strings.TrimSpace(address)
	c.mu.Lock()
	if c.session.Status != models.StatusConnected || strings.EqualFold(address, c.session.Address) {
		c.mu.Unlock()
		return false
	}
	prev := c.session.Address
	if address == "" {
		c.attempt++
		c.session = models.WalletSession{Status: models.StatusDisconnected}
		c.logger.Info("wallet exposed no accounts, disconnecting", "address", prev)
	} else {
		c.session = models.WalletSession{
			ID:      uuid.NewString(),
			Address: address,
			Status:  models.StatusConnected,
		}
		c.logger.Info("wallet account switched", "from", prev, "to", address)
	}
	c.mu.Unlock()
	c.publish()
	return true
}
