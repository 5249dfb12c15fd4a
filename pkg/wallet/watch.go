package wallet

import (
	"context"
	"fmt"
	"time"
)

// Start begins following account and chain changes made inside the wallet.
func (c *Controller) Start(ctx context.Context) {
	go c.Watch(ctx)
}

// Stop stops the watch loop. It is safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// Watch polls the wallet every poll interval until ctx is done or Stop is called.
// A zero interval disables polling.
func (c *Controller) Watch(ctx context.Context) {
	if c.pollInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sync(ctx)
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sync reconciles the session and selection with what the wallet currently
// exposes. It does nothing while disconnected and skips the tick while a
// connect or network change holds the switch guard.
func (c *Controller) Sync(ctx context.Context) {
	if !c.conn.Session().Connected() {
		return
	}
	if !c.switching.CompareAndSwap(false, true) {
		return
	}
	refresh, disconnected := c.reconcile(ctx)
	c.switching.Store(false)

	if disconnected {
		c.notifyInfo("Wallet disconnected.")
		return
	}
	if refresh {
		c.refreshAll(ctx)
	}
}

// reconcile adopts the wallet's account and chain. The caller holds the switch
// guard, so no selection committed by ChangeNetwork can be overwritten here.
func (c *Controller) reconcile(ctx context.Context) (refresh, disconnected bool) {
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		c.logger.Debug("polling accounts failed", "err", err)
		return false, false
	}
	next := ""
	if len(accounts) > 0 {
		next = accounts[0]
	}
	if c.conn.AdoptAccount(next) {
		session := c.conn.Session()
		c.balances.Rebind(session.Address)
		if !session.Connected() {
			return false, true
		}
		refresh = true
	}

	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		c.logger.Debug("polling chain id failed", "err", err)
		return refresh, false
	}
	if network, ok := c.selector.Network(); ok && network.ChainID == chainID {
		c.lastUnknown.Store(0)
		return refresh, false
	}
	network, ok := c.registry.NetworkByChainID(chainID)
	if !ok {
		if c.lastUnknown.Swap(chainID) != chainID {
			c.logger.Warn("wallet is on an unsupported chain", "chain_id", chainID)
			c.notifyInfo(fmt.Sprintf("Wallet switched to unsupported chain %d.", chainID))
		}
		return refresh, false
	}
	c.lastUnknown.Store(0)
	if c.selector.Adopt(network.ID) {
		c.balances.Reset()
		refresh = true
	}
	return refresh, false
}
