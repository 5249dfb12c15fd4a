package wallet

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"evmxfer/pkg/config"
	"evmxfer/pkg/models"
	"evmxfer/pkg/utils"
	"evmxfer/pkg/walleterr"

	"github.com/charmbracelet/log"
)

// Options configures a Controller.
type Options struct {
	DefaultNetwork string
	ConnectTimeout time.Duration
	MinLoadingTime time.Duration
	PollInterval   time.Duration
	Logger         *log.Logger
}

// OptionsFromConfig maps the global configuration onto controller options.
func OptionsFromConfig(g config.GlobalConfig, logger *log.Logger) Options {
	return Options{
		DefaultNetwork: g.DefaultNetwork,
		ConnectTimeout: g.ConnectTimeout(),
		MinLoadingTime: g.MinLoading(),
		PollInterval:   g.PollInterval(),
		Logger:         logger,
	}
}

// State is a point-in-time copy of everything a UI renders.
type State struct {
	Session         models.WalletSession     `json:"session"`
	Selection       models.Selection         `json:"selection"`
	Network         models.NetworkDescriptor `json:"network"`
	AvailableTokens []models.TokenDescriptor `json:"available_tokens"`
	Native          models.BalanceEntry      `json:"native"`
	Token           models.BalanceEntry      `json:"token"`
	Transferring    bool                     `json:"transferring"`
}

// Controller composes the wallet components and broadcasts their changes.
type Controller struct {
	provider  Provider
	registry  *config.Registry
	conn      *ConnectionManager
	selector  *Selector
	balances  *BalanceService
	transfers *TransferExecutor
	logger    *log.Logger

	pollInterval time.Duration
	switching    atomic.Bool // held by Connect, ChangeNetwork and Sync while they touch session or selection
	lastUnknown  atomic.Int64

	subscribers []Subscriber
	mu          sync.RWMutex
	stopOnce    sync.Once
	stopChan    chan struct{}
}

// NewController wires the components around one provider and registry.
func NewController(p Provider, r *config.Registry, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Controller{
		provider:     p,
		registry:     r,
		conn:         NewConnectionManager(p, r, opts.ConnectTimeout, logger.WithPrefix("connect")),
		selector:     NewSelector(p, r, opts.DefaultNetwork, logger.WithPrefix("select")),
		balances:     NewBalanceService(p, opts.MinLoadingTime, logger.WithPrefix("balance")),
		transfers:    NewTransferExecutor(p, logger.WithPrefix("transfer")),
		logger:       logger,
		pollInterval: opts.PollInterval,
		stopChan:     make(chan struct{}),
	}
	c.conn.OnChange(func(s models.WalletSession) {
		c.notify(Event{Type: EventSessionUpdated, Data: s})
	})
	c.selector.OnChange(func(s models.Selection) {
		c.notify(Event{Type: EventSelectionUpdated, Data: s})
	})
	c.balances.OnChange(func(e models.BalanceEntry) {
		c.notify(Event{Type: EventBalanceUpdated, Data: e})
	})
	return c
}

// Registry returns the registry the controller was built with.
func (c *Controller) Registry() *config.Registry {
	return c.registry
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (c *Controller) Subscribe() Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(Subscriber, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (c *Controller) Unsubscribe(ch Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (c *Controller) notify(event Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscriber; drop the event.
		}
	}
}

func (c *Controller) notifyError(err error) {
	ce := walleterr.Classify(err)
	if ce == nil {
		return
	}
	c.notify(Event{Type: EventNotification, Data: Notification{
		Level:    "error",
		Category: string(ce.Category),
		Message:  ce.Message,
	}})
}

func (c *Controller) notifyInfo(msg string) {
	c.notify(Event{Type: EventNotification, Data: Notification{Level: "info", Message: msg}})
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	network, _ := c.selector.Network()
	return State{
		Session:         c.conn.Session(),
		Selection:       c.selector.Selection(),
		Network:         network,
		AvailableTokens: c.selector.AvailableTokens(),
		Native:          c.balances.Native(),
		Token:           c.balances.Token(),
		Transferring:    c.transfers.InFlight(),
	}
}

// Connect connects to the wallet on the selected network and loads both balances.
// Balance failures are published as notifications and do not fail the connect.
// It is rejected while a network switch is in progress.
func (c *Controller) Connect(ctx context.Context) (string, error) {
	if !c.switching.CompareAndSwap(false, true) {
		return "", walleterr.NewRequestPending()
	}
	networkID := c.selector.Selection().NetworkID
	address, err := c.conn.Connect(ctx, networkID)
	c.switching.Store(false)
	if err != nil {
		return "", err
	}
	c.balances.Rebind(address)
	c.refreshAll(ctx)
	return address, nil
}

// Disconnect ends the session and clears the balances.
func (c *Controller) Disconnect() {
	c.conn.Disconnect()
	c.balances.Rebind("")
}

// ChangeNetwork selects another network, switching the wallet when connected.
// It is rejected while a connect or another switch is in flight.
func (c *Controller) ChangeNetwork(ctx context.Context, networkID string) error {
	if !c.switching.CompareAndSwap(false, true) {
		return walleterr.NewRequestPending()
	}
	session := c.conn.Session()
	if session.Status == models.StatusConnecting {
		c.switching.Store(false)
		return walleterr.NewRequestPending()
	}
	changed, err := c.selector.ChangeNetwork(ctx, networkID, session.Connected())
	c.switching.Store(false)
	if err != nil || !changed {
		return err
	}
	c.balances.Reset()
	if session.Connected() {
		c.refreshAll(ctx)
	}
	return nil
}

// SetToken selects an available token by symbol and reloads its balance.
func (c *Controller) SetToken(ctx context.Context, symbol string) error {
	prev := c.selector.Selection().Token
	token, err := c.selector.SetTokenBySymbol(symbol)
	if err != nil {
		return err
	}
	if prev != nil && prev.Same(token) {
		return nil
	}
	c.balances.ResetToken()
	return c.RefreshToken(ctx)
}

// RefreshNative reloads the native balance. It does nothing while disconnected.
func (c *Controller) RefreshNative(ctx context.Context) error {
	session := c.conn.Session()
	if !session.Connected() {
		return nil
	}
	network, ok := c.selector.Network()
	if !ok {
		return nil
	}
	return c.balances.RefreshNative(ctx, session.Address, network.Decimals)
}

// RefreshToken reloads the selected token balance. It does nothing while
// disconnected or when the network has no tokens.
func (c *Controller) RefreshToken(ctx context.Context) error {
	session := c.conn.Session()
	token := c.selector.Selection().Token
	if !session.Connected() || token == nil {
		return nil
	}
	return c.balances.RefreshToken(ctx, session.Address, *token)
}

// Refresh reloads both balances in parallel and returns the first failure.
func (c *Controller) Refresh(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = c.RefreshNative(ctx)
	}()
	go func() {
		defer wg.Done()
		errs[1] = c.RefreshToken(ctx)
	}()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// refreshAll is Refresh with every failure published as a notification.
func (c *Controller) refreshAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, fn := range []func(context.Context) error{c.RefreshNative, c.RefreshToken} {
		wg.Add(1)
		go func(refresh func(context.Context) error) {
			defer wg.Done()
			if err := refresh(ctx); err != nil {
				c.notifyError(err)
			}
		}(fn)
	}
	wg.Wait()
}

// Transfer sends amount of the selected token to recipient and waits for
// confirmation. Balances are reloaded afterwards.
func (c *Controller) Transfer(ctx context.Context, recipient, amount string) (models.TransferReceipt, error) {
	sel := c.selector.Selection()
	if sel.Token == nil {
		return models.TransferReceipt{}, walleterr.New(walleterr.Invalid, "No token is available on this network.")
	}
	req := models.TransferRequest{
		Token:     *sel.Token,
		Recipient: strings.TrimSpace(recipient),
		Amount:    strings.TrimSpace(amount),
	}
	hash, err := c.transfers.Transfer(ctx, req, c.conn.Session(), sel, c.balances.Token().Value)
	if err != nil {
		return models.TransferReceipt{}, err
	}

	network, _ := c.registry.Network(sel.NetworkID)
	receipt := models.TransferReceipt{
		TxID:        hash,
		ExplorerURL: utils.ExplorerTxURL(network.ExplorerURL, hash),
	}
	c.notify(Event{Type: EventTransferConfirmed, Data: receipt})
	c.notifyInfo("Transaction confirmed: " + hash)

	c.refreshAll(ctx)
	return receipt, nil
}
