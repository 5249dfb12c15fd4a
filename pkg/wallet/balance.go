package wallet

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"evmxfer/pkg/models"
	"evmxfer/pkg/walleterr"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

// DefaultMinLoadingTime keeps the refreshing indicator visible long enough to notice.
const DefaultMinLoadingTime = 200 * time.Millisecond

type balanceSlot struct {
	value    decimal.Decimal
	inflight int
	epoch    uint64
}

// BalanceService holds the displayed native and token balances. Each refresh is
// tagged with the slot epoch and owner address it was issued for; a result that
// arrives after a reset or for another address is dropped.
type BalanceService struct {
	provider   Provider
	minLoading time.Duration
	logger     *log.Logger

	mu       sync.Mutex
	native   balanceSlot
	token    balanceSlot
	owner    string
	bound    bool
	onChange func(models.BalanceEntry)
}

// NewBalanceService creates a service with zero balances. A negative minLoading
// selects DefaultMinLoadingTime.
func NewBalanceService(p Provider, minLoading time.Duration, logger *log.Logger) *BalanceService {
	if minLoading < 0 {
		minLoading = DefaultMinLoadingTime
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &BalanceService{
		provider:   p,
		minLoading: minLoading,
		logger:     logger,
		native:     balanceSlot{value: decimal.Zero},
		token:      balanceSlot{value: decimal.Zero},
	}
}

// OnChange registers fn to be called whenever an entry changes value or
// refreshing state. It must be set before the service is shared.
func (b *BalanceService) OnChange(fn func(models.BalanceEntry)) {
	b.onChange = fn
}

// Native returns the displayed native balance.
func (b *BalanceService) Native() models.BalanceEntry {
	return b.Entry(models.BalanceNative)
}

// Token returns the displayed token balance.
func (b *BalanceService) Token() models.BalanceEntry {
	return b.Entry(models.BalanceToken)
}

// Entry returns the displayed balance of kind.
func (b *BalanceService) Entry(kind models.BalanceKind) models.BalanceEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entryLocked(kind)
}

// Reset zeroes both balances and invalidates every refresh still in flight.
func (b *BalanceService) Reset() {
	b.mu.Lock()
	b.resetLocked(&b.native)
	b.resetLocked(&b.token)
	native, token := b.entryLocked(models.BalanceNative), b.entryLocked(models.BalanceToken)
	b.mu.Unlock()
	b.changed(native)
	b.changed(token)
}

// ResetToken zeroes only the token balance, used when another token is selected.
func (b *BalanceService) ResetToken() {
	b.mu.Lock()
	b.resetLocked(&b.token)
	token := b.entryLocked(models.BalanceToken)
	b.mu.Unlock()
	b.changed(token)
}

// Rebind resets both balances and accepts results only for address from now on.
// An empty address accepts none until the next Rebind.
func (b *BalanceService) Rebind(address string) {
	b.mu.Lock()
	b.owner = address
	b.bound = true
	b.resetLocked(&b.native)
	b.resetLocked(&b.token)
	native, token := b.entryLocked(models.BalanceNative), b.entryLocked(models.BalanceToken)
	b.mu.Unlock()
	b.changed(native)
	b.changed(token)
}

// RefreshNative reads the native balance of address, scaled by decimals.
func (b *BalanceService) RefreshNative(ctx context.Context, address string, decimals int32) error {
	return b.refresh(ctx, models.BalanceNative, address, func(ctx context.Context) (decimal.Decimal, error) {
		wei, err := b.provider.NativeBalance(ctx, address)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromBigInt(wei, -decimals), nil
	})
}

// RefreshToken reads the token balance of address on token's contract.
func (b *BalanceService) RefreshToken(ctx context.Context, address string, token models.TokenDescriptor) error {
	return b.refresh(ctx, models.BalanceToken, address, func(ctx context.Context) (decimal.Decimal, error) {
		raw, err := b.provider.TokenBalance(ctx, token.Address, address)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromBigInt(raw, -token.Decimals), nil
	})
}

func (b *BalanceService) refresh(ctx context.Context, kind models.BalanceKind, address string, read func(context.Context) (decimal.Decimal, error)) error {
	if address == "" {
		return nil
	}

	b.mu.Lock()
	slot := b.slot(kind)
	slot.inflight++
	epoch := slot.epoch
	started := b.entryLocked(kind)
	b.mu.Unlock()
	b.changed(started)

	start := time.Now()
	value, err := read(ctx)
	if wait := b.minLoading - time.Since(start); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	b.mu.Lock()
	slot.inflight--
	stale := slot.epoch != epoch || (b.bound && !strings.EqualFold(b.owner, address))
	if !stale {
		if err != nil {
			slot.value = decimal.Zero
		} else {
			slot.value = value
		}
	}
	done := b.entryLocked(kind)
	b.mu.Unlock()
	b.changed(done)

	if stale {
		b.logger.Debug("dropping stale balance result", "kind", kind, "address", address)
		return nil
	}
	if err != nil {
		b.logger.Warn("balance refresh failed", "kind", kind, "address", address, "err", err)
		ce := walleterr.Classify(err)
		if ce.Category == walleterr.Unknown {
			return walleterr.New(walleterr.Unknown, "Failed to fetch %s balance. Please try again.", kindLabel(kind))
		}
		return ce
	}
	b.logger.Debug("balance updated", "kind", kind, "address", address, "value", value.String())
	return nil
}

func (b *BalanceService) slot(kind models.BalanceKind) *balanceSlot {
	if kind == models.BalanceToken {
		return &b.token
	}
	return &b.native
}

func (b *BalanceService) entryLocked(kind models.BalanceKind) models.BalanceEntry {
	s := b.slot(kind)
	return models.BalanceEntry{Kind: kind, Value: s.value, IsRefreshing: s.inflight > 0}
}

func (b *BalanceService) resetLocked(s *balanceSlot) {
	s.value = decimal.Zero
	s.epoch++
}

func (b *BalanceService) changed(e models.BalanceEntry) {
	if b.onChange != nil {
		b.onChange(e)
	}
}

func kindLabel(kind models.BalanceKind) string {
	if kind == models.BalanceToken {
		return "token"
	}
	return "native token"
}
