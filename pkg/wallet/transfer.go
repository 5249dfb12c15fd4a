package wallet

import (
	"context"
	"io"
	"math/big"
	"regexp"
	"strings"
	"sync/atomic"

	"evmxfer/pkg/models"
	"evmxfer/pkg/walleterr"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// MaxAmountDecimals is the precision of the amount prefilled by MaxAmount.
const MaxAmountDecimals = 6

var amountPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// TransferExecutor validates and submits ERC-20 transfers.
type TransferExecutor struct {
	provider Provider
	logger   *log.Logger
	busy     atomic.Bool
}

// NewTransferExecutor creates an idle executor submitting through p.
func NewTransferExecutor(p Provider, logger *log.Logger) *TransferExecutor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &TransferExecutor{provider: p, logger: logger}
}

// InFlight reports whether a transfer is waiting for the wallet or the chain.
func (t *TransferExecutor) InFlight() bool {
	return t.busy.Load()
}

// Transfer validates req against the session, the selection and the displayed
// token balance, then submits it and waits for confirmation. Validation failures
// never reach the provider.
func (t *TransferExecutor) Transfer(ctx context.Context, req models.TransferRequest, session models.WalletSession, selection models.Selection, balance decimal.Decimal) (string, error) {
	units, err := ValidateTransfer(req, session, selection, balance)
	if err != nil {
		return "", err
	}
	if !t.busy.CompareAndSwap(false, true) {
		return "", walleterr.New(walleterr.RequestAlreadyPending, "A transfer is already in progress.")
	}
	defer t.busy.Store(false)

	t.logger.Info("submitting transfer",
		"token", req.Token.Symbol, "network", req.Token.Network,
		"recipient", req.Recipient, "amount", req.Amount)
	hash, err := t.provider.SubmitTokenTransfer(ctx, req.Token.Address, req.Recipient, units)
	if err != nil {
		ce := walleterr.Classify(err)
		t.logger.Warn("transfer failed", "token", req.Token.Symbol, "category", ce.Category, "err", ce.Message)
		return "", ce
	}
	t.logger.Info("transfer confirmed", "tx", hash)
	return hash, nil
}

// ValidateTransfer checks req and returns the amount in the token's smallest unit.
func ValidateTransfer(req models.TransferRequest, session models.WalletSession, selection models.Selection, balance decimal.Decimal) (*big.Int, error) {
	if !session.Connected() {
		return nil, walleterr.New(walleterr.Invalid, "Wallet is not connected.")
	}
	if selection.Token == nil || !selection.Token.Same(req.Token) || req.Token.Network != selection.NetworkID {
		return nil, walleterr.New(walleterr.Invalid, "The token does not match the selected network and token.")
	}
	if !common.IsHexAddress(strings.TrimSpace(req.Recipient)) {
		return nil, walleterr.New(walleterr.Invalid, "Invalid recipient address.")
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance) {
		return nil, walleterr.New(walleterr.Invalid, "Amount exceeds available balance.")
	}
	return ScaleAmount(amount, req.Token.Decimals)
}

// ParseAmount parses a user-entered decimal amount that must be greater than zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, walleterr.New(walleterr.Invalid, "Enter a valid amount.")
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	amount, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return decimal.Zero, walleterr.New(walleterr.Invalid, "Enter a valid amount.")
	}
	if !amount.IsPositive() {
		return decimal.Zero, walleterr.New(walleterr.Invalid, "Amount must be greater than 0.")
	}
	return amount, nil
}

// ScaleAmount converts amount to an integer count of 10^-decimals units. Amounts
// with more fractional digits than the token supports are rejected.
func ScaleAmount(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if -amount.Exponent() > decimals && !amount.Equal(amount.Truncate(decimals)) {
		return nil, walleterr.New(walleterr.Invalid, "Amount has more than %d decimal places.", decimals)
	}
	return amount.Shift(decimals).BigInt(), nil
}

// MaxAmount formats balance for the amount field, truncated so it never exceeds
// the balance.
func MaxAmount(balance decimal.Decimal) string {
	if !balance.IsPositive() {
		return "0"
	}
	return balance.Truncate(MaxAmountDecimals).StringFixed(MaxAmountDecimals)
}
