package wallet

import (
	"context"
	"math/big"
)

// Provider is the wallet capability the core drives. Implementations talk to an
// EIP-1193 style wallet endpoint; every method may block on user interaction.
type Provider interface {
	// RequestAccounts asks the wallet for account access and may prompt the user.
	RequestAccounts(ctx context.Context) ([]string, error)
	// Accounts returns the currently exposed accounts without prompting.
	Accounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (int64, error)
	// SwitchChain asks the wallet to change its active chain. chainIDHex is 0x-prefixed.
	SwitchChain(ctx context.Context, chainIDHex string) error
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	TokenBalance(ctx context.Context, contract, holder string) (*big.Int, error)
	// SubmitTokenTransfer sends an ERC-20 transfer and returns its hash once mined.
	SubmitTokenTransfer(ctx context.Context, contract, recipient string, amount *big.Int) (string, error)
}
