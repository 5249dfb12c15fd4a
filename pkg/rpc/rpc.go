package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

var DialTimeout = 10 * time.Second

// DefaultReceiptPoll is how often a submitted transaction is checked for a receipt.
const DefaultReceiptPoll = time.Second

var (
	// balanceOf(address)
	balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}
	// transfer(address,uint256)
	transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}
)

// ErrNoSender is returned when a transfer is submitted before any account was exposed.
var ErrNoSender = errors.New("no wallet account available to send from")

// WalletProvider talks to an EIP-1193 style wallet over JSON-RPC. Account and
// chain requests go to the wallet itself; reads use the same endpoint through
// ethclient.
type WalletProvider struct {
	client      *gethrpc.Client
	eth         *ethclient.Client
	receiptPoll time.Duration
	logger      *log.Logger

	mu     sync.Mutex
	sender string
}

// Dial connects to the wallet endpoint at url (http, ws or ipc).
func Dial(ctx context.Context, url string, receiptPoll time.Duration, logger *log.Logger) (*WalletProvider, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()
	c, err := gethrpc.DialContext(dialCtx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet %s: %w", url, err)
	}
	return NewWalletProvider(c, receiptPoll, logger), nil
}

// NewWalletProvider wraps an existing RPC client.
func NewWalletProvider(c *gethrpc.Client, receiptPoll time.Duration, logger *log.Logger) *WalletProvider {
	if receiptPoll <= 0 {
		receiptPoll = DefaultReceiptPoll
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &WalletProvider{
		client:      c,
		eth:         ethclient.NewClient(c),
		receiptPoll: receiptPoll,
		logger:      logger,
	}
}

// Close closes the underlying RPC connection.
func (p *WalletProvider) Close() {
	p.client.Close()
}

// RequestAccounts asks the wallet for access (eth_requestAccounts).
func (p *WalletProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	return p.accounts(ctx, "eth_requestAccounts")
}

// Accounts lists the exposed accounts without prompting (eth_accounts).
func (p *WalletProvider) Accounts(ctx context.Context) ([]string, error) {
	return p.accounts(ctx, "eth_accounts")
}

func (p *WalletProvider) accounts(ctx context.Context, method string) ([]string, error) {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, method); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if len(accounts) > 0 {
		p.sender = accounts[0]
	} else {
		p.sender = ""
	}
	p.mu.Unlock()
	return accounts, nil
}

// ChainID returns the chain the wallet is currently on.
func (p *WalletProvider) ChainID(ctx context.Context) (int64, error) {
	id, err := p.eth.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

// SwitchChain asks the wallet to move to chainIDHex (wallet_switchEthereumChain).
func (p *WalletProvider) SwitchChain(ctx context.Context, chainIDHex string) error {
	params := map[string]string{"chainId": chainIDHex}
	return p.client.CallContext(ctx, nil, "wallet_switchEthereumChain", params)
}

// NativeBalance returns the balance of address in wei at the latest block.
func (p *WalletProvider) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	return p.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
}

// TokenBalance calls the ERC-20 balanceOf of contract for holder.
func (p *WalletProvider) TokenBalance(ctx context.Context, contract, holder string) (*big.Int, error) {
	data := make([]byte, 4+32)
	copy(data[0:4], balanceOfSelector)
	copy(data[4+12:], common.HexToAddress(holder).Bytes())
	tokenAddr := common.HexToAddress(contract)
	result, err := p.eth.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(result), nil
}

// SubmitTokenTransfer asks the wallet to sign and send an ERC-20 transfer from the
// current account, then blocks until the transaction is mined.
func (p *WalletProvider) SubmitTokenTransfer(ctx context.Context, contract, recipient string, amount *big.Int) (string, error) {
	p.mu.Lock()
	from := p.sender
	p.mu.Unlock()
	if from == "" {
		return "", ErrNoSender
	}

	tx := map[string]any{
		"from": from,
		"to":   common.HexToAddress(contract).Hex(),
		"data": hexutil.Bytes(TransferCalldata(recipient, amount)),
	}
	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return "", err
	}
	p.logger.Debug("transaction submitted", "tx", hash.Hex(), "from", from)

	if err := p.waitMined(ctx, hash); err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (p *WalletProvider) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(p.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := p.eth.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return nil
		case !errors.Is(err, ethereum.NotFound):
			return err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TransferCalldata encodes transfer(recipient, amount).
func TransferCalldata(recipient string, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(strings.TrimSpace(recipient)).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
