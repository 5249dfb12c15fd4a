package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the connection state of the wallet session.
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
)

// WalletSession holds the connected wallet. Address is set iff Status is StatusConnected.
type WalletSession struct {
	ID      string        `json:"id,omitempty"`
	Address string        `json:"address"`
	Status  SessionStatus `json:"status"`
}

// Connected reports whether the session is usable for provider calls.
func (s WalletSession) Connected() bool {
	return s.Status == StatusConnected && s.Address != ""
}

// NetworkDescriptor describes a supported EVM network.
type NetworkDescriptor struct {
	ID          string   `json:"id"`
	ChainID     int64    `json:"chain_id"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    int32    `json:"decimals"`
	ExplorerURL string   `json:"explorer_url"`
	RPCURLs     []string `json:"rpc_urls,omitempty"`
}

// ChainIDHex returns the chain id in the 0x-prefixed form wallet_switchEthereumChain expects.
func (n NetworkDescriptor) ChainIDHex() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

// TokenDescriptor describes an ERC-20 token on a single network.
type TokenDescriptor struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
	Network  string `json:"network"`
}

// Same reports whether both descriptors name the same contract on the same network.
func (t TokenDescriptor) Same(o TokenDescriptor) bool {
	return t.Network == o.Network && strings.EqualFold(t.Address, o.Address)
}

// Selection is the chosen network and, when the network has tokens, one of its tokens.
type Selection struct {
	NetworkID string           `json:"network_id"`
	Token     *TokenDescriptor `json:"token,omitempty"`
}

// BalanceKind distinguishes the native currency from the selected token.
type BalanceKind string

const (
	BalanceNative BalanceKind = "native"
	BalanceToken  BalanceKind = "token"
)

// BalanceEntry is the displayed balance of one kind.
type BalanceEntry struct {
	Kind         BalanceKind     `json:"kind"`
	Value        decimal.Decimal `json:"value"`
	IsRefreshing bool            `json:"is_refreshing"`
}

// TransferRequest is built right before submission and discarded afterwards.
type TransferRequest struct {
	Token     TokenDescriptor `json:"token"`
	Recipient string          `json:"recipient"`
	Amount    string          `json:"amount"`
}

// TransferReceipt is returned once a transfer is confirmed on chain.
type TransferReceipt struct {
	TxID        string `json:"tx_id"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// RPCCheck holds the result of probing one RPC URL.
type RPCCheck struct {
	URL     string        `json:"url"`
	Status  string        `json:"status"` // "ok" or "error"
	ChainID int64         `json:"chain_id,omitempty"`
	Latency time.Duration `json:"latency,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// NetworkCheck holds the probe results for a network.
type NetworkCheck struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	ConfigChainID   int64      `json:"config_chain_id"`
	RPCs            []RPCCheck `json:"rpcs"`
	Inconsistent    bool       `json:"inconsistent"`
	ChainIDUpdated  bool       `json:"chain_id_updated"`
	ObservedChainID int64      `json:"observed_chain_id,omitempty"`
}

// CheckReport holds the results of the configuration check.
type CheckReport struct {
	ConfigPath           string         `json:"config_path"`
	ValidStructure       bool           `json:"valid_structure"`
	StructureErrors      []string       `json:"structure_errors,omitempty"`
	NetworkCount         int            `json:"network_count"`
	TokenCount           int            `json:"token_count"`
	Networks             []NetworkCheck `json:"networks,omitempty"`
	InconsistentNetworks []string       `json:"inconsistent_networks,omitempty"`
	ConfigUpdated        bool           `json:"config_updated"`
	SaveError            string         `json:"save_error,omitempty"`
	DryRun               bool           `json:"dry_run"`
}
