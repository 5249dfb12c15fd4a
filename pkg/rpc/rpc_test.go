package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"evmxfer/pkg/config"
	"evmxfer/pkg/wallet"
	"evmxfer/pkg/walleterr"
)

var _ wallet.Provider = (*WalletProvider)(nil)

const (
	testAccount = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	testToken   = "0x1234567890123456789012345678901234567890"
	testTxHash  = "0x00000000000000000000000000000000000000000000000000000000000000aa"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(params []json.RawMessage) (interface{}, *rpcError)

// fakeWallet is a JSON-RPC server answering the wallet methods in handlers.
type fakeWallet struct {
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string][][]json.RawMessage
}

func newFakeWallet(t *testing.T, handlers map[string]handlerFunc) (*fakeWallet, string) {
	t.Helper()
	fw := &fakeWallet{handlers: handlers, calls: make(map[string][][]json.RawMessage)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		fw.mu.Lock()
		fw.calls[req.Method] = append(fw.calls[req.Method], req.Params)
		h := fw.handlers[req.Method]
		fw.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if h == nil {
			resp["error"] = rpcError{Code: -32601, Message: "method not found"}
		} else if result, rerr := h(req.Params); rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return fw, server.URL
}

func (fw *fakeWallet) callsTo(method string) [][]json.RawMessage {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.calls[method]
}

func result(v interface{}) handlerFunc {
	return func([]json.RawMessage) (interface{}, *rpcError) { return v, nil }
}

func dial(t *testing.T, url string) *WalletProvider {
	t.Helper()
	p, err := Dial(context.Background(), url, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestWalletProvider_AccountsAndChain(t *testing.T) {
	_, url := newFakeWallet(t, map[string]handlerFunc{
		"eth_requestAccounts": result([]string{testAccount}),
		"eth_accounts":        result([]string{}),
		"eth_chainId":         result("0x89"),
	})
	p := dial(t, url)
	ctx := context.Background()

	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		t.Fatalf("RequestAccounts error: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != testAccount {
		t.Errorf("Unexpected accounts %v", accounts)
	}

	id, err := p.ChainID(ctx)
	if err != nil {
		t.Fatalf("ChainID error: %v", err)
	}
	if id != 137 {
		t.Errorf("Expected chain id 137, got %d", id)
	}

	accounts, err = p.Accounts(ctx)
	if err != nil || len(accounts) != 0 {
		t.Errorf("Expected no accounts, got %v (%v)", accounts, err)
	}
}

func TestWalletProvider_SwitchChain(t *testing.T) {
	fw, url := newFakeWallet(t, map[string]handlerFunc{
		"wallet_switchEthereumChain": func(params []json.RawMessage) (interface{}, *rpcError) {
			var arg struct {
				ChainID string `json:"chainId"`
			}
			_ = json.Unmarshal(params[0], &arg)
			if arg.ChainID == "0x1" {
				return nil, &rpcError{Code: 4001, Message: "User rejected the request."}
			}
			return nil, nil
		},
	})
	p := dial(t, url)

	if err := p.SwitchChain(context.Background(), "0xaa36a7"); err != nil {
		t.Fatalf("SwitchChain error: %v", err)
	}
	if got := string(fw.callsTo("wallet_switchEthereumChain")[0][0]); !strings.Contains(got, `"0xaa36a7"`) {
		t.Errorf("Unexpected switch params %s", got)
	}

	err := p.SwitchChain(context.Background(), "0x1")
	if err == nil {
		t.Fatal("Expected rejection")
	}
	if ce := walleterr.Classify(err); ce.Category != walleterr.UserRejected {
		t.Errorf("Expected user_rejected, got %s (%s)", ce.Category, ce.Message)
	}
}

func TestWalletProvider_Balances(t *testing.T) {
	fw, url := newFakeWallet(t, map[string]handlerFunc{
		"eth_getBalance": result("0x14d1120d7b160000"),
		"eth_call":       result("0x000000000000000000000000000000000000000000000000000000001dcd6500"),
	})
	p := dial(t, url)
	ctx := context.Background()

	native, err := p.NativeBalance(ctx, testAccount)
	if err != nil {
		t.Fatalf("NativeBalance error: %v", err)
	}
	if native.String() != "1500000000000000000" {
		t.Errorf("Expected 1.5e18 wei, got %s", native)
	}

	tok, err := p.TokenBalance(ctx, testToken, testAccount)
	if err != nil {
		t.Fatalf("TokenBalance error: %v", err)
	}
	if tok.Int64() != 500_000_000 {
		t.Errorf("Expected 500000000, got %s", tok)
	}

	var call struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Input string `json:"input"`
	}
	_ = json.Unmarshal(fw.callsTo("eth_call")[0][0], &call)
	if !strings.EqualFold(call.To, testToken) {
		t.Errorf("eth_call sent to %s", call.To)
	}
	if data := call.Input + call.Data; !strings.HasPrefix(strings.ToLower(data), "0x70a08231") {
		t.Errorf("Expected balanceOf selector, got %s", data)
	}
}

func receipt(status string) map[string]interface{} {
	return map[string]interface{}{
		"status":            status,
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"logsBloom":         "0x" + strings.Repeat("00", 256),
		"logs":              []interface{}{},
		"transactionHash":   testTxHash,
		"transactionIndex":  "0x0",
		"blockNumber":       "0x10",
		"blockHash":         "0x0000000000000000000000000000000000000000000000000000000000000001",
		"contractAddress":   nil,
		"type":              "0x2",
	}
}

func TestWalletProvider_SubmitTokenTransfer(t *testing.T) {
	var polls atomic.Int32
	fw, url := newFakeWallet(t, map[string]handlerFunc{
		"eth_requestAccounts": result([]string{testAccount}),
		"eth_sendTransaction": result(testTxHash),
		"eth_getTransactionReceipt": func([]json.RawMessage) (interface{}, *rpcError) {
			if polls.Add(1) < 3 {
				return nil, nil
			}
			return receipt("0x1"), nil
		},
	})
	p := dial(t, url)
	ctx := context.Background()

	if _, err := p.SubmitTokenTransfer(ctx, testToken, testAccount, big.NewInt(1)); err != ErrNoSender {
		t.Fatalf("Expected ErrNoSender before accounts are known, got %v", err)
	}
	if _, err := p.RequestAccounts(ctx); err != nil {
		t.Fatal(err)
	}

	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	hash, err := p.SubmitTokenTransfer(ctx, testToken, "0x3333333333333333333333333333333333333333", amount)
	if err != nil {
		t.Fatalf("SubmitTokenTransfer error: %v", err)
	}
	if hash != testTxHash {
		t.Errorf("Expected hash %s, got %s", testTxHash, hash)
	}
	if n := polls.Load(); n != 3 {
		t.Errorf("Expected 3 receipt polls, got %d", n)
	}

	var tx struct {
		From string `json:"from"`
		To   string `json:"to"`
		Data string `json:"data"`
	}
	_ = json.Unmarshal(fw.callsTo("eth_sendTransaction")[0][0], &tx)
	if !strings.EqualFold(tx.From, testAccount) || !strings.EqualFold(tx.To, testToken) {
		t.Errorf("Unexpected tx envelope %+v", tx)
	}
	want := "0x" + hex.EncodeToString(TransferCalldata("0x3333333333333333333333333333333333333333", amount))
	if !strings.EqualFold(tx.Data, want) {
		t.Errorf("Unexpected calldata %s", tx.Data)
	}
}

func TestWalletProvider_SubmitTokenTransferReverted(t *testing.T) {
	_, url := newFakeWallet(t, map[string]handlerFunc{
		"eth_requestAccounts":       result([]string{testAccount}),
		"eth_sendTransaction":       result(testTxHash),
		"eth_getTransactionReceipt": result(receipt("0x0")),
	})
	p := dial(t, url)
	_, _ = p.RequestAccounts(context.Background())

	_, err := p.SubmitTokenTransfer(context.Background(), testToken, testAccount, big.NewInt(1))
	if err == nil || !strings.Contains(err.Error(), "reverted") {
		t.Errorf("Expected revert error, got %v", err)
	}
}

func TestWalletProvider_SubmitRejected(t *testing.T) {
	_, url := newFakeWallet(t, map[string]handlerFunc{
		"eth_requestAccounts": result([]string{testAccount}),
		"eth_sendTransaction": func([]json.RawMessage) (interface{}, *rpcError) {
			return nil, &rpcError{Code: 4001, Message: "User denied transaction signature."}
		},
	})
	p := dial(t, url)
	_, _ = p.RequestAccounts(context.Background())

	_, err := p.SubmitTokenTransfer(context.Background(), testToken, testAccount, big.NewInt(1))
	if ce := walleterr.Classify(err); ce == nil || ce.Category != walleterr.UserRejected {
		t.Errorf("Expected user_rejected, got %v", err)
	}
}

func TestTransferCalldata(t *testing.T) {
	data := TransferCalldata("0x3333333333333333333333333333333333333333", big.NewInt(255))
	if len(data) != 68 {
		t.Fatalf("Expected 68 bytes, got %d", len(data))
	}
	if hex.EncodeToString(data[:4]) != "a9059cbb" {
		t.Errorf("Unexpected selector %x", data[:4])
	}
	if data[67] != 0xff || data[35] != 0x33 || data[15] != 0 {
		t.Errorf("Unexpected encoding %x", data)
	}
}

func TestCheckConfig(t *testing.T) {
	_, good := newFakeWallet(t, map[string]handlerFunc{"eth_chainId": result("0x89")})
	_, other := newFakeWallet(t, map[string]handlerFunc{"eth_chainId": result("0x1")})

	cfg := config.Config{
		Networks: []config.NetworkConfig{
			{Key: "polygon", Name: "Polygon", ChainID: 137, RPCURLs: []string{good}},
			{Key: "fresh", Name: "Fresh", RPCURLs: []string{good}},
			{Key: "split", Name: "Split", ChainID: 137, RPCURLs: []string{good, other}},
		},
		GlobalConfig: config.DefaultGlobalConfig(),
	}

	report := CheckConfig(context.Background(), &cfg)
	if !report.ValidStructure {
		t.Fatalf("Unexpected structure errors %v", report.StructureErrors)
	}
	if !report.ConfigUpdated || cfg.Networks[1].ChainID != 137 {
		t.Errorf("Expected fresh network chain id to be filled, got %d", cfg.Networks[1].ChainID)
	}
	if len(report.InconsistentNetworks) != 1 || report.InconsistentNetworks[0] != "split" {
		t.Errorf("Expected split to be inconsistent, got %v", report.InconsistentNetworks)
	}
	split := report.Networks[2]
	if split.RPCs[1].Error == "" {
		t.Error("Expected mismatch error on the second split RPC")
	}
	if split.RPCs[0].Status != "ok" || split.RPCs[0].Latency <= 0 {
		t.Errorf("Unexpected first RPC result %+v", split.RPCs[0])
	}
}

func TestCheckConfig_InvalidStructure(t *testing.T) {
	report := CheckConfig(context.Background(), &config.Config{})
	if report.ValidStructure || len(report.StructureErrors) == 0 {
		t.Errorf("Expected structure errors, got %+v", report)
	}
}

func TestProbeRPC_Unreachable(t *testing.T) {
	res := ProbeRPC(context.Background(), "http://127.0.0.1:1")
	if res.Status != "error" || res.Error == "" {
		t.Errorf("Expected error result, got %+v", res)
	}
}
