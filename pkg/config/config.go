package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const ConfigFileName = ".evmxfer.json"

// TokenConfig holds configuration for an ERC-20 token.
type TokenConfig struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	Network  string `json:"network"`
}

// NetworkConfig holds configuration for a specific EVM network.
type NetworkConfig struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	ChainID        int64    `json:"chain_id,omitempty"`
	Symbol         string   `json:"symbol"`
	NativeDecimals int      `json:"native_decimals,omitempty"`
	ExplorerURL    string   `json:"explorer_url,omitempty"`
	RPCURLs        []string `json:"rpc_urls,omitempty"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	WalletURL             string `json:"wallet_url"`
	DefaultNetwork        string `json:"default_network"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`
	MinLoadingMillis      int    `json:"min_loading_ms"`
	PollIntervalSeconds   int    `json:"poll_interval_seconds"`
	ReceiptPollMillis     int    `json:"receipt_poll_ms"`
	TokenDecimals         int    `json:"token_decimals"`
	LogLevel              string `json:"log_level"`
}

// Config is the whole configuration file.
type Config struct {
	Networks []NetworkConfig `json:"networks"`
	Tokens   []TokenConfig   `json:"tokens"`
	GlobalConfig
}

// ConnectTimeout returns the connect handshake bound.
func (g GlobalConfig) ConnectTimeout() time.Duration {
	return time.Duration(g.ConnectTimeoutSeconds) * time.Second
}

// MinLoading returns the minimum visible balance refresh duration.
func (g GlobalConfig) MinLoading() time.Duration {
	return time.Duration(g.MinLoadingMillis) * time.Millisecond
}

// PollInterval returns how often the provider is polled for account and chain changes.
func (g GlobalConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSeconds) * time.Second
}

// ReceiptPoll returns how often a pending transaction receipt is polled.
func (g GlobalConfig) ReceiptPoll() time.Duration {
	return time.Duration(g.ReceiptPollMillis) * time.Millisecond
}

// DefaultGlobalConfig returns the settings used when the file omits them.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		WalletURL:             "http://127.0.0.1:8545",
		DefaultNetwork:        "polygon",
		ConnectTimeoutSeconds: 30,
		MinLoadingMillis:      200,
		PollIntervalSeconds:   4,
		ReceiptPollMillis:     1000,
		TokenDecimals:         6,
		LogLevel:              "info",
	}
}

// DefaultConfig returns a configuration with the bundled networks and test tokens.
func DefaultConfig() Config {
	return Config{
		Networks: []NetworkConfig{
			{
				Key:            "polygon",
				Name:           "Polygon",
				ChainID:        137,
				Symbol:         "POL",
				NativeDecimals: 18,
				ExplorerURL:    "https://polygonscan.com",
				RPCURLs:        []string{"https://polygon-rpc.com"},
			},
			{
				Key:            "ethereumSepolia",
				Name:           "Ethereum Sepolia",
				ChainID:        11155111,
				Symbol:         "ETH",
				NativeDecimals: 18,
				ExplorerURL:    "https://sepolia.etherscan.io",
				RPCURLs:        []string{"https://ethereum-sepolia-rpc.publicnode.com"},
			},
		},
		Tokens: []TokenConfig{
			{
				Symbol:   "TTK",
				Name:     "Test Token",
				Address:  "0x0000000000000000000000000000000000001001",
				Decimals: 18,
				Network:  "polygon",
			},
			{
				Symbol:   "TE",
				Name:     "Test Eth",
				Address:  "0x0000000000000000000000000000000000001002",
				Decimals: 18,
				Network:  "ethereumSepolia",
			},
		},
		GlobalConfig: DefaultGlobalConfig(),
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// LoadConfigFromFile reads the config at path, falling back to DefaultConfig when
// the file does not exist.
func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Networks              []NetworkConfig `json:"networks"`
		Tokens                []TokenConfig   `json:"tokens"`
		WalletURL             *string         `json:"wallet_url"`
		DefaultNetwork        *string         `json:"default_network"`
		ConnectTimeoutSeconds *int            `json:"connect_timeout_seconds"`
		MinLoadingMillis      *int            `json:"min_loading_ms"`
		PollIntervalSeconds   *int            `json:"poll_interval_seconds"`
		ReceiptPollMillis     *int            `json:"receipt_poll_ms"`
		TokenDecimals         *int            `json:"token_decimals"`
		LogLevel              *string         `json:"log_level"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	g := DefaultGlobalConfig()
	if raw.WalletURL != nil {
		g.WalletURL = strings.TrimSpace(*raw.WalletURL)
	}
	if raw.DefaultNetwork != nil {
		g.DefaultNetwork = strings.TrimSpace(*raw.DefaultNetwork)
	}
	if raw.ConnectTimeoutSeconds != nil && *raw.ConnectTimeoutSeconds > 0 {
		g.ConnectTimeoutSeconds = *raw.ConnectTimeoutSeconds
	}
	if raw.MinLoadingMillis != nil && *raw.MinLoadingMillis >= 0 {
		g.MinLoadingMillis = *raw.MinLoadingMillis
	}
	if raw.PollIntervalSeconds != nil && *raw.PollIntervalSeconds >= 0 {
		g.PollIntervalSeconds = *raw.PollIntervalSeconds
	}
	if raw.ReceiptPollMillis != nil && *raw.ReceiptPollMillis > 0 {
		g.ReceiptPollMillis = *raw.ReceiptPollMillis
	}
	if raw.TokenDecimals != nil {
		g.TokenDecimals = *raw.TokenDecimals
	}
	if raw.LogLevel != nil {
		g.LogLevel = strings.TrimSpace(*raw.LogLevel)
	}

	for i := range raw.Networks {
		n := &raw.Networks[i]
		n.Key = strings.TrimSpace(n.Key)
		if n.Key == "" {
			n.Key = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(n.Name), " ", ""))
		}
		if n.NativeDecimals == 0 {
			n.NativeDecimals = 18
		}
		n.ExplorerURL = strings.TrimRight(strings.TrimSpace(n.ExplorerURL), "/")
	}

	if len(raw.Networks) > 0 && g.DefaultNetwork != "" {
		found := false
		for _, n := range raw.Networks {
			if n.Key == g.DefaultNetwork {
				found = true
				break
			}
		}
		if !found {
			g.DefaultNetwork = raw.Networks[0].Key
		}
	}

	return Config{Networks: raw.Networks, Tokens: raw.Tokens, GlobalConfig: g}, nil
}

// Validate checks the structure of the registry part of the configuration.
func (c Config) Validate() []string {
	var problems []string
	if len(c.Networks) == 0 {
		problems = append(problems, "configuration must have at least one network")
	}
	seen := make(map[string]bool)
	for i, n := range c.Networks {
		if strings.TrimSpace(n.Key) == "" {
			problems = append(problems, fmt.Sprintf("network at index %d has no key", i))
			continue
		}
		if seen[n.Key] {
			problems = append(problems, fmt.Sprintf("duplicate network key %s", n.Key))
		}
		seen[n.Key] = true
		if n.ChainID < 0 {
			problems = append(problems, fmt.Sprintf("network %s has a negative chain id", n.Key))
		}
		if n.NativeDecimals < 0 || n.NativeDecimals > 36 {
			problems = append(problems, fmt.Sprintf("network %s has invalid native decimals %d", n.Key, n.NativeDecimals))
		}
	}
	for i, t := range c.Tokens {
		if strings.TrimSpace(t.Symbol) == "" {
			problems = append(problems, fmt.Sprintf("token at index %d has no symbol", i))
		}
		if !common.IsHexAddress(t.Address) {
			problems = append(problems, fmt.Sprintf("token %s has invalid address %q", t.Symbol, t.Address))
		}
		if t.Decimals < 0 || t.Decimals > 36 {
			problems = append(problems, fmt.Sprintf("token %s has invalid decimals %d", t.Symbol, t.Decimals))
		}
		if !seen[t.Network] {
			problems = append(problems, fmt.Sprintf("token %s references unknown network %q", t.Symbol, t.Network))
		}
	}
	return problems
}

func SaveConfig(cfg Config, path string) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("validation failed: %s", problems[0])
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
