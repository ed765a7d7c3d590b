// Package config holds runtime configuration for the Agora wallet engine.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Coin unit constants. Amounts are integer motes everywhere; decimal AGO
// strings exist only at the presentation boundary.
const (
	Decimals = 8
	Coin     = 100_000_000 // motes per AGO
)

// Config is the wallet engine configuration.
type Config struct {
	Network NetworkType `json:"network"`
	DataDir string      `json:"data_dir"`

	Indexer IndexerConfig `json:"indexer"`
	Fees    FeeConfig     `json:"fees"`
	Scanner ScannerConfig `json:"scanner"`
	Log     LogConfig     `json:"log"`
}

// IndexerConfig controls the single indexer connection and its retry policy.
type IndexerConfig struct {
	Endpoint string `json:"endpoint"` // websocket URL, e.g. ws://127.0.0.1:8645/ws

	// Reconnect backoff: BaseDelay doubled per attempt, capped at MaxDelay,
	// giving up after MaxAttempts and surfacing an error state.
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	MaxAttempts int           `json:"max_attempts"`

	// LivenessInterval is how often the connection is pinged to detect
	// silent disconnects.
	LivenessInterval time.Duration `json:"liveness_interval"`

	// CallTimeout bounds a single request/response round trip.
	CallTimeout time.Duration `json:"call_timeout"`
}

// FeeConfig controls transaction planning.
type FeeConfig struct {
	FeeRate       uint64 `json:"fee_rate"`       // motes per canonical byte
	DustThreshold uint64 `json:"dust_threshold"` // change below this is swept into the fee
	MaxTxInputs   int    `json:"max_tx_inputs"`  // plans split past this many inputs per transaction
}

// ScannerConfig bounds imported-wallet address discovery.
type ScannerConfig struct {
	DefaultCount int `json:"default_count"`
	MaxCount     int `json:"max_count"`
}

// LogConfig controls engine logging.
type LogConfig struct {
	Level string `json:"level"`
	JSON  bool   `json:"json"`
}

// CoinbaseMaturity is the number of confirmations a coinbase output needs
// before it is spendable (part of the vesting rule).
const CoinbaseMaturity = 100

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	cfg := &Config{
		Network: network,
		DataDir: DefaultDataDir(),
		Indexer: IndexerConfig{
			Endpoint:         "ws://127.0.0.1:8645/ws",
			BaseDelay:        2 * time.Second,
			MaxDelay:         60 * time.Second,
			MaxAttempts:      10,
			LivenessInterval: 2 * time.Second,
			CallTimeout:      10 * time.Second,
		},
		Fees: FeeConfig{
			FeeRate:       1,
			DustThreshold: 1_000,
			MaxTxInputs:   32,
		},
		Scanner: ScannerConfig{
			DefaultCount: 10,
			MaxCount:     100,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
	if network == Testnet {
		cfg.Indexer.Endpoint = "ws://127.0.0.1:8745/ws"
	}
	return cfg
}

// DefaultDataDir returns the platform-specific default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agora"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Agora")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Agora")
		}
		return filepath.Join(home, "AppData", "Roaming", "Agora")
	default:
		return filepath.Join(home, ".agora")
	}
}
