package config

import (
	"fmt"
	"strings"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if !strings.HasPrefix(cfg.Indexer.Endpoint, "ws://") && !strings.HasPrefix(cfg.Indexer.Endpoint, "wss://") {
		return fmt.Errorf("indexer.endpoint must be a ws:// or wss:// URL")
	}
	if cfg.Indexer.BaseDelay <= 0 {
		return fmt.Errorf("indexer.base_delay must be positive")
	}
	if cfg.Indexer.MaxDelay < cfg.Indexer.BaseDelay {
		return fmt.Errorf("indexer.max_delay must be >= indexer.base_delay")
	}
	if cfg.Indexer.MaxAttempts < 1 {
		return fmt.Errorf("indexer.max_attempts must be at least 1")
	}
	if cfg.Indexer.LivenessInterval <= 0 {
		return fmt.Errorf("indexer.liveness_interval must be positive")
	}
	if cfg.Fees.FeeRate == 0 {
		return fmt.Errorf("fees.fee_rate must be positive")
	}
	if cfg.Fees.MaxTxInputs < 1 {
		return fmt.Errorf("fees.max_tx_inputs must be at least 1")
	}
	if cfg.Scanner.DefaultCount < 1 || cfg.Scanner.MaxCount < cfg.Scanner.DefaultCount {
		return fmt.Errorf("scanner counts must satisfy 1 <= default_count <= max_count")
	}
	return nil
}
