package config

import (
	"fmt"

	"signescrow/core/types"
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.NetworkName == "" {
		return fmt.Errorf("config: NetworkName required")
	}
	switch c.Storage.Backend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("config: storage: unsupported backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != "memory" && c.DataDir == "" {
		return fmt.Errorf("config: DataDir required for %s storage", c.Storage.Backend)
	}
	l := c.Ledger
	if l.MinPersistentTTL == 0 || l.MinTemporaryTTL == 0 {
		return fmt.Errorf("config: ledger: minimum TTLs must be positive")
	}
	if l.MaxEntryTTL < l.MinPersistentTTL || l.MaxEntryTTL < l.MinTemporaryTTL {
		return fmt.Errorf("config: ledger: MaxEntryTTL below a minimum TTL")
	}
	for _, field := range []struct{ name, value string }{
		{"AssetAdmin", c.Genesis.AssetAdmin},
		{"OracleAdmin", c.Genesis.OracleAdmin},
	} {
		if field.value == "" {
			continue
		}
		if _, err := types.ParsePrincipal(field.value); err != nil {
			return fmt.Errorf("config: genesis: %s: %w", field.name, err)
		}
	}
	for i, alloc := range c.Genesis.Allocations {
		if _, err := types.ParsePrincipal(alloc.Address); err != nil {
			return fmt.Errorf("config: genesis: allocation %d: %w", i, err)
		}
		amount, err := types.ParseAmount(alloc.Amount)
		if err != nil {
			return fmt.Errorf("config: genesis: allocation %d: %w", i, err)
		}
		if amount.Sign() < 0 {
			return fmt.Errorf("config: genesis: allocation %d: negative amount", i)
		}
	}
	if c.RPC.Address == "" {
		return fmt.Errorf("config: rpc: Address required")
	}
	if c.RPC.RateLimitPerSec < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("config: rpc: negative rate limit")
	}
	switch c.EventLog.Driver {
	case "":
	case "sqlite", "postgres":
		if c.EventLog.DSN == "" {
			return fmt.Errorf("config: eventlog: DSN required for %s", c.EventLog.Driver)
		}
	default:
		return fmt.Errorf("config: eventlog: unsupported driver %q", c.EventLog.Driver)
	}
	if c.Telemetry.Sampling < 0 || c.Telemetry.Sampling > 1 {
		return fmt.Errorf("config: telemetry: Sampling must be within [0,1]")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging: unknown level %q", c.Logging.Level)
	}
	return nil
}
