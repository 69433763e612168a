package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration file.
type Config struct {
	NetworkName string `toml:"NetworkName"`
	Environment string `toml:"Environment"`
	DataDir     string `toml:"DataDir"`

	Storage   Storage   `toml:"storage"`
	Ledger    Ledger    `toml:"ledger"`
	Genesis   Genesis   `toml:"genesis"`
	RPC       RPC       `toml:"rpc"`
	EventLog  EventLog  `toml:"eventlog"`
	Telemetry Telemetry `toml:"telemetry"`
	Logging   Logging   `toml:"logging"`
}

// Load reads the configuration at path. A missing file is created with the
// defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		NetworkName: "signescrow-local",
		Environment: "dev",
		DataDir:     "./signescrow-data",
		Storage:     Storage{Backend: "leveldb"},
		Ledger: Ledger{
			MinPersistentTTL: 4096,
			MinTemporaryTTL:  16,
			MaxEntryTTL:      535680,
			CloseIntervalMs:  5000,
		},
		Genesis: Genesis{
			AssetName:     "Escrow Euro",
			AssetSymbol:   "EURC",
			AssetDecimals: 7,
			NotesName:     "Signature Proof Notes",
			NotesSymbol:   "SPN",
		},
		RPC: RPC{
			Address:           "127.0.0.1:8545",
			JWTSecretEnv:      "SIGNESCROW_JWT_SECRET",
			JWTIssuer:         "signescrow",
			RateLimitPerSec:   20,
			RateLimitBurst:    40,
			ReadHeaderTimeout: 5,
			WriteTimeout:      15,
			MaxBodyBytes:      1 << 20,
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Sampling: 1},
		Logging:   Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
	}
}

func (c *Config) normalize() {
	c.NetworkName = strings.TrimSpace(c.NetworkName)
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.EventLog.Driver = strings.ToLower(strings.TrimSpace(c.EventLog.Driver))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Genesis.Allocations == nil {
		c.Genesis.Allocations = []Allocation{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.normalize()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
