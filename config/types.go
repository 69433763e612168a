package config

// Storage selects the state database backend.
type Storage struct {
	// Backend is one of "memory", "leveldb" or "bolt".
	Backend string `toml:"Backend"`
}

// Ledger captures the lifetime policy and the close cadence.
type Ledger struct {
	MinPersistentTTL uint32 `toml:"MinPersistentTTL"`
	MinTemporaryTTL  uint32 `toml:"MinTemporaryTTL"`
	MaxEntryTTL      uint32 `toml:"MaxEntryTTL"`
	CloseIntervalMs  uint64 `toml:"CloseIntervalMs"`
}

// Allocation credits an account with asset units at genesis.
type Allocation struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Genesis describes the contracts deployed when the node starts on an empty
// database.
type Genesis struct {
	AssetAdmin    string       `toml:"AssetAdmin"`
	AssetName     string       `toml:"AssetName"`
	AssetSymbol   string       `toml:"AssetSymbol"`
	AssetDecimals uint32       `toml:"AssetDecimals"`
	OracleAdmin   string       `toml:"OracleAdmin"`
	NotesName     string       `toml:"NotesName"`
	NotesSymbol   string       `toml:"NotesSymbol"`
	Allocations   []Allocation `toml:"Allocations"`
}

// RPC configures the JSON-RPC server.
type RPC struct {
	Address           string  `toml:"Address"`
	JWTSecretEnv      string  `toml:"JWTSecretEnv"`
	JWTIssuer         string  `toml:"JWTIssuer"`
	RequireAuth       bool    `toml:"RequireAuth"`
	RateLimitPerSec   float64 `toml:"RateLimitPerSec"`
	RateLimitBurst    int     `toml:"RateLimitBurst"`
	ReadHeaderTimeout int     `toml:"ReadHeaderTimeout"`
	WriteTimeout      int     `toml:"WriteTimeout"`
	MaxBodyBytes      int64   `toml:"MaxBodyBytes"`
}

// EventLog configures the relational archive of committed events.
type EventLog struct {
	// Driver is "", "sqlite" or "postgres". Empty disables the archive.
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Telemetry configures the OpenTelemetry exporters.
type Telemetry struct {
	Endpoint string  `toml:"Endpoint"`
	Insecure bool    `toml:"Insecure"`
	Headers  string  `toml:"Headers"`
	Metrics  bool    `toml:"Metrics"`
	Traces   bool    `toml:"Traces"`
	Sampling float64 `toml:"Sampling"`
}

// Logging configures the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}
