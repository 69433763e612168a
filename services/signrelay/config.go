package signrelay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen         = ":8086"
	defaultRequestTimeout = 15
)

// Config captures the relay runtime options.
type Config struct {
	ListenAddress     string        `yaml:"listen"`
	NodeEndpoint      string        `yaml:"node"`
	NodeTokenEnv      string        `yaml:"node_token_env"`
	NodeToken         string        `yaml:"-"`
	SignerKey         string        `yaml:"signer_key"`
	SignerKeyEnv      string        `yaml:"signer_key_env"`
	SignerKeyFile     string        `yaml:"signer_key_file"`
	WebhookSecret     string        `yaml:"webhook_secret"`
	WebhookSecretEnv  string        `yaml:"webhook_secret_env"`
	DatabasePath      string        `yaml:"database"`
	RequestTimeoutSec int           `yaml:"request_timeout_seconds"`
	RequestTimeout    time.Duration `yaml:"-"`
}

// LoadConfig reads the YAML file at path, resolves secrets from the
// environment or files and applies defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ListenAddress:     defaultListen,
		DatabasePath:      filepath.Join(os.TempDir(), "signrelay.db"),
		RequestTimeoutSec: defaultRequestTimeout,
	}
	if strings.TrimSpace(path) == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress); cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	if cfg.NodeEndpoint = strings.TrimSpace(cfg.NodeEndpoint); cfg.NodeEndpoint == "" {
		return fmt.Errorf("node endpoint required")
	}
	if env := strings.TrimSpace(cfg.NodeTokenEnv); env != "" {
		cfg.NodeToken = strings.TrimSpace(os.Getenv(env))
	}

	cfg.SignerKey = strings.TrimSpace(cfg.SignerKey)
	if cfg.SignerKey == "" {
		switch {
		case strings.TrimSpace(cfg.SignerKeyEnv) != "":
			value := strings.TrimSpace(os.Getenv(cfg.SignerKeyEnv))
			if value == "" {
				return fmt.Errorf("signer_key_env %s is empty", cfg.SignerKeyEnv)
			}
			cfg.SignerKey = value
		case strings.TrimSpace(cfg.SignerKeyFile) != "":
			contents, err := os.ReadFile(strings.TrimSpace(cfg.SignerKeyFile))
			if err != nil {
				return fmt.Errorf("read signer_key_file: %w", err)
			}
			cfg.SignerKey = strings.TrimSpace(string(contents))
		default:
			return fmt.Errorf("signer_key required")
		}
	}

	cfg.WebhookSecret = strings.TrimSpace(cfg.WebhookSecret)
	if cfg.WebhookSecret == "" && strings.TrimSpace(cfg.WebhookSecretEnv) != "" {
		cfg.WebhookSecret = strings.TrimSpace(os.Getenv(cfg.WebhookSecretEnv))
	}
	if cfg.WebhookSecret == "" {
		return fmt.Errorf("webhook secret required")
	}
	if cfg.DatabasePath = strings.TrimSpace(cfg.DatabasePath); cfg.DatabasePath == "" {
		return fmt.Errorf("database path required")
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = defaultRequestTimeout
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSec) * time.Second
	return nil
}
