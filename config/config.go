package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings shared by the worker, the starter and the API server
type Config struct {
	Environment string
	LogLevel    string
	Temporal    TemporalConfig
	Backend     BackendConfig
	Gateway     GatewayConfig
	Encryption  EncryptionConfig
	Refund      RefundConfig
	HealthPort  int
	HTTPAddr    string
}

type TemporalConfig struct {
	Host      string
	Namespace string
	TaskQueue string
}

// BackendConfig points at the storefront backend REST API
type BackendConfig struct {
	URL             string
	Token           string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// GatewayConfig holds the public, client-safe gateway settings. The gateway
// secret lives only in the backend.
type GatewayConfig struct {
	KeyID     string
	Currency  string
	StoreName string
}

type EncryptionConfig struct {
	Enabled bool
	KeyFile string
	KeyID   string
	// RetiredKeys maps rotated-out key ids to their key files. They only
	// decrypt history written before the rotation.
	RetiredKeys map[string]string
}

// RefundConfig bounds how long a pending refund is followed
type RefundConfig struct {
	PollInterval time.Duration
	MaxPolls     int
}

// Load reads configuration from an optional .env file and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing .env is fine, env vars are enough
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TEMPORAL_HOST", "localhost:7233")
	v.SetDefault("TEMPORAL_NAMESPACE", "default")
	v.SetDefault("TASK_QUEUE", "checkout-queue")
	v.SetDefault("BACKEND_URL", "http://localhost:8081/api")
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("BREAKER_FAILURES", 5)
	v.SetDefault("BREAKER_TIMEOUT", "30s")
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("STORE_NAME", "Store")
	v.SetDefault("ENCRYPTION_ENABLED", false)
	v.SetDefault("ENCRYPTION_KEY_FILE", ".encryption.key")
	v.SetDefault("ENCRYPTION_KEY_ID", "checkout-key-1")
	v.SetDefault("HEALTH_PORT", 8090)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REFUND_POLL_INTERVAL", "30s")
	v.SetDefault("REFUND_MAX_POLLS", 20)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: strings.ToLower(v.GetString("ENVIRONMENT")),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Temporal: TemporalConfig{
			Host:      v.GetString("TEMPORAL_HOST"),
			Namespace: v.GetString("TEMPORAL_NAMESPACE"),
			TaskQueue: v.GetString("TASK_QUEUE"),
		},
		Backend: BackendConfig{
			URL:             strings.TrimSpace(v.GetString("BACKEND_URL")),
			Token:           strings.TrimSpace(v.GetString("BACKEND_TOKEN")),
			Timeout:         v.GetDuration("BACKEND_TIMEOUT"),
			BreakerFailures: v.GetUint32("BREAKER_FAILURES"),
			BreakerTimeout:  v.GetDuration("BREAKER_TIMEOUT"),
		},
		Gateway: GatewayConfig{
			KeyID:     strings.TrimSpace(v.GetString("GATEWAY_KEY_ID")),
			Currency:  strings.ToUpper(strings.TrimSpace(v.GetString("CURRENCY"))),
			StoreName: v.GetString("STORE_NAME"),
		},
		Encryption: EncryptionConfig{
			Enabled: v.GetBool("ENCRYPTION_ENABLED"),
			KeyFile: v.GetString("ENCRYPTION_KEY_FILE"),
			KeyID:   v.GetString("ENCRYPTION_KEY_ID"),
		},
		Refund: RefundConfig{
			PollInterval: v.GetDuration("REFUND_POLL_INTERVAL"),
			MaxPolls:     v.GetInt("REFUND_MAX_POLLS"),
		},
		HealthPort: v.GetInt("HEALTH_PORT"),
		HTTPAddr:   v.GetString("HTTP_ADDR"),
	}

	retired, err := parseKeyFiles(v.GetString("ENCRYPTION_RETIRED_KEYS"))
	if err != nil {
		return nil, err
	}
	cfg.Encryption.RetiredKeys = retired

	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	if cfg.Temporal.TaskQueue == "" {
		return nil, fmt.Errorf("TASK_QUEUE is required")
	}
	if cfg.Backend.Timeout <= 0 {
		return nil, fmt.Errorf("BACKEND_TIMEOUT must be positive, got %q", v.GetString("BACKEND_TIMEOUT"))
	}
	if cfg.Refund.PollInterval <= 0 || cfg.Refund.MaxPolls <= 0 {
		return nil, fmt.Errorf("REFUND_POLL_INTERVAL and REFUND_MAX_POLLS must be positive")
	}
	// GATEWAY_KEY_ID is not required here: checkouts fail with a
	// configuration error before any gateway call when it is unset.
	return cfg, nil
}

// parseKeyFiles reads "id=path,id=path"
func parseKeyFiles(raw string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, path, ok := strings.Cut(entry, "=")
		id, path = strings.TrimSpace(id), strings.TrimSpace(path)
		if !ok || id == "" || path == "" {
			return nil, fmt.Errorf("ENCRYPTION_RETIRED_KEYS entry %q must be id=path", entry)
		}
		keys[id] = path
	}
	return keys, nil
}

// IsProduction reports whether the process runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// EncryptionKey loads the 32-byte codec key from KeyFile. The file is only
// generated outside production.
func (c *Config) EncryptionKey(generate func() ([]byte, error)) ([]byte, error) {
	key, err := os.ReadFile(c.Encryption.KeyFile)
	if err == nil {
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key in %s must be 32 bytes, got %d", c.Encryption.KeyFile, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) || c.IsProduction() {
		return nil, fmt.Errorf("failed to read encryption key: %w", err)
	}

	key, err = generate()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(c.Encryption.KeyFile, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to save encryption key: %w", err)
	}
	return key, nil
}

// RetiredEncryptionKeys loads every retired key file
func (c *Config) RetiredEncryptionKeys() (map[string][]byte, error) {
	keys := make(map[string][]byte, len(c.Encryption.RetiredKeys))
	for id, path := range c.Encryption.RetiredKeys {
		if id == c.Encryption.KeyID {
			return nil, fmt.Errorf("retired key %s is the active key", id)
		}
		key, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read retired key %s: %w", id, err)
		}
		keys[id] = key
	}
	return keys, nil
}
