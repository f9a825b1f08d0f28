package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/openalpha/fracshare/api"
	"github.com/openalpha/fracshare/api/middleware"
	"github.com/openalpha/fracshare/offchain/matcher"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

// Config holds the node configuration
type Config struct {
	// DBBackend is "goleveldb" for a persistent ledger or "memdb"
	DBBackend string `json:"db_backend"`
	DBDir     string `json:"db_dir"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"` // "json" or "plain"

	Settlement settlementtypes.Params `json:"settlement"`
	API        APIConfig              `json:"api"`
	Matcher    *matcher.Config        `json:"matcher"`
}

// APIConfig holds the HTTP server configuration
type APIConfig struct {
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	ReadTimeout      time.Duration `json:"read_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	DisableRateLimit bool          `json:"disable_rate_limit"`
	RequestsPerSec   int           `json:"requests_per_second"`
	WritesPerSec     int           `json:"writes_per_second"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	server := api.DefaultConfig()
	limits := middleware.DefaultRateLimitConfig()
	return &Config{
		DBBackend:  "goleveldb",
		DBDir:      "data",
		LogLevel:   "info",
		LogFormat:  "plain",
		Settlement: settlementtypes.DefaultParams(),
		API: APIConfig{
			Host:           server.Host,
			Port:           server.Port,
			ReadTimeout:    server.ReadTimeout,
			WriteTimeout:   server.WriteTimeout,
			RequestsPerSec: limits.RequestsPerSecond,
			WritesPerSec:   limits.WritesPerSecond,
		},
		Matcher: matcher.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch c.DBBackend {
	case "goleveldb", "memdb":
	default:
		return fmt.Errorf("unsupported db backend %q", c.DBBackend)
	}
	switch c.LogFormat {
	case "json", "plain":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port %d", c.API.Port)
	}
	return c.Settlement.Validate()
}

// ServerConfig converts the API section
func (c *Config) ServerConfig() *api.Config {
	limits := middleware.DefaultRateLimitConfig()
	if c.API.RequestsPerSec > 0 {
		limits.RequestsPerSecond = c.API.RequestsPerSec
		limits.Burst = 2 * c.API.RequestsPerSec
	}
	if c.API.WritesPerSec > 0 {
		limits.WritesPerSecond = c.API.WritesPerSec
		limits.WriteBurst = 2 * c.API.WritesPerSec
	}
	return &api.Config{
		Host:             c.API.Host,
		Port:             c.API.Port,
		ReadTimeout:      c.API.ReadTimeout,
		WriteTimeout:     c.API.WriteTimeout,
		DisableRateLimit: c.API.DisableRateLimit,
		RateLimit:        limits,
	}
}
