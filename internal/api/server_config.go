package api

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"unitymcp/internal/auth"
)

// ServerConfig configures the HTTP API server. It is read from a TOML file
// passed with `unitymcp serve --server-config`.
type ServerConfig struct {
	Addr                string             `toml:"addr"`
	ReadTimeoutSeconds  int                `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int                `toml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int                `toml:"idle_timeout_seconds"`
	MaxWaitSeconds      int                `toml:"max_wait_seconds"` // Upper bound for /compile/wait
	CORS                bool               `toml:"cors"`
	Auth                auth.ManagerConfig `toml:"auth"`
}

// DefaultServerConfig returns the configuration used without a TOML file
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:                "127.0.0.1:8765",
		ReadTimeoutSeconds:  15,
		WriteTimeoutSeconds: 330,
		IdleTimeoutSeconds:  60,
		MaxWaitSeconds:      300,
		CORS:                false,
		Auth:                auth.DefaultManagerConfig(),
	}
}

// LoadServerConfig loads configuration from a TOML file over the defaults
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultServerConfig()
	md, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse config file: unknown keys %v", undecoded)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.ReadTimeoutSeconds < 0 || c.WriteTimeoutSeconds < 0 || c.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	if c.MaxWaitSeconds <= 0 {
		return fmt.Errorf("max_wait_seconds must be positive")
	}
	if c.WriteTimeoutSeconds > 0 && c.WriteTimeoutSeconds <= c.MaxWaitSeconds {
		return fmt.Errorf("write_timeout_seconds (%d) must exceed max_wait_seconds (%d)",
			c.WriteTimeoutSeconds, c.MaxWaitSeconds)
	}
	return nil
}

// Encode writes the configuration as TOML
func (c *ServerConfig) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
