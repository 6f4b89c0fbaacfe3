// Package config loads unitymcp settings with viper: defaults, then the
// project config file, then UNITY_MCP_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"unitymcp/internal/compile"
	"unitymcp/internal/paths"
	"unitymcp/internal/slogutil"
	"unitymcp/internal/unity"
)

// CurrentVersion is the config schema version.
const CurrentVersion = 1

// EnvPrefix is prepended to every environment override, e.g. UNITY_MCP_BRIDGE_PORT.
const EnvPrefix = "UNITY_MCP"

// Config is the complete unitymcp configuration.
type Config struct {
	Version   int             `json:"version" mapstructure:"version"`
	Bridge    BridgeConfig    `json:"bridge" mapstructure:"bridge"`
	Monitor   MonitorConfig   `json:"monitor" mapstructure:"monitor"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	API       APIConfig       `json:"api" mapstructure:"api"`
}

// BridgeConfig locates the Unity editor bridge.
type BridgeConfig struct {
	Host             string `json:"host" mapstructure:"host"`
	Port             int    `json:"port" mapstructure:"port"`
	ConnectTimeoutMs int    `json:"connectTimeoutMs" mapstructure:"connectTimeoutMs"`
	RequestTimeoutMs int    `json:"requestTimeoutMs" mapstructure:"requestTimeoutMs"`
	MaxRetries       int    `json:"maxRetries" mapstructure:"maxRetries"`
	RetryDelayMs     int    `json:"retryDelayMs" mapstructure:"retryDelayMs"`
	MaxInFlight      int    `json:"maxInFlight" mapstructure:"maxInFlight"`
}

// MonitorConfig tunes the compile monitor.
type MonitorConfig struct {
	StatusConsoleCount      int `json:"statusConsoleCount" mapstructure:"statusConsoleCount"`
	DiagnosticsConsoleCount int `json:"diagnosticsConsoleCount" mapstructure:"diagnosticsConsoleCount"`
	PollIntervalMs          int `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	DefaultTimeoutSeconds   int `json:"defaultTimeoutSeconds" mapstructure:"defaultTimeoutSeconds"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"` // empty: ~/.unitymcp/logs/<mode>.log in MCP mode
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint    string `json:"endpoint" mapstructure:"endpoint"`
	Insecure    bool   `json:"insecure" mapstructure:"insecure"`
	ServiceName string `json:"serviceName" mapstructure:"serviceName"`
}

// APIConfig configures `unitymcp serve`.
type APIConfig struct {
	Addr         string `json:"addr" mapstructure:"addr"`
	ServerConfig string `json:"serverConfig" mapstructure:"serverConfig"` // optional TOML file
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Bridge: BridgeConfig{
			Host:             "127.0.0.1",
			Port:             unity.DefaultPort,
			ConnectTimeoutMs: 2000,
			RequestTimeoutMs: 30000,
			MaxRetries:       3,
			RetryDelayMs:     250,
			MaxInFlight:      4,
		},
		Monitor: MonitorConfig{
			StatusConsoleCount:      50,
			DiagnosticsConsoleCount: 100,
			PollIntervalMs:          500,
			DefaultTimeoutSeconds:   30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
			Compress:   true,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "unitymcp",
		},
		API: APIConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

// defaults flattens DefaultConfig into viper keys. Every key must be known to
// viper for AutomaticEnv to pick up its environment override.
func defaults() map[string]interface{} {
	d := DefaultConfig()
	return map[string]interface{}{
		"version":                         d.Version,
		"bridge.host":                     d.Bridge.Host,
		"bridge.port":                     d.Bridge.Port,
		"bridge.connectTimeoutMs":         d.Bridge.ConnectTimeoutMs,
		"bridge.requestTimeoutMs":         d.Bridge.RequestTimeoutMs,
		"bridge.maxRetries":               d.Bridge.MaxRetries,
		"bridge.retryDelayMs":             d.Bridge.RetryDelayMs,
		"bridge.maxInFlight":              d.Bridge.MaxInFlight,
		"monitor.statusConsoleCount":      d.Monitor.StatusConsoleCount,
		"monitor.diagnosticsConsoleCount": d.Monitor.DiagnosticsConsoleCount,
		"monitor.pollIntervalMs":          d.Monitor.PollIntervalMs,
		"monitor.defaultTimeoutSeconds":   d.Monitor.DefaultTimeoutSeconds,
		"logging.level":                   d.Logging.Level,
		"logging.file":                    d.Logging.File,
		"logging.maxSize":                 d.Logging.MaxSize,
		"logging.maxBackups":              d.Logging.MaxBackups,
		"logging.compress":                d.Logging.Compress,
		"telemetry.enabled":               d.Telemetry.Enabled,
		"telemetry.endpoint":              d.Telemetry.Endpoint,
		"telemetry.insecure":              d.Telemetry.Insecure,
		"telemetry.serviceName":           d.Telemetry.ServiceName,
		"api.addr":                        d.API.Addr,
		"api.serverConfig":                d.API.ServerConfig,
	}
}

// LoadConfig loads <projectRoot>/.unitymcp/config.json, or configFile when
// set (any format viper understands). A missing project config is not an
// error; a missing explicit file is.
func LoadConfig(projectRoot, configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(paths.ConfigFileName, filepath.Ext(paths.ConfigFileName)))
		v.SetConfigType("json")
		v.AddConfigPath(filepath.Join(projectRoot, paths.ProjectConfigDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to <projectRoot>/.unitymcp/config.json and
// returns the path written.
func (c *Config) Save(projectRoot string) (string, error) {
	configPath := paths.GetProjectConfigPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return configPath, os.WriteFile(configPath, append(data, '\n'), 0o644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	checks := []struct {
		field string
		ok    bool
		msg   string
	}{
		{"bridge.host", c.Bridge.Host != "", "must not be empty"},
		{"bridge.port", c.Bridge.Port > 0 && c.Bridge.Port <= 65535, "must be between 1 and 65535"},
		{"bridge.connectTimeoutMs", c.Bridge.ConnectTimeoutMs > 0, "must be positive"},
		{"bridge.requestTimeoutMs", c.Bridge.RequestTimeoutMs > 0, "must be positive"},
		{"bridge.maxRetries", c.Bridge.MaxRetries >= 0, "must not be negative"},
		{"bridge.retryDelayMs", c.Bridge.RetryDelayMs > 0, "must be positive"},
		{"bridge.maxInFlight", c.Bridge.MaxInFlight > 0, "must be positive"},
		{"monitor.statusConsoleCount", c.Monitor.StatusConsoleCount > 0, "must be positive"},
		{"monitor.diagnosticsConsoleCount", c.Monitor.DiagnosticsConsoleCount > 0, "must be positive"},
		{"monitor.pollIntervalMs", c.Monitor.PollIntervalMs > 0, "must be positive"},
		{"monitor.defaultTimeoutSeconds", c.Monitor.DefaultTimeoutSeconds > 0, "must be positive"},
		{"logging.level", slogutil.ValidLevel(c.Logging.Level), "must be debug, info, warn or error"},
		{"logging.maxBackups", c.Logging.MaxBackups >= 0, "must not be negative"},
		{"telemetry.endpoint", !c.Telemetry.Enabled || c.Telemetry.Endpoint != "", "required when telemetry is enabled"},
		{"api.addr", c.API.Addr != "", "must not be empty"},
	}
	for _, check := range checks {
		if !check.ok {
			return &ConfigError{Field: check.field, Message: check.msg}
		}
	}
	return nil
}

// BridgeOptions converts the bridge section into client options.
func (c *Config) BridgeOptions() unity.Options {
	opts := unity.DefaultOptions()
	opts.Host = c.Bridge.Host
	opts.Port = c.Bridge.Port
	opts.ConnectTimeout = millis(c.Bridge.ConnectTimeoutMs)
	opts.RequestTimeout = millis(c.Bridge.RequestTimeoutMs)
	opts.MaxRetries = c.Bridge.MaxRetries
	opts.RetryDelay = millis(c.Bridge.RetryDelayMs)
	opts.MaxInFlight = int64(c.Bridge.MaxInFlight)
	return opts
}

// MonitorOptions converts the monitor section into compile monitor options.
func (c *Config) MonitorOptions() compile.Options {
	return compile.Options{
		StatusConsoleCount:      c.Monitor.StatusConsoleCount,
		DiagnosticsConsoleCount: c.Monitor.DiagnosticsConsoleCount,
		PollInterval:            millis(c.Monitor.PollIntervalMs),
		DefaultTimeoutSeconds:   c.Monitor.DefaultTimeoutSeconds,
	}
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
