package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ManagerConfig configures the auth manager
type ManagerConfig struct {
	Enabled      bool            `toml:"enabled" json:"enabled"`
	Keys         []KeyConfig     `toml:"keys" json:"keys"`
	RateLimiting RateLimitConfig `toml:"rate_limiting" json:"rate_limiting"`
}

// KeyConfig defines an API key in configuration. Either TokenHash (as
// printed by `unitymcp token create`) or a plaintext Token must be set.
type KeyConfig struct {
	ID          string   `toml:"id" json:"id"`
	Name        string   `toml:"name" json:"name"`
	TokenHash   string   `toml:"token_hash,omitempty" json:"token_hash,omitempty"`
	TokenPrefix string   `toml:"token_prefix,omitempty" json:"token_prefix,omitempty"`
	Token       string   `toml:"token,omitempty" json:"token,omitempty"` // env var expansion supported
	Scopes      []string `toml:"scopes" json:"scopes"`
	RateLimit   *int     `toml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// DefaultManagerConfig returns sensible defaults
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Enabled:      false,
		RateLimiting: DefaultRateLimitConfig(),
	}
}

// Manager handles API key authentication
type Manager struct {
	config      ManagerConfig
	keys        []*APIKey
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewManager creates a new auth manager from configured keys
func NewManager(config ManagerConfig, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		config:      config,
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimiting, logger),
	}

	for i, kc := range config.Keys {
		key, err := loadKey(kc)
		if err != nil {
			return nil, fmt.Errorf("auth key %d (%s): %w", i, kc.ID, err)
		}
		m.keys = append(m.keys, key)
	}

	if config.Enabled && len(m.keys) == 0 {
		return nil, fmt.Errorf("auth is enabled but no keys are configured")
	}

	logger.Info("Auth manager initialized",
		"enabled", config.Enabled,
		"keys", len(m.keys),
		"rate_limiting", config.RateLimiting.Enabled,
	)

	return m, nil
}

func loadKey(kc KeyConfig) (*APIKey, error) {
	if kc.ID == "" {
		return nil, fmt.Errorf("id is required")
	}

	key := &APIKey{
		ID:          kc.ID,
		Name:        kc.Name,
		TokenHash:   kc.TokenHash,
		TokenPrefix: kc.TokenPrefix,
		RateLimit:   kc.RateLimit,
	}

	switch {
	case kc.TokenHash != "":
	case kc.Token != "":
		token := expandEnvVars(kc.Token)
		if token == "" {
			return nil, fmt.Errorf("token expands to an empty value")
		}
		hash, err := HashToken(token)
		if err != nil {
			return nil, err
		}
		key.TokenHash = hash
		key.TokenPrefix = ExtractTokenPrefix(token)
	default:
		return nil, fmt.Errorf("token_hash or token is required")
	}

	if len(kc.Scopes) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	for _, s := range kc.Scopes {
		scope := Scope(s)
		if !scope.IsValid() {
			return nil, fmt.Errorf("invalid scope %q", s)
		}
		key.Scopes = append(key.Scopes, scope)
	}
	if kc.RateLimit != nil && *kc.RateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}

	return key, nil
}

// expandEnvVars expands ${VAR} or $VAR in a string
func expandEnvVars(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// Enabled reports whether requests must authenticate.
func (m *Manager) Enabled() bool {
	return m.config.Enabled
}

// Authenticate validates a bearer token against the required scope
func (m *Manager) Authenticate(token string, requiredScope Scope) *AuthResult {
	result := &AuthResult{}

	if !m.config.Enabled {
		result.Authenticated = true
		result.Scopes = ValidScopes()
		return result
	}

	if token == "" {
		result.ErrorCode = ErrCodeMissingToken
		result.ErrorMessage = "Authorization header required"
		return result
	}

	key := m.findKey(token)
	if key == nil {
		result.ErrorCode = ErrCodeInvalidToken
		result.ErrorMessage = "Invalid API key"
		return result
	}

	if !key.HasScope(requiredScope) {
		result.ErrorCode = ErrCodeInsufficientScope
		result.ErrorMessage = "Insufficient scope for this operation"
		return result
	}

	if allowed, retryAfter := m.rateLimiter.Allow(key.ID, key.RateLimit); !allowed {
		m.logger.Warn("Rate limit exceeded",
			"key_id", key.ID,
			"retry_after", retryAfter,
		)
		result.RateLimited = true
		result.RetryAfter = retryAfter
		result.ErrorCode = ErrCodeRateLimited
		result.ErrorMessage = "Rate limit exceeded"
		return result
	}

	result.Authenticated = true
	result.KeyID = key.ID
	result.KeyName = key.Name
	result.Scopes = key.Scopes
	return result
}

// findKey returns the key whose hash matches the token. Keys with a known
// prefix are only checked when the prefix matches.
func (m *Manager) findKey(token string) *APIKey {
	prefix := ExtractTokenPrefix(token)
	for _, key := range m.keys {
		if key.TokenPrefix != "" && key.TokenPrefix != prefix {
			continue
		}
		if VerifyToken(token, key.TokenHash) {
			return key
		}
	}
	return nil
}

// StartBackgroundTasks starts rate limiter cleanup until ctx is done.
func (m *Manager) StartBackgroundTasks(ctx context.Context) {
	m.rateLimiter.StartCleanup(ctx)
}
