package auth

// Scope represents an API key permission scope
type Scope string

const (
	// ScopeRead allows status, errors and warnings queries
	ScopeRead Scope = "read"
	// ScopeWrite allows waiting, clearing the console and forcing recompiles
	ScopeWrite Scope = "write"
)

// ValidScopes returns all valid scope values
func ValidScopes() []Scope {
	return []Scope{ScopeRead, ScopeWrite}
}

// IsValid checks if a scope is valid
func (s Scope) IsValid() bool {
	return s == ScopeRead || s == ScopeWrite
}

// Includes checks if this scope includes the required scope.
// write includes read.
func (s Scope) Includes(required Scope) bool {
	switch s {
	case ScopeWrite:
		return required == ScopeWrite || required == ScopeRead
	case ScopeRead:
		return required == ScopeRead
	default:
		return false
	}
}

// APIKey is a configured key. Only the hash of the token is held.
type APIKey struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TokenHash   string  `json:"-"`
	TokenPrefix string  `json:"token_prefix,omitempty"`
	Scopes      []Scope `json:"scopes"`
	RateLimit   *int    `json:"rate_limit,omitempty"`
}

// HasScope checks if the key has the required scope
func (k *APIKey) HasScope(required Scope) bool {
	for _, s := range k.Scopes {
		if s.Includes(required) {
			return true
		}
	}
	return false
}

// AuthResult represents the result of an authentication attempt
type AuthResult struct {
	Authenticated bool    `json:"authenticated"`
	KeyID         string  `json:"key_id,omitempty"`
	KeyName       string  `json:"key_name,omitempty"`
	Scopes        []Scope `json:"scopes,omitempty"`
	RateLimited   bool    `json:"rate_limited"`
	RetryAfter    int     `json:"retry_after,omitempty"`
	ErrorCode     string  `json:"error_code,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// Error codes for authentication failures
const (
	ErrCodeMissingToken      = "missing_token"
	ErrCodeInvalidToken      = "invalid_token"
	ErrCodeInsufficientScope = "insufficient_scope"
	ErrCodeRateLimited       = "rate_limited"
)
