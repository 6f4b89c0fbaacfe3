package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"unitymcp/internal/auth"
)

var (
	tokenID        string
	tokenName      string
	tokenScopes    []string
	tokenRateLimit int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens for the HTTP API",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API token",
	Long: `Generate a bearer token for ` + "`unitymcp serve`" + `.

The token is printed once. Only its bcrypt hash goes into the server
config, as the printed [[auth.keys]] block.

Scopes:
  read   - GET endpoints (status, errors, warnings)
  write  - everything, including wait, clear and recompile

Examples:
  unitymcp token create --id ci --scopes read
  unitymcp token create --id agent --name "Coding agent" --scopes write`,
	RunE: runTokenCreate,
}

func init() {
	tokenCreateCmd.Flags().StringVar(&tokenID, "id", "", "Key ID (required)")
	tokenCreateCmd.Flags().StringVar(&tokenName, "name", "", "Display name")
	tokenCreateCmd.Flags().StringSliceVar(&tokenScopes, "scopes", []string{"read"}, "Scopes: read, write")
	tokenCreateCmd.Flags().IntVar(&tokenRateLimit, "rate-limit", 0, "Requests per minute (0 = server default)")
	_ = tokenCreateCmd.MarkFlagRequired("id")

	tokenCmd.AddCommand(tokenCreateCmd)
	rootCmd.AddCommand(tokenCmd)
}

// keysSnippet encodes as a [[auth.keys]] block.
type keysSnippet struct {
	Auth struct {
		Keys []auth.KeyConfig `toml:"keys"`
	} `toml:"auth"`
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	key, token, err := newKey(tokenID, tokenName, tokenScopes, tokenRateLimit)
	if err != nil {
		return err
	}

	var snippet keysSnippet
	snippet.Auth.Keys = []auth.KeyConfig{key}
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(snippet); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Token:  %s\n", token)
	fmt.Fprintf(out, "Prefix: %s\n", key.TokenPrefix)
	fmt.Fprintln(out, warnColor("Store the token now; it cannot be shown again."))
	fmt.Fprintf(out, "\nAdd to the server config:\n\n%s", b.String())
	return nil
}

// newKey generates a token and the config entry that accepts it.
func newKey(id, name string, scopes []string, rateLimit int) (auth.KeyConfig, string, error) {
	key := auth.KeyConfig{ID: id, Name: name}
	for _, s := range scopes {
		scope := auth.Scope(strings.ToLower(strings.TrimSpace(s)))
		if !scope.IsValid() {
			return key, "", fmt.Errorf("invalid scope %q (valid: read, write)", s)
		}
		key.Scopes = append(key.Scopes, string(scope))
	}
	if len(key.Scopes) == 0 {
		return key, "", fmt.Errorf("at least one scope is required")
	}
	if rateLimit < 0 {
		return key, "", fmt.Errorf("rate limit cannot be negative")
	}
	if rateLimit > 0 {
		key.RateLimit = &rateLimit
	}

	token, prefix, err := auth.GenerateToken()
	if err != nil {
		return key, "", err
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return key, "", err
	}
	key.TokenHash = hash
	key.TokenPrefix = prefix
	return key, token, nil
}
