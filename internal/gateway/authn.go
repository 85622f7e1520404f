// ABOUTME: Builds the API-key provider from configuration
// ABOUTME: Shared by the server and the token subcommand so both see the same clients

package gateway

import (
	"fmt"
	"log/slog"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/config"
)

// NewAuthProvider creates the provider described by cfg. A JWT verifier is
// attached when auth.jwt_secret is set.
func NewAuthProvider(cfg config.AuthConfig, logger *slog.Logger) (*auth.Provider, error) {
	var verifier auth.TokenVerifier
	if cfg.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	}

	keys := make([]auth.APIKeyEntry, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys = append(keys, auth.APIKeyEntry{
			Key:         k.Key,
			ClientID:    k.ClientID,
			Permissions: k.Permissions,
		})
	}

	return auth.NewProvider(auth.ProviderConfig{
		Enabled:  cfg.IsEnabled(),
		Header:   cfg.Header,
		Keys:     keys,
		Verifier: verifier,
		Logger:   logger,
	})
}
