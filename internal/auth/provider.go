// ABOUTME: API-key authentication provider with wildcard permission authorization
// ABOUTME: Keys load once at startup into an immutable map; lookups are safe for concurrent use

package auth

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/2389/dbp-gateway/internal/mcperr"
)

// DefaultHeader is the designated header carrying the API key.
const DefaultHeader = "X-API-Key"

// ErrUnknownClient is returned when issuing a token for an unconfigured client.
var ErrUnknownClient = errors.New("unknown client")

// ErrTokensDisabled is returned when issuing a token without a token issuer.
var ErrTokensDisabled = errors.New("token issuing not configured")

// APIKeyEntry maps a secret key to a client identity and its permissions.
type APIKeyEntry struct {
	Key         string
	ClientID    string
	Permissions []string
}

// HeaderSource exposes request headers to the provider.
type HeaderSource interface {
	Header(name string) string
}

// HTTPHeaders adapts http.Header to HeaderSource.
type HTTPHeaders http.Header

// Header returns the first value for name.
func (h HTTPHeaders) Header(name string) string {
	return http.Header(h).Get(name)
}

// ProviderConfig holds configuration for the Provider.
type ProviderConfig struct {
	Enabled  bool
	Header   string
	Keys     []APIKeyEntry
	Verifier TokenVerifier // optional bearer-token support
	Logger   *slog.Logger
}

type client struct {
	id          string
	permissions map[string]struct{}
}

// Provider authenticates requests by API key and authorizes actions by
// permission string. Its maps are never written after NewProvider returns.
type Provider struct {
	enabled  bool
	header   string
	keys     map[[32]byte]*client // blake2b digest of key -> client
	clients  map[string]*client   // client id -> union of permissions, for token auth
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewProvider builds the key map. Entries missing a key or client_id are skipped
// with a warning; a key configured twice is a configuration error.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := cfg.Header
	if header == "" {
		header = DefaultHeader
	}

	p := &Provider{
		enabled:  cfg.Enabled,
		header:   header,
		keys:     make(map[[32]byte]*client, len(cfg.Keys)),
		clients:  make(map[string]*client),
		verifier: cfg.Verifier,
		logger:   logger,
	}

	for i, entry := range cfg.Keys {
		key := strings.TrimSpace(entry.Key)
		if key == "" || entry.ClientID == "" {
			logger.Warn("skipping invalid api key entry",
				"index", i,
				"client_id", entry.ClientID,
				"has_key", key != "",
			)
			continue
		}

		digest := blake2b.Sum256([]byte(key))
		if existing, dup := p.keys[digest]; dup {
			return nil, mcperr.Configuration("api key %s configured for both %q and %q",
				Fingerprint(key), existing.id, entry.ClientID)
		}

		perms := make(map[string]struct{}, len(entry.Permissions))
		for _, perm := range entry.Permissions {
			perm = strings.TrimSpace(perm)
			if perm == "" {
				continue
			}
			perms[perm] = struct{}{}
		}
		p.keys[digest] = &client{id: entry.ClientID, permissions: perms}

		merged, ok := p.clients[entry.ClientID]
		if !ok {
			merged = &client{id: entry.ClientID, permissions: make(map[string]struct{})}
			p.clients[entry.ClientID] = merged
		}
		maps.Copy(merged.permissions, perms)
	}

	if !p.enabled {
		logger.Warn("authentication disabled: all requests run as anonymous with full permissions")
	} else {
		logger.Info("authentication enabled",
			"header", p.header,
			"api_keys", len(p.keys),
			"clients", len(p.clients),
			"bearer_tokens", p.verifier != nil,
		)
	}

	return p, nil
}

// Enabled reports whether authentication is enforced.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Header returns the designated API-key header name.
func (p *Provider) Header() string {
	return p.header
}

// Authenticate resolves the caller's identity. Missing and unknown credentials
// both yield (nil, false); the distinction is only logged.
func (p *Provider) Authenticate(src HeaderSource) (*AuthContext, bool) {
	if !p.enabled {
		return &AuthContext{
			ClientID:    AnonymousClientID,
			Permissions: map[string]struct{}{"*:*:*": {}},
			Method:      MethodDisabled,
		}, true
	}

	if key := strings.TrimSpace(src.Header(p.header)); key != "" {
		c, ok := p.keys[blake2b.Sum256([]byte(key))]
		if !ok {
			p.logger.Debug("authentication failed: unknown api key", "key_fingerprint", Fingerprint(key))
			return nil, false
		}
		return newAuthContext(c, MethodAPIKey), true
	}

	if p.verifier != nil {
		if token, errMsg := extractBearerToken(src.Header("Authorization")); errMsg == "" {
			clientID, err := p.verifier.Verify(token)
			if err != nil {
				p.logger.Debug("authentication failed: bearer token rejected", "error", err)
				return nil, false
			}
			c, ok := p.clients[clientID]
			if !ok {
				p.logger.Debug("authentication failed: token names unknown client", "client_id", clientID)
				return nil, false
			}
			return newAuthContext(c, MethodToken), true
		}
	}

	p.logger.Debug("authentication failed: missing credential", "header", p.header)
	return nil, false
}

// Authorize reports whether authCtx may perform action on the named target.
// With authentication disabled every action is allowed; otherwise a nil
// context is never authorized.
func (p *Provider) Authorize(authCtx *AuthContext, resourceType, resourceName, action string) bool {
	if !p.enabled {
		return true
	}
	if authCtx == nil {
		return false
	}
	return authCtx.Allows(resourceType, resourceName, action)
}

// IssueToken mints a bearer token for a configured client.
func (p *Provider) IssueToken(clientID string, ttl time.Duration) (string, error) {
	issuer, ok := p.verifier.(TokenIssuer)
	if !ok {
		return "", ErrTokensDisabled
	}
	if _, known := p.clients[clientID]; !known {
		return "", ErrUnknownClient
	}
	return issuer.Generate(clientID, ttl)
}

// Fingerprint returns a short, non-reversible identifier for a key, safe to log.
func Fingerprint(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

func newAuthContext(c *client, method Method) *AuthContext {
	return &AuthContext{
		ClientID:    c.id,
		Permissions: maps.Clone(c.permissions),
		Method:      method,
	}
}
