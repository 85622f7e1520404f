// ABOUTME: Configuration loading and parsing for dbp-server
// ABOUTME: Supports YAML or TOML files with environment variable expansion, env overrides, and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is left unset.
const (
	DefaultAPIKeyHeader = "X-API-Key"
	DefaultTokenTTL     = 24 * time.Hour
	DefaultCacheTTL     = 5 * time.Minute
	DefaultCacheSize    = 256
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	minJWTSecretLength  = 32
)

// Config represents the complete dbp-server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Docs      DocsConfig      `yaml:"docs" toml:"docs"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener addresses. An empty grpc_addr disables gRPC.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"` // serve :443 with tailnet certificates
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration. Authentication is on unless
// explicitly disabled.
type AuthConfig struct {
	Enabled   *bool          `yaml:"enabled" toml:"enabled"`
	Header    string         `yaml:"header" toml:"header"`
	JWTSecret string         `yaml:"jwt_secret" toml:"jwt_secret"`
	APIKeys   []APIKeyConfig `yaml:"api_keys" toml:"api_keys"`

	TokenTTL    time.Duration `yaml:"-" toml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl" toml:"token_ttl"`
}

// IsEnabled reports whether requests must authenticate.
func (a AuthConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// APIKeyConfig maps one API key to a client identity and its permissions.
type APIKeyConfig struct {
	Key         string   `yaml:"key" toml:"key"`
	ClientID    string   `yaml:"client_id" toml:"client_id"`
	Permissions []string `yaml:"permissions" toml:"permissions"`
}

// DocsConfig locates the documentation tree and sizes its cache
type DocsConfig struct {
	Root      string `yaml:"root" toml:"root"`
	Watch     bool   `yaml:"watch" toml:"watch"`
	CacheSize int    `yaml:"cache_size" toml:"cache_size"`

	CacheTTL    time.Duration `yaml:"-" toml:"-"`
	CacheTTLRaw string        `yaml:"cache_ttl" toml:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// envOverrides are environment variables that take precedence over the file.
type envOverrides struct {
	HTTPAddr     string `env:"DBP_HTTP_ADDR"`
	GRPCAddr     string `env:"DBP_GRPC_ADDR"`
	DatabasePath string `env:"DBP_DATABASE_PATH"`
	DocsRoot     string `env:"DBP_DOCS_ROOT"`
	LogLevel     string `env:"DBP_LOG_LEVEL"`
	JWTSecret    string `env:"DBP_JWT_SECRET"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, DBP_* overrides
// are applied, and duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(expandEnvVars(string(data)), isTOML(path))
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Parse decodes already-expanded configuration text, applies environment
// overrides and defaults, and parses durations. It does not validate.
func Parse(content string, asTOML bool) (*Config, error) {
	var cfg Config
	if asTOML {
		if _, err := toml.Decode(content, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment overrides: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultPath returns the config file location: $DBP_CONFIG, then
// $XDG_CONFIG_HOME/dbp/gateway.yaml, then ~/.config/dbp/gateway.yaml.
func DefaultPath() string {
	if p := os.Getenv("DBP_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dbp", "gateway.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gateway.yaml"
	}
	return filepath.Join(home, ".config", "dbp", "gateway.yaml")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.HTTPAddr, env.HTTPAddr)
	set(&cfg.Server.GRPCAddr, env.GRPCAddr)
	set(&cfg.Database.Path, env.DatabasePath)
	set(&cfg.Docs.Root, env.DocsRoot)
	set(&cfg.Logging.Level, env.LogLevel)
	set(&cfg.Auth.JWTSecret, env.JWTSecret)
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = DefaultAPIKeyHeader
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.Docs.CacheTTLRaw == "" {
		cfg.Docs.CacheTTL = DefaultCacheTTL
	}
	if cfg.Docs.CacheSize == 0 {
		cfg.Docs.CacheSize = DefaultCacheSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Docs.Root == "" {
		return fmt.Errorf("docs.root is required")
	}
	if c.Docs.CacheSize < 0 {
		return fmt.Errorf("docs.cache_size must not be negative")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecretLength)
	}
	if c.Auth.IsEnabled() && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys is required when auth is enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	if cfg.Docs.CacheTTLRaw != "" {
		cfg.Docs.CacheTTL, err = time.ParseDuration(cfg.Docs.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.Docs.CacheTTLRaw, err)
		}
	}

	return nil
}
