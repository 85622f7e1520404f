// Package config handles configuration loading for dbp-server.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion, DBP_* environment overrides, defaults, and validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from DBP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/dbp/gateway.yaml
//  3. ~/.config/dbp/gateway.yaml
//
// Files ending in .toml are parsed as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${DBP_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Environment Overrides
//
// These variables replace the file value when set: DBP_HTTP_ADDR,
// DBP_GRPC_ADDR, DBP_DATABASE_PATH, DBP_DOCS_ROOT, DBP_LOG_LEVEL,
// DBP_JWT_SECRET.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"   # /mcp, /mcp/stream, listings, health
//	  grpc_addr: "127.0.0.1:50051"  # optional; empty disables gRPC
//
//	tailscale:
//	  enabled: false
//	  hostname: "dbp"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: "~/.local/share/dbp/tsnet"
//	  ephemeral: false
//	  https: false             # :443 with tailnet certificates instead of :80
//
//	database:
//	  path: "~/.local/share/dbp/gateway.db"
//
//	auth:
//	  enabled: true            # default true
//	  header: "X-API-Key"
//	  jwt_secret: "${DBP_JWT_SECRET}"  # optional; enables bearer tokens
//	  token_ttl: "24h"
//	  api_keys:
//	    - key: "${DBP_ADMIN_KEY}"
//	      client_id: "admin"
//	      permissions: ["*:*:*"]
//
//	docs:
//	  root: "./docs"
//	  watch: true
//	  cache_ttl: "5m"          # "0s" disables expiry
//	  cache_size: 256
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - server.http_addr present unless Tailscale is enabled
//   - tailscale.hostname when Tailscale is enabled
//   - database.path and docs.root present
//   - JWT secret minimum length (32 bytes) when set
//   - at least one API key while auth is enabled
//   - logging level and format values
//
// # Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
