// Package config handles configuration loading for lostify-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The package applies defaults and validates the result.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from LOSTIFY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/lostify/gateway.yaml
//  3. ~/.config/lostify/gateway.yaml
//
// A file ending in .toml is decoded as TOML; anything else as YAML.
// LOSTIFY_DB_PATH, when set, overrides database.path.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${LOSTIFY_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  read_header_timeout: "10s"
//	  shutdown_timeout: "10s"
//
//	database:
//	  path: "/var/lib/lostify/gateway.db"
//	  busy_timeout: "5s"
//
//	auth:
//	  jwt_secret: "${LOSTIFY_JWT_SECRET}"  # at least 32 bytes
//	  token_ttl: "24h"
//
//	tailscale:
//	  enabled: false
//	  hostname: "lostify"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
