// Package config handles configuration loading for relay-gateway.
//
// Configuration is loaded from YAML files with ${VAR_NAME} environment
// variable expansion and time.ParseDuration syntax for durations:
//
//	server:
//	  http_addr: "localhost:8080"
//	database:
//	  path: "/var/lib/relay/gateway.db"
//	auth:
//	  jwt_secret: "${RELAY_JWT_SECRET}"
//	routing:
//	  handler_timeout: "30s"
//	memory:
//	  cleanup_interval: "1h"
//
// Load applies defaults, then validates; server.http_addr and database.path
// are required.
package config
