// Package config loads the license server configuration.
//
// # Configuration Sources
//
// Configuration is assembled in order of increasing precedence:
//
//  1. Default values (Default)
//  2. A YAML file (--config flag, or config.yaml / configs/config.yaml)
//  3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern LICENSE_<SECTION>_<FIELD>:
//
//	LICENSE_SERVER_PORT=8080
//	LICENSE_STORE_BACKEND=postgres
//	LICENSE_STORE_POSTGRES_DSN=postgres://...
//	LICENSE_LIFECYCLE_HEARTBEAT_TIMEOUT=10s
//	LICENSE_SECURITY_ADMIN_PASSWORD_HASH=$2a$10$...
//
// Durations use Go syntax ("10s", "2m"). Lists are comma separated.
package config
