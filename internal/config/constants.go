package config

import "time"

// Application constants
const (
	AppName = "Plugin License Server"

	// Server defaults
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20 // 1MB

	// License lifecycle
	DefaultHeartbeatTimeout = 10 * time.Second
	DefaultKeyLength        = 16
	MinKeyLength            = 6

	// Store
	DefaultStoreFile    = "licenses.json"
	DefaultMaxOpenConns = 25

	// Admin
	DefaultAdminUser = "admin"
	DefaultTokenTTL  = time.Hour

	// WebSocket
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second

	// Logging
	DefaultLogLevel = "info"
	DefaultLogFile  = "logs/license-server.log"

	// Telemetry
	DefaultServiceName = "plugin-license-server"
)
