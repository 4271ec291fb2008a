package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 1<<20, cfg.Server.MaxHeaderBytes)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "licenses.json", cfg.Store.FilePath)
	assert.Equal(t, 10*time.Second, cfg.Lifecycle.HeartbeatTimeout)
	assert.Equal(t, 16, cfg.Lifecycle.KeyLength)
	assert.Equal(t, "admin", cfg.Security.AdminUser)
	assert.True(t, cfg.Telemetry.MetricsEnabled)
	require.NoError(t, cfg.validate())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		env         map[string]string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no file and no env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, BackendFile, cfg.Store.Backend)
				assert.Equal(t, 10*time.Second, cfg.Lifecycle.HeartbeatTimeout)
			},
		},
		{
			name: "yaml file overrides defaults",
			file: `
server:
  port: 9090
lifecycle:
  heartbeat_timeout: 45s
store:
  backend: memory
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 45*time.Second, cfg.Lifecycle.HeartbeatTimeout)
				assert.Equal(t, BackendMemory, cfg.Store.Backend)
				// untouched values keep their defaults
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 16, cfg.Lifecycle.KeyLength)
			},
		},
		{
			name: "env overrides yaml",
			file: `
server:
  port: 9090
`,
			env: map[string]string{
				"LICENSE_SERVER_PORT":                 "7070",
				"LICENSE_LIFECYCLE_HEARTBEAT_TIMEOUT": "2m",
				"LICENSE_SECURITY_ALLOWED_ORIGINS":    "https://a.example,https://b.example",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 2*time.Minute, cfg.Lifecycle.HeartbeatTimeout)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
			},
		},
		{
			name: "backend name is case-insensitive",
			env:  map[string]string{"LICENSE_STORE_BACKEND": "Memory"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, BackendMemory, cfg.Store.Backend)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"LICENSE_SERVER_PORT": "70000"},
			wantErr: "invalid server port",
		},
		{
			name:    "postgres without dsn",
			env:     map[string]string{"LICENSE_STORE_BACKEND": "postgres"},
			wantErr: "postgres dsn is required",
		},
		{
			name:    "redis without url",
			env:     map[string]string{"LICENSE_STORE_BACKEND": "redis"},
			wantErr: "redis url is required",
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"LICENSE_STORE_BACKEND": "sheets"},
			wantErr: "unknown store backend",
		},
		{
			name:    "short key length",
			env:     map[string]string{"LICENSE_LIFECYCLE_KEY_LENGTH": "4"},
			wantErr: "key length must be at least 6",
		},
		{
			name:    "malformed env duration",
			env:     map[string]string{"LICENSE_LIFECYCLE_HEARTBEAT_TIMEOUT": "soon"},
			wantErr: "failed to load config from env",
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "absent.yaml")
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			} else {
				require.NoError(t, os.WriteFile(path, nil, 0o600))
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidateNormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "syslog"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "console", cfg.Logging.Output)

	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""
	require.NoError(t, cfg.validate())
	assert.Equal(t, "logs/license-server.log", cfg.Logging.FilePath)
}

func TestAdminConfigured(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.AdminConfigured())

	cfg.Security.AdminPasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
	assert.True(t, cfg.AdminConfigured())
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", s.Address())
	assert.Equal(t, ":9000", ServerConfig{Port: 9000}.Address())
}
