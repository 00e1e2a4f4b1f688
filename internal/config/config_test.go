package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "data/licensegate.db", cfg.Storage.Path)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Auth.MinUsernameLength)
	assert.Equal(t, 8, cfg.Auth.MinPasswordLength)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, cfg.validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "read timeout missing",
			mutate:  func(c *Config) { c.Server.ReadTimeout = 0 },
			wantErr: "read timeout",
		},
		{
			name:    "write timeout missing",
			mutate:  func(c *Config) { c.Server.WriteTimeout = 0 },
			wantErr: "write timeout",
		},
		{
			name:    "storage path missing",
			mutate:  func(c *Config) { c.Storage.Path = "" },
			wantErr: "storage path",
		},
		{
			name:    "token TTL missing",
			mutate:  func(c *Config) { c.Auth.TokenTTL = 0 },
			wantErr: "token TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("non-json format is coerced", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Format = "text"
		require.NoError(t, cfg.validate())
		assert.Equal(t, "json", cfg.Logging.Format)
	})
}

func TestMergeConfigs(t *testing.T) {
	fileCfg := Config{}
	fileCfg.Server.Port = 9090
	fileCfg.Server.ReadTimeout = 5 * time.Second
	fileCfg.Storage.Path = "file/licenses.db"
	fileCfg.Geo.DatabasePath = "file/geoip.mmdb"
	fileCfg.Auth.TokenTTL = time.Hour

	t.Run("env values win", func(t *testing.T) {
		envCfg := Config{}
		envCfg.Server.Port = 8080
		envCfg.Storage.Path = "env/licenses.db"
		envCfg.Auth.TokenTTL = 2 * time.Hour

		merged := mergeConfigs(fileCfg, envCfg)
		assert.Equal(t, 8080, merged.Server.Port)
		assert.Equal(t, "env/licenses.db", merged.Storage.Path)
		assert.Equal(t, 2*time.Hour, merged.Auth.TokenTTL)
	})

	t.Run("file fills unset env fields", func(t *testing.T) {
		merged := mergeConfigs(fileCfg, Config{})
		assert.Equal(t, 9090, merged.Server.Port)
		assert.Equal(t, 5*time.Second, merged.Server.ReadTimeout)
		assert.Equal(t, "file/licenses.db", merged.Storage.Path)
		assert.Equal(t, "file/geoip.mmdb", merged.Geo.DatabasePath)
		assert.Equal(t, time.Hour, merged.Auth.TokenTTL)
	})
}
