package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nattransfer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
output: received.dat
port: 40000
negotiation_timeout: 10s
lease: 30m
log_level: debug
gateway:
  upnp: false
public_addr:
  dns_server: 127.0.0.1:5353
  stun_servers: [127.0.0.1:3478, 127.0.0.1:3479]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "received.dat", cfg.Output)
	assert.Equal(t, 40000, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, 30*time.Minute, cfg.LeaseDuration())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Gateway.UPnP)
	// Unset keys keep their defaults.
	assert.True(t, cfg.Gateway.MapPort)
	assert.True(t, cfg.Gateway.NATPMP)
	assert.True(t, cfg.PublicAddr.Enabled)
	assert.Equal(t, "127.0.0.1:5353", cfg.PublicAddr.DNSServer)
	assert.Equal(t, []string{"127.0.0.1:3478", "127.0.0.1:3479"}, cfg.PublicAddr.STUNServers)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "out.bin", cfg.Output)
	assert.Zero(t, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, time.Hour, cfg.LeaseDuration())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Gateway.MapPort)
	assert.Equal(t, "208.67.222.222:53", cfg.PublicAddr.DNSServer)
}

func TestLoad_EmptyValuesFallBack(t *testing.T) {
	cfg, err := Load(writeConfig(t, "output: \"\"\nlease: \"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "out.bin", cfg.Output)
	assert.Equal(t, time.Hour, cfg.LeaseDuration())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "port: [1, 2"},
		{"port out of range", "port: 70000"},
		{"bad timeout", "negotiation_timeout: soon"},
		{"zero timeout", "negotiation_timeout: 0s"},
		{"fractional lease", "lease: 1500ms"},
		{"bad log level", "log_level: loud"},
		{"bad dns server", "public_addr:\n  dns_server: 208.67.222.222"},
		{"bad stun server", "public_addr:\n  stun_servers: [stun.example.com]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
