package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:12345", cfg.Server.Addr())
	assert.Equal(t, 1024, cfg.Server.BufferSize)
	assert.Empty(t, cfg.Serial.Device)
	assert.False(t, cfg.API.Enabled)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, DefaultConfig(), m.Get())
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{
			file: "relay.yaml",
			content: `
server:
  port: 9000
serial:
  device: /dev/ttyUSB0
logging:
  level: debug
`,
		},
		{
			file: "relay.toml",
			content: `
[server]
port = 9000

[serial]
device = "/dev/ttyUSB0"

[logging]
level = "debug"
`,
		},
		{
			file:    "relay.json",
			content: `{"server": {"port": 9000}, "serial": {"device": "/dev/ttyUSB0"}, "logging": {"level": "debug"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			m, err := NewManager(path)
			require.NoError(t, err)
			require.NoError(t, m.Load())

			cfg := m.Get()
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
			assert.Equal(t, "debug", cfg.Logging.Level)

			// Unset keys keep their defaults.
			assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
			assert.Equal(t, 115200, cfg.Serial.Baud)
			assert.Equal(t, "text", cfg.Logging.Format)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	for _, ext := range []string{".json", ".yaml", ".yml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "config"+ext)
			m, err := NewManager(path)
			require.NoError(t, err)

			cfg := DefaultConfig()
			cfg.API.Enabled = true
			cfg.API.Token = "secret"
			cfg.General.Tray = true
			m.Set(cfg)
			require.NoError(t, m.Save())

			loaded, err := NewManager(path)
			require.NoError(t, err)
			require.NoError(t, loaded.Load())
			assert.Equal(t, cfg, loaded.Get())
		})
	}
}

func TestLoadParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport = "), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	err = m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
	assert.Equal(t, DefaultConfig(), m.Get())
}

func TestNewManagerRejectsUnknownExtension(t *testing.T) {
	_, err := NewManager("relay.ini")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server config"},
		{"ipv6 bind", func(c *Config) { c.Server.BindAddress = "::1" }, "server config"},
		{"tiny buffer", func(c *Config) { c.Server.BufferSize = 8 }, "server config"},
		{"device without baud", func(c *Config) { c.Serial.Device = "/dev/ttyACM0"; c.Serial.Baud = 0 }, "serial config"},
		{"api bad port", func(c *Config) { c.API.Enabled = true; c.API.Port = 70000 }, "api config"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging config"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	disabled := DefaultConfig()
	disabled.API.Port = 0
	assert.NoError(t, disabled.Validate(), "disabled API is not validated")
}
