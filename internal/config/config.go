// Package config provides configuration management for the relay.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for config files with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown config format")

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server" toml:"server"`
	Serial  SerialConfig  `json:"serial" yaml:"serial" toml:"serial"`
	API     APIConfig     `json:"api" yaml:"api" toml:"api"`
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`
	General GeneralConfig `json:"general" yaml:"general" toml:"general"`
}

// ServerConfig contains the UDP listener settings
type ServerConfig struct {
	BindAddress string `json:"bind_address" yaml:"bind_address" toml:"bind_address"`
	Port        int    `json:"port" yaml:"port" toml:"port"`

	// BufferSize is the receive buffer; longer datagrams are truncated.
	BufferSize int `json:"buffer_size" yaml:"buffer_size" toml:"buffer_size"`
}

// Addr returns the listener address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.BindAddress, fmt.Sprint(s.Port))
}

// SerialConfig selects the sink. An empty Device prints lines to stdout.
type SerialConfig struct {
	Device string `json:"device" yaml:"device" toml:"device"`
	Baud   int    `json:"baud" yaml:"baud" toml:"baud"`
}

// APIConfig contains the monitoring HTTP server settings
type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Address string `json:"address" yaml:"address" toml:"address"`
	Port    int    `json:"port" yaml:"port" toml:"port"`

	// Token is an optional bearer token for API requests
	Token string `json:"token,omitempty" yaml:"token,omitempty" toml:"token,omitempty"`
}

// Addr returns the API listen address in host:port form.
func (a APIConfig) Addr() string {
	return net.JoinHostPort(a.Address, fmt.Sprint(a.Port))
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
	Output string `json:"output" yaml:"output" toml:"output"` // stdout, stderr or a file path
}

// GeneralConfig contains desktop integration settings
type GeneralConfig struct {
	// Tray runs the relay under a system tray icon
	Tray bool `json:"tray" yaml:"tray" toml:"tray"`

	// OpenFirewall adds an inbound rule for the UDP port on Windows
	OpenFirewall bool `json:"open_firewall" yaml:"open_firewall" toml:"open_firewall"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress: "127.0.0.1",
			Port:        12345,
			BufferSize:  1024,
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
		API: APIConfig{
			Address: "127.0.0.1",
			Port:    18080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Validate checks every section and reports the first problem.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("serial config: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}
	if ip := net.ParseIP(s.BindAddress); ip == nil || ip.To4() == nil {
		return fmt.Errorf("bind_address must be an IPv4 address, got %q", s.BindAddress)
	}
	if s.BufferSize < 16 {
		return fmt.Errorf("buffer_size must hold at least a header, got %d", s.BufferSize)
	}
	return nil
}

func (s *SerialConfig) Validate() error {
	if s.Device != "" && s.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", s.Baud)
	}
	return nil
}

func (a *APIConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", a.Port)
	}
	if a.Address == "" {
		return fmt.Errorf("address cannot be empty when the API is enabled")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be 'text' or 'json', got %q", l.Format)
	}
	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
}

// NewManager creates a configuration manager for path. An empty path uses
// config.yaml in the per-user config directory.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if _, err := formatOf(path); err != nil {
		return nil, err
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// defaultConfigPath returns the per-OS location of the configuration file
func defaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "kmrelay")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "kmrelay")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "kmrelay")
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

type format int

const (
	formatJSON format = iota
	formatYAML
	formatTOML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Path returns the configuration file location.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file keeps the
// defaults. Values absent from the file keep their defaults too.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", m.configPath, err)
	}

	f, _ := formatOf(m.configPath)
	cfg := DefaultConfig()
	switch f {
	case formatJSON:
		err = json.Unmarshal(data, cfg)
	case formatYAML:
		err = yaml.Unmarshal(data, cfg)
	case formatTOML:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", m.configPath, err)
	}

	m.config = cfg
	return nil
}

// Save writes the configuration to disk in the format of its extension.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, _ := formatOf(m.configPath)
	var (
		data []byte
		err  error
	)
	switch f {
	case formatJSON:
		data, err = json.MarshalIndent(m.config, "", "  ")
	case formatYAML:
		data, err = yaml.Marshal(m.config)
	case formatTOML:
		data, err = toml.Marshal(m.config)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
}
