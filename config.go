package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfig = `# snigate configuration file

server:
  # Leave empty to listen on all interfaces.
  bind_address: ""
  https_port: 443
  http_port: 80
  # Maximum number of simultaneously open connections per listener. 0 means unlimited.
  max_connections: 0
  # Print the server version in the "Server" header of responses generated by snigate.
  show_server_version: true

tls:
  # Host file (by domain) whose certificate is presented when the requested SNI name is unknown.
  default_host: example.com
  # Abort the handshake instead of presenting the default certificate for unknown SNI names.
  strict_sni: false
  # Fetch an OCSP response for each certificate at startup and staple it to handshakes.
  ocsp_stapling: false

timeouts:
  # Upper bound for the TLS handshake and reading the request headers.
  handshake: 10s
  idle: 120s
  origin_dial: 10s
  # Upper bound for waiting on the origin's response headers.
  origin_response: 60s

logging:
  # Options: debug, info, warn, error
  level: info
  access_log: ""
  error_log: ""
  json: false
`

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	TLS      TLSConfig      `yaml:"tls"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	BindAddress       string `yaml:"bind_address"`
	HTTPSPort         int    `yaml:"https_port"`
	HTTPPort          int    `yaml:"http_port"`
	MaxConnections    int    `yaml:"max_connections"`
	ShowServerVersion bool   `yaml:"show_server_version"`
}

type TLSConfig struct {
	DefaultHost  string `yaml:"default_host"`
	StrictSNI    bool   `yaml:"strict_sni"`
	OCSPStapling bool   `yaml:"ocsp_stapling"`
}

type TimeoutsConfig struct {
	Handshake      time.Duration `yaml:"handshake"`
	Idle           time.Duration `yaml:"idle"`
	OriginDial     time.Duration `yaml:"origin_dial"`
	OriginResponse time.Duration `yaml:"origin_response"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	AccessLog string `yaml:"access_log"`
	ErrorLog  string `yaml:"error_log"`
	JSON      bool   `yaml:"json"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPSPort:         443,
			HTTPPort:          80,
			ShowServerVersion: true,
		},
		TLS: TLSConfig{
			DefaultHost: "example.com",
		},
		Timeouts: TimeoutsConfig{
			Handshake:      10 * time.Second,
			Idle:           120 * time.Second,
			OriginDial:     10 * time.Second,
			OriginResponse: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SecureAddr is the listen address of the TLS listener.
func (c Config) SecureAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.HTTPSPort)
}

// InsecureAddr is the listen address of the plaintext redirect listener.
func (c Config) InsecureAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.HTTPPort)
}

func (c Config) validate() error {
	if c.Server.HTTPSPort < 0 || c.Server.HTTPSPort > 65535 {
		return fmt.Errorf("server.https_port out of range: %d", c.Server.HTTPSPort)
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.TLS.DefaultHost == "" {
		return errors.New("tls.default_host is required")
	}
	if c.Timeouts.Handshake <= 0 || c.Timeouts.OriginDial <= 0 || c.Timeouts.OriginResponse <= 0 {
		return errors.New("timeouts.handshake, timeouts.origin_dial and timeouts.origin_response must be positive")
	}
	return nil
}

func GetConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// CreateDefaultConfig writes DefaultConfig to path unless a file already exists there.
func CreateDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(DefaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write default config file: %w", err)
	}
	return nil
}

// LoadConfig reads the configuration at path on top of the built-in defaults.
// A missing file is replaced by DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := CreateDefaultConfig(path); err != nil {
			return Config{}, err
		}
		data = []byte(DefaultConfig)
	}

	conf := defaultConfig()
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := conf.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return conf, nil
}
