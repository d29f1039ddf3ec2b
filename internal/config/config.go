// Package config loads the server settings with viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gaggiuino_mcp/internal/logger"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Server identity reported to tool clients.
const (
	ServerName    = "Gaggiuino MCP Server"
	ServerVersion = "1.0.0"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Keys.
const (
	KeyBaseURL   = "base_url"
	KeyTimeoutMs = "timeout_ms"
	KeyLogLevel  = "log_level"
	KeyTransport = "transport"
	KeyPort      = "port"
)

const maxTimeoutMs = 120_000

// Config is the resolved configuration of one process.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	LogLevel  string
	Transport string
	Port      string
}

var envNames = map[string]string{
	KeyBaseURL:   "GAGGIUINO_BASE_URL",
	KeyTimeoutMs: "REQUEST_TIMEOUT",
	KeyLogLevel:  "LOG_LEVEL",
	KeyTransport: "MCP_TRANSPORT_TYPE",
	KeyPort:      "SERVER_PORT",
}

var flagNames = map[string]string{
	KeyBaseURL:   "base-url",
	KeyTimeoutMs: "timeout-ms",
	KeyLogLevel:  "log-level",
	KeyTransport: "transport",
	KeyPort:      "port",
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "http://gaggiuino.local")
	v.SetDefault(KeyTimeoutMs, 5000)
	v.SetDefault(KeyLogLevel, logger.InfoLevel)
	v.SetDefault(KeyTransport, TransportStdio)
	v.SetDefault(KeyPort, "8080")

	for key, env := range envNames {
		_ = v.BindEnv(key, env)
	}
}

// RegisterFlags adds one flag per key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagNames[KeyBaseURL], "", "Base URL of the espresso machine (env GAGGIUINO_BASE_URL)")
	fs.Int(flagNames[KeyTimeoutMs], 0, "Device request timeout in milliseconds (env REQUEST_TIMEOUT)")
	fs.String(flagNames[KeyLogLevel], "", "Log level: "+logger.LevelHelp()+" (env LOG_LEVEL)")
	fs.String(flagNames[KeyTransport], "", "Tool transport: stdio or http (env MCP_TRANSPORT_TYPE)")
	fs.String(flagNames[KeyPort], "", "HTTP port for the http transport (env SERVER_PORT)")
}

// BindFlags makes explicitly set flags override every other source.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key, name := range flagNames {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional config file and resolves v into a Config. An
// explicit file must exist; the default configs/config.yml may be absent.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		BaseURL:   strings.TrimSpace(v.GetString(KeyBaseURL)),
		Timeout:   time.Duration(v.GetInt(KeyTimeoutMs)) * time.Millisecond,
		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		Transport: strings.ToLower(strings.TrimSpace(v.GetString(KeyTransport))),
		Port:      strings.TrimSpace(v.GetString(KeyPort)),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the resolved values.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", c.BaseURL)
	}
	if c.Timeout <= 0 || c.Timeout > maxTimeoutMs*time.Millisecond {
		return fmt.Errorf("invalid request timeout %v: must be between 1ms and %dms", c.Timeout, maxTimeoutMs)
	}
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid transport %q: must be %q or %q", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.Transport == TransportHTTP && c.Port == "" {
		return errors.New("port is required for the http transport")
	}
	return nil
}
