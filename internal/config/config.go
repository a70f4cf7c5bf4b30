package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config represents the main sockrepl configuration
type Config struct {
	// REPL session engine
	Repl ReplConfig `json:"repl" mapstructure:"repl"`

	// History
	History HistoryConfig `json:"history" mapstructure:"history"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ReplConfig holds the session engine settings
type ReplConfig struct {
	DumbTerminal  bool     `json:"dumb_terminal" mapstructure:"dumb_terminal"`
	SocketHost    string   `json:"socket_host" mapstructure:"socket_host"`
	SocketPort    int      `json:"socket_port" mapstructure:"socket_port"`       // 0 disables the socket listener
	WebSocketPort int      `json:"websocket_port" mapstructure:"websocket_port"` // 0 disables the websocket listener
	Namespace     string   `json:"namespace" mapstructure:"namespace"`
	ExitCommands  []string `json:"exit_commands" mapstructure:"exit_commands"`
	AutoIndent    bool     `json:"auto_indent" mapstructure:"auto_indent"`
}

// HistoryConfig holds local history settings
type HistoryConfig struct {
	File       string `json:"file" mapstructure:"file"`
	MaxEntries int    `json:"max_entries" mapstructure:"max_entries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// DefaultExitCommands are the input tokens that shut the shell down
var DefaultExitCommands = []string{"exit", "quit", ":quit"}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Repl: ReplConfig{
			DumbTerminal:  false,
			SocketHost:    "127.0.0.1",
			SocketPort:    0,
			WebSocketPort: 0,
			Namespace:     "main",
			ExitCommands:  append([]string(nil), DefaultExitCommands...),
		},
		History: HistoryConfig{
			MaxEntries: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9464,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if err := v.ValidatePort(c.Repl.SocketPort, true); err != nil {
		return fmt.Errorf("repl.socket_port: %w", err)
	}
	if err := v.ValidatePort(c.Repl.WebSocketPort, true); err != nil {
		return fmt.Errorf("repl.websocket_port: %w", err)
	}
	if c.Repl.SocketPort != 0 && c.Repl.SocketPort == c.Repl.WebSocketPort {
		return fmt.Errorf("repl.socket_port and repl.websocket_port must differ")
	}
	if err := v.ValidateNamespace(c.Repl.Namespace); err != nil {
		return fmt.Errorf("repl.namespace: %w", err)
	}
	if err := v.ValidateExitCommands(c.Repl.ExitCommands); err != nil {
		return fmt.Errorf("repl.exit_commands: %w", err)
	}

	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative, got %d", c.History.MaxEntries)
	}

	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Metrics.Enabled {
		if err := v.ValidatePort(c.Metrics.Port, false); err != nil {
			return fmt.Errorf("metrics.port: %w", err)
		}
	}

	return nil
}

// SocketAddr returns the host:port the socket listener binds to, or "" when disabled
func (c *Config) SocketAddr() string {
	if c.Repl.SocketPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Repl.SocketHost, c.Repl.SocketPort)
}

// WebSocketAddr returns the host:port the websocket listener binds to, or "" when disabled
func (c *Config) WebSocketAddr() string {
	if c.Repl.WebSocketPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Repl.SocketHost, c.Repl.WebSocketPort)
}

// MetricsAddr returns the host:port of the metrics endpoint, or "" when disabled
func (c *Config) MetricsAddr() string {
	if !c.Metrics.Enabled {
		return ""
	}
	return fmt.Sprintf("%s:%d", strings.TrimSpace(c.Metrics.Host), c.Metrics.Port)
}
