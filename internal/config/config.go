package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/lsp-shell/internal/lsp"
)

// Default values.
const (
	DefaultPrompt     = "lsp> "
	DefaultLogLevel   = "warn"
	DefaultClientName = "lsp-shell"
)

// Config is the shell configuration.
type Config struct {
	// Prompt is shown before each line in interactive mode.
	Prompt string `toml:"prompt" yaml:"prompt"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// Color enables ANSI colours when rendering responses on a terminal.
	Color bool `toml:"color" yaml:"color"`

	// ExitOnSpawnError makes a failed start end the shell.
	ExitOnSpawnError bool `toml:"exit_on_spawn_error" yaml:"exit_on_spawn_error"`

	// RequestTimeout bounds each request. Zero waits forever.
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout"`

	// ClientName is reported as clientInfo.name in initialize.
	ClientName string `toml:"client_name" yaml:"client_name"`

	// Servers are named presets usable as "start <name>".
	Servers map[string]Server `toml:"servers" yaml:"servers"`
}

// Server is a preset language server command.
type Server struct {
	Command string            `toml:"command" yaml:"command"`
	Args    []string          `toml:"args" yaml:"args"`
	Env     map[string]string `toml:"env" yaml:"env"`
	WorkDir string            `toml:"workdir" yaml:"workdir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Prompt:     DefaultPrompt,
		LogLevel:   DefaultLogLevel,
		Color:      true,
		ClientName: DefaultClientName,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	if c.Servers != nil {
		cp.Servers = make(map[string]Server, len(c.Servers))
		for name, s := range c.Servers {
			s.Args = append([]string(nil), s.Args...)
			if s.Env != nil {
				env := make(map[string]string, len(s.Env))
				for k, v := range s.Env {
					env[k] = v
				}
				s.Env = env
			}
			cp.Servers[name] = s
		}
	}
	return &cp
}

// Validate checks the configuration for values the shell cannot use.
func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return &ValidationError{Field: "log_level", Value: c.LogLevel, Message: "unknown log level"}
	}
	if c.RequestTimeout < 0 {
		return &ValidationError{Field: "request_timeout", Value: c.RequestTimeout.String(), Message: "must not be negative"}
	}

	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(c.Servers[name].Command) == "" {
			return &ValidationError{Field: "servers." + name + ".command", Message: "must not be empty"}
		}
	}
	return nil
}

// Presets converts the configured servers into launch configurations.
func (c *Config) Presets() map[string]lsp.ServerConfig {
	presets := make(map[string]lsp.ServerConfig, len(c.Servers))
	for name, s := range c.Servers {
		presets[name] = lsp.ServerConfig{
			Command: s.Command,
			Args:    s.Args,
			Env:     s.Env,
			WorkDir: s.WorkDir,
		}
	}
	return presets
}

// DefaultPath returns $XDG_CONFIG_HOME/lsp-shell/config.toml, falling back
// to the user config directory of the platform.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return ""
		}
	}
	return filepath.Join(dir, "lsp-shell", "config.toml")
}

// Duration is a time.Duration written as a string such as "30s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// Holder publishes the active configuration to concurrent readers.
type Holder struct {
	p atomic.Pointer[Config]
}

// NewHolder returns a holder initialised with c.
func NewHolder(c *Config) *Holder {
	h := &Holder{}
	h.Store(c)
	return h
}

// Load returns the current configuration.
func (h *Holder) Load() *Config {
	if c := h.p.Load(); c != nil {
		return c
	}
	return Default()
}

// Store replaces the current configuration.
func (h *Holder) Store(c *Config) {
	h.p.Store(c)
}
