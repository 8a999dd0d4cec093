package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path on top of the defaults.
// A missing file is not an error. The environment overlay is not applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := Parse(path, data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data into cfg, choosing the format from the extension of path.
// Keys absent from data keep the values already in cfg.
func Parse(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", "":
		return parseTOML(path, data, cfg)
	case ".yaml", ".yml":
		return parseYAML(path, data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func parseTOML(path string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) && len(serr.Errors) > 0 {
			perr.Message = serr.String()
			perr.Line, perr.Column = serr.Errors[0].Position()
		}
		return perr
	}
	return nil
}

func parseYAML(path string, data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// Env lists the environment variables that override the config file.
type Env struct {
	Config         string `env:"LSP_SHELL_CONFIG"`
	LogLevel       string `env:"LSP_SHELL_LOG_LEVEL"`
	Prompt         string `env:"LSP_SHELL_PROMPT"`
	NoColor        bool   `env:"LSP_SHELL_NO_COLOR"`
	RequestTimeout string `env:"LSP_SHELL_REQUEST_TIMEOUT"`
}

// ReadEnv decodes the LSP_SHELL_* variables from the process environment.
func ReadEnv() (Env, error) {
	var env Env
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Env{}, fmt.Errorf("reading environment: %w", err)
	}
	return env, nil
}

// Apply overlays the set variables onto cfg.
func (e Env) Apply(cfg *Config) error {
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}
	if e.Prompt != "" {
		cfg.Prompt = e.Prompt
	}
	if e.NoColor {
		cfg.Color = false
	}
	if e.RequestTimeout != "" {
		if err := cfg.RequestTimeout.UnmarshalText([]byte(e.RequestTimeout)); err != nil {
			return fmt.Errorf("LSP_SHELL_REQUEST_TIMEOUT: %w", err)
		}
	}
	return nil
}
