package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/lsp-shell/internal/command"
	"github.com/dshills/lsp-shell/internal/config"
	"github.com/dshills/lsp-shell/internal/logging"
	"github.com/dshills/lsp-shell/internal/lsp"
	"github.com/dshills/lsp-shell/internal/shell"
)

func run(cmd *cobra.Command, f flags) error {
	env, err := config.ReadEnv()
	if err != nil {
		return err
	}

	path := configPath(f, env)
	cfg, err := loadConfig(cmd, path, env, f)
	if err != nil {
		return err
	}
	holder := config.NewHolder(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := shell.IsTerminal(os.Stdin)

	var (
		reader   shell.LineReader
		out      io.Writer = os.Stdout
		logOut   io.Writer = os.Stderr
		terminal *shell.TerminalReader
	)
	if interactive {
		terminal, err = shell.NewTerminalReader(os.Stdin, os.Stdout, cfg.Prompt)
		if err != nil {
			return err
		}
		reader = terminal
		out = terminal.Writer()
		logOut = terminal.Writer()
	} else {
		reader = shell.NewScannerReader(os.Stdin)
	}
	defer reader.Close()

	var level slog.LevelVar
	if err := logging.SetLevel(&level, cfg.LogLevel); err != nil {
		return err
	}
	logger := logging.New(logOut, &level)

	colorOut := interactive || shell.IsTerminal(os.Stdout)
	interpreter := shell.NewInterpreter(out, cfg.Color && colorOut)

	session := shell.NewSession()
	registry := command.Default(lsp.ClientInfo{Name: cfg.ClientName, Version: version})
	starter := shell.LSPStarter(logger, func() time.Duration {
		return holder.Load().RequestTimeout.Std()
	})
	dispatcher := shell.NewDispatcher(session, registry, starter, out, shell.Config{
		ExitOnSpawnError: cfg.ExitOnSpawnError,
		Presets: func() map[string]lsp.ServerConfig {
			return holder.Load().Presets()
		},
	})
	dispatcher.SetLogger(logger)
	dispatcher.SetInterpreter(interpreter)

	if path != "" {
		onChange := func(fileCfg *config.Config) {
			next, err := overlay(cmd, fileCfg, env, f)
			if err != nil {
				logger.Warn("config reload rejected", "path", path, "error", err)
				return
			}
			holder.Store(next)
			_ = logging.SetLevel(&level, next.LogLevel)
			interpreter.SetColor(next.Color && colorOut)
			if terminal != nil {
				terminal.SetPrompt(next.Prompt)
			}
			logger.Info("config reloaded", "path", path)
		}
		onError := func(err error) {
			logger.Warn("config reload failed", "path", path, "error", err)
		}
		if err := config.Watch(ctx, path, onChange, onError); err != nil {
			logger.Debug("config watch disabled", "path", path, "error", err)
		}
	}

	logger.Debug("shell starting", "interactive", interactive, "config", path)
	return shell.New(reader, dispatcher, session, logger).Run(ctx)
}

// configPath picks the config file: --config, then LSP_SHELL_CONFIG, then
// the default location.
func configPath(f flags, env config.Env) string {
	switch {
	case f.configPath != "":
		return f.configPath
	case env.Config != "":
		return env.Config
	default:
		return config.DefaultPath()
	}
}

func loadConfig(cmd *cobra.Command, path string, env config.Env, f flags) (*config.Config, error) {
	fileCfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return overlay(cmd, fileCfg, env, f)
}

// overlay applies the environment and then the flags the user set on top of
// a config loaded from file.
func overlay(cmd *cobra.Command, fileCfg *config.Config, env config.Env, f flags) (*config.Config, error) {
	cfg := fileCfg.Clone()
	if err := env.Apply(cfg); err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("no-color") && f.noColor {
		cfg.Color = false
	}
	if fs.Changed("prompt") {
		cfg.Prompt = f.prompt
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}
