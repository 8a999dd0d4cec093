// Package main is the entry point for lsp-shell, an interactive shell for
// driving a language server by hand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the command-line overrides. Only flags the user set are
// applied on top of the environment and config file.
type flags struct {
	configPath string
	logLevel   string
	noColor    bool
	prompt     string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "lsp-shell",
		Short: "Interactive shell for talking to a language server",
		Long: `lsp-shell starts a language server as a subprocess and lets you send
LSP requests and notifications to it one line at a time.

  start gopls
  request initialize
  notify initialized
  request hover main.go 10 4
  exit`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to configuration file (TOML or YAML)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "prompt shown in interactive mode")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lsp-shell %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
