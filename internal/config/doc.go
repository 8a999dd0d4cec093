// Package config loads the lsp-shell configuration.
//
// Settings come from three layers, later layers winning:
//
//   - the config file, TOML or YAML chosen by extension
//     ($XDG_CONFIG_HOME/lsp-shell/config.toml unless overridden)
//   - LSP_SHELL_* environment variables (see Env)
//   - command-line flags, applied by the caller
//
// A minimal TOML file:
//
//	prompt = "lsp> "
//	log_level = "info"
//	request_timeout = "30s"
//
//	[servers.gopls]
//	command = "gopls"
//	args = ["serve"]
//
// Watch reloads the file when it changes; Holder publishes the active
// configuration to readers on other goroutines.
package config
