package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/lsp-shell/internal/command"
	"github.com/dshills/lsp-shell/internal/lsp"
)

// Messages printed verbatim.
const (
	msgRequestNotInitialized      = "LSP client is not initialized, can't send request."
	msgNotificationNotInitialized = "LSP client is not initialized, can't send notification."
)

// ErrSpawn wraps a start failure that ends the shell.
var ErrSpawn = errors.New("shell: server could not be started")

// Config holds dispatcher options.
type Config struct {
	// ExitOnSpawnError makes a failed start fatal. By default the failure
	// is reported and the shell keeps running.
	ExitOnSpawnError bool

	// Presets returns the configured servers by name. It is called on each
	// start, so it may reflect a reloaded configuration.
	Presets func() map[string]lsp.ServerConfig
}

// Dispatcher turns one tokenized input line into at most one client call.
type Dispatcher struct {
	session     *Session
	registry    *command.Registry
	interpreter *Interpreter
	start       Starter
	out         io.Writer
	config      Config
	metrics     *Metrics
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher over session.
func NewDispatcher(session *Session, registry *command.Registry, start Starter, out io.Writer, config Config) *Dispatcher {
	return &Dispatcher{
		session:     session,
		registry:    registry,
		interpreter: NewInterpreter(out, false),
		start:       start,
		out:         out,
		config:      config,
		metrics:     NewMetrics(),
		logger:      slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger.
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetInterpreter replaces the response interpreter.
func (d *Dispatcher) SetInterpreter(i *Interpreter) {
	if i != nil {
		d.interpreter = i
	}
}

// Metrics returns the request statistics.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Dispatch executes one line. Every problem caused by the line is printed;
// the returned error is reserved for conditions that end the shell.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	args := tokens[1:]
	switch tokens[0] {
	case "exit", "quit", "q":
		d.session.Exit()
	case "help", "h":
		d.help()
	case "start", "s":
		return d.startServer(ctx, args)
	case "request", "req", "r":
		d.request(ctx, args)
	case "notify", "not", "n":
		d.notify(ctx, args)
	default:
		d.printf("unknown command: '%s'\n", tokens[0])
	}
	return nil
}

func (d *Dispatcher) startServer(ctx context.Context, args []string) error {
	if len(args) == 0 {
		d.printf("usage: start <program> [args...] | start <preset>\n")
		return nil
	}

	cfg := lsp.ServerConfig{Command: args[0], Args: args[1:]}
	if len(args) == 1 && d.config.Presets != nil {
		if preset, ok := d.config.Presets()[args[0]]; ok {
			d.logger.Debug("using server preset", "preset", args[0])
			cfg = preset
		}
	}

	client, err := d.start(ctx, cfg)
	if err != nil {
		d.logger.Error("server start failed", "command", cfg.String(), "error", err)
		if d.config.ExitOnSpawnError {
			return fmt.Errorf("%w: %w", ErrSpawn, err)
		}
		d.printf("%v\n", err)
		return nil
	}

	if err := d.session.Replace(client); err != nil {
		d.logger.Warn("closing previous server failed", "error", err)
	}

	if s, ok := client.(interface{ SessionID() string }); ok {
		d.printf("started %s (session %s)\n", cfg.String(), s.SessionID())
	} else {
		d.printf("started %s\n", cfg.String())
	}
	return nil
}

func (d *Dispatcher) request(ctx context.Context, args []string) {
	client := d.session.Client()
	if client == nil {
		d.printf("%s\n", msgRequestNotInitialized)
		return
	}
	if len(args) == 0 {
		d.printf("usage: request <name> [args...]\n")
		return
	}

	name := args[0]
	desc, ok := d.registry.LookupRequest(name)
	if !ok {
		d.printf("Unknown request type: '%s'\n", name)
		d.suggest(command.KindRequest, name)
		return
	}

	ids := d.session.IDs()
	id := ids.Reserve()
	call, err := desc.Prepare(args[1:])
	if err != nil {
		ids.Release(id)
		d.parameterError("request", err)
		return
	}

	d.logger.Debug("sending request", "id", id, "method", call.Method())
	started := time.Now()
	outcome := call.Invoke(ctx, client, id)
	class := Classify(outcome)
	d.metrics.RecordRequest(call.Method(), time.Since(started), class)
	d.logger.Debug("request finished", "id", id, "method", call.Method(), "outcome", class.String())

	d.interpreter.Render(outcome)
}

func (d *Dispatcher) notify(ctx context.Context, args []string) {
	client := d.session.Client()
	if client == nil {
		d.printf("%s\n", msgNotificationNotInitialized)
		return
	}
	if len(args) == 0 {
		d.printf("usage: notify <name> [args...]\n")
		return
	}

	name := args[0]
	desc, ok := d.registry.LookupNotification(name)
	if !ok {
		d.printf("Unknown notification type: '%s'\n", name)
		d.suggest(command.KindNotification, name)
		return
	}

	send, err := desc.Prepare(args[1:])
	if err != nil {
		d.parameterError("notify", err)
		return
	}

	if err := send.Deliver(ctx, client); err != nil {
		d.printf("%v\n", err)
		return
	}
	d.metrics.RecordNotification()
	d.printf("notification '%s' sent\n", send.Method())
}

func (d *Dispatcher) parameterError(verb string, err error) {
	d.printf("%v\n", err)
	var perr *command.ParameterError
	if errors.As(err, &perr) {
		d.printf("usage: %s %s %s\n", verb, perr.Command, perr.Usage)
	}
}

func (d *Dispatcher) suggest(kind command.Kind, name string) {
	if names := d.registry.Suggest(kind, name); len(names) > 0 {
		d.printf("did you mean: %s?\n", strings.Join(names, ", "))
	}
}

func (d *Dispatcher) help() {
	var b strings.Builder
	b.WriteString("commands:\n")
	b.WriteString("  start|s <program> [args...]      spawn a language server\n")
	b.WriteString("  start|s <preset>                 spawn a configured server\n")
	b.WriteString("  request|req|r <name> [args...]   send a request\n")
	b.WriteString("  notify|not|n <name> [args...]    send a notification\n")
	b.WriteString("  help|h                           show this help\n")
	b.WriteString("  exit|quit|q                      leave the shell\n")
	b.WriteString("\nArguments may be followed by path=value overrides of the parameters.\n")
	b.WriteString("Put -- after the arguments when one of them contains '=': tokens before\n")
	b.WriteString("it are taken literally, tokens after it must be overrides.\n")

	writeDescriptors(&b, "requests", d.registry.Requests())
	writeDescriptors(&b, "notifications", d.registry.Notifications())

	io.WriteString(d.out, b.String())
}

func writeDescriptors(b *strings.Builder, title string, descs []command.Descriptor) {
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, desc := range descs {
		name := desc.Name()
		if aliases := desc.Aliases(); len(aliases) > 0 {
			name += " (" + strings.Join(aliases, ", ") + ")"
		}
		synopsis := strings.TrimSpace(name + " " + desc.Usage())
		fmt.Fprintf(b, "  %-52s %s\n", synopsis, desc.Method())
	}
}

func (d *Dispatcher) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}
