package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/lsp-shell/internal/command"
	"github.com/dshills/lsp-shell/internal/lsp"
)

// fakeClient records calls and answers requests with respond.
type fakeClient struct {
	respond func(method string, id int64) (*lsp.Response, error)

	requestIDs    []int64
	methods       []string
	notifications []string
	notifyErr     error
	closed        bool
}

func (c *fakeClient) Request(ctx context.Context, method string, params any, id int64) (*lsp.Response, error) {
	c.requestIDs = append(c.requestIDs, id)
	c.methods = append(c.methods, method)
	if c.respond == nil {
		return &lsp.Response{ID: id, Result: json.RawMessage(`null`)}, nil
	}
	return c.respond(method, id)
}

func (c *fakeClient) Notify(ctx context.Context, method string, params any) error {
	c.notifications = append(c.notifications, method)
	return c.notifyErr
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func (c *fakeClient) calls() int {
	return len(c.requestIDs) + len(c.notifications)
}

type testDispatcher struct {
	*Dispatcher
	session *Session
	out     *bytes.Buffer
	started []lsp.ServerConfig
}

func newTestDispatcher(t *testing.T, client Client, config Config) *testDispatcher {
	t.Helper()
	td := &testDispatcher{session: NewSession(), out: &bytes.Buffer{}}
	starter := func(ctx context.Context, cfg lsp.ServerConfig) (Client, error) {
		td.started = append(td.started, cfg)
		if client == nil {
			return nil, &lsp.SpawnError{Command: cfg.Command, Err: exec.ErrNotFound}
		}
		return client, nil
	}
	registry := command.Default(lsp.ClientInfo{Name: "lsp-shell-test"})
	td.Dispatcher = NewDispatcher(td.session, registry, starter, td.out, config)
	return td
}

// run dispatches line and returns what it printed.
func (td *testDispatcher) run(t *testing.T, line string) string {
	t.Helper()
	td.out.Reset()
	if err := td.Dispatch(context.Background(), Tokenize(line)); err != nil {
		t.Fatalf("Dispatch(%q) error = %v", line, err)
	}
	return td.out.String()
}

func TestDispatcher_EmptyLine(t *testing.T) {
	td := newTestDispatcher(t, &fakeClient{}, Config{})
	if out := td.run(t, "   "); out != "" {
		t.Errorf("output = %q, want nothing", out)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	client := &fakeClient{}
	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start fake-server")

	tests := []string{"frobnicate", "frobnicate initialize 1 2", "REQUEST initialize", "x"}
	for _, line := range tests {
		before := td.session.IDs().Last()
		out := td.run(t, line)
		want := fmt.Sprintf("unknown command: '%s'\n", Tokenize(line)[0])
		if out != want {
			t.Errorf("Dispatch(%q) = %q, want %q", line, out, want)
		}
		if td.session.IDs().Last() != before {
			t.Errorf("Dispatch(%q) moved the id counter", line)
		}
		if td.session.Client() != client || client.calls() != 0 {
			t.Errorf("Dispatch(%q) touched the client", line)
		}
	}
}

func TestDispatcher_RequestNotInitialized(t *testing.T) {
	td := newTestDispatcher(t, &fakeClient{}, Config{})

	out := td.run(t, "request initialize")
	if out != "LSP client is not initialized, can't send request.\n" {
		t.Errorf("output = %q", out)
	}
	if td.session.IDs().Last() != 0 {
		t.Errorf("id allocated without a client: %d", td.session.IDs().Last())
	}
}

func TestDispatcher_NotifyNotInitialized(t *testing.T) {
	td := newTestDispatcher(t, &fakeClient{}, Config{})

	for _, line := range []string{"notify initialized", "n initialized", "not exit"} {
		out := td.run(t, line)
		if out != "LSP client is not initialized, can't send notification.\n" {
			t.Errorf("Dispatch(%q) = %q", line, out)
		}
	}
}

func TestDispatcher_IDMonotonicity(t *testing.T) {
	client := &fakeClient{}
	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start fake-server")

	lines := []string{
		"request shutdown",
		"r hover main.go one 2", // parameter error
		"req shutdown",
		"request bogus", // unknown request
		"notify initialized",
		"request hover", // missing arguments
		"n exit",
		"request shutdown",
	}
	for _, line := range lines {
		td.run(t, line)
	}

	want := []int64{1, 2, 3}
	if fmt.Sprint(client.requestIDs) != fmt.Sprint(want) {
		t.Errorf("request ids = %v, want %v", client.requestIDs, want)
	}
	if td.session.IDs().Last() != 3 {
		t.Errorf("counter = %d, want 3", td.session.IDs().Last())
	}
	if len(client.notifications) != 2 {
		t.Errorf("notifications = %v", client.notifications)
	}
}

func TestDispatcher_NotificationsDoNotTouchIDs(t *testing.T) {
	client := &fakeClient{}
	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start fake-server")

	for i := 0; i < 5; i++ {
		out := td.run(t, "notify initialized")
		if out != "notification 'initialized' sent\n" {
			t.Errorf("output = %q", out)
		}
	}
	if td.session.IDs().Last() != 0 {
		t.Errorf("counter = %d after notifications", td.session.IDs().Last())
	}

	td.run(t, "request shutdown")
	if client.requestIDs[0] != 1 {
		t.Errorf("first request id = %d, want 1", client.requestIDs[0])
	}
}

func TestDispatcher_UnknownRequestSuggests(t *testing.T) {
	client := &fakeClient{}
	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start fake-server")

	out := td.run(t, "request initalize")
	if !strings.HasPrefix(out, "Unknown request type: 'initalize'\n") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "did you mean: initialize") {
		t.Errorf("no suggestion in %q", out)
	}

	out = td.run(t, "notify zzz")
	if out != "Unknown notification type: 'zzz'\n" {
		t.Errorf("output = %q", out)
	}
	if client.calls() != 0 || td.session.IDs().Last() != 0 {
		t.Error("unknown names must not reach the client")
	}
}

func TestDispatcher_ParameterErrorShowsUsage(t *testing.T) {
	client := &fakeClient{}
	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start fake-server")

	out := td.run(t, "request hover main.go")
	if !strings.Contains(out, "invalid parameters for 'hover'") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "usage: request hover <file> <line> <character>") {
		t.Errorf("usage missing from %q", out)
	}

	out = td.run(t, "notify didClose")
	if !strings.Contains(out, "usage: notify didClose <file>") {
		t.Errorf("usage missing from %q", out)
	}
	if client.calls() != 0 {
		t.Error("parameter errors must not reach the client")
	}
}

func TestDispatcher_RendersOutcomes(t *testing.T) {
	client := &fakeClient{respond: func(method string, id int64) (*lsp.Response, error) {
		switch method {
		case lsp.MethodShutdown:
			return nil, fmt.Errorf("send request: %w", io.ErrClosedPipe)
		case lsp.MethodHover:
			return &lsp.Response{ID: id, Error: &lsp.RPCError{Code: -32603, Message: "no package for file"}}, nil
		}
		return &lsp.Response{ID: id, Result: json.RawMessage(`{"capabilities":{"hoverProvider":true}}`)}, nil
	}}
	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start fake-server")

	if out := td.run(t, "request shutdown"); out != "send request: io: read/write on closed pipe\n" {
		t.Errorf("transport failure = %q", out)
	}
	if out := td.run(t, "request hover a.go 1 1"); out != "no package for file\n" {
		t.Errorf("application error = %q", out)
	}
	out := td.run(t, "request initialize")
	if !strings.Contains(out, `"hoverProvider": true`) {
		t.Errorf("success = %q", out)
	}

	m := td.Metrics()
	if m.TotalRequests() != 3 {
		t.Errorf("TotalRequests() = %d", m.TotalRequests())
	}
	if s := m.MethodStats(lsp.MethodShutdown); s == nil || s.TransportFailures != 1 {
		t.Errorf("shutdown stats = %+v", s)
	}
}

func TestDispatcher_NotifyFailure(t *testing.T) {
	client := &fakeClient{notifyErr: lsp.ErrClosed}
	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start fake-server")

	out := td.run(t, "notify exit")
	if out != lsp.ErrClosed.Error()+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestDispatcher_Exit(t *testing.T) {
	for _, word := range []string{"exit", "quit", "q"} {
		td := newTestDispatcher(t, &fakeClient{}, Config{})
		td.run(t, word)
		if !td.session.Exiting() {
			t.Errorf("%q did not set the exit flag", word)
		}
	}
}

func TestDispatcher_Help(t *testing.T) {
	td := newTestDispatcher(t, &fakeClient{}, Config{})
	out := td.run(t, "help")
	for _, want := range []string{"request|req|r", "initialize (init) [root-dir]", "textDocument/hover", "didOpen (open)", "Put -- after"} {
		if !strings.Contains(out, want) {
			t.Errorf("help lacks %q", want)
		}
	}
	if td.run(t, "h") != out {
		t.Error("h and help differ")
	}
}

func TestDispatcher_Start(t *testing.T) {
	first := &fakeClient{}
	td := newTestDispatcher(t, first, Config{
		Presets: func() map[string]lsp.ServerConfig {
			return map[string]lsp.ServerConfig{"go": {Command: "gopls", Args: []string{"serve"}}}
		},
	})

	if out := td.run(t, "start"); !strings.HasPrefix(out, "usage: start") {
		t.Errorf("start without program = %q", out)
	}
	if len(td.started) != 0 {
		t.Error("start without program spawned something")
	}

	if out := td.run(t, "s go"); out != "started gopls serve\n" {
		t.Errorf("preset start = %q", out)
	}
	if td.started[0].Command != "gopls" {
		t.Errorf("preset not resolved: %+v", td.started[0])
	}

	td.run(t, "start go extra")
	if got := td.started[1]; got.Command != "go" || len(got.Args) != 1 {
		t.Errorf("preset used despite extra args: %+v", got)
	}
}

func TestDispatcher_StartReplacesClient(t *testing.T) {
	old := &fakeClient{}
	td := newTestDispatcher(t, nil, Config{})
	td.session.Replace(old)

	next := &fakeClient{}
	td.start = func(ctx context.Context, cfg lsp.ServerConfig) (Client, error) { return next, nil }
	td.run(t, "start server")

	if !old.closed {
		t.Error("previous client not closed")
	}
	if td.session.Client() != next {
		t.Error("new client not stored")
	}
}

func TestDispatcher_SpawnFailure(t *testing.T) {
	td := newTestDispatcher(t, nil, Config{})
	out := td.run(t, "start no-such-server")
	if !strings.Contains(out, "no-such-server") {
		t.Errorf("output = %q", out)
	}
	if td.session.Client() != nil {
		t.Error("failed start stored a client")
	}

	fatal := newTestDispatcher(t, nil, Config{ExitOnSpawnError: true})
	err := fatal.Dispatch(context.Background(), Tokenize("start no-such-server"))
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("Dispatch() error = %v, want ErrSpawn", err)
	}
	var spawnErr *lsp.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Errorf("error does not carry *SpawnError: %v", err)
	}
}

// newPipeServer connects an lsp.Client to an in-process server whose
// request handler is handle.
func newPipeServer(t *testing.T, handle lsp.RequestHandler) *lsp.Client {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	server := lsp.NewTransport(serverR, serverW, nil)
	server.OnRequest(handle)
	server.Start(context.Background())

	transport := lsp.NewTransport(clientR, clientW, nil)
	client := lsp.NewClient(transport)
	transport.Start(context.Background())

	t.Cleanup(func() {
		client.Close()
		server.Close()
		clientR.Close()
		serverR.Close()
	})
	return client
}

func TestScenario_TwoInitializeRequests(t *testing.T) {
	var n atomic.Int64
	client := newPipeServer(t, func(method string, params json.RawMessage) (any, *lsp.RPCError) {
		if method != lsp.MethodInitialize {
			return nil, &lsp.RPCError{Code: lsp.CodeMethodNotFound, Message: method}
		}
		return map[string]any{
			"capabilities": map[string]any{},
			"serverInfo":   map[string]any{"name": "mock", "version": fmt.Sprint(n.Add(1))},
		}, nil
	})

	td := newTestDispatcher(t, client, Config{})
	td.run(t, "start mock")

	first := td.run(t, "request initialize")
	if td.session.IDs().Last() != 1 {
		t.Errorf("id after first request = %d, want 1", td.session.IDs().Last())
	}
	second := td.run(t, "request initialize")
	if td.session.IDs().Last() != 2 {
		t.Errorf("id after second request = %d, want 2", td.session.IDs().Last())
	}

	if !strings.Contains(first, `"version": "1"`) || !strings.Contains(second, `"version": "2"`) {
		t.Errorf("renderings:\n%s\n%s", first, second)
	}
	if first == second {
		t.Error("the two payloads rendered identically")
	}
}

func TestScenario_NonLSPProgram(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	session := NewSession()
	out := &bytes.Buffer{}
	registry := command.Default(lsp.ClientInfo{Name: "lsp-shell-test"})
	d := NewDispatcher(session, registry, LSPStarter(nil, nil), out, Config{})
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.Dispatch(ctx, Tokenize("start echo hello")); err != nil {
		t.Fatalf("start error = %v", err)
	}
	if session.Client() == nil {
		t.Fatalf("no client after start: %q", out.String())
	}

	out.Reset()
	if err := d.Dispatch(ctx, Tokenize("request initialize")); err != nil {
		t.Fatalf("request error = %v", err)
	}
	if session.IDs().Last() != 1 {
		t.Errorf("id = %d, want 1", session.IDs().Last())
	}
	if ctx.Err() != nil {
		t.Fatal("request hung")
	}
	if got := strings.TrimSpace(out.String()); got == "" || strings.HasPrefix(got, "{") {
		t.Errorf("expected a transport failure message, got %q", got)
	}
	if s := d.Metrics().MethodStats(lsp.MethodInitialize); s == nil || s.LastClass != ClassTransportFailure {
		t.Errorf("initialize stats = %+v", s)
	}
}
