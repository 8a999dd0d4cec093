package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Client is a JSON-RPC connection to one language server.
//
// It sends requests with caller-chosen ids and notifications, logs what the
// server pushes on its own, and answers the server's requests so the server
// never waits on the shell.
type Client struct {
	id        string
	transport *Transport
	logger    *slog.Logger
	timeout   time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for server messages. The client adds a
// session attribute to it.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestTimeout bounds how long Request waits. Zero waits forever.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client over an already started transport.
// Closing the client closes the transport.
func NewClient(t *Transport, opts ...ClientOption) *Client {
	c := &Client{
		id:        uuid.NewString(),
		transport: t,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session", c.id)
	t.SetLogger(c.logger)

	t.OnNotification("*", c.handleNotification)
	t.OnRequest(c.handleServerRequest)
	go c.monitor()
	return c
}

// monitor reports a connection that fails on its own, typically because the
// server died while the shell was waiting for input.
func (c *Client) monitor() {
	<-c.transport.Done()
	if err := c.transport.Err(); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Warn("server connection lost", "error", err)
	}
}

// Start spawns the server described by cfg and connects a client to it.
func Start(ctx context.Context, cfg ServerConfig, opts ...ClientOption) (*Client, error) {
	probe := &Client{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(probe)
	}

	proc, err := StartProcess(ctx, cfg, probe.logger)
	if err != nil {
		return nil, err
	}

	t := NewTransport(proc, proc, proc)
	c := NewClient(t, opts...)
	t.Start(ctx)

	c.logger.Info("server started", "command", cfg.String(), "pid", proc.PID())
	return c, nil
}

// SessionID returns the unique id of this connection.
func (c *Client) SessionID() string {
	return c.id
}

// Request sends method with params under id and waits for the response.
// A JSON-RPC error from the server is part of the returned Response; the
// error return reports transport failures only.
func (c *Client) Request(ctx context.Context, method string, params any, id int64) (*Response, error) {
	raw, err := encodeParams(params)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug("request", "id", id, "method", method)
	resp, err := c.transport.Call(ctx, id, method, raw)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("response", "id", id, "method", method, "error", resp.Error != nil)
	return resp, nil
}

// Notify sends a notification. It returns once the message is written.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	raw, err := encodeParams(params)
	if err != nil {
		return err
	}
	c.logger.Debug("notification", "method", method)
	return c.transport.Notify(ctx, method, raw)
}

// Close shuts the connection and the server process down.
func (c *Client) Close() error {
	c.logger.Info("closing server connection")
	return c.transport.Close()
}

// encodeParams marshals params, dropping a null so the member is omitted.
func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

// handleNotification logs a message pushed by the server.
func (c *Client) handleNotification(method string, params json.RawMessage) {
	switch method {
	case MethodLogMessage, MethodShowMessage:
		var msg LogMessageParams
		if err := json.Unmarshal(params, &msg); err == nil {
			c.logger.Info("server message", "method", method, "type", msg.Type, "message", msg.Message)
			return
		}
	case MethodPublishDiagnostics:
		res := gjson.ParseBytes(params)
		c.logger.Info("diagnostics",
			"file", URIToFilePath(DocumentURI(res.Get("uri").String())),
			"count", res.Get("diagnostics.#").Int())
		return
	}
	c.logger.Debug("server notification", "method", method, "params", string(params))
}

// handleServerRequest answers requests initiated by the server.
// workspace/configuration gets one null per requested item; everything
// else (registerCapability, workDoneProgress/create, ...) gets null.
func (c *Client) handleServerRequest(method string, params json.RawMessage) (any, *RPCError) {
	c.logger.Debug("server request", "method", method)
	if method == MethodWorkspaceConfiguration {
		n := gjson.GetBytes(params, "items.#").Int()
		return make([]any, n), nil
	}
	return nil, nil
}
