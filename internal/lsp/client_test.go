package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, opts ...ClientOption) (*Client, *mockServer, func()) {
	t.Helper()
	transport, server, cleanup := newMockConn(t)
	client := NewClient(transport, opts...)
	transport.Start(context.Background())
	return client, server, cleanup
}

func TestClient_SessionID(t *testing.T) {
	a, _, cleanupA := newTestClient(t)
	defer cleanupA()
	b, _, cleanupB := newTestClient(t)
	defer cleanupB()

	if a.SessionID() == "" {
		t.Fatal("empty session id")
	}
	if a.SessionID() == b.SessionID() {
		t.Error("two clients share a session id")
	}
}

func TestClient_RequestEncodesParams(t *testing.T) {
	client, server, cleanup := newTestClient(t)
	defer cleanup()

	reqCh := make(chan map[string]json.RawMessage, 1)
	go func() {
		req, err := server.respond(map[string]any{"contents": "doc"})
		if err == nil {
			reqCh <- req
		}
	}()

	params := HoverParams{TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///a.go"},
		Position:     Position{Line: 2, Character: 4},
	}}
	resp, err := client.Request(context.Background(), MethodHover, params, 5)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if resp.ID != 5 {
		t.Errorf("ID = %d, want 5", resp.ID)
	}

	req := <-reqCh
	if string(req["method"]) != `"textDocument/hover"` {
		t.Errorf("method = %s", req["method"])
	}
	var got HoverParams
	if err := json.Unmarshal(req["params"], &got); err != nil {
		t.Fatalf("params: %v", err)
	}
	if got.Position.Line != 2 || got.TextDocument.URI != "file:///a.go" {
		t.Errorf("params = %+v", got)
	}
}

func TestClient_NoParamsOmitted(t *testing.T) {
	client, server, cleanup := newTestClient(t)
	defer cleanup()

	reqCh := make(chan map[string]json.RawMessage, 1)
	go func() {
		req, err := server.respond(nil)
		if err == nil {
			reqCh <- req
		}
	}()

	if _, err := client.Request(context.Background(), MethodShutdown, NoParams{}, 1); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if req := <-reqCh; req["params"] != nil {
		t.Errorf("params = %s, want omitted", req["params"])
	}
}

func TestClient_RequestTimeout(t *testing.T) {
	client, server, cleanup := newTestClient(t, WithRequestTimeout(50*time.Millisecond))
	defer cleanup()

	go server.readFrame()

	_, err := client.Request(context.Background(), MethodHover, nil, 1)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestClient_AnswersWorkspaceConfiguration(t *testing.T) {
	_, server, cleanup := newTestClient(t)
	defer cleanup()

	server.writeFrame(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  MethodWorkspaceConfiguration,
		"params":  map[string]any{"items": []any{map[string]string{"section": "gopls"}, map[string]string{"section": "go"}}},
	})

	reply, err := server.readFrame()
	if err != nil {
		t.Fatalf("readFrame() error = %v", err)
	}
	if string(reply["result"]) != "[null,null]" {
		t.Errorf("result = %s, want [null,null]", reply["result"])
	}
}

func TestClient_LogsServerMessages(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, server, cleanup := newTestClient(t, WithLogger(logger))
	defer cleanup()

	server.writeFrame(map[string]any{
		"jsonrpc": "2.0",
		"method":  MethodLogMessage,
		"params":  map[string]any{"type": 3, "message": "indexing done"},
	})
	server.writeFrame(map[string]any{
		"jsonrpc": "2.0",
		"method":  MethodPublishDiagnostics,
		"params":  map[string]any{"uri": "file:///a.go", "diagnostics": []any{map[string]any{"message": "x"}}},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out := buf.String()
		if strings.Contains(out, "indexing done") && strings.Contains(out, "count=1") && strings.Contains(out, "file=/a.go") {
			if !strings.Contains(out, "session=") {
				t.Errorf("log lines lack the session attribute:\n%s", out)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server messages not logged:\n%s", buf.String())
}

func TestClient_LogsLostConnection(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	_, server, cleanup := newTestClient(t, WithLogger(logger))
	defer cleanup()

	server.out.(io.Closer).Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "server connection lost") {
			if !strings.Contains(buf.String(), ErrServerExited.Error()) {
				t.Errorf("lost connection logged without its cause:\n%s", buf.String())
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("lost connection not logged:\n%s", buf.String())
}

func TestClient_CloseIsNotReportedAsLost(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	client, _, cleanup := newTestClient(t, WithLogger(logger))
	defer cleanup()

	client.Close()
	time.Sleep(50 * time.Millisecond)
	if strings.Contains(buf.String(), "server connection lost") {
		t.Errorf("deliberate close logged as a lost connection:\n%s", buf.String())
	}
}
