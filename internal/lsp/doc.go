// Package lsp provides the client side of the Language Server Protocol used
// by the shell: process spawning, Content-Length framed JSON-RPC 2.0 and the
// protocol types the shell's commands exchange with a server.
//
// # Architecture
//
// The package is organized around these core components:
//
//   - Process: a spawned server whose stdout/stdin form the byte stream
//   - Transport: JSON-RPC 2.0 framing, response correlation and server-initiated messages
//   - Client: requests with caller-chosen ids, notifications and logging of server pushes
//   - Envelope: a response decoded against a method's result and error types
//
// # Quick Start
//
//	client, err := lsp.Start(ctx, lsp.ServerConfig{Command: "gopls"},
//	    lsp.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	resp, err := client.Request(ctx, lsp.MethodInitialize, params, 1)
//	if err != nil {
//	    return err // transport failure
//	}
//	env, err := lsp.DecodeEnvelope[lsp.InitializeResult, lsp.InitializeError](resp)
//
// # Request IDs
//
// The transport never allocates ids. Callers pass the id they reserved and
// the transport rejects a second call with an id that is still in flight.
//
// # Errors
//
// Request and Transport.Call report transport failures (ErrClosed,
// ErrServerExited, ErrTimeout, write errors) through the error return. A
// JSON-RPC error answer from the server is a normal Response with its Error
// member set.
//
// Output the transport cannot trust (a frame without Content-Length, a body
// that is not JSON, a response with a null id or with neither result nor
// error) fails the transport with ErrInvalidResponse. The pending call and
// every later one return that error until the client is replaced. When the
// server's output ends, ErrServerExited carries the process exit status.
//
// # Server-initiated messages
//
// Notifications such as window/logMessage and textDocument/publishDiagnostics
// are logged. Requests from the server are answered immediately:
// workspace/configuration with one null per item and everything else with
// a null result.
package lsp
