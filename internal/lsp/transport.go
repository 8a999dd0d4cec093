package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// exitWait bounds how long a transport whose stream ended waits for the
// server process to be reaped before reporting the failure.
const exitWait = 500 * time.Millisecond

// Transport handles JSON-RPC 2.0 communication over a byte stream.
// It implements the LSP base protocol with Content-Length headers.
//
// Request ids are chosen by the caller; the transport only correlates
// responses with the pending call that registered the same id.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer
	logger *slog.Logger

	writeMu  sync.Mutex
	mu       sync.Mutex
	pending  map[int64]chan *Response
	handlers map[string]NotificationHandler
	onCall   RequestHandler

	closed  atomic.Bool
	done    chan struct{}
	errOnce sync.Once
	err     error
}

// NotificationHandler handles incoming notifications from the server.
type NotificationHandler func(method string, params json.RawMessage)

// RequestHandler answers a request initiated by the server.
// A nil *RPCError means result is sent back as the response.
type RequestHandler func(method string, params json.RawMessage) (any, *RPCError)

// Request represents an outgoing JSON-RPC request or notification.
// Notifications carry a nil ID.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response to one of our requests.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// incoming is used to parse messages initiated by the server.
type incoming struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// reply answers a server-initiated request, echoing its raw id.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// errorReply is a reply without a result member.
type errorReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *RPCError       `json:"error"`
}

// NewTransport creates a new transport over the given streams.
// The closer, when non-nil, is closed together with the transport.
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	return &Transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		closer:   c,
		logger:   slog.New(slog.DiscardHandler),
		pending:  make(map[int64]chan *Response),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger used for dropped or malformed messages.
func (t *Transport) SetLogger(logger *slog.Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Start begins reading messages from the connection in a goroutine.
func (t *Transport) Start(ctx context.Context) {
	go t.readLoop(ctx)
}

// Close closes the transport and releases resources.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.fail(ErrClosed)

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// Err returns the reason the transport stopped, or nil while it is healthy.
func (t *Transport) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Done returns a channel that is closed once the transport has failed or been closed.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// exitReporter is implemented by closers that know how the server process
// ended, such as *Process.
type exitReporter interface {
	Done() <-chan struct{}
	ExitErr() error
}

// serverExited builds the error for an output stream that ended. When the
// closer is a process, its exit status is added once it has been reaped.
func (t *Transport) serverExited(cause error) error {
	p, ok := t.closer.(exitReporter)
	if !ok {
		return fmt.Errorf("%w: %v", ErrServerExited, cause)
	}
	select {
	case <-p.Done():
	case <-time.After(exitWait):
		return fmt.Errorf("%w: %v", ErrServerExited, cause)
	}
	status := "exit status 0"
	if err := p.ExitErr(); err != nil {
		status = err.Error()
	}
	return fmt.Errorf("%w: %v (%s)", ErrServerExited, cause, status)
}

// fail records the first terminal error and wakes every pending caller.
func (t *Transport) fail(err error) {
	t.errOnce.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Call sends a request carrying id and waits for the correlated response.
// JSON-RPC error responses are returned inside the Response, not as an error;
// the error return is reserved for transport failures.
func (t *Transport) Call(ctx context.Context, id int64, method string, params json.RawMessage) (*Response, error) {
	if err := t.Err(); err != nil {
		return nil, err
	}

	ch := make(chan *Response, 1)

	t.mu.Lock()
	if _, busy := t.pending[id]; busy {
		t.mu.Unlock()
		return nil, fmt.Errorf("request id %d already in flight", id)
	}
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	req := &Request{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
		Params:  params,
	}
	if err := t.send(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", method, ErrTimeout)
		}
		return nil, ctx.Err()
	case <-t.done:
		return nil, t.err
	case resp := <-ch:
		return resp, nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(ctx context.Context, method string, params json.RawMessage) error {
	if err := t.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return t.send(&Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// OnNotification registers a handler for server notifications.
// The method "*" registers a fallback for methods without their own handler.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

// OnRequest registers the handler answering server-initiated requests.
// Without one, such requests are answered with MethodNotFound.
func (t *Transport) OnRequest(handler RequestHandler) {
	t.mu.Lock()
	t.onCall = handler
	t.mu.Unlock()
}

// send writes a message with LSP content-length header.
func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	return nil
}

// readLoop reads messages until the stream ends.
func (t *Transport) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			t.fail(ctx.Err())
			return
		case <-t.done:
			return
		default:
		}

		msg, err := t.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				t.fail(t.serverExited(err))
				return
			}
			if errors.Is(err, ErrMissingContentLength) {
				t.fail(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
				return
			}
			t.fail(err)
			return
		}

		if err := t.dispatch(msg); err != nil {
			t.fail(fmt.Errorf("%w: %v", ErrInvalidResponse, err))
			return
		}
	}
}

// readMessage reads a single LSP message.
func (t *Transport) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			length, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err == nil {
				contentLength = length
			}
		}
		// Content-Type and unknown headers are ignored
	}

	if contentLength <= 0 {
		return nil, ErrMissingContentLength
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// dispatch routes a message to the appropriate handler. A message that is
// not valid JSON-RPC is an error; the stream can no longer be trusted to
// deliver the response a caller is waiting for.
func (t *Transport) dispatch(data json.RawMessage) error {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Error  *RPCError       `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("malformed JSON: %v", err)
	}

	switch {
	case probe.Method != "" && probe.ID != nil:
		var req incoming
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("malformed request %s: %v", probe.Method, err)
		}
		go t.handleRequest(&req)
	case probe.Method != "":
		var notif incoming
		if err := json.Unmarshal(data, &notif); err != nil {
			return fmt.Errorf("malformed notification %s: %v", probe.Method, err)
		}
		t.handleNotification(&notif)
	case probe.ID == nil:
		return errors.New("message has neither method nor id")
	case string(probe.ID) == "null":
		// The server could not read one of our requests.
		if probe.Error != nil {
			return fmt.Errorf("response with null id: %v", probe.Error)
		}
		return errors.New("response with null id")
	case probe.Result == nil && probe.Error == nil:
		return fmt.Errorf("response %s has neither result nor error", probe.ID)
	default:
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("malformed response %s: %v", probe.ID, err)
		}
		t.handleResponse(&resp)
	}
	return nil
}

// handleResponse routes a response to its waiting caller.
func (t *Transport) handleResponse(resp *Response) {
	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("dropping response without pending request", "id", resp.ID)
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// handleNotification routes a notification to its handler.
func (t *Transport) handleNotification(notif *incoming) {
	t.mu.Lock()
	handler, ok := t.handlers[notif.Method]
	if !ok {
		handler, ok = t.handlers["*"]
	}
	t.mu.Unlock()

	if ok && handler != nil {
		// Run handler in goroutine to avoid blocking read loop
		go handler(notif.Method, notif.Params)
	}
}

// handleRequest answers a server-initiated request.
func (t *Transport) handleRequest(req *incoming) {
	t.mu.Lock()
	handler := t.onCall
	t.mu.Unlock()

	var (
		result any
		rpcErr = &RPCError{Code: CodeMethodNotFound, Message: "method not supported: " + req.Method}
	)
	if handler != nil {
		result, rpcErr = handler(req.Method, req.Params)
	}

	var msg any = &reply{JSONRPC: "2.0", ID: req.ID, Result: result}
	if rpcErr != nil {
		msg = &errorReply{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	if err := t.send(msg); err != nil {
		t.logger.Warn("reply to server request failed", "method", req.Method, "error", err)
	}
}
