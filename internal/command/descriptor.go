package command

import (
	"context"

	"github.com/dshills/lsp-shell/internal/lsp"
)

// Kind distinguishes requests from notifications.
type Kind uint8

const (
	// KindRequest is a method that expects a response.
	KindRequest Kind = iota
	// KindNotification is a method without a response.
	KindNotification
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Client is the connection a prepared command is sent over.
// *lsp.Client implements it.
type Client interface {
	Request(ctx context.Context, method string, params any, id int64) (*lsp.Response, error)
	Notify(ctx context.Context, method string, params any) error
}

// Descriptor is the untyped view of a registered command.
type Descriptor interface {
	// Name is the short name typed in the shell.
	Name() string
	// Aliases are additional short names.
	Aliases() []string
	// Method is the LSP method name, which also selects the command.
	Method() string
	Kind() Kind
	// Usage is the argument synopsis, e.g. "<file> <line> <character>".
	Usage() string
}

// Request is a request descriptor.
type Request interface {
	Descriptor
	// Prepare builds the parameters from shell arguments.
	// Failures are *ParameterError.
	Prepare(args []string) (Call, error)
}

// Notification is a notification descriptor.
type Notification interface {
	Descriptor
	// Prepare builds the parameters from shell arguments.
	// Failures are *ParameterError.
	Prepare(args []string) (Send, error)
}

// Call is a request with built parameters, ready to be sent.
type Call interface {
	Method() string
	Params() any
	// Invoke sends the request under id and classifies the response.
	Invoke(ctx context.Context, c Client, id int64) Outcome
}

// Send is a notification with built parameters, ready to be sent.
type Send interface {
	Method() string
	Params() any
	// Deliver writes the notification. A nil error means it was handed to
	// the transport, not that the server acted on it.
	Deliver(ctx context.Context, c Client) error
}

// Builder turns positional shell arguments into parameters.
type Builder[P any] func(args []string) (P, error)

// info holds what every descriptor shares.
type info struct {
	name    string
	aliases []string
	method  string
	usage   string
}

func (i *info) Name() string      { return i.name }
func (i *info) Aliases() []string { return i.aliases }
func (i *info) Method() string    { return i.method }
func (i *info) Usage() string     { return i.usage }

// RequestSpec describes a request whose parameters, result and error data
// have the types P, R and E.
type RequestSpec[P, R, E any] struct {
	info
	build Builder[P]
}

// NewRequest creates a request descriptor.
func NewRequest[P, R, E any](name, method, usage string, build Builder[P], aliases ...string) *RequestSpec[P, R, E] {
	return &RequestSpec[P, R, E]{
		info:  info{name: name, aliases: aliases, method: method, usage: usage},
		build: build,
	}
}

// Kind implements Descriptor.
func (s *RequestSpec[P, R, E]) Kind() Kind { return KindRequest }

// Prepare implements Request.
func (s *RequestSpec[P, R, E]) Prepare(args []string) (Call, error) {
	params, err := prepare(&s.info, s.build, args)
	if err != nil {
		return nil, err
	}
	return &call[P, R, E]{method: s.method, params: params}, nil
}

// NotificationSpec describes a notification whose parameters have type P.
type NotificationSpec[P any] struct {
	info
	build Builder[P]
}

// NewNotification creates a notification descriptor.
func NewNotification[P any](name, method, usage string, build Builder[P], aliases ...string) *NotificationSpec[P] {
	return &NotificationSpec[P]{
		info:  info{name: name, aliases: aliases, method: method, usage: usage},
		build: build,
	}
}

// Kind implements Descriptor.
func (s *NotificationSpec[P]) Kind() Kind { return KindNotification }

// Prepare implements Notification.
func (s *NotificationSpec[P]) Prepare(args []string) (Send, error) {
	params, err := prepare(&s.info, s.build, args)
	if err != nil {
		return nil, err
	}
	return &send[P]{method: s.method, params: params}, nil
}

// prepare runs the builder on the positional arguments and applies the
// trailing overrides.
func prepare[P any](d *info, build Builder[P], args []string) (P, error) {
	positional, overrides, err := SplitArgs(args)
	if err != nil {
		var zero P
		return zero, &ParameterError{Command: d.name, Usage: d.usage, Err: err}
	}

	params, err := build(positional)
	if err != nil {
		var zero P
		return zero, &ParameterError{Command: d.name, Usage: d.usage, Err: err}
	}
	if len(overrides) == 0 {
		return params, nil
	}

	params, err = ApplyOverrides(params, overrides)
	if err != nil {
		var zero P
		return zero, &ParameterError{Command: d.name, Usage: d.usage, Err: err}
	}
	return params, nil
}

type call[P, R, E any] struct {
	method string
	params P
}

func (c *call[P, R, E]) Method() string { return c.method }
func (c *call[P, R, E]) Params() any    { return c.params }

func (c *call[P, R, E]) Invoke(ctx context.Context, client Client, id int64) Outcome {
	resp, err := client.Request(ctx, c.method, c.params, id)
	if err != nil {
		return &TransportFailure{Method: c.method, ID: id, Err: err}
	}

	env, err := lsp.DecodeEnvelope[R, E](resp)
	if err != nil {
		return &TransportFailure{Method: c.method, ID: id, Err: err}
	}

	if env.Error != nil {
		appErr := &ApplicationError{
			Method:  c.method,
			ID:      env.ID,
			Code:    env.Error.Code,
			Message: env.Error.Message,
		}
		if env.Error.Data != nil {
			appErr.Data = *env.Error.Data
		}
		return appErr
	}
	return &Success{Method: c.method, ID: env.ID, Payload: env.Result, Raw: env.Raw}
}

type send[P any] struct {
	method string
	params P
}

func (s *send[P]) Method() string { return s.method }
func (s *send[P]) Params() any    { return s.params }

func (s *send[P]) Deliver(ctx context.Context, client Client) error {
	return client.Notify(ctx, s.method, s.params)
}
