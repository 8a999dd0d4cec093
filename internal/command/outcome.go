package command

import "encoding/json"

// Outcome is the result of one completed request. It is exactly one of
// *TransportFailure, *Success or *ApplicationError.
type Outcome interface {
	outcome()
}

// TransportFailure reports that no well-formed response was obtained: the
// write failed, the server went away, the framing or JSON was malformed,
// or the response did not fit the method's schema.
type TransportFailure struct {
	Method string
	ID     int64
	Err    error
}

// Success carries the typed result of a request.
type Success struct {
	Method string
	ID     int64
	// Payload is the decoded result, of the descriptor's result type.
	Payload any
	// Raw is the result member as received.
	Raw json.RawMessage
}

// ApplicationError is a JSON-RPC error answered by the server.
type ApplicationError struct {
	Method  string
	ID      int64
	Code    int
	Message string
	// Data is the decoded error data, of the descriptor's error type, or
	// nil when the server sent none.
	Data any
}

func (*TransportFailure) outcome() {}
func (*Success) outcome()          {}
func (*ApplicationError) outcome() {}

// Error implements the error interface.
func (f *TransportFailure) Error() string {
	return f.Err.Error()
}

// Unwrap returns the underlying transport error.
func (f *TransportFailure) Unwrap() error {
	return f.Err
}
