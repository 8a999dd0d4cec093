package lsp

import (
	"encoding/json"
	"fmt"
)

// ResponseError is a JSON-RPC error whose data member has the method's error type.
type ResponseError[E any] struct {
	Code    int
	Message string
	// Data is nil when the server sent no data member.
	Data *E
}

// Envelope is a response decoded against a method's result and error types.
// Exactly one of Result (when Error is nil) and Error is meaningful.
type Envelope[R, E any] struct {
	ID     int64
	Result R
	Error  *ResponseError[E]
	// Raw holds the undecoded result member, kept for display.
	Raw json.RawMessage
}

// DecodeEnvelope decodes resp into the typed envelope for R and E.
// A result or error data member that does not fit its type is reported as
// ErrInvalidResponse.
func DecodeEnvelope[R, E any](resp *Response) (*Envelope[R, E], error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	env := &Envelope[R, E]{ID: resp.ID}
	if resp.Error != nil {
		env.Error = &ResponseError[E]{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
		if len(resp.Error.Data) > 0 && string(resp.Error.Data) != "null" {
			var data E
			if err := json.Unmarshal(resp.Error.Data, &data); err != nil {
				return nil, fmt.Errorf("%w: error data: %v", ErrInvalidResponse, err)
			}
			env.Error.Data = &data
		}
		return env, nil
	}

	env.Raw = resp.Result
	if len(resp.Result) == 0 {
		env.Raw = json.RawMessage("null")
		return env, nil
	}
	if err := json.Unmarshal(resp.Result, &env.Result); err != nil {
		return nil, fmt.Errorf("%w: result: %v", ErrInvalidResponse, err)
	}
	return env, nil
}
