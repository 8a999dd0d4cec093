package shell

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/lsp-shell/internal/command"
	"github.com/dshills/lsp-shell/internal/lsp"
)

func TestInterpreter_Render(t *testing.T) {
	tests := []struct {
		name    string
		outcome command.Outcome
		want    string
	}{
		{
			name:    "transport failure",
			outcome: &command.TransportFailure{Method: "initialize", ID: 1, Err: errors.New("server closed the connection: EOF")},
			want:    "server closed the connection: EOF\n",
		},
		{
			name:    "success",
			outcome: &command.Success{ID: 1, Raw: json.RawMessage(`{"a":1}`)},
			want:    "{\n  \"a\": 1\n}\n",
		},
		{
			name:    "success with null result",
			outcome: &command.Success{ID: 1, Raw: json.RawMessage(`null`)},
			want:    "null\n",
		},
		{
			name:    "success without raw",
			outcome: &command.Success{ID: 1, Payload: []lsp.TextEdit{}},
			want:    "[]\n",
		},
		{
			name:    "application error",
			outcome: &command.ApplicationError{ID: 2, Code: -32603, Message: "internal"},
			want:    "internal\n",
		},
		{
			name:    "application error with data",
			outcome: &command.ApplicationError{ID: 2, Code: -32603, Message: "init failed", Data: lsp.InitializeError{Retry: true}},
			want:    "init failed\n{\n  \"retry\": true\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewInterpreter(&buf, false).Render(tt.outcome)
			if buf.String() != tt.want {
				t.Errorf("Render() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestInterpreter_Color(t *testing.T) {
	var buf bytes.Buffer
	i := NewInterpreter(&buf, true)
	i.Render(&command.Success{Raw: json.RawMessage(`{"a":"b"}`)})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("no ANSI escapes in %q", buf.String())
	}

	buf.Reset()
	i.SetColor(false)
	i.Render(&command.Success{Raw: json.RawMessage(`{"a":"b"}`)})
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("ANSI escapes with color off: %q", buf.String())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		outcome command.Outcome
		want    OutcomeClass
	}{
		{&command.Success{}, ClassSuccess},
		{&command.ApplicationError{}, ClassApplicationError},
		{&command.TransportFailure{Err: errors.New("x")}, ClassTransportFailure},
	}
	for _, tt := range tests {
		if got := Classify(tt.outcome); got != tt.want {
			t.Errorf("Classify(%T) = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}
