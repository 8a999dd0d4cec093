package shell

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/tidwall/pretty"

	"github.com/dshills/lsp-shell/internal/command"
)

// Interpreter renders request outcomes for the operator.
type Interpreter struct {
	out   io.Writer
	color atomic.Bool
}

// NewInterpreter creates an interpreter writing to out. With color set,
// JSON is rendered with ANSI colors.
func NewInterpreter(out io.Writer, color bool) *Interpreter {
	i := &Interpreter{out: out}
	i.color.Store(color)
	return i
}

// SetColor turns ANSI colors on or off. It is safe to call while another
// goroutine renders.
func (i *Interpreter) SetColor(color bool) {
	i.color.Store(color)
}

// Render prints o. Every outcome lands in exactly one branch, chosen by
// its type.
func (i *Interpreter) Render(o command.Outcome) {
	switch o := o.(type) {
	case *command.TransportFailure:
		fmt.Fprintln(i.out, o.Err.Error())
	case *command.Success:
		raw := o.Raw
		if len(raw) == 0 {
			raw = i.marshal(o.Payload)
		}
		i.writeJSON(raw)
	case *command.ApplicationError:
		fmt.Fprintln(i.out, o.Message)
		if o.Data != nil {
			i.writeJSON(i.marshal(o.Data))
		}
	default:
		fmt.Fprintf(i.out, "unexpected outcome %T\n", o)
	}
}

func (i *Interpreter) marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%q", fmt.Sprint(v)))
	}
	return data
}

// writeJSON pretty-prints data as indented, optionally colored, JSON.
func (i *Interpreter) writeJSON(data []byte) {
	out := pretty.Pretty(data)
	if i.color.Load() {
		out = pretty.Color(out, nil)
	}
	i.out.Write(out)
}
