package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// LineReader supplies input lines. ReadLine returns io.EOF at the end of
// input.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// Tokenize splits a line on whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ScannerReader reads lines from a non-interactive stream, such as a script
// piped into the shell. It prints no prompt.
type ScannerReader struct {
	scanner *bufio.Scanner
}

// NewScannerReader creates a reader over r.
func NewScannerReader(r io.Reader) *ScannerReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScannerReader{scanner: s}
}

// ReadLine implements LineReader.
func (r *ScannerReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close implements LineReader.
func (r *ScannerReader) Close() error {
	return nil
}

// TerminalReader is an interactive line editor with a prompt and history.
// It puts the terminal in raw mode until closed; output meant for the
// operator should go through Writer so lines are not mangled.
type TerminalReader struct {
	fd       int
	oldState *term.State
	terminal *term.Terminal
}

// NewTerminalReader switches in to raw mode and starts a line editor that
// echoes to out.
func NewTerminalReader(in *os.File, out io.Writer, prompt string) (*TerminalReader, error) {
	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}

	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	t := term.NewTerminal(rw, prompt)
	if w, h, err := term.GetSize(fd); err == nil {
		t.SetSize(w, h)
	}

	return &TerminalReader{fd: fd, oldState: state, terminal: t}, nil
}

// ReadLine implements LineReader. Ctrl-D on an empty line is io.EOF.
func (r *TerminalReader) ReadLine() (string, error) {
	return r.terminal.ReadLine()
}

// SetPrompt changes the prompt shown for the next line.
func (r *TerminalReader) SetPrompt(prompt string) {
	r.terminal.SetPrompt(prompt)
}

// Writer returns a writer that prints above the prompt.
func (r *TerminalReader) Writer() io.Writer {
	return r.terminal
}

// Close restores the terminal state.
func (r *TerminalReader) Close() error {
	if r.oldState == nil {
		return nil
	}
	if err := term.Restore(r.fd, r.oldState); err != nil {
		return fmt.Errorf("exiting raw mode: %w", err)
	}
	r.oldState = nil
	return nil
}
