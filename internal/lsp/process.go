package lsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// closeGrace bounds how long Close waits for the output pumps after the
// process has exited. Grandchildren that inherited the pipes can keep them
// open indefinitely.
const closeGrace = 500 * time.Millisecond

// ServerConfig defines how to start a language server.
type ServerConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory (defaults to the shell's).
	WorkDir string
}

// String renders the command line for messages.
func (c ServerConfig) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// Process is a spawned server with its standard streams wired as a byte
// stream: Read consumes the server's stdout, Write feeds its stdin and
// stderr is forwarded line by line to the logger.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr *os.File
	logger *slog.Logger

	group *errgroup.Group
	done  chan struct{}

	mu      sync.Mutex
	exitErr error

	closeOnce sync.Once
	closeErr  error
}

// StartProcess spawns the server described by cfg.
func StartProcess(ctx context.Context, cfg ServerConfig, logger *slog.Logger) (*Process, error) {
	if cfg.Command == "" {
		return nil, &SpawnError{Command: cfg.Command, Err: errors.New("empty command")}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: cfg.Command, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	// Our own pipes, so that Wait does not close the read ends under the transport.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, &SpawnError{Command: cfg.Command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, &SpawnError{Command: cfg.Command, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, &SpawnError{Command: cfg.Command, Err: err}
	}

	// The child holds its own copies now.
	stdoutW.Close()
	stderrW.Close()

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		stderr: stderrR,
		logger: logger.With("pid", cmd.Process.Pid),
		group:  new(errgroup.Group),
		done:   make(chan struct{}),
	}
	p.group.Go(p.pumpStderr)
	p.group.Go(p.wait)

	p.logger.Debug("server process started", "command", cfg.String())
	return p, nil
}

// Read reads from the server's stdout.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Write writes to the server's stdin.
func (p *Process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitErr returns the error reported by Wait, or nil while running or after a clean exit.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Close kills the process if it is still running and releases its streams.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		select {
		case <-p.done:
		default:
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.closeErr = fmt.Errorf("kill server: %w", err)
			}
		}
		p.stdin.Close()

		pumped := make(chan struct{})
		go func() {
			p.group.Wait()
			close(pumped)
		}()
		select {
		case <-pumped:
		case <-time.After(closeGrace):
		}
		p.stdout.Close()
		p.stderr.Close()
		<-pumped
	})
	return p.closeErr
}

// wait reaps the process and records how it ended.
func (p *Process) wait() error {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)

	if err != nil {
		p.logger.Debug("server process exited", "error", err)
	} else {
		p.logger.Debug("server process exited")
	}
	return nil
}

// pumpStderr forwards the server's stderr to the logger.
func (p *Process) pumpStderr() error {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.logger.Debug("server stderr", "line", scanner.Text())
	}
	return nil
}
