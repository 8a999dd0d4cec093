package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dshills/lsp-shell/internal/lsp"
)

// Shell reads lines and dispatches them until exit or end of input.
type Shell struct {
	reader     LineReader
	dispatcher *Dispatcher
	session    *Session
	logger     *slog.Logger
}

// New creates a shell.
func New(reader LineReader, dispatcher *Dispatcher, session *Session, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Shell{
		reader:     reader,
		dispatcher: dispatcher,
		session:    session,
		logger:     logger,
	}
}

// Run processes lines one at a time. End of input behaves like exit. The
// active client is closed before Run returns. The error is non-nil only
// for input failures and fatal dispatch errors.
func (s *Shell) Run(ctx context.Context) error {
	defer s.shutdown()

	for !s.session.Exiting() {
		line, err := s.readLine(ctx)
		if errors.Is(err, io.EOF) {
			s.logger.Debug("end of input")
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if err := s.dispatcher.Dispatch(ctx, Tokenize(line)); err != nil {
			return err
		}
	}
	return nil
}

// readLine waits for the next line or for ctx to end.
func (s *Shell) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := s.reader.ReadLine()
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

func (s *Shell) shutdown() {
	if err := s.session.Close(); err != nil {
		s.logger.Warn("closing server failed", "error", err)
	}

	m := s.dispatcher.Metrics()
	attrs := []any{
		"requests", m.TotalRequests(),
		"notifications", m.TotalNotifications(),
		"avg", m.AverageDuration(),
	}
	if slow := m.SlowestMethods(1); len(slow) == 1 {
		attrs = append(attrs, "slowest", slow[0].Method, "slowest_max", slow[0].MaxDuration)
	}
	s.logger.Info("shell finished", attrs...)
}

// LSPStarter returns a Starter that spawns servers with lsp.Start. timeout
// is read on every start.
func LSPStarter(logger *slog.Logger, timeout func() time.Duration) Starter {
	return func(ctx context.Context, cfg lsp.ServerConfig) (Client, error) {
		var d time.Duration
		if timeout != nil {
			d = timeout()
		}
		c, err := lsp.Start(ctx, cfg, lsp.WithLogger(logger), lsp.WithRequestTimeout(d))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
