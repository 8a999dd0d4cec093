package shell

import (
	"context"
	"io"

	"github.com/dshills/lsp-shell/internal/command"
	"github.com/dshills/lsp-shell/internal/lsp"
)

// Client is an active server connection owned by the session.
type Client interface {
	command.Client
	io.Closer
}

// Starter spawns a server and connects a client to it.
type Starter func(ctx context.Context, cfg lsp.ServerConfig) (Client, error)

// IDAllocator hands out request ids. The first id is 1.
// A reservation can be rolled back while it is the most recent one, so
// ids of requests that were actually sent have no gaps.
type IDAllocator struct {
	last int64
}

// Reserve returns the next id.
func (a *IDAllocator) Reserve() int64 {
	a.last++
	return a.last
}

// Release rolls back id if it is the latest reservation.
func (a *IDAllocator) Release(id int64) {
	if id == a.last && id > 0 {
		a.last--
	}
}

// Last returns the most recently reserved id, 0 before the first.
func (a *IDAllocator) Last() int64 {
	return a.last
}

// Session is the mutable state of one shell: the active client, the
// request id counter and the exit flag. Only the dispatcher mutates it.
type Session struct {
	client Client
	ids    IDAllocator
	exit   bool
}

// NewSession creates a session without a client.
func NewSession() *Session {
	return &Session{}
}

// Client returns the active client, or nil before the first start.
func (s *Session) Client() Client {
	return s.client
}

// IDs returns the request id allocator.
func (s *Session) IDs() *IDAllocator {
	return &s.ids
}

// Replace closes the active client, if any, and stores c. The close error
// is returned but c is stored regardless.
func (s *Session) Replace(c Client) error {
	var err error
	if s.client != nil {
		err = s.client.Close()
	}
	s.client = c
	return err
}

// Exit marks the session as finished.
func (s *Session) Exit() {
	s.exit = true
}

// Exiting reports whether Exit was called.
func (s *Session) Exiting() bool {
	return s.exit
}

// Close closes the active client.
func (s *Session) Close() error {
	return s.Replace(nil)
}
