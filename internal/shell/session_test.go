package shell

import (
	"errors"
	"testing"
)

func TestIDAllocator(t *testing.T) {
	var a IDAllocator
	if a.Last() != 0 {
		t.Fatalf("Last() = %d before any reservation", a.Last())
	}

	if id := a.Reserve(); id != 1 {
		t.Errorf("first Reserve() = %d, want 1", id)
	}
	id := a.Reserve()
	a.Release(id)
	if got := a.Reserve(); got != 2 {
		t.Errorf("Reserve() after Release = %d, want 2", got)
	}

	// Only the latest reservation can be rolled back.
	a.Release(1)
	if a.Last() != 2 {
		t.Errorf("Release of an older id changed Last() to %d", a.Last())
	}

	var fresh IDAllocator
	fresh.Release(0)
	if fresh.Last() != 0 {
		t.Errorf("Release(0) on a fresh allocator = %d", fresh.Last())
	}
}

type closeErrClient struct {
	fakeClient
	err error
}

func (c *closeErrClient) Close() error {
	c.closed = true
	return c.err
}

func TestSession_Replace(t *testing.T) {
	s := NewSession()
	if s.Client() != nil {
		t.Fatal("new session has a client")
	}

	first := &closeErrClient{err: errors.New("kill failed")}
	if err := s.Replace(first); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	second := &fakeClient{}
	if err := s.Replace(second); err == nil {
		t.Error("close error of the previous client was swallowed")
	}
	if !first.closed {
		t.Error("previous client not closed")
	}
	if s.Client() != second {
		t.Error("new client not stored after close error")
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !second.closed || s.Client() != nil {
		t.Error("Close did not release the client")
	}
}

func TestSession_Exit(t *testing.T) {
	s := NewSession()
	if s.Exiting() {
		t.Fatal("new session is exiting")
	}
	s.Exit()
	if !s.Exiting() {
		t.Error("Exit did not set the flag")
	}
}
