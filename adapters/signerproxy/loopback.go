package signerproxy

import (
	"context"
	"sync"
)

// Handler produces the response envelope for one request.
type Handler func(Envelope) Envelope

// Loopback is an in-process transport backed by a handler function. It is
// used when the signer runs embedded in the same process, and in tests.
type Loopback struct {
	handler Handler
	out     chan Envelope

	mu     sync.Mutex
	closed bool
}

// NewLoopback creates a loopback transport serving requests with handler.
func NewLoopback(handler Handler) *Loopback {
	return &Loopback{
		handler: handler,
		out:     make(chan Envelope, 16),
	}
}

var _ Transport = (*Loopback)(nil)

// Send serves the request on a fresh goroutine so the caller can block on
// the response channel.
func (l *Loopback) Send(ctx context.Context, env Envelope) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return context.Canceled
	}
	l.mu.Unlock()

	go func() {
		resp := l.handler(env)
		resp.ID = env.ID

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			return
		}
		select {
		case l.out <- resp:
		case <-ctx.Done():
		}
	}()

	return nil
}

// Receive returns the response channel.
func (l *Loopback) Receive() <-chan Envelope {
	return l.out
}

// Close shuts the transport down.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		l.closed = true
		close(l.out)
	}
	return nil
}
