package mcp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bookrag/bookrag/internal/schema"
)

// Backend is the tool backend the assistant uses in MCP mode. It holds at
// most one Session and replaces it when a health check finds it broken, so a tool
// server that is down at startup or restarts later is picked up by the next
// successful Ping.
type Backend struct {
	dial func(ctx context.Context) (*Session, error)

	mu     sync.RWMutex
	sess   *Session
	closed bool
}

// NewBackend makes one connection attempt to cfg. A failed attempt is logged
// and leaves the backend unavailable until a later Ping succeeds. Transports
// dialed by the backend run on ctx with its cancellation detached; Close
// stops them.
func NewBackend(ctx context.Context, cfg ServerConfig) *Backend {
	base := context.WithoutCancel(ctx)
	return newBackend(ctx, func(ctx context.Context) (*Session, error) { return connect(base, ctx, cfg) })
}

func newBackend(ctx context.Context, dial func(context.Context) (*Session, error)) *Backend {
	b := &Backend{dial: dial}
	sess, err := dial(ctx)
	if err != nil {
		slog.Warn("MCP tool server unreachable; requests will report it unavailable", "err", err)
		return b
	}
	b.sess = sess
	return b
}

func (b *Backend) current() *Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sess
}

// Healthy reports whether a session is open and its last check succeeded.
func (b *Backend) Healthy() bool {
	return b.current().Healthy()
}

func (b *Backend) SetHealthy(ok bool) {
	if s := b.current(); s != nil {
		s.SetHealthy(ok)
	}
}

func (b *Backend) ListTools(ctx context.Context) ([]schema.ToolSpec, error) {
	return b.current().ListTools(ctx)
}

func (b *Backend) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return b.current().CallTool(ctx, name, args)
}

// Ping checks the current session, dialing a new one when there is none.
// A session that fails the check is closed and dropped. Dialing and pinging
// happen outside the lock so requests never wait on them.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	sess, closed := b.sess, b.closed
	b.mu.RUnlock()
	if closed {
		return ErrNotConnected
	}

	if sess == nil {
		return b.redial(ctx)
	}

	if err := sess.Ping(ctx); err != nil {
		b.mu.Lock()
		if b.sess == sess {
			b.sess = nil
		}
		b.mu.Unlock()
		_ = sess.Close()
		return err
	}
	return nil
}

func (b *Backend) redial(ctx context.Context) error {
	fresh, err := b.dial(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed || b.sess != nil {
		// closed meanwhile, or a concurrent Ping won the race
		closed := b.closed
		b.mu.Unlock()
		_ = fresh.Close()
		if closed {
			return ErrNotConnected
		}
		return nil
	}
	b.sess = fresh
	b.mu.Unlock()

	slog.Info("MCP tool server reconnected")
	return nil
}

// Close closes the current session. A closed backend does not redial.
func (b *Backend) Close() error {
	b.mu.Lock()
	sess := b.sess
	b.sess = nil
	b.closed = true
	b.mu.Unlock()
	return sess.Close()
}
