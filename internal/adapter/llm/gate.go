package llm

import "context"

// Gate is a counting admission gate bounding simultaneous in-flight
// generation calls. Each session owns one gate shared by its three role
// clients, so one session's backlog never starves another's.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate with the given capacity. A non-positive limit
// disables gating.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		return &Gate{}
	}
	return &Gate{slots: make(chan struct{}, limit)}
}

func (g *Gate) acquire(ctx context.Context) error {
	if g == nil || g.slots == nil {
		return nil
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) release() {
	if g == nil || g.slots == nil {
		return
	}
	<-g.slots
}

// Limited wraps a Client with a shared Gate.
type Limited struct {
	inner Client
	gate  *Gate
}

var _ Client = (*Limited)(nil)

// NewLimited wraps inner with the given gate.
func NewLimited(inner Client, gate *Gate) *Limited {
	return &Limited{inner: inner, gate: gate}
}

// Generate acquires a slot (or returns the context error while waiting) and
// delegates to the wrapped client.
func (l *Limited) Generate(ctx context.Context, req *Request) (string, error) {
	if err := l.gate.acquire(ctx); err != nil {
		return "", err
	}
	defer l.gate.release()
	return l.inner.Generate(ctx, req)
}
