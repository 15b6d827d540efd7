package scope

import "context"

type guardState int

const (
	guardOpen guardState = iota + 1
	guardClosed
)

// Guard is the token returned by Local.Activate. Closing it restores the
// context that was current when it was opened. A Guard is closed at most
// once; closing it again is logged and ignored.
type Guard struct {
	local *Local
	ctx   context.Context
	prev  context.Context
	state guardState
}

func (g *Guard) Context() context.Context {
	if g == nil {
		return nil
	}
	return g.ctx
}

// Previous returns the context that becomes current again on Close.
func (g *Guard) Previous() context.Context {
	if g == nil {
		return nil
	}
	return g.prev
}

// Close is safe on a nil guard so callers can defer it unconditionally.
func (g *Guard) Close() {
	if g == nil {
		return
	}
	g.local.close(g)
}

func (g *Guard) Closed() bool {
	return g == nil || g.state == guardClosed
}
