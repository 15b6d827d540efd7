package pathctx

import (
	"context"

	"github.com/jt828/go-trace-propagation/pkg/latch"
	"github.com/jt828/go-trace-propagation/pkg/observability"
)

// Execution starts one span per tree node, parented by path.
type Execution struct {
	store  *Store
	tracer observability.Tracer
}

func NewExecution(tracer observability.Tracer, store *Store) *Execution {
	if store == nil {
		store = NewStore()
	}
	return &Execution{store: store, tracer: tracer}
}

func (e *Execution) Store() *Store {
	return e.store
}

// Begin registers ctx as the root of the tree. Every node without a more
// specific registered ancestor is parented on it.
func (e *Execution) Begin(ctx context.Context) {
	e.store.SetContextForPath(nil, ctx)
}

// Enter starts the span for the node at path and registers its context so
// that descendants resolve to it.
func (e *Execution) Enter(path Path) (context.Context, *Node) {
	parent := e.store.GetParentContextForPath(path)
	ctx, span := e.tracer.Start(parent, path.String())
	span.SetAttribute("tree.path", path.String())
	e.store.SetContextForPath(path, ctx)

	n := &Node{path: path, ctx: ctx}
	n.end = latch.NewTerminal(func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	})
	return ctx, n
}

type Node struct {
	path Path
	ctx  context.Context
	end  *latch.Terminal[error]
}

func (n *Node) Path() Path {
	return n.path
}

func (n *Node) Context() context.Context {
	return n.ctx
}

// End ends the node's span. Only the first call has an effect.
func (n *Node) End(err error) bool {
	return n.end.Fire(err)
}
