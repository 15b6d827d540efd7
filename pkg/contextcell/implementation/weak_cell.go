package implementation

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/jt828/go-trace-propagation/pkg/contextcell"
)

type entry[V any] struct {
	value   V
	cleanup runtime.Cleanup
}

type cleanupArg[K any, V any] struct {
	key   weak.Pointer[K]
	entry *entry[V]
}

type weakCell[K any, V any] struct {
	entries sync.Map // weak.Pointer[K] -> *entry[V]
	size    atomic.Int64
}

// NewWeakCell returns a Cell whose keys are held through weak pointers.
// Values must not reference their key, otherwise the key stays reachable
// until the entry is removed explicitly.
func NewWeakCell[K any, V any]() contextcell.Cell[K, V] {
	return &weakCell[K, V]{}
}

func (c *weakCell[K, V]) newEntry(key *K, wp weak.Pointer[K], value V) *entry[V] {
	e := &entry[V]{value: value}
	e.cleanup = runtime.AddCleanup(key, c.reclaim, cleanupArg[K, V]{key: wp, entry: e})
	return e
}

// reclaim runs after the key has been collected.
func (c *weakCell[K, V]) reclaim(arg cleanupArg[K, V]) {
	if c.entries.CompareAndDelete(arg.key, arg.entry) {
		c.size.Add(-1)
	}
}

func (c *weakCell[K, V]) Attach(key *K, value V) {
	if key == nil {
		return
	}
	wp := weak.Make(key)
	e := c.newEntry(key, wp, value)

	prev, loaded := c.entries.Swap(wp, e)
	if !loaded {
		c.size.Add(1)
		return
	}
	prev.(*entry[V]).cleanup.Stop()
}

func (c *weakCell[K, V]) AttachIfAbsent(key *K, value V) bool {
	if key == nil {
		return false
	}
	wp := weak.Make(key)
	e := c.newEntry(key, wp, value)

	if _, loaded := c.entries.LoadOrStore(wp, e); loaded {
		e.cleanup.Stop()
		return false
	}
	c.size.Add(1)
	return true
}

func (c *weakCell[K, V]) Get(key *K) (V, bool) {
	var zero V
	if key == nil {
		return zero, false
	}
	v, ok := c.entries.Load(weak.Make(key))
	if !ok {
		return zero, false
	}
	return v.(*entry[V]).value, true
}

func (c *weakCell[K, V]) HasAttachment(key *K) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *weakCell[K, V]) Remove(key *K) {
	if key == nil {
		return
	}
	v, loaded := c.entries.LoadAndDelete(weak.Make(key))
	if !loaded {
		return
	}
	v.(*entry[V]).cleanup.Stop()
	c.size.Add(-1)
}

func (c *weakCell[K, V]) Len() int {
	return int(c.size.Load())
}
