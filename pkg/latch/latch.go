// Package latch provides one-shot gates for terminal actions that several
// notification paths race to trigger.
package latch

import "sync/atomic"

// Latch moves from unfired to fired exactly once.
type Latch struct {
	fired atomic.Bool
}

// TryFire reports whether the caller won the transition. Every later caller
// gets false and must not run the terminal action.
func (l *Latch) TryFire() bool {
	return l.fired.CompareAndSwap(false, true)
}

func (l *Latch) Fired() bool {
	return l.fired.Load()
}

// Terminal binds a Latch to the action it guards. The value passed by the
// winning Fire call is handed to the action and to nothing else.
type Terminal[T any] struct {
	latch  Latch
	action func(T)
}

func NewTerminal[T any](action func(T)) *Terminal[T] {
	return &Terminal[T]{action: action}
}

// Fire runs the action with v if this is the first call, and reports whether
// it did.
func (t *Terminal[T]) Fire(v T) bool {
	if !t.latch.TryFire() {
		return false
	}
	if t.action != nil {
		t.action(v)
	}
	return true
}

func (t *Terminal[T]) Fired() bool {
	return t.latch.Fired()
}
