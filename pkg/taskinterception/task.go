// Package taskinterception carries the submitter's context over to the
// goroutine that eventually runs a task.
//
// At submission the current context is stored out of band, keyed by the
// task. When a worker starts the task the context is activated on the
// worker's lane, and when the task ends (or is canceled before running) the
// entry is dropped.
package taskinterception

import (
	"context"
	"reflect"
	"sync/atomic"
)

type Runnable interface {
	Run(ctx context.Context) error
}

type RunnableFunc func(ctx context.Context) error

func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Task wraps a submitted Runnable so that it has a stable identity to key the
// propagated state on, whatever the caller submitted.
type Task struct {
	delegate Runnable
	kind     string
}

func (t *Task) Run(ctx context.Context) error {
	return t.delegate.Run(ctx)
}

func (t *Task) Unwrap() Runnable {
	return t.delegate
}

// Kind is the type name of the wrapped runnable, as matched against the
// include list.
func (t *Task) Kind() string {
	return t.kind
}

// PropagatedState is the context captured for one task. It is consumed at
// most once so a task reachable through two execution paths is only
// activated by the first.
type PropagatedState struct {
	ctx      context.Context
	consumed atomic.Bool
}

func NewPropagatedState(ctx context.Context) *PropagatedState {
	return &PropagatedState{ctx: ctx}
}

func (s *PropagatedState) Context() context.Context {
	return s.ctx
}

// Consume returns the captured context to the first caller only.
func (s *PropagatedState) Consume() (context.Context, bool) {
	if !s.consumed.CompareAndSwap(false, true) {
		return nil, false
	}
	return s.ctx, true
}

func (s *PropagatedState) Consumed() bool {
	return s.consumed.Load()
}

// TypeName is the name used to match a runnable against the include list.
func TypeName(r Runnable) string {
	if t, ok := r.(*Task); ok {
		return t.kind
	}
	return reflect.TypeOf(r).String()
}
