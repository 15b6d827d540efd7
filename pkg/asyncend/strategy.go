// Package asyncend ends the span of an operation once the asynchronous value
// it returned terminates, whatever shape that value has.
package asyncend

import "context"

// Strategy recognises one family of asynchronous return values and hooks
// their terminal signals into a Completion.
type Strategy interface {
	Name() string
	Supports(handle any) bool
	// Instrument returns the handle callers should use from now on. It may
	// be handle itself when hooking does not need a new value.
	Instrument(ctx context.Context, handle any, c *Completion) any
}
