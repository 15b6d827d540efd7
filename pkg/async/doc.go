// Package async holds the callback based asynchronous shapes that the
// engine knows how to instrument: single value futures, optional value
// futures, cold multi-subscriber streams and parallel fan-out streams.
//
// None of them block on their own. Await and Collect are conveniences for
// callers that want to wait, completion itself is always delivered through a
// registered callback.
package async

import "errors"

// ErrCanceled is the terminal error of a future or subscription that was
// canceled before it produced a result.
var ErrCanceled = errors.New("async: canceled")

// ErrRailMismatch is returned when a parallel stream is subscribed with the
// wrong number of subscribers.
var ErrRailMismatch = errors.New("async: subscriber count does not match rails")
