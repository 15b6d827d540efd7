// Package contextcell attaches values to work items without the work item's
// type having a field for them.
//
// A Cell is keyed by pointer identity. Two distinct *K values never share an
// entry even if they are equal by value, and an entry never keeps its key
// alive: once a key becomes unreachable its entry is dropped. Callers should
// still Remove entries as soon as the work item finishes, reclamation only
// happens after a garbage collection cycle.
package contextcell

type Cell[K any, V any] interface {
	// Attach stores value for key, replacing any previous value.
	Attach(key *K, value V)
	// AttachIfAbsent stores value only when key has no entry yet and reports
	// whether it did.
	AttachIfAbsent(key *K, value V) bool
	Get(key *K) (V, bool)
	HasAttachment(key *K) bool
	Remove(key *K)
	// Len returns the number of live entries.
	Len() int
}
