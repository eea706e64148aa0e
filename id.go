package grove

import "sync/atomic"

// ID identifies a node for the lifetime of the process. Zero is reserved to
// mean "no node" (e.g. a node with no parent) since nodes never receive ID 0.
type ID uint64

var idCounter atomic.Uint64

// NewID allocates the next process-wide ID. Monotonic, never reused, even
// across nodes that have long since been released.
func NewID() ID {
	n := idCounter.Add(1)
	if n == 0 {
		// Wrapped around after exhausting 2^64-1 IDs. The counter is
		// corrupted at that point; nothing downstream can be trusted.
		panic("grove: id counter overflowed")
	}
	return ID(n)
}
