package grove

import "sync"

// ambientContext is the package-level, mutex-guarded stand-in for the
// source design's thread-local Context: exactly one mutation session may
// be open across the whole process at a time (see SPEC_FULL.md §4.4 for
// why process-wide rather than per-goroutine is an acceptable narrowing
// here), and at most one of its two traversal behaviors — a DeepCopy
// rekeying walk — may be unwinding within it at a time.
//
// A session being open is what makes Child.Release() queue an Erase
// instead of silently doing nothing: that's the whole of the "Mutation vs.
// Inactive" distinction the source context tracked. Whether the session's
// current traversal is a plain edit or a DeepCopy only changes one thing —
// what Child.pollClone() does — so it is tracked as a single flag
// rather than a further enum.
type ambientContext struct {
	mu            sync.Mutex
	sessionActive bool
	txn           *indexTxn
	deepCopy      bool
}

var ambient ambientContext

// beginSession opens a mutation session against txn. Panics if a session is
// already open anywhere in the process.
func (c *ambientContext) beginSession(txn *indexTxn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionActive {
		fatalf("nested mutation session")
	}
	c.sessionActive = true
	c.txn = txn
	trace("session begin")
}

func (c *ambientContext) endSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	trace("session end")
	c.sessionActive = false
	c.txn = nil
	c.deepCopy = false
}

// beginDeepCopy flags the open session's traversal as a DeepCopy walk, so
// nested Child.pollClone calls rekey instead of sharing. Must be called
// within an open session.
func (c *ambientContext) beginDeepCopy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sessionActive {
		fatalf("DeepCopy traversal started outside a session")
	}
	if c.deepCopy {
		fatalf("nested DeepCopy traversal")
	}
	c.deepCopy = true
}

func (c *ambientContext) endDeepCopy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deepCopy = false
}

// snapshot reports the session's current state for Child.pollClone/Release
// (and the other session-aware code paths) to consult.
func (c *ambientContext) snapshot() (sessionActive bool, txn *indexTxn, deepCopy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionActive, c.txn, c.deepCopy
}
