package grove

import (
	"reflect"
	"weak"
)

// NodePtr constrains the pointer type of a node struct: P must be a pointer
// to T and must itself satisfy Node. Child is generic over both so that it
// can hold the pointer directly (P) while still knowing the pointee type T
// it needs for weak.Pointer[T] — Go has no way to spell "the type *T points
// to" from T alone, so the pair is carried explicitly. Every Child[T, P] in
// a node declaration repeats P; that repetition is the price of a
// type-safe generic handle in current Go.
type NodePtr[T any] interface {
	*T
	Node
}

// Child is the only way one node ever refers to another. It owns (shares
// ownership of) the pointee and tracks its identity through a weak
// reference into the owning State's Index, so an observer that only has
// the ID can still resolve it after the node has moved to a new physical
// address via copy-on-write.
type Child[T any, P NodePtr[T]] struct {
	ptr  P
	weak weak.Pointer[T]
}

// NewChild constructs a fresh node of type T under parentID and wraps it.
// Use parentID 0 for a root. If called while a mutation session is open,
// the new node's identity is registered in that session's pending index
// transaction immediately, so it resolves via State.RefFromID as soon as
// the session commits even though nothing else has looked it up yet.
func NewChild[T any, P NodePtr[T]](parentID ID, value T) Child[T, P] {
	return newChild[T, P](NewHeader(parentID), value)
}

// NewChildWithParent is NewChild, deriving parentID from an already-wrapped
// parent node instead of a bare ID — convenient at a call site that's
// holding the parent's P (or any Node) rather than just its identity.
func NewChildWithParent[T any, P NodePtr[T]](parent Node, value T) Child[T, P] {
	return newChild[T, P](NewHeader(parent.Header().ID()), value)
}

// NewChildWithHeader constructs a child using a caller-supplied Header
// verbatim — its id and parentID are taken as given, not freshly allocated.
// Used when reconstructing a node whose identity must be preserved exactly
// (e.g. by a DynGetMut-style caller rebuilding an erased value), unlike
// NewChild/NewChildWithParent which always allocate a fresh ID.
func NewChildWithHeader[T any, P NodePtr[T]](header Header, value T) Child[T, P] {
	return newChild[T, P](header, value)
}

func newChild[T any, P NodePtr[T]](header Header, value T) Child[T, P] {
	p := P(&value)
	*p.Header() = header
	c := Child[T, P]{ptr: p, weak: weak.Make(&value)}
	if active, txn, _ := ambient.snapshot(); active && txn != nil {
		txn.set(c.ID(), c.entry())
	}
	return c
}

// Get returns the current node, or nil and false if this handle has been
// released. The weak reference is not consulted here.
func (c Child[T, P]) Get() (P, bool) {
	if c.ptr == nil {
		return nil, false
	}
	return c.ptr, true
}

// MustGet returns the current node, panicking if it is gone. Use when the
// caller holds the Child itself (so the node is necessarily still alive)
// rather than a weak reference derived from an ID.
func (c Child[T, P]) MustGet() P {
	v, ok := c.Get()
	if !ok {
		fatalf("child %d: node no longer live", c.ID())
	}
	return v
}

// ID returns the child's stable identity.
func (c Child[T, P]) ID() ID {
	if c.ptr == nil {
		return 0
	}
	return c.ptr.Header().ID()
}

// Clone shares ownership of the same underlying node — a cheap pointer
// copy, the Go equivalent of Rc::clone. It never rekeys or deep-copies; use
// State.DeepCopy to place an independent copy of a subtree elsewhere in the
// tree.
func (c Child[T, P]) Clone() Child[T, P] {
	return Child[T, P]{ptr: c.ptr, weak: c.weak}
}

// Release detaches this handle from its node; afterwards Get reports false.
// Outside any mutation session no index is touched (the node's entry in
// every State's Index is left to expire naturally via the weak reference,
// the "silent transient absence" spec.md tolerates). Inside an open session,
// this queues the node's identity (and every Child reachable from it) for
// erasure from that session's pending index transaction. Calling it a
// second time is a no-op.
func (c *Child[T, P]) Release() {
	if c.ptr == nil {
		return
	}
	active, txn, _ := ambient.snapshot()
	if active && txn != nil {
		txn.erase(c.ID())
		releaseChildren(DynNode(c.ptr))
	}
	c.ptr = nil
}

// pollClone implements childHandle: when a containing node is being
// reflectively walked during a State.DeepCopy traversal, each Child field
// it owns is replaced by the result of this method — a freshly rekeyed,
// recursively deep-copied node registered under its new ID in the
// traversal's pending index transaction. Outside a DeepCopy traversal this
// degrades to Clone's cheap share, since there is nothing to rekey.
func (c *Child[T, P]) pollClone() any {
	active, txn, deepCopy := ambient.snapshot()
	if !active || !deepCopy || txn == nil || c.ptr == nil {
		return c.Clone()
	}
	orig := c.ptr
	clonedVal := structuralCopy(dynNodeValue(DynNode(orig)), func(ch childHandle) any {
		return ch.pollClone()
	})
	np := reflect.New(clonedVal.Type())
	np.Elem().Set(clonedVal)
	copied := np.Interface().(P)
	copied.Header().rekey()
	walkChildren(dynNodeValue(DynNode(copied)), func(ch childHandle) {
		ch.reparent(copied.Header().ID())
	})
	newChild := Child[T, P]{ptr: copied, weak: weak.Make((*T)(copied))}
	txn.set(newChild.ID(), newChild.entry())
	return newChild
}

// pollRelease implements childHandle, invoked by the reflective walker when
// this Child is reachable from a node being erased. Inside an open session
// it queues this node and its subtree for erasure the way Release does, but
// leaves the handle itself in place, since the node holding it may still be
// shared with an earlier snapshot.
func (c *Child[T, P]) pollRelease() {
	if c.ptr == nil {
		return
	}
	if active, txn, _ := ambient.snapshot(); active && txn != nil {
		txn.erase(c.ID())
		releaseChildren(DynNode(c.ptr))
	}
}

// handleID implements childHandle.
func (c *Child[T, P]) handleID() ID { return c.ID() }

// setTarget implements childHandle: swap in a freshly copy-on-write'd node
// of the same concrete type, used by State's ancestor-propagation algorithm
// to re-point a parent's field at its child's new physical copy without
// disturbing the child's identity.
func (c *Child[T, P]) setTarget(n DynNode) bool {
	p, ok := n.(P)
	if !ok {
		return false
	}
	c.ptr = p
	c.weak = weak.Make((*T)(p))
	return true
}

// upgrade resolves the weak reference, used as the Index entry's upgrade
// closure. Captured at the point the concrete *T is known (inside Child's
// own methods), since weak.Pointer is generic over T while the Index only
// ever sees the type-erased DynNode.
func (c Child[T, P]) upgrade() (DynNode, bool) {
	p := c.weak.Value()
	if p == nil {
		return nil, false
	}
	return P(p), true
}

// Reparent updates this child's recorded parent without otherwise touching
// it. State.DeepCopy rekeys an entire subtree and points each copied node
// below the top at its new parent, but leaves the top node's parent
// bookkeeping pointing at its position in the *original* tree, since it has
// no way to know where the copy will end up; a caller attaching a DeepCopy
// result (or any other detached Child) under a new parent during a mutation
// session must call Reparent with that parent's ID before the session
// commits, or the next time something calls GetMut directly on this child's
// ID, propagation will walk the wrong ancestor chain.
func (c Child[T, P]) Reparent(parentID ID) {
	if c.ptr == nil {
		return
	}
	c.ptr.Header().setParentID(parentID)
}

// reparent implements childHandle, used by pollClone to fix up the parent
// bookkeeping of a node's direct children right after the node itself is
// rekeyed — those children didn't change identity, only their parent did.
func (c *Child[T, P]) reparent(parentID ID) {
	if c.ptr == nil {
		return
	}
	c.ptr.Header().setParentID(parentID)
}

// entry implements childHandle: builds the Index entry that should be
// registered for this Child's current target, reusing the same weak
// reference upgrade relies on. State's ancestor-propagation algorithm
// calls this right after setTarget to publish the new physical address
// under the child's unchanged ID.
func (c *Child[T, P]) entry() *indexEntry {
	return &indexEntry{upgrade: c.upgrade}
}
