package grove

import (
	"reflect"
	"sync"
	"weak"
)

// State owns a persistent snapshot of a tree rooted at a node of type T
// (pointer type P) together with the identity index for every node
// currently reachable — or recently reachable — from it. Reading a State
// (Root, RootRef, RefFromID) never blocks a concurrent reader, only a
// concurrent writer; there is at most one writer in the whole process at a
// time (see ambientContext).
type State[T any, P NodePtr[T]] struct {
	dataMu sync.RWMutex
	root   P
	index  *Index
}

// Construct builds a new State with value as its root.
func Construct[T any, P NodePtr[T]](value T) *State[T, P] {
	p := P(&value)
	*p.Header() = NewHeader(0)
	s := &State[T, P]{root: p, index: NewIndex()}
	s.index = s.index.insertEntry(p.Header().ID(), s.rootEntry(p))
	return s
}

// New builds a State around an already-built value, the way Construct
// builds one around a value it freshly assembles itself. The difference
// matters because value may already carry Child fields wired up (and
// registered in some other index, or none at all) before ever touching a
// State: every Child reachable from value is deep-copied and rekeyed
// exactly as DeepCopy would, so this State's index only ever holds entries
// it allocated itself. The root value itself is the one exception — there
// is no enclosing Child wrapping it the way DeepCopy's target always has
// one, so nothing rekeys value's own Header, and the returned State's root
// keeps the ID it already had.
func New[T any, P NodePtr[T]](value T) *State[T, P] {
	idx := NewIndex()
	txn := newIndexTxn(idx)
	ambient.beginSession(txn)
	ambient.beginDeepCopy()

	cloned := structuralCopy(reflect.ValueOf(&value).Elem(), func(ch childHandle) any {
		return ch.pollClone()
	})
	np := reflect.New(cloned.Type())
	np.Elem().Set(cloned)
	root := np.Interface().(P)

	ambient.endDeepCopy()

	s := &State[T, P]{root: root}
	txn.set(root.Header().ID(), s.rootEntry(root))
	s.index = txn.commit()
	ambient.endSession()
	return s
}

// Clone returns a new State sharing the same root and index as s. Cheap:
// both are immutable once published, so there is nothing to copy but the
// two pointers. Copying the State struct directly would copy its
// sync.RWMutex mid-use, which is unsafe, so Clone reads root/index under
// the lock and assembles a fresh State (with its own, unlocked mutex)
// around them instead.
func (s *State[T, P]) Clone() *State[T, P] {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return &State[T, P]{root: s.root, index: s.index}
}

// Root returns the current root node. The pointer is only valid to read
// until the next successful mutation session; callers that need a stable
// view across mutations should keep the *State and re-call Root, not cache
// the returned pointer.
func (s *State[T, P]) Root() P {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.root
}

// RootRef returns a Child handle sharing ownership of the current root,
// suitable for handing to code that only understands Child[T, P].
func (s *State[T, P]) RootRef() Child[T, P] {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return Child[T, P]{ptr: s.root, weak: weak.Make((*T)(s.root))}
}

// RefFromID resolves id against the current index. False if id was never
// assigned, or the node it named is no longer reachable from any live
// handle.
func (s *State[T, P]) RefFromID(id ID) (P, bool) {
	s.dataMu.RLock()
	idx := s.index
	s.dataMu.RUnlock()
	n, ok := idx.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := n.(P)
	return p, ok
}

// MutRef is a scoped mutable handle into a State, returned by GetMut. The
// caller mutates Value() freely and must call Release exactly once when
// done — there is no destructor to do it automatically, so the idiom is
// `defer ref.Release()` immediately after a successful GetMut.
type MutRef[T any, P NodePtr[T]] struct {
	state    *State[T, P]
	copy     P
	targetID ID
	released bool
}

// Value returns the mutable working copy. Valid until Release.
func (m *MutRef[T, P]) Value() P { return m.copy }

// GetMut starts a mutation session targeting the node with the given ID.
// Panics if another session is already open anywhere in the process (see
// SPEC_FULL.md §4.4). Returns false if id does not currently resolve.
func (s *State[T, P]) GetMut(id ID) (*MutRef[T, P], bool) {
	s.dataMu.RLock()
	idx := s.index
	s.dataMu.RUnlock()

	n, ok := idx.Get(id)
	if !ok {
		return nil, false
	}
	orig, ok := n.(P)
	if !ok {
		fatalf("index entry %d is not of the expected type", id)
	}

	txn := newIndexTxn(idx)
	ambient.beginSession(txn)

	cp := shallowCopy(DynNode(orig)).(P)
	return &MutRef[T, P]{state: s, copy: cp, targetID: id}, true
}

// DynMutRef is GetMut's type-erased counterpart, returned by DynGetMut: its
// Value() hands back a DynNode rather than P, for a reflection-driven
// caller (a generic observer, an editor working purely off Node) that has
// an ID and nothing else — no static T to ask GetMut for.
type DynMutRef[T any, P NodePtr[T]] struct {
	inner *MutRef[T, P]
}

// Value returns the mutable working copy, erased to DynNode. Valid until
// Release.
func (m *DynMutRef[T, P]) Value() DynNode { return DynNode(m.inner.Value()) }

// Release commits the session exactly as MutRef.Release does.
func (m *DynMutRef[T, P]) Release() { m.inner.Release() }

// DynGetMut is GetMut's erased-view counterpart (see DynMutRef). Same
// session-exclusivity and existence rules as GetMut.
func (s *State[T, P]) DynGetMut(id ID) (*DynMutRef[T, P], bool) {
	ref, ok := s.GetMut(id)
	if !ok {
		return nil, false
	}
	return &DynMutRef[T, P]{inner: ref}, true
}

// Release commits the session: the working copy is propagated up to the
// root, copying each ancestor exactly once (copy-on-write) and leaving
// every untouched sibling subtree shared with the previous snapshot, then
// publishes the new root and index. Calling it a second time is a no-op.
func (m *MutRef[T, P]) Release() {
	if m.released {
		return
	}
	m.released = true
	m.state.propagate(m.targetID, DynNode(m.copy))
	ambient.endSession()
}

// propagate walks from (id, current) up to the root, copy-on-write at each
// ancestor, and installs the result as the new root/index. Exactly the
// algorithm spec.md §4.5 describes: clone an ancestor once, re-point the
// single field that referenced the node we just replaced, and continue.
func (s *State[T, P]) propagate(id ID, current DynNode) {
	_, txn, _ := ambient.snapshot()
	if txn == nil {
		fatalf("propagate called outside an open session")
	}

	s.dataMu.RLock()
	idx := s.index
	s.dataMu.RUnlock()

	for {
		parentID, hasParent := current.Header().ParentID()
		if !hasParent {
			root, ok := current.(P)
			if !ok {
				fatalf("propagation reached a root of unexpected type")
			}
			txn.set(id, s.rootEntry(root))
			newIndex := txn.commit()
			s.dataMu.Lock()
			s.root = root
			s.index = newIndex
			s.dataMu.Unlock()
			return
		}

		parentNode, ok := idx.Get(parentID)
		if !ok {
			fatalf("propagation target not found: parent %d of %d is missing", parentID, id)
		}
		parentCopy := shallowCopy(parentNode)

		ch := findChild(parentCopy, id)
		if ch == nil {
			fatalf("propagation target not found: parent %d has no child %d", parentID, id)
		}
		if !ch.setTarget(current) {
			fatalf("propagation type mismatch: child %d under parent %d", id, parentID)
		}
		txn.set(id, ch.entry())

		current = parentCopy
		id = parentID
	}
}

// DeepCopy produces an independent copy of the subtree rooted at c: every
// node in it (not just c itself) gets a fresh ID, and every fresh ID is
// registered in this State's index immediately, even though the copy is
// not yet attached anywhere in the tree. Attach it to the tree with an
// ordinary mutation session, the same as any other value.
func (s *State[T, P]) DeepCopy(c Child[T, P]) Child[T, P] {
	s.dataMu.RLock()
	idx := s.index
	s.dataMu.RUnlock()

	txn := newIndexTxn(idx)
	ambient.beginSession(txn)
	ambient.beginDeepCopy()

	cloned, ok := c.pollClone().(Child[T, P])
	if !ok {
		fatalf("DeepCopy: pollClone returned unexpected type")
	}

	ambient.endDeepCopy()
	newIndex := txn.commit()
	ambient.endSession()

	s.dataMu.Lock()
	s.index = newIndex
	s.dataMu.Unlock()

	return cloned
}

// rootEntry builds the Index entry for the State's own root, the one node
// with no parent Child field pointing at it — every other node's entry
// comes from the Child field that references it (see Child.entry).
func (s *State[T, P]) rootEntry(p P) *indexEntry {
	wp := weak.Make((*T)(p))
	return &indexEntry{upgrade: func() (DynNode, bool) {
		v := wp.Value()
		if v == nil {
			return nil, false
		}
		return P(v), true
	}}
}
