package grove

// Node is the capability every value stored in the tree must implement: a
// way to get at its own Header. Everything else about a concrete node type
// — its fields, its Child[T] handles, its data — is ordinary Go and is
// discovered by reflection when the tree needs to clone or walk it.
type Node interface {
	Header() *Header
}

// DynNode is a Node whose concrete type has been erased. The identity index
// and the reflective clone engine both operate on DynNode, since at that
// layer nothing knows (or needs to know) the concrete node type.
type DynNode interface {
	Node
}

// ChildPoller is an optional capability a node type may declare for
// locating a single reachable Child[T] by ID. Nothing in this package calls
// it: propagation always locates the child through the reflective field
// walk (findChild), whether or not the node implements ChildPoller.
type ChildPoller interface {
	// PollChildMut locates the child with the given ID (if this node
	// references it) and reports whether it found the child.
	PollChildMut(id ID) bool
}

// AllPoller is an optional capability a node type may declare for visiting
// every child it owns. Nothing in this package calls it: deep copy and
// subtree removal always use the reflective walk, whether or not the node
// implements AllPoller.
type AllPoller interface {
	PollAll()
	PollAllMut()
}

// Cloner lets a node type supply its own shallow clone instead of the
// default reflective struct clone. The returned value must be a new node of
// the same concrete type, sharing no mutable state with the receiver except
// through Child[T] fields (which the caller re-polls afterwards).
type Cloner interface {
	CloneShallow() DynNode
}

// childHandle is the unexported marker every Child[T] satisfies regardless
// of T. The reflective clone engine type-asserts against this, not against
// Child[T] itself, since a generic type can't be named without its type
// argument.
type childHandle interface {
	pollClone() any
	pollRelease()
	handleID() ID
	setTarget(n DynNode) bool
	entry() *indexEntry
	reparent(parentID ID)
}
