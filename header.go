package grove

// Header is embedded (by value) in every concrete node type and carries the
// bookkeeping every node needs regardless of its own data: its own ID and its
// parent's ID, if any.
type Header struct {
	id       ID
	parentID ID
}

// NewHeader allocates a fresh ID for a node under the given parent. Pass 0
// for parentID when constructing a root.
func NewHeader(parentID ID) Header {
	return Header{id: NewID(), parentID: parentID}
}

// ID returns the node's own identity.
func (h Header) ID() ID { return h.id }

// ParentID returns the parent's identity and whether the node has a parent
// at all. A root node (or a detached one) has no parent.
func (h Header) ParentID() (ID, bool) {
	if h.parentID == 0 {
		return 0, false
	}
	return h.parentID, true
}

func (h *Header) setParentID(id ID) { h.parentID = id }

func (h *Header) rekey() { h.id = NewID() }
