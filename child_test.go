package grove

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type docNode struct {
	head     Header
	Title    string
	Sections []Child[docNode, *docNode]
}

func (n *docNode) Header() *Header { return &n.head }

func TestNewChildAssignsHeader(t *testing.T) {
	require := require.New(t)

	c := NewChild[docNode](ID(7), docNode{Title: "intro"})

	v, ok := c.Get()
	require.True(ok)
	require.Equal("intro", v.Title)
	require.NotZero(uint64(c.ID()))

	parentID, hasParent := v.head.ParentID()
	require.True(hasParent)
	require.Equal(ID(7), parentID)
}

func TestNewChildWithParentDerivesParentID(t *testing.T) {
	require := require.New(t)

	parent := NewChild[docNode](0, docNode{Title: "parent"})
	parentPtr := parent.MustGet()

	child := NewChildWithParent[docNode](parentPtr, docNode{Title: "child"})

	parentID, hasParent := child.MustGet().head.ParentID()
	require.True(hasParent)
	require.Equal(parentPtr.head.ID(), parentID)
}

func TestNewChildWithHeaderPreservesIdentity(t *testing.T) {
	require := require.New(t)

	h := NewHeader(ID(42))
	wantID := h.ID()

	c := NewChildWithHeader[docNode](h, docNode{Title: "x"})
	require.Equal(wantID, c.ID())

	parentID, hasParent := c.MustGet().head.ParentID()
	require.True(hasParent)
	require.Equal(ID(42), parentID)
}

func TestChildCloneSharesIdentity(t *testing.T) {
	require := require.New(t)

	c := NewChild[docNode](0, docNode{Title: "root"})
	clone := c.Clone()

	require.Equal(c.ID(), clone.ID())

	orig, _ := c.Get()
	got, _ := clone.Get()
	require.Same(orig, got)
}

func TestChildReleaseOutsideSessionIsNoop(t *testing.T) {
	require := require.New(t)

	c := NewChild[docNode](0, docNode{Title: "root"})
	clone := c.Clone()

	c.Release()

	// The released handle itself can no longer resolve...
	_, ok := c.Get()
	require.False(ok)

	// ...but since Release outside a session never touches any index and
	// the node is still strongly referenced via the clone, the clone
	// still resolves fine.
	v, ok := clone.Get()
	require.True(ok)
	require.Equal("root", v.Title)
}

func TestChildReleaseTwiceIsNoop(t *testing.T) {
	c := NewChild[docNode](0, docNode{Title: "root"})
	c.Release()
	require.NotPanics(t, func() { c.Release() })
}
