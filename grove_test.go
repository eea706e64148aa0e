package grove

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructAndRoot(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "root"})
	root := s.Root()
	require.Equal("root", root.Title)

	_, hasParent := root.head.ParentID()
	require.False(hasParent)

	got, ok := s.RefFromID(root.head.ID())
	require.True(ok)
	require.Same(root, got)
}

func TestMutateRootReplacesRootButKeepsIdentity(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "v1"})
	rootID := s.Root().head.ID()
	before := s.Root()

	ref, ok := s.GetMut(rootID)
	require.True(ok)
	ref.Value().Title = "v2"
	ref.Release()

	after := s.Root()
	require.Equal("v2", after.Title)
	require.NotSame(before, after)
	require.Equal(rootID, after.head.ID())

	got, ok := s.RefFromID(rootID)
	require.True(ok)
	require.Same(after, got)
}

func TestAddChildThenMutateChildPropagatesToRoot(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "root"})
	rootID := s.Root().head.ID()

	// Add two children.
	ref, ok := s.GetMut(rootID)
	require.True(ok)
	ref.Value().Sections = append(ref.Value().Sections,
		NewChild[docNode](rootID, docNode{Title: "one"}),
		NewChild[docNode](rootID, docNode{Title: "two"}),
	)
	ref.Release()

	root := s.Root()
	require.Len(root.Sections, 2)
	oneID := root.Sections[0].ID()
	twoID := root.Sections[1].ID()
	twoPtrBefore, ok := root.Sections[1].Get()
	require.True(ok)

	// Mutate only the first child.
	ref2, ok := s.GetMut(oneID)
	require.True(ok)
	ref2.Value().Title = "one-edited"
	ref2.Release()

	newRoot := s.Root()
	require.NotSame(root, newRoot)
	require.Equal(rootID, newRoot.head.ID(), "root keeps its identity across COW")

	gotOne, ok := newRoot.Sections[0].Get()
	require.True(ok)
	require.Equal("one-edited", gotOne.Title)
	require.Equal(oneID, gotOne.head.ID())

	// The untouched sibling subtree is structurally shared, not copied.
	gotTwo, ok := newRoot.Sections[1].Get()
	require.True(ok)
	require.Same(twoPtrBefore, gotTwo)
	require.Equal(twoID, gotTwo.head.ID())

	// The identity index resolves the mutated child's id to its new
	// physical copy.
	resolved, ok := s.RefFromID(oneID)
	require.True(ok)
	require.Same(gotOne, resolved)
}

func TestRemoveChildErasesItFromIndex(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "root"})
	rootID := s.Root().head.ID()

	ref, ok := s.GetMut(rootID)
	require.True(ok)
	ref.Value().Sections = append(ref.Value().Sections, NewChild[docNode](rootID, docNode{Title: "doomed"}))
	ref.Release()

	doomedID := s.Root().Sections[0].ID()
	_, ok = s.RefFromID(doomedID)
	require.True(ok)

	ref2, ok := s.GetMut(rootID)
	require.True(ok)
	removed := ref2.Value().Sections[0]
	ref2.Value().Sections = ref2.Value().Sections[:0]
	removed.Release()
	ref2.Release()

	_, ok = s.RefFromID(doomedID)
	require.False(ok, "an explicitly released child is erased from the index, not just left to expire")
}

func TestDeepCopyRekeysEveryNode(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "root"})
	rootID := s.Root().head.ID()

	ref, ok := s.GetMut(rootID)
	require.True(ok)
	outer := NewChild[docNode](rootID, docNode{Title: "outer"})
	outerPtr := outer.MustGet()
	inner := NewChild[docNode](outerPtr.head.ID(), docNode{Title: "inner"})
	outerPtr.Sections = append(outerPtr.Sections, inner)
	ref.Value().Sections = append(ref.Value().Sections, outer)
	ref.Release()

	origOuter := s.Root().Sections[0]
	origOuterPtr := origOuter.MustGet()
	origInner := origOuterPtr.Sections[0]

	clone := s.DeepCopy(origOuter)
	clonePtr := clone.MustGet()

	require.NotEqual(origOuter.ID(), clone.ID())
	require.Equal("outer", clonePtr.Title)
	require.Len(clonePtr.Sections, 1)

	clonedInner := clonePtr.Sections[0]
	require.NotEqual(origInner.ID(), clonedInner.ID())
	require.Equal("inner", clonedInner.MustGet().Title)

	// Both the original and the clone resolve independently through the
	// index, each under its own identity.
	gotOrig, ok := s.RefFromID(origOuter.ID())
	require.True(ok)
	require.Same(origOuterPtr, gotOrig)

	gotClone, ok := s.RefFromID(clone.ID())
	require.True(ok)
	require.Same(clonePtr, gotClone)
}

func TestGetMutUnknownIDFails(t *testing.T) {
	s := Construct[docNode](docNode{Title: "root"})
	_, ok := s.GetMut(ID(999999))
	require.False(t, ok)
}

func TestCloneSnapshotIsIndependent(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "root"})
	rootID := s.Root().head.ID()

	ref, ok := s.GetMut(rootID)
	require.True(ok)
	ref.Value().Sections = append(ref.Value().Sections, NewChild[docNode](rootID, docNode{Title: "child"}))
	ref.Release()

	childID := s.Root().Sections[0].ID()

	// Clone the snapshot before editing further.
	old := s.Clone()

	ref2, ok := s.GetMut(childID)
	require.True(ok)
	ref2.Value().Title = "child-edited"
	ref2.Release()

	// The clone still reports the pre-edit value...
	oldChild, ok := old.RefFromID(childID)
	require.True(ok)
	require.Equal("child", oldChild.Title)

	// ...while s itself reports the edit, independently.
	newChild, ok := s.RefFromID(childID)
	require.True(ok)
	require.Equal("child-edited", newChild.Title)
}

func TestNewDeepCopiesChildrenButKeepsRootID(t *testing.T) {
	require := require.New(t)

	base := Construct[docNode](docNode{Title: "root"})
	rootID := base.Root().head.ID()
	ref, ok := base.GetMut(rootID)
	require.True(ok)
	ref.Value().Sections = append(ref.Value().Sections, NewChild[docNode](rootID, docNode{Title: "kid"}))
	ref.Release()
	origKidID := base.Root().Sections[0].ID()

	s2 := New[docNode](*base.Root())

	require.Equal(rootID, s2.Root().head.ID(), "New preserves the root's own identity")

	newKidID := s2.Root().Sections[0].ID()
	require.NotEqual(origKidID, newKidID, "New rekeys every node reachable from the root")

	got, ok := s2.RefFromID(newKidID)
	require.True(ok)
	require.Equal("kid", got.Title)

	_, ok = s2.RefFromID(origKidID)
	require.False(ok, "the pre-existing child ID was never registered in the new State's index")
}

func TestDynGetMutEditsThroughErasedView(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "root"})
	rootID := s.Root().head.ID()

	ref, ok := s.DynGetMut(rootID)
	require.True(ok)
	p, ok := ref.Value().(*docNode)
	require.True(ok)
	p.Title = "via-dyn"
	ref.Release()

	require.Equal("via-dyn", s.Root().Title)
}

func TestPropagateDuplicateChildIDPanics(t *testing.T) {
	require := require.New(t)
	defer func() { ambient = ambientContext{} }()

	s := Construct[docNode](docNode{Title: "root"})
	rootID := s.Root().head.ID()

	ref, ok := s.GetMut(rootID)
	require.True(ok)
	kid := NewChild[docNode](rootID, docNode{Title: "kid"})
	// A corrupted tree: the same child ID reachable through two fields.
	ref.Value().Sections = append(ref.Value().Sections, kid, kid.Clone())
	ref.Release()

	kidID := s.Root().Sections[0].ID()

	require.Panics(func() {
		ref2, ok := s.GetMut(kidID)
		require.True(ok)
		ref2.Value().Title = "edited"
		ref2.Release()
	})
}

func TestNestedSessionPanics(t *testing.T) {
	require := require.New(t)

	s := Construct[docNode](docNode{Title: "root"})
	rootID := s.Root().head.ID()

	ref, ok := s.GetMut(rootID)
	require.True(ok)
	defer ref.Release()

	require.Panics(func() {
		s.GetMut(rootID)
	})
}
