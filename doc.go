// Package grove implements a persistent tree of nodes with copy-on-write
// mutation and a stable identity index.
//
// A State[R] owns an immutable root of type R. Mutating a node reachable from
// that root produces new nodes along the path back to the root (structural
// sharing of everything else) and publishes a new root on the State. Every
// node reachable from the root can be looked up by its ID through the State's
// identity index (a released node is erased from it), which persists across mutations the same way the tree
// itself does: insert and erase are copy-on-write, and old snapshots keep
// seeing their own version of the index.
//
// Nodes are plain Go values implementing Node; Child[T] is the only place a
// node ever holds a reference to another node. Everything else about a
// node's shape is ordinary Go — there is no schema to register and no code
// generation step. The package discovers Child[T] fields by walking a node's
// memory layout with reflection whenever it needs them (copying a node,
// locating the child to re-point during propagation, and releasing a removed
// subtree), the same way an encoding/json-style
// library discovers struct tags, except here the "tag" is simply the field's
// type.
package grove
