package grove

import "fmt"

// fatalf panics with a message naming the invariant that was violated. Every
// condition this package treats as fatal (as opposed to a silent transient
// absence, see Child.Get and Index.Get) is a programmer error or a
// corrupted tree, never an expected runtime outcome — so it panics rather
// than returning an error value the caller would have to remember to check.
func fatalf(format string, args ...any) {
	panic(fmt.Sprintf("grove: "+format, args...))
}
