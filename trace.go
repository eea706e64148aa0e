package grove

import "github.com/y0ssar1an/q"

// Trace toggles development-time dumping of Context phase transitions via
// q.Q (see https://github.com/y0ssar1an/q — writes to $TMPDIR/q, tails
// nicely with `tail -f $TMPDIR/q`). Off by default.
var Trace = false

func trace(args ...any) {
	if !Trace {
		return
	}
	q.Q(args...)
}
