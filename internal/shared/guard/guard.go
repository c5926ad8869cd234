package guard

import "sync/atomic"

// CallGuard is a non-reentrant flag scoped to one module's outer calls.
// Every operation that moves external value enters the guard first, so a
// re-entrant call arriving through an asset or vault callback observes
// post-mutation state and is rejected instead of extracting funds twice.
type CallGuard struct {
	busy atomic.Bool
}

// Enter reports whether the caller acquired the guard. A false return means
// another operation on the same module is still on the call stack.
func (g *CallGuard) Enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Exit releases the guard. Callers pair it with Enter via defer.
func (g *CallGuard) Exit() {
	g.busy.Store(false)
}
