// Package threadguard enforces the "non-migratable IO handle" contract of
// spec §5/§9: an IO object that must not cross goroutine/thread
// boundaries once first polled. Go has no Rust-style Send trait, so the
// teacher's equivalent pattern (a debug-only owner check, seen
// transitively via sasha-s/go-deadlock's goroutine-id tracking in the
// example pack) is reproduced here as an opt-in guard rather than a
// compile-time property.
//
// Guarded types call Bind on first use and Check on every subsequent
// use; Check panics on a different goroutine when built with the
// ferron_debug_threadguard build tag, and is a no-op otherwise so
// production builds pay nothing for the check.
package threadguard

import (
	"fmt"
	"sync/atomic"
)

// Guard records the identity of the goroutine that first touched a
// non-migratable handle.
type Guard struct {
	owner atomic.Uint64
	bound atomic.Bool
}

// Bind claims the guard for the calling goroutine. Subsequent calls from
// a different goroutine are a programming error.
func (g *Guard) Bind() {
	if !debugEnabled {
		return
	}
	id := goroutineID()
	if g.bound.CompareAndSwap(false, true) {
		g.owner.Store(id)
		return
	}
	g.Check()
}

// Check panics if called from a goroutine other than the one that called
// Bind, when the ferron_debug_threadguard build tag is set.
func (g *Guard) Check() {
	if !debugEnabled || !g.bound.Load() {
		return
	}
	id := goroutineID()
	if owner := g.owner.Load(); owner != id {
		panic(fmt.Sprintf("threadguard: IO handle used on goroutine %d, bound to %d", id, owner))
	}
}
