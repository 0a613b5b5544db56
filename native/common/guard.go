package common

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall is returned when a guarded entry point is invoked while
// another guarded call on the same module is still in flight.
var ErrReentrantCall = errors.New("reentrant call")

// ReentrancyGuard marks a module as busy for the duration of a mutating call.
// The zero value is ready to use. It does not queue callers: a second entry
// fails immediately, so hosts that run calls concurrently must serialise them.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Enter claims the guard. The returned release function must be called once
// the operation has committed or reverted.
func (g *ReentrancyGuard) Enter() (release func(), err error) {
	if g == nil {
		return func() {}, nil
	}
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.entered.Store(false) }, nil
}

// Busy reports whether a guarded call is in flight.
func (g *ReentrancyGuard) Busy() bool {
	if g == nil {
		return false
	}
	return g.entered.Load()
}
