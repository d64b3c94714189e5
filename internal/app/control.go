package app

import (
	"errors"
	"sync/atomic"
)

var ErrBusy = errors.New("a request is already in progress")

// Control is one triggering widget. It allows a single in-flight request;
// triggers while busy are dropped.
type Control struct {
	busy atomic.Bool
}

func (c *Control) Busy() bool {
	return c.busy.Load()
}

func (c *Control) Run(fn func() error) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)
	return fn()
}
