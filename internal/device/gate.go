package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Gate wakes every blocked consumer when a frame is submitted.
// Waiters sleep on the current generation channel; Broadcast closes it and
// installs a fresh one.
type Gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Broadcast wakes all current waiters. It never blocks.
func (g *Gate) Broadcast() {
	g.mu.Lock()
	close(g.ch)
	g.ch = make(chan struct{})
	g.mu.Unlock()
}

// Wait blocks until the next Broadcast, the bound elapses, or ctx is done.
// It reports whether it was woken by a Broadcast.
func (g *Gate) Wait(ctx context.Context, bound time.Duration) (bool, error) {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	timer := time.NewTimer(bound)
	defer timer.Stop()

	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Cursor records the last sequence handed to a consumer.
type Cursor struct {
	delivered atomic.Uint32
}

// Delivered returns the last delivered sequence.
func (c *Cursor) Delivered() uint32 {
	return c.delivered.Load()
}

// claim marks seq delivered and reports whether it differs from the
// previously delivered sequence.
func (c *Cursor) claim(seq uint32) bool {
	return c.delivered.Swap(seq) != seq
}

// Readiness is the result of a readiness poll.
type Readiness struct {
	Readable bool `json:"readable"`
	Writable bool `json:"writable"`
}
