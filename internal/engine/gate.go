package engine

import "sync"

// gate carries the pause and cancel flags for one download. Fetchers
// block on wait instead of spinning while paused.
type gate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	paused   bool
	canceled bool
	released bool
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *gate) pause() {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
}

func (g *gate) resume() {
	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *gate) cancel() {
	g.mu.Lock()
	g.canceled = true
	g.paused = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

// release unblocks waiters without marking the download canceled, so a
// paused transfer can observe shutdown.
func (g *gate) release() {
	g.mu.Lock()
	g.released = true
	g.mu.Unlock()
	g.cond.Broadcast()
}

// wait blocks while the gate is paused and returns errCanceled once
// cancellation or shutdown release has been requested.
func (g *gate) wait() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused && !g.canceled && !g.released {
		g.cond.Wait()
	}
	if g.canceled || g.released {
		return errCanceled
	}
	return nil
}

func (g *gate) pausedNow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func (g *gate) canceledNow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canceled
}
