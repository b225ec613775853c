package output

import "sync"

// Gate is a blocking on/off signal. Waiters pass while it is open and block
// while it is closed.
type Gate struct {
	mu   sync.Mutex
	open bool
	wake chan struct{}
}

// NewGate returns a gate in the given state.
func NewGate(open bool) *Gate {
	g := &Gate{open: open, wake: make(chan struct{})}
	if open {
		close(g.wake)
	}
	return g
}

// Open releases current and future waiters.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		g.open = true
		close(g.wake)
	}
}

// Close makes future waiters block.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		g.open = false
		g.wake = make(chan struct{})
	}
}

// IsOpen reports the gate state.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Wait blocks until the gate is open or quit is closed. It returns false
// when quit fired first.
func (g *Gate) Wait(quit <-chan struct{}) bool {
	g.mu.Lock()
	wake := g.wake
	g.mu.Unlock()

	select {
	case <-wake:
		return true
	case <-quit:
		return false
	}
}
