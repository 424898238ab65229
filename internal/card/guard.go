package card

import "sync"

// Guard tracks entities with a play sequence in flight. Cards sharing a
// Guard refuse overlapping plays on the same entity.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]bool
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{inflight: map[string]bool{}}
}

// Acquire marks entity busy. It reports false if it already was.
func (g *Guard) Acquire(entity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[entity] {
		return false
	}
	g.inflight[entity] = true
	return true
}

// Release frees entity.
func (g *Guard) Release(entity string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, entity)
}

// Busy reports whether entity is held.
func (g *Guard) Busy(entity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight[entity]
}
