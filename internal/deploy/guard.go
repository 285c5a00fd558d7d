package deploy

import (
	"sync"

	"github.com/google/uuid"
)

// Guard tracks the one live flow of a session. Results of superseded or
// cancelled flows are dropped instead of applied.
type Guard struct {
	mu     sync.Mutex
	active uuid.UUID
}

// Begin starts a new flow and makes it the live one.
func (g *Guard) Begin() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = uuid.New()
	return g.active
}

// Cancel invalidates the live flow, e.g. when the user navigates away.
func (g *Guard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active = uuid.Nil
}

// Alive reports whether id is still the live flow.
func (g *Guard) Alive(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return id != uuid.Nil && g.active == id
}

// Apply runs fn only while id is the live flow. fn runs under the guard's
// lock so a concurrent Begin or Cancel cannot interleave with it.
func (g *Guard) Apply(id uuid.UUID, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id == uuid.Nil || g.active != id {
		return false
	}
	fn()
	return true
}
