package wizard

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the live wizards by id. Abandoned wizards are removed when
// reset or completed; the registry itself carries no persistence.
type Registry struct {
	mu      sync.RWMutex
	wizards map[uuid.UUID]*Wizard
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{wizards: make(map[uuid.UUID]*Wizard)}
}

// Create starts a new wizard and registers it.
func (r *Registry) Create() *Wizard {
	w := New()
	r.mu.Lock()
	r.wizards[w.ID()] = w
	r.mu.Unlock()
	return w
}

// Adopt registers a wizard rebuilt from a persisted snapshot under its
// original id. Used on the gateway return leg when the live wizard is gone.
func (r *Registry) Adopt(id uuid.UUID) *Wizard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wizards[id]; ok {
		return w
	}
	w := &Wizard{id: id, step: StepIdentity}
	r.wizards[id] = w
	return w
}

// Get looks up a wizard by id.
func (r *Registry) Get(id uuid.UUID) (*Wizard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wizards[id]
	return w, ok
}

// Remove discards a wizard.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.wizards, id)
	r.mu.Unlock()
}
