package session

import (
	"sync"
)

// Factory builds the per-session VAD state for a new session.
type Factory func(id string) *State

// Registry owns every active session, keyed by connection identifier.
// Creation is lazy and first-writer-wins; removal cancels the session's
// in-flight background work.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*State
	factory  Factory
}

// NewRegistry creates an empty registry using factory for lazy creation.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*State),
		factory:  factory,
	}
}

// GetOrCreate returns the session for id, creating it on first use. When two
// callers race on the same id the first stored state wins and both receive it.
func (r *Registry) GetOrCreate(id string) *State {
	r.mu.RLock()
	state, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return state
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.sessions[id]; ok {
		return state
	}
	state = r.factory(id)
	r.sessions[id] = state
	return state
}

// Remove detaches the session for id and cancels its in-flight work.
// Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	state, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		state.Close()
	}
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session; used at server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	states := make([]*State, 0, len(r.sessions))
	for id, state := range r.sessions {
		states = append(states, state)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, state := range states {
		state.Close()
	}
}
