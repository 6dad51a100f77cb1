package orchestrator

import (
	"sync"
)

// listenerRegistry holds at most one caller listener per request id
type listenerRegistry struct {
	mu        sync.RWMutex
	listeners map[string]StatusListener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		listeners: make(map[string]StatusListener),
	}
}

func (r *listenerRegistry) register(requestID string, listener StatusListener) {
	if listener == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[requestID] = listener
}

func (r *listenerRegistry) get(requestID string) (StatusListener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listeners[requestID]
	return l, ok
}

// remove reports whether a listener was actually removed
func (r *listenerRegistry) remove(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[requestID]; !ok {
		return false
	}
	delete(r.listeners, requestID)
	return true
}

func (r *listenerRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
