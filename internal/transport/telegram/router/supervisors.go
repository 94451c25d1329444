package router

import (
	"sync"

	rtsup "cinebot/internal/runtime/supervisor"
)

// SupervisorRegistry is a thread-safe name -> supervisor map for /status.
type SupervisorRegistry struct {
	mu sync.RWMutex
	m  map[string]*rtsup.Supervisor
}

func NewSupervisorRegistry() *SupervisorRegistry {
	return &SupervisorRegistry{m: map[string]*rtsup.Supervisor{}}
}

// Set registers or replaces sup under name. A nil sup deletes.
func (r *SupervisorRegistry) Set(name string, sup *rtsup.Supervisor) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sup == nil {
		delete(r.m, name)
		return
	}
	r.m[name] = sup
}

func (r *SupervisorRegistry) Delete(name string) { r.Set(name, nil) }

// Counters snapshots every registered supervisor.
func (r *SupervisorRegistry) Counters() map[string]rtsup.Counters {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]rtsup.Counters, len(r.m))
	for k, v := range r.m {
		out[k] = v.Counters()
	}
	return out
}
