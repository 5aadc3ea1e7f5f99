package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Registry resolves per-agent store handles.
type Registry interface {
	Agent(agentID string) Store
	AgentIDs(ctx context.Context) ([]string, error)
}

// InMemRegistry hands out InMemStores, creating one per agent on first
// use. It is the degraded-mode registry when the durable backend is
// unavailable.
type InMemRegistry struct {
	mu      sync.Mutex
	stores  map[string]*InMemStore
	scoring ScoreConfig
	now     func() time.Time
}

// NewInMemRegistry creates an empty registry.
func NewInMemRegistry(cfg ScoreConfig, now func() time.Time) *InMemRegistry {
	if now == nil {
		now = time.Now
	}
	return &InMemRegistry{
		stores:  make(map[string]*InMemStore),
		scoring: cfg,
		now:     now,
	}
}

// Agent returns the agent's store, creating it if needed.
func (r *InMemRegistry) Agent(agentID string) Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stores[agentID]
	if !ok {
		st = NewInMemStore(r.scoring, r.now)
		r.stores[agentID] = st
	}
	return st
}

// AgentIDs lists agents with at least one record.
func (r *InMemRegistry) AgentIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, st := range r.stores {
		if st.Len() > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
