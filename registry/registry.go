// Package registry tracks the pipeline agents available to the host and
// the sessions opened against them.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Agent describes one registered pipeline capability, such as the
// summarizer or the tracker sync engine.
type Agent struct {
	Name         string            `json:"name"`
	Endpoint     string            `json:"endpoint"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// Session is one unit of work attributed to an agent. Ended sessions are
// kept for audit, with Active flipped off.
type Session struct {
	ID        string     `json:"id"`
	AgentName string     `json:"agent_name"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// InMemoryRegistry manages agents and sessions in memory.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	sessions map[string]*Session
}

// New creates an empty InMemoryRegistry.
func New() *InMemoryRegistry {
	return &InMemoryRegistry{
		agents:   make(map[string]*Agent),
		sessions: make(map[string]*Session),
	}
}

// Register adds an agent to the registry.
// Returns an error if an agent with the same name is already registered.
func (r *InMemoryRegistry) Register(a *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.Name]; exists {
		return fmt.Errorf("agent %q already registered", a.Name)
	}
	if a.RegisteredAt.IsZero() {
		a.RegisteredAt = time.Now().UTC()
	}
	r.agents[a.Name] = a
	return nil
}

// Get returns an agent by name.
func (r *InMemoryRegistry) Get(name string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Discover returns all registered agents, sorted by name.
func (r *InMemoryRegistry) Discover() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Unregister removes an agent by name. Its past sessions remain.
func (r *InMemoryRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[name]; !exists {
		return fmt.Errorf("agent %q not found", name)
	}
	delete(r.agents, name)
	return nil
}

// CreateSession opens a new session for a registered agent.
func (r *InMemoryRegistry) CreateSession(agentName string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[agentName]; !exists {
		return nil, fmt.Errorf("agent %q not found", agentName)
	}
	s := &Session{
		ID:        uuid.New().String(),
		AgentName: agentName,
		Active:    true,
		StartedAt: time.Now().UTC(),
	}
	r.sessions[s.ID] = s
	return s, nil
}

// EndSession marks a session inactive. The session record is retained.
func (r *InMemoryRegistry) EndSession(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}
	if s.Active {
		now := time.Now().UTC()
		s.Active = false
		s.EndedAt = &now
	}
	return nil
}

// Session returns a session by ID, active or not.
func (r *InMemoryRegistry) Session(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Sessions returns every session for one agent, oldest first.
func (r *InMemoryRegistry) Sessions(agentName string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Session, 0)
	for _, s := range r.sessions {
		if s.AgentName == agentName {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.Before(result[j].StartedAt) })
	return result
}
