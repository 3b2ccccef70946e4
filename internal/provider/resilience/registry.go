package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Condition summarizes a provider's breaker state for health endpoints.
type Condition string

const (
	ConditionHealthy   Condition = "healthy"
	ConditionDegraded  Condition = "degraded"
	ConditionUnhealthy Condition = "unhealthy"
)

func conditionOf(state gobreaker.State) Condition {
	switch state {
	case gobreaker.StateOpen:
		return ConditionUnhealthy
	case gobreaker.StateHalfOpen:
		return ConditionDegraded
	default:
		return ConditionHealthy
	}
}

func (c Condition) rank() int {
	switch c {
	case ConditionUnhealthy:
		return 2
	case ConditionDegraded:
		return 1
	default:
		return 0
	}
}

// ProviderHealth is a point-in-time view of one upstream data provider.
// Zero timestamps mean the event has not happened since startup.
type ProviderHealth struct {
	Name          string
	State         gobreaker.State
	Condition     Condition
	Counts        gobreaker.Counts
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Registry tracks the station data providers a process talks to, so the
// status endpoints can report them without holding the clients.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	client      *Client
	lastSuccess time.Time
	lastFailure time.Time
	lastErr     string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds client under name, replacing any previous entry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{client: client}
}

// RecordSuccess notes a successful fetch. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.lastSuccess = time.Now()
	}
}

// RecordFailure notes a failed fetch and keeps err's message.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.lastFailure = time.Now()
	if err != nil {
		e.lastErr = err.Error()
	}
}

// Health reports the provider registered under name.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return e.health(name), true
}

// Snapshot reports every registered provider, sorted by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Condition is the worst condition across providers; an empty registry is healthy.
func (r *Registry) Condition() Condition {
	worst := ConditionHealthy
	for _, h := range r.Snapshot() {
		if h.Condition.rank() > worst.rank() {
			worst = h.Condition
		}
	}
	return worst
}

func (e *entry) health(name string) ProviderHealth {
	state := e.client.CircuitBreakerState()
	return ProviderHealth{
		Name:          name,
		State:         state,
		Condition:     conditionOf(state),
		Counts:        e.client.CircuitBreakerCounts(),
		LastSuccessAt: e.lastSuccess,
		LastFailureAt: e.lastFailure,
		LastError:     e.lastErr,
	}
}
