package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level is the coarse health of a provider derived from its breaker.
type Level string

// Health levels.
const (
	LevelHealthy   Level = "healthy"
	LevelDegraded  Level = "degraded"
	LevelUnhealthy Level = "unhealthy"
)

// ProviderHealth is a point-in-time view of one provider client.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State

	// Counts are the breaker's counters for its current generation.
	Counts gobreaker.Counts

	// Successes and Failures count whole calls since registration,
	// retries included in a single call.
	Successes uint64
	Failures  uint64

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Level maps the breaker state: closed is healthy, half-open degraded and
// open unhealthy.
func (h ProviderHealth) Level() Level {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return LevelUnhealthy
	case gobreaker.StateHalfOpen:
		return LevelDegraded
	default:
		return LevelHealthy
	}
}

// Registry tracks the provider clients of one process.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registeredProvider
	now       func() time.Time
}

type registeredProvider struct {
	client        *Client
	successes     uint64
	failures      uint64
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*registeredProvider),
		now:       time.Now,
	}
}

// Register adds client under name, replacing any previous client and its
// history.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &registeredProvider{client: client}
}

// RecordSuccess notes a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now()
		p.successes++
		p.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed call and keeps its error message.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now()
		p.failures++
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
	}
}

// GetHealth returns the health of name, or nil if it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil
	}
	h := p.health(name)
	return &h
}

// Snapshot returns the health of every provider sorted by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Overall is the worst level across providers. An empty registry is healthy.
func (r *Registry) Overall() Level {
	overall := LevelHealthy
	for _, h := range r.Snapshot() {
		switch h.Level() {
		case LevelUnhealthy:
			return LevelUnhealthy
		case LevelDegraded:
			overall = LevelDegraded
		}
	}
	return overall
}

func (p *registeredProvider) health(name string) ProviderHealth {
	return ProviderHealth{
		Name:          name,
		CircuitState:  p.client.CircuitBreakerState(),
		Counts:        p.client.CircuitBreakerCounts(),
		Successes:     p.successes,
		Failures:      p.failures,
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}
