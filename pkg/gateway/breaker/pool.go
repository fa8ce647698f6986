package breaker

import (
	"sync"

	"myinfra-hq/smartgate/pkg/config"
)

// Pool holds one named breaker per project prefix, created lazily on
// first use. Breaker state is process-wide and survives configuration
// reloads; a reload only affects breakers for prefixes created after it.
type Pool struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewPool creates an empty breaker pool.
func NewPool() *Pool {
	return &Pool{breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for the given prefix, creating it from cfg on
// first use. A nil cfg applies the default settings.
func (p *Pool) Get(prefix string, cfg *config.CircuitBreakerConfig) *Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.breakers[prefix]; ok {
		return b
	}

	settings := Settings{
		Name:                   prefix,
		FailureRateThreshold:   config.DefaultBreakerFailureRateThreshold,
		SlidingWindowSize:      config.DefaultBreakerSlidingWindowSize,
		WaitDuration:           config.DefaultBreakerWaitDuration,
		HalfOpenPermittedCalls: config.DefaultBreakerHalfOpenCalls,
	}
	if cfg != nil {
		settings.FailureRateThreshold = cfg.FailureRateThreshold
		settings.SlidingWindowSize = cfg.SlidingWindowSize
		settings.WaitDuration = cfg.WaitDuration
		settings.HalfOpenPermittedCalls = cfg.PermittedNumberOfCallsInHalfOpenState
	}

	b := New(settings)
	p.breakers[prefix] = b
	return b
}

// Snapshot returns the current breakers keyed by prefix. The map is a
// copy; the breakers are shared.
func (p *Pool) Snapshot() map[string]*Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]*Breaker, len(p.breakers))
	for k, v := range p.breakers {
		out[k] = v
	}
	return out
}
