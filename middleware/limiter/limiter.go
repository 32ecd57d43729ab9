// Package limiter caps the number of agent runs served through a chain.
// The counter is cumulative; call Reset on whatever schedule the
// deployment's quota uses.
package limiter

import (
	"errors"
	"sync"

	"github.com/datatalk-ai/datatalk/middleware"
)

// ErrRateLimitExceeded is returned once the request budget is spent.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter rejects requests beyond a fixed budget.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	counter     int
}

// NewRateLimiter creates a limiter allowing maxRequests runs.
func NewRateLimiter(maxRequests int) *RateLimiter {
	return &RateLimiter{maxRequests: maxRequests}
}

// Name returns the middleware name.
func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute consumes one request from the budget or rejects the run.
func (m *RateLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	m.mu.Lock()
	if m.counter >= m.maxRequests {
		m.mu.Unlock()
		return ErrRateLimitExceeded
	}
	m.counter++
	m.mu.Unlock()
	return next(ctx)
}

// Reset restores the full budget.
func (m *RateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter = 0
}

// GetCounter returns the number of requests consumed so far.
func (m *RateLimiter) GetCounter() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}
