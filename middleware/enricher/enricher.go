// Package enricher injects request-scoped data into the middleware context
// before the agent runs, such as the thread id or the active database name.
package enricher

import (
	"github.com/datatalk-ai/datatalk/middleware"
)

// EnricherFunc mutates the context before the chain continues.
type EnricherFunc func(*middleware.Context) error

// ContextEnricher runs an enrichment step ahead of the agent.
type ContextEnricher struct {
	enricher EnricherFunc
}

// NewContextEnricher creates a context enriching middleware.
func NewContextEnricher(enricher EnricherFunc) *ContextEnricher {
	return &ContextEnricher{enricher: enricher}
}

// Name returns the middleware name.
func (m *ContextEnricher) Name() string {
	return "ContextEnricher"
}

// Execute enriches the context, then continues the chain.
func (m *ContextEnricher) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.enricher != nil {
		if err := m.enricher(ctx); err != nil {
			return err
		}
	}
	return next(ctx)
}
