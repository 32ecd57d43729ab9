// Package middleware defines the interception chain that wraps a role
// agent's generate step. Implementations live in the subpackages (logger,
// limiter, validator, errorhandler, enricher); this package holds the
// chain machinery and the shared execution context.
package middleware

import (
	"context"

	"github.com/datatalk-ai/datatalk/message"
)

// Context carries a single request through the chain. Middlewares may
// rewrite Input before the handler runs and inspect Response or Error
// after it returns. Metadata is a scratch space shared along the chain.
type Context struct {
	Input    string
	Messages []*message.Message
	Response *message.Message
	Error    error
	Metadata map[string]any

	context context.Context
}

// NewContext creates a middleware context bound to ctx.
func NewContext(ctx context.Context) *Context {
	return &Context{
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// Context returns the underlying context.Context.
func (c *Context) Context() context.Context {
	return c.context
}

// Middleware intercepts a request on its way to the final handler. An
// implementation calls next to continue the chain; not calling it, or
// returning an error, short-circuits the request.
type Middleware interface {
	// Name identifies the middleware in logs.
	Name() string
	// Execute runs the middleware around the rest of the chain.
	Execute(ctx *Context, next Handler) error
}

// Handler continues the chain with the (possibly modified) context.
type Handler func(*Context) error

// MiddlewareChain is an ordered list of middlewares executed around a
// final handler, outermost first.
type MiddlewareChain struct {
	middlewares []Middleware
}

// NewChain builds a chain from the given middlewares in order.
func NewChain(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{middlewares: middlewares}
}

// Add appends a middleware to the end of the chain.
func (c *MiddlewareChain) Add(m Middleware) *MiddlewareChain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// List returns a copy of the registered middlewares.
func (c *MiddlewareChain) List() []Middleware {
	return append([]Middleware(nil), c.middlewares...)
}

// Execute runs the chain around finalHandler. The handlers are composed
// right to left so the first registered middleware sees the request first.
func (c *MiddlewareChain) Execute(ctx *Context, finalHandler Handler) error {
	next := finalHandler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		m := c.middlewares[i]
		inner := next
		next = func(ctx *Context) error {
			return m.Execute(ctx, inner)
		}
	}
	return next(ctx)
}
