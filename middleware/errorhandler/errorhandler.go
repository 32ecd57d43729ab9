// Package errorhandler lets a deployment translate or suppress errors
// surfacing from an agent run, for example mapping provider failures to a
// user-facing "try again" message.
package errorhandler

import (
	"github.com/datatalk-ai/datatalk/middleware"
)

// ErrorHandlerFunc receives the downstream error and returns the error to
// propagate, or nil to swallow it.
type ErrorHandlerFunc func(error) error

// ErrorHandler intercepts errors from the rest of the chain.
type ErrorHandler struct {
	handler ErrorHandlerFunc
}

// NewErrorHandler creates an error handling middleware.
func NewErrorHandler(handler ErrorHandlerFunc) *ErrorHandler {
	return &ErrorHandler{handler: handler}
}

// Name returns the middleware name.
func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

// Execute runs the chain and hands any error to the handler.
func (m *ErrorHandler) Execute(ctx *middleware.Context, next middleware.Handler) error {
	err := next(ctx)
	if err != nil && m.handler != nil {
		return m.handler(err)
	}
	return err
}
