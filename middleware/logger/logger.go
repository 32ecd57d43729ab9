// Package logger provides request/response logging middlewares. The sink is
// a plain func(string) so deployments can route lines to slog, a test
// buffer, or a chat event log.
package logger

import (
	"fmt"

	"github.com/datatalk-ai/datatalk/middleware"
)

// LoggerFunc receives one formatted log line.
type LoggerFunc func(string)

// RequestLogger records the user input entering the chain.
type RequestLogger struct {
	logger LoggerFunc
}

// NewRequestLogger creates a request logging middleware.
func NewRequestLogger(logger LoggerFunc) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// Name returns the middleware name.
func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

// Execute logs the input and continues the chain.
func (m *RequestLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.logger != nil {
		m.logger(fmt.Sprintf("[RequestLogger] Input: %s", ctx.Input))
	}
	return next(ctx)
}

// ResponseLogger records the response (or error) leaving the chain.
type ResponseLogger struct {
	logger LoggerFunc
}

// NewResponseLogger creates a response logging middleware.
func NewResponseLogger(logger LoggerFunc) *ResponseLogger {
	return &ResponseLogger{logger: logger}
}

// Name returns the middleware name.
func (m *ResponseLogger) Name() string {
	return "ResponseLogger"
}

// Execute runs the chain and then logs the outcome.
func (m *ResponseLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	err := next(ctx)
	if m.logger != nil {
		if ctx.Response != nil {
			m.logger(fmt.Sprintf("[ResponseLogger] Output: %s", ctx.Response.Content))
		} else if err != nil {
			m.logger(fmt.Sprintf("[ResponseLogger] Error: %v", err))
		}
	}
	return err
}
