// Package validator guards the input and output of an agent run. Deployments
// use it to reject oversized or empty questions before they reach the manager
// agent and to scrub responses before they return to the user.
package validator

import (
	"fmt"
	"strings"

	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/middleware"
)

// ValidatorFunc checks a user input and returns an error to reject it.
type ValidatorFunc func(string) error

// FilterFunc inspects or rewrites a response message in place.
type FilterFunc func(*message.Message) error

// InputValidator rejects requests whose input fails validation.
type InputValidator struct {
	validator ValidatorFunc
}

// NewInputValidator creates an input validation middleware.
func NewInputValidator(validator ValidatorFunc) *InputValidator {
	return &InputValidator{validator: validator}
}

// Name returns the middleware name.
func (m *InputValidator) Name() string {
	return "InputValidator"
}

// Execute validates the input before passing control on.
func (m *InputValidator) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if m.validator != nil {
		if err := m.validator(ctx.Input); err != nil {
			return err
		}
	}
	return next(ctx)
}

// NonEmpty rejects blank input.
func NonEmpty() ValidatorFunc {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return fmt.Errorf("input cannot be empty")
		}
		return nil
	}
}

// MaxLength rejects input longer than n bytes.
func MaxLength(n int) ValidatorFunc {
	return func(input string) error {
		if len(input) > n {
			return fmt.Errorf("input exceeds %d bytes", n)
		}
		return nil
	}
}

// ResponseFilter applies a filter to the response after the run completes.
type ResponseFilter struct {
	filter FilterFunc
}

// NewResponseFilter creates a response filtering middleware.
func NewResponseFilter(filter FilterFunc) *ResponseFilter {
	return &ResponseFilter{filter: filter}
}

// Name returns the middleware name.
func (m *ResponseFilter) Name() string {
	return "ResponseFilter"
}

// Execute runs the chain and then filters the response, if any.
func (m *ResponseFilter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	err := next(ctx)
	if err != nil {
		return err
	}
	if ctx.Response != nil && m.filter != nil {
		return m.filter(ctx.Response)
	}
	return nil
}
