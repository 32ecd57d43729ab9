package errorhandler

import (
	"errors"
	"testing"

	"github.com/datatalk-ai/datatalk/middleware"
)

func TestErrorHandlerSuppresses(t *testing.T) {
	var caught error
	h := NewErrorHandler(func(err error) error {
		caught = err
		return nil
	})

	err := h.Execute(&middleware.Context{}, func(c *middleware.Context) error {
		return errors.New("provider timeout")
	})

	if err != nil {
		t.Errorf("handler should have suppressed the error, got %v", err)
	}
	if caught == nil || caught.Error() != "provider timeout" {
		t.Errorf("handler saw %v", caught)
	}
}

func TestErrorHandlerTranslates(t *testing.T) {
	friendly := errors.New("the assistant is unavailable, please retry")
	h := NewErrorHandler(func(err error) error { return friendly })

	err := h.Execute(&middleware.Context{}, func(c *middleware.Context) error {
		return errors.New("rpc error: code = Unavailable")
	})

	if !errors.Is(err, friendly) {
		t.Errorf("expected translated error, got %v", err)
	}
}

func TestErrorHandlerIgnoresSuccess(t *testing.T) {
	called := false
	h := NewErrorHandler(func(err error) error {
		called = true
		return err
	})

	if err := h.Execute(&middleware.Context{}, func(c *middleware.Context) error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if called {
		t.Error("handler should not run on success")
	}
}
