package enricher

import (
	"errors"
	"testing"

	"github.com/datatalk-ai/datatalk/middleware"
)

func TestContextEnricherAddsMetadata(t *testing.T) {
	e := NewContextEnricher(func(ctx *middleware.Context) error {
		ctx.Metadata["thread_id"] = "analyst-42"
		ctx.Metadata["database"] = "sales_db"
		return nil
	})

	ctx := &middleware.Context{Metadata: map[string]any{}}
	var seen any
	err := e.Execute(ctx, func(c *middleware.Context) error {
		seen = c.Metadata["database"]
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "sales_db" {
		t.Errorf("handler saw database %v", seen)
	}
	if ctx.Metadata["thread_id"] != "analyst-42" {
		t.Error("thread_id not enriched")
	}
}

func TestContextEnricherErrorStopsChain(t *testing.T) {
	e := NewContextEnricher(func(ctx *middleware.Context) error {
		return errors.New("enrichment failed")
	})

	handlerRan := false
	err := e.Execute(&middleware.Context{Metadata: map[string]any{}}, func(c *middleware.Context) error {
		handlerRan = true
		return nil
	})

	if err == nil {
		t.Error("expected error from enricher")
	}
	if handlerRan {
		t.Error("handler should not run after enrichment failure")
	}
}

func TestContextEnricherNilFunc(t *testing.T) {
	e := NewContextEnricher(nil)
	if err := e.Execute(&middleware.Context{Metadata: map[string]any{}}, func(c *middleware.Context) error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
