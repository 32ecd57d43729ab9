package store

import (
	"context"
	"os"
	"testing"

	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/memory"
)

// TestMongoStore tests MongoDB store functionality
// Note: This test requires a running MongoDB server
// Set the MONGODB_URI environment variable to run tests against a real database
func TestMongoStore(t *testing.T) {
	// Skip test if not configured
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB store tests")
	}

	// Create a test store
	config := &MongoConfig{
		URI:        mongoURI,
		Database:   "datatalk_test",
		Collection: "threads_test",
	}

	store, err := NewMongoStore(config)
	if err != nil {
		t.Skipf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close(context.Background())

	// Clear any existing test data
	store.Clear(context.Background())

	t.Run("save and load history", func(t *testing.T) {
		ctx := context.Background()
		h := memory.NewHistory(
			message.NewMessage(message.RoleUser, "show me sales by region"),
			message.NewMessage(message.RoleManager, "Querying the sales table"),
		)

		if err := store.Save(ctx, "thread-1", h); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load(ctx, "thread-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Len() != 2 {
			t.Fatalf("Expected 2 messages, got %d", loaded.Len())
		}
		if loaded.Messages[1].Role != message.RoleManager {
			t.Errorf("Expected manager role preserved, got %s", loaded.Messages[1].Role)
		}
	})

	t.Run("load unknown thread returns empty history", func(t *testing.T) {
		ctx := context.Background()
		loaded, err := store.Load(ctx, "no-such-thread")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Len() != 0 {
			t.Errorf("Expected empty history, got %d messages", loaded.Len())
		}
	})

	t.Run("save overwrites prior history", func(t *testing.T) {
		ctx := context.Background()
		first := memory.NewHistory(message.NewMessage(message.RoleUser, "first"))
		second := memory.NewHistory(
			message.NewMessage(message.RoleUser, "first"),
			message.NewMessage(message.RoleAssistant, "reply"),
		)

		store.Save(ctx, "thread-2", first)
		store.Save(ctx, "thread-2", second)

		loaded, err := store.Load(ctx, "thread-2")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Len() != 2 {
			t.Errorf("Expected overwritten history with 2 messages, got %d", loaded.Len())
		}
	})

	t.Run("exists, count and delete", func(t *testing.T) {
		ctx := context.Background()
		store.Clear(ctx)

		store.Save(ctx, "thread-3", memory.NewHistory(message.NewMessage(message.RoleUser, "hello")))

		exists, err := store.Exists(ctx, "thread-3")
		if err != nil || !exists {
			t.Errorf("Expected thread-3 to exist, exists=%v err=%v", exists, err)
		}

		count, err := store.Count(ctx)
		if err != nil {
			t.Errorf("Count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected count 1, got %d", count)
		}

		if err := store.Delete(ctx, "thread-3"); err != nil {
			t.Errorf("Delete failed: %v", err)
		}
		exists, _ = store.Exists(ctx, "thread-3")
		if exists {
			t.Errorf("Expected thread-3 gone after delete")
		}
	})
}
