package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/datatalk-ai/datatalk/memory"
	"github.com/datatalk-ai/datatalk/message"
)

// PostgresStore persists thread histories in a single threads table, one
// row per thread with the transcript stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultPostgresConfig returns settings for a local PostgreSQL.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "datatalk",
		SSLMode:  "disable",
	}
}

func (c *PostgresConfig) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NewPostgresStore connects to PostgreSQL, verifies the connection, and
// ensures the threads table exists.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", config.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS threads (
		thread_id VARCHAR(255) PRIMARY KEY,
		messages JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_threads_updated_at ON threads(updated_at);
	`)
	return err
}

// Load returns the history for a thread, or an empty history when unknown.
func (s *PostgresStore) Load(ctx context.Context, threadID string) (*memory.History, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id cannot be empty")
	}

	var messagesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages FROM threads WHERE thread_id = $1`, threadID).Scan(&messagesJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return memory.NewHistory(), nil
		}
		return nil, fmt.Errorf("failed to load thread history: %w", err)
	}

	var msgs []*message.Message
	if err := json.Unmarshal([]byte(messagesJSON), &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread history: %w", err)
	}
	return memory.NewHistory(msgs...), nil
}

// Save upserts the history for a thread.
func (s *PostgresStore) Save(ctx context.Context, threadID string, h *memory.History) error {
	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("history cannot be nil")
	}

	data, err := json.Marshal(h.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal thread history: %w", err)
	}

	now := time.Now()
	query := `
	INSERT INTO threads (thread_id, messages, created_at, updated_at)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (thread_id)
	DO UPDATE SET messages = EXCLUDED.messages, updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, threadID, string(data), now); err != nil {
		return fmt.Errorf("failed to save thread history: %w", err)
	}

	return nil
}

// Delete removes a thread's history.
func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("failed to delete thread history: %w", err)
	}
	return nil
}

// List returns all stored thread identifiers, most recently updated first.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return ids, nil
}

// Count returns the number of stored threads.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threads`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}
	return count, nil
}

// Exists reports whether a thread has persisted history.
func (s *PostgresStore) Exists(ctx context.Context, threadID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM threads WHERE thread_id = $1)`, threadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check thread existence: %w", err)
	}
	return exists, nil
}

// Clear removes every stored thread history.
func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM threads`)
	if err != nil {
		return fmt.Errorf("failed to clear threads: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
