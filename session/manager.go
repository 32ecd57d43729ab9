package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/datatalk-ai/datatalk/memory"
	"github.com/datatalk-ai/datatalk/message"
	"github.com/datatalk-ai/datatalk/pkg/logging"
)

// DefaultMaxMessages caps a persisted transcript independent of the turn
// window, mirroring the working-context cap.
const DefaultMaxMessages = 100

// Manager coordinates thread histories on top of a memory.Store. Writes are
// serialized per thread identifier, so two turns for the same thread can
// never interleave their load-modify-save cycles even when the host runs
// threads concurrently.
type Manager struct {
	mu          sync.RWMutex
	store       memory.Store
	window      int // retained turns per thread
	maxMessages int // absolute transcript cap
	sessions    map[string]*Session
	locks       map[string]*sync.Mutex
	logger      *slog.Logger
}

// Option is a function that configures a Manager.
type Option func(*Manager)

// WithStore sets the history store for the manager.
func WithStore(s memory.Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithWindow sets the number of turns retained per thread.
func WithWindow(turns int) Option {
	return func(m *Manager) {
		if turns > 0 {
			m.window = turns
		}
	}
}

// WithMaxMessages sets the absolute transcript cap per thread.
func WithMaxMessages(max int) Option {
	return func(m *Manager) {
		if max > 0 {
			m.maxMessages = max
		}
	}
}

// WithLogger overrides the logger used by the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new session manager with the given options.
//
// Example:
//
//	mgr := session.NewManager(session.WithStore(store.NewInMemoryStore()))
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		window:      memory.DefaultWindow,
		maxMessages: DefaultMaxMessages,
		sessions:    make(map[string]*Session),
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.WithComponent("session_manager")
	}
	return m
}

// Window returns the configured turn window.
func (m *Manager) Window() int {
	return m.window
}

// Open returns the session metadata for a thread, creating it on first use
// and reactivating it when it was inactive.
func (m *Manager) Open(threadID string) (*Session, error) {
	if threadID == "" {
		return nil, fmt.Errorf("session: thread id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[threadID]
	if !ok {
		sess = NewSession(threadID)
		m.sessions[threadID] = sess
		m.logger.Info("session opened", "thread_id", threadID)
		return sess, nil
	}
	if sess.State == StateInactive {
		sess.SetState(StateActive)
	}
	return sess, nil
}

// Get returns session metadata if the thread is known to this manager.
func (m *Manager) Get(threadID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[threadID]
	return sess, ok
}

// History loads the persisted history for a thread. Unknown threads yield an
// empty history.
func (m *Manager) History(ctx context.Context, threadID string) (*memory.History, error) {
	if err := m.ensureStore(); err != nil {
		return nil, err
	}
	h, err := m.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("session: load history for thread %s: %w", threadID, err)
	}
	return h, nil
}

// Append adds messages to a thread's history, applying the turn window and
// the transcript cap before persisting. The write is serialized per thread.
func (m *Manager) Append(ctx context.Context, threadID string, msgs ...*message.Message) error {
	if err := m.ensureStore(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	lock := m.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	h, err := m.store.Load(ctx, threadID)
	if err != nil {
		return fmt.Errorf("session: load history for thread %s: %w", threadID, err)
	}

	h.Append(msgs...)
	h.TrimToTurns(m.window)
	h.TrimToSize(m.maxMessages)

	if err := m.store.Save(ctx, threadID, h); err != nil {
		return fmt.Errorf("session: save history for thread %s: %w", threadID, err)
	}

	m.touch(threadID)
	return nil
}

// Replace overwrites a thread's history wholesale, applying the same
// windowing as Append. Used by orchestrators that rebuild the transcript for
// a turn and persist the final result.
func (m *Manager) Replace(ctx context.Context, threadID string, h *memory.History) error {
	if err := m.ensureStore(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("session: history cannot be nil")
	}

	lock := m.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	trimmed := h.Clone()
	trimmed.TrimToTurns(m.window)
	trimmed.TrimToSize(m.maxMessages)

	if err := m.store.Save(ctx, threadID, trimmed); err != nil {
		return fmt.Errorf("session: save history for thread %s: %w", threadID, err)
	}

	m.touch(threadID)
	return nil
}

// Close marks a session closed. History stays persisted until Delete.
func (m *Manager) Close(threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[threadID]
	if !ok {
		return fmt.Errorf("session: thread %s not found", threadID)
	}
	sess.SetState(StateClosed)
	m.logger.Info("session closed", "thread_id", threadID)
	return nil
}

// Delete removes a thread's history and metadata.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	if err := m.ensureStore(); err != nil {
		return err
	}

	lock := m.lockFor(threadID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("session: delete history for thread %s: %w", threadID, err)
	}

	m.mu.Lock()
	delete(m.sessions, threadID)
	m.mu.Unlock()
	m.logger.Info("session deleted", "thread_id", threadID)
	return nil
}

// List returns all thread identifiers known to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	if err := m.ensureStore(); err != nil {
		return nil, err
	}
	return m.store.List(ctx)
}

// CleanupInactive marks sessions idle for longer than maxIdle as inactive and
// returns how many were transitioned.
func (m *Manager) CleanupInactive(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	transitioned := 0
	for _, sess := range m.sessions {
		if sess.State == StateActive && sess.UpdatedAt.Before(cutoff) {
			sess.SetState(StateInactive)
			transitioned++
		}
	}
	if transitioned > 0 {
		m.logger.Info("sessions marked inactive", "count", transitioned)
	}
	return transitioned
}

func (m *Manager) ensureStore() error {
	if m.store == nil {
		return fmt.Errorf("session: no store configured")
	}
	return nil
}

// lockFor returns the per-thread mutex, creating it on first use.
func (m *Manager) lockFor(threadID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[threadID] = lock
	}
	return lock
}

func (m *Manager) touch(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[threadID]; ok {
		sess.Touch()
	}
}
