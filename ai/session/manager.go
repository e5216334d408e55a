package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/lexisense/ai/legal"
)

// Session lifecycle constants.
const (
	cleanupCheckInterval = 1 * time.Minute // Interval between idle session cleanup checks
	defaultIdleTimeout   = 30 * time.Minute
)

// Snapshot is the persistable projection of a session's state: the
// current classification, facts, and nothing else. History and pooled
// agents are deliberately excluded, they are rebuilt on demand.
type Snapshot struct {
	Domain   legal.Domain   `json:"domain"`
	Intent   legal.Intent   `json:"intent"`
	Entities []legal.Entity `json:"entities"`
}

// PersistentStore persists session snapshots across restarts.
// Optional: a nil store disables persistence.
type PersistentStore interface {
	LoadSessionState(ctx context.Context, sessionID string) (*Snapshot, error)
	SaveSessionState(ctx context.Context, sessionID string, snap *Snapshot) error
}

// Manager owns all live sessions, creating state on first access and
// reaping sessions that sit idle past the timeout.
type Manager struct {
	sessions    map[string]*State
	mu          sync.RWMutex
	logger      *slog.Logger
	timeout     time.Duration // Idle timeout
	historySize int
	store       PersistentStore // optional
	done        chan struct{}   // Shutdown signal
	closeOnce   sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout overrides the default 30m idle timeout.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithHistorySize bounds per-session conversation history.
func WithHistorySize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.historySize = n
		}
	}
}

// WithStore enables snapshot persistence.
func WithStore(store PersistentStore) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// NewManager creates a session manager and starts its idle reaper.
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sessions: make(map[string]*State),
		logger:   logger,
		timeout:  defaultIdleTimeout,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.cleanupLoop()

	return m
}

// GetOrCreate returns the live state for sessionID, creating it on
// first access. When a store is configured, a miss first attempts to
// restore a persisted snapshot; restore failures are logged and the
// session starts fresh rather than failing the request.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.sessions[sessionID]; ok {
		return st
	}

	st := newState(sessionID, m.historySize)

	if m.store != nil {
		snap, err := m.store.LoadSessionState(ctx, sessionID)
		switch {
		case err != nil:
			m.logger.Warn("session: snapshot restore failed, starting fresh",
				"session_id", sessionID, "error", err)
		case snap != nil:
			st.Memory.SetClassification(snap.Domain, snap.Intent)
			st.Memory.MergeEntities(snap.Entities)
			m.logger.Info("session: restored from snapshot",
				"session_id", sessionID, "entities", len(snap.Entities))
		}
	}

	m.sessions[sessionID] = st
	return st
}

// Get retrieves a live session without creating one.
func (m *Manager) Get(sessionID string) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[sessionID]
	return st, ok
}

// Terminate persists and removes a session.
func (m *Manager) Terminate(ctx context.Context, sessionID string) {
	m.mu.Lock()
	st, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if ok {
		m.teardown(ctx, st)
	}
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// teardown persists the snapshot of an already-removed session.
// Never called under the manager lock: torn-down sessions are taken
// out of the map first, so waiting on an in-flight request here only
// delays this one session's persistence. Requests hold the session
// lock and may re-enter the manager (ActiveCount), so the manager
// lock must never be held while acquiring a session lock.
func (m *Manager) teardown(ctx context.Context, st *State) {
	m.logger.Info("Terminating session", "session_id", st.ID)

	if m.store == nil {
		return
	}

	st.Lock()
	snap := &Snapshot{
		Domain:   st.Memory.Domain,
		Intent:   st.Memory.Intent,
		Entities: st.Memory.Entities(),
	}
	st.Unlock()

	if err := m.store.SaveSessionState(ctx, st.ID, snap); err != nil {
		m.logger.Warn("session: snapshot save failed",
			"session_id", st.ID, "error", err)
	}
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdleSessions()
		case <-m.done:
			return
		}
	}
}

// cleanupIdleSessions removes sessions that have exceeded the idle
// timeout. Idle checks read the atomic last-active stamp, so the
// reaper never waits on in-flight requests while holding the manager
// lock; expired sessions are persisted after the lock is released.
func (m *Manager) cleanupIdleSessions() {
	now := time.Now()

	m.mu.Lock()
	var expired []*State
	for sessionID, st := range m.sessions {
		idleTime := now.Sub(st.LastActive())
		if idleTime > m.timeout {
			m.logger.Info("Session idle timeout, terminating",
				"session_id", sessionID,
				"idle_duration", idleTime,
				"timeout", m.timeout)
			delete(m.sessions, sessionID)
			expired = append(expired, st)
		}
	}
	m.mu.Unlock()

	for _, st := range expired {
		m.teardown(context.Background(), st)
	}
}

// Shutdown stops the reaper and tears down all sessions, persisting
// snapshots when a store is configured.
func (m *Manager) Shutdown(ctx context.Context) {
	m.closeOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	remaining := make([]*State, 0, len(m.sessions))
	for sessionID, st := range m.sessions {
		delete(m.sessions, sessionID)
		remaining = append(remaining, st)
	}
	m.mu.Unlock()

	for _, st := range remaining {
		m.teardown(ctx, st)
	}
}
