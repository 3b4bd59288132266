package session

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long an idle session survives before it is replaced or
// swept.
const DefaultTTL = 30 * time.Minute

// Manager owns the session table. Sessions are created on demand, replaced
// wholesale when they outlive the TTL, and periodically swept.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides the idle session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a session manager with the given options.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the live session for userID, replacing any expired one
// with a fresh session so stale history and booking progress never leak into
// a new conversation.
func (m *Manager) GetOrCreate(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if ok && time.Since(sess.LastActivity()) < m.ttl {
		return sess
	}
	if ok {
		sess.StopTimer()
		slog.Debug("Manager.GetOrCreate replacing expired session", "userID", userID)
	}
	sess = NewSession(userID)
	m.sessions[userID] = sess
	return sess
}

// Get returns the session for userID if one exists, expired or not.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	return sess, ok
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// UserIDs returns the IDs of all tracked sessions.
func (m *Manager) UserIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Sweep removes sessions idle past the TTL and returns how many were
// removed. Each candidate's turn lock is taken first so a sweep never races
// an in-flight reply turn for the same session.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	var expired []*Session
	for _, sess := range m.sessions {
		if time.Since(sess.LastActivity()) >= m.ttl {
			expired = append(expired, sess)
		}
	}
	m.mu.Unlock()

	removed := 0
	for _, sess := range expired {
		sess.LockTurn()
		m.mu.Lock()
		// Re-check under both locks; a message may have landed meanwhile.
		if current, ok := m.sessions[sess.UserID]; ok && current == sess &&
			time.Since(sess.LastActivity()) >= m.ttl {
			sess.StopTimer()
			delete(m.sessions, sess.UserID)
			removed++
		}
		m.mu.Unlock()
		sess.UnlockTurn()
	}

	if removed > 0 {
		slog.Info("Manager.Sweep removed expired sessions", "count", removed)
	}
	return removed
}
