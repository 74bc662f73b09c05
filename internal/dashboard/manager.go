package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/metrics"
	"stealthcompany.com/holdmed/internal/store"
)

const (
	DefaultSessionIdleTimeout = 30 * time.Minute
	reapInterval              = 1 * time.Minute
)

// ManagerOptions tunes session lifecycles.
type ManagerOptions struct {
	InsightTimeout time.Duration
	IdleTimeout    time.Duration
}

// Manager keeps the open dashboard sessions, one goroutine each, and closes
// those that have been idle for longer than IdleTimeout.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store    store.Store
	assessor Assessor
	opts     ManagerOptions
}

// NewManager creates a session manager reading rosters from st.
func NewManager(st store.Store, assessor Assessor, opts ManagerOptions) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultSessionIdleTimeout
	}
	if opts.InsightTimeout <= 0 {
		opts.InsightTimeout = DefaultInsightTimeout
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    st,
		assessor: assessor,
		opts:     opts,
	}
}

// Create opens a session for owner over the current roster.
func (m *Manager) Create(ctx context.Context, owner string) (*Session, error) {
	roster, err := m.store.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	s := NewSession(uuid.NewString(), owner, roster, m.assessor, m.opts.InsightTimeout)

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.SetActiveSessions(count)
	return s, nil
}

// Get returns the session id if it belongs to owner.
func (m *Manager) Get(id, owner string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	if s.Owner != owner {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionForbidden)
	}
	return s, nil
}

// Close closes and forgets the session id if it belongs to owner.
func (m *Manager) Close(id, owner string) error {
	s, err := m.Get(id, owner)
	if err != nil {
		return err
	}
	m.remove(s)
	return nil
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes sessions idle since before now-IdleTimeout and returns how many were closed.
func (m *Manager) Reap(now time.Time) int {
	m.mu.RLock()
	var idle []*Session
	for _, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.opts.IdleTimeout {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range idle {
		log.Info().
			Str("session", s.ID).
			Str("owner", s.Owner).
			Msg("Dashboard session going cold due to inactivity")
		m.remove(s)
	}
	return len(idle)
}

// Run reaps idle sessions until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			return
		case now := <-ticker.C:
			m.Reap(now)
		}
	}
}

// Shutdown closes all sessions.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	metrics.SetActiveSessions(0)
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	count := len(m.sessions)
	m.mu.Unlock()

	s.Close()
	metrics.SetActiveSessions(count)
}
