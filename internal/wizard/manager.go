package wizard

import (
	"context"
	"sync"
	"time"

	"course-builder/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ManagerOptions tunes the in-memory session registry.
type ManagerOptions struct {
	// SessionTTL is the idle period after which a session is evicted.
	SessionTTL time.Duration
	// SweepInterval is how often idle sessions are collected.
	SweepInterval time.Duration
}

// Manager is the in-memory registry of live wizard sessions, keyed by
// session ID. Idle sessions are closed and evicted by a background sweep;
// their drafts stay resumable through LoadDraft.
type Manager struct {
	deps   SessionDeps
	opts   ManagerOptions
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	stopOnce sync.Once
	stop     chan struct{}
}

// NewManager creates the registry and starts its sweep loop.
func NewManager(deps SessionDeps, opts ManagerOptions, logger *zap.Logger) *Manager {
	m := &Manager{
		deps:     deps,
		opts:     opts,
		logger:   logger.Named("SessionManager"),
		sessions: make(map[uuid.UUID]*Session),
		stop:     make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Create registers a fresh session for the given owner.
func (m *Manager) Create(ownerID uuid.UUID) *Session {
	session := NewSession(ownerID, m.deps)
	m.mu.Lock()
	m.sessions[session.ID()] = session
	count := len(m.sessions)
	m.mu.Unlock()
	m.logger.Info("Session created",
		zap.String("sessionID", session.ID().String()),
		zap.String("ownerID", ownerID.String()),
		zap.Int("activeSessions", count))
	return session
}

// Get returns the live session with the given ID.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return session, nil
}

// Close tears down one session and removes it from the registry.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return models.ErrNotFound
	}
	return session.Close(ctx)
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweep() {
	cutoff := time.Now().UTC().Add(-m.opts.SessionTTL)

	m.mu.Lock()
	var idle []*Session
	for id, session := range m.sessions {
		if session.LastActivity().Before(cutoff) {
			idle = append(idle, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range idle {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := session.Close(ctx); err != nil {
			m.logger.Warn("Failed to close idle session", zap.String("sessionID", session.ID().String()), zap.Error(err))
		} else {
			m.logger.Info("Idle session evicted", zap.String("sessionID", session.ID().String()))
		}
		cancel()
	}
}

// Shutdown stops the sweep loop and closes every live session, flushing
// their drafts.
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		if err := session.Close(ctx); err != nil {
			m.logger.Warn("Failed to close session during shutdown", zap.String("sessionID", session.ID().String()), zap.Error(err))
		}
	}
	m.logger.Info("Session manager stopped", zap.Int("closedSessions", len(sessions)))
}
