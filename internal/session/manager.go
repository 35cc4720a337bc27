// Package session provides server-held, token-addressed session state with
// inactivity-based expiry.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/namewise/internal/domain"
	"github.com/google/uuid"
)

// Session holds one client's flow state for the lifetime of its token.
// Mutating accessors serialize through the session's own mutex so two
// concurrent requests on one session cannot interleave a read-modify-write.
type Session struct {
	Token      string
	CreatedAt  time.Time
	lastSeenAt time.Time

	mu       sync.Mutex
	email    string
	verified bool
	flow     domain.FlowState
	domain   string
	history  []domain.Message
}

// Lock acquires the session mutex for a multi-step read-modify-write.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// Email returns the session-bound email. Callers must hold the lock.
func (s *Session) Email() string { return s.email }

// Verified reports whether the session passed OTP verification.
// Callers must hold the lock.
func (s *Session) Verified() bool { return s.verified }

// Flow returns the current flow state. Callers must hold the lock.
func (s *Session) Flow() domain.FlowState { return s.flow }

// Domain returns the domain bound by the last suggestion call.
// Callers must hold the lock.
func (s *Session) Domain() string { return s.domain }

// History returns the accumulated conversation turns. Callers must hold the
// lock and must not retain the slice past it.
func (s *Session) History() []domain.Message { return s.history }

// BindEmail re-binds the session to an email and resets the flow: a fresh
// check-email always restarts verification and discards prior conversation.
// Callers must hold the lock.
func (s *Session) BindEmail(email string) {
	s.email = email
	s.verified = false
	s.flow = domain.StateAwaitingOTP
	s.domain = ""
	s.history = nil
}

// MarkVerified flags the session as OTP-verified and advances the flow.
// Callers must hold the lock.
func (s *Session) MarkVerified() {
	s.verified = true
	s.flow = domain.StateAwaitingDomain
}

// SetFlow advances the flow state. Callers must hold the lock.
func (s *Session) SetFlow(state domain.FlowState) { s.flow = state }

// SetDomain records the domain the user asked suggestions for.
// Callers must hold the lock.
func (s *Session) SetDomain(d string) { s.domain = d }

// Append adds conversation turns to the session history.
// Callers must hold the lock.
func (s *Session) Append(msgs ...domain.Message) {
	s.history = append(s.history, msgs...)
}

// Manager tracks live sessions keyed by opaque token. Sessions expire after
// a fixed inactivity window; expiry is lazy on access, with a background
// reaper sweeping abandoned entries.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewManager creates a session manager with the given inactivity TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new session under a fresh random token.
func (m *Manager) Create() *Session {
	now := time.Now()
	s := &Session{
		Token:      uuid.NewString(),
		CreatedAt:  now,
		lastSeenAt: now,
		flow:       domain.StateUnauthenticated,
	}

	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()

	return s
}

// Get returns the session for a token, sliding its inactivity window.
// Returns nil if the token is unknown or the session expired.
func (m *Manager) Get(token string) *Session {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil
	}
	if now.Sub(s.lastSeenAt) >= m.ttl {
		delete(m.sessions, token)
		return nil
	}
	s.lastSeenAt = now
	return s
}

// Delete removes a session.
func (m *Manager) Delete(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// Len returns the number of tracked sessions, expired or not.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions past the inactivity window and returns the count.
func (m *Manager) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for token, s := range m.sessions {
		if now.Sub(s.lastSeenAt) >= m.ttl {
			delete(m.sessions, token)
			evicted++
		}
	}
	return evicted
}

// StartReaper runs a background goroutine that periodically sweeps expired
// sessions and prunes stale OTP rows from the repository.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration, cleanup func(context.Context) (int64, error)) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", interval, "ttl", m.ttl)

		for {
			select {
			case <-ticker.C:
				if evicted := m.Sweep(); evicted > 0 {
					slog.Info("Session reaper evicted expired sessions", "count", evicted)
				}
				if cleanup != nil {
					if deleted, err := cleanup(ctx); err != nil {
						slog.Error("Session reaper failed to prune OTP records", "error", err)
					} else if deleted > 0 {
						slog.Info("Session reaper pruned stale OTP records", "count", deleted)
					}
				}
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
