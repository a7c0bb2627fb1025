// Package session keeps the signed-in users of the trip view API. Sessions
// are persisted to a key-value Store so they survive restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/models"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrNotInitialized = errors.New("session manager not initialized")
)

const keyPrefix = "session:"

// Session is one signed-in user and the backend token issued to them.
type Session struct {
	ID        string      `json:"id"`
	Token     string      `json:"token"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"` // zero when the token carries no exp
}

// Expired reports whether the backend token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string]string, error)
}

// Manager owns every session. Initialize must be called once before use.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	clock    func() time.Time
	sessions map[string]*Session
	hooks    []func(*Session)

	initOnce sync.Once
	initErr  error
	ready    bool
}

// NewManager returns a manager persisting to store.
func NewManager(store Store, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{store: store, clock: clock, sessions: make(map[string]*Session)}
}

// Initialize loads persisted sessions, dropping expired or unreadable ones.
// Only the first call does any work.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.load(ctx)
		m.mu.Lock()
		m.ready = m.initErr == nil
		m.mu.Unlock()
	})
	return m.initErr
}

func (m *Manager) load(ctx context.Context) error {
	stored, err := m.store.List(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, raw := range stored {
		var s Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Expired(now) {
			if derr := m.store.Delete(ctx, key); derr != nil {
				log.WithError(derr).WithField("key", key).Warn("Failed to drop stale session")
			}
			continue
		}
		m.sessions[s.ID] = &s
	}
	log.WithField("sessions", len(m.sessions)).Info("Sessions restored")
	return nil
}

// OnInvalidate registers fn to run after a session ends.
func (m *Manager) OnInvalidate(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Open starts a session for user holding the backend token.
func (m *Manager) Open(ctx context.Context, token string, user models.User) (*Session, error) {
	if err := m.checkReady(); err != nil {
		return nil, err
	}
	s := &Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    user.ID.Hex(),
		Username:  user.Username,
		Name:      user.FullName(),
		Role:      user.Role,
		CreatedAt: m.clock(),
	}
	if exp, ok := TokenExpiry(token); ok {
		s.ExpiresAt = exp
	}
	if s.Expired(s.CreatedAt) {
		return nil, fmt.Errorf("open session: %w", ErrNoSession)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := m.store.Set(ctx, keyPrefix+s.ID, string(data)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Lookup returns a live session. Expired sessions are reported as
// ErrNoSession and ended.
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, error) {
	if err := m.checkReady(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	if s.Expired(m.clock()) {
		if err := m.Invalidate(ctx, id); err != nil && !errors.Is(err, ErrNoSession) {
			log.WithError(err).Warn("Failed to end expired session")
		}
		return nil, ErrNoSession
	}
	return s, nil
}

// Invalidate ends a session, removes it from the store and runs the
// registered hooks.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	if err := m.checkReady(); err != nil {
		return err
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	hooks := append(([]func(*Session))(nil), m.hooks...)
	m.mu.Unlock()
	if !ok {
		return ErrNoSession
	}

	err := m.store.Delete(ctx, keyPrefix+id)
	for _, fn := range hooks {
		fn(s)
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) checkReady() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return ErrNotInitialized
	}
	return nil
}

// TokenExpiry reads the exp claim of a JWT without verifying it. The
// backend verifies tokens; the view API only needs to know when to stop
// using one.
func TokenExpiry(token string) (time.Time, bool) {
	token = strings.TrimPrefix(token, "Bearer ")
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}
