// Package appstate holds the per-session state that handlers need about the
// calling user. It is loaded once per session and passed explicitly instead
// of living in package-level globals.
package appstate

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/myerscreative/doloop-sub000/internal/models"
	"github.com/myerscreative/doloop-sub000/internal/store"
)

// Session is the resolved state for one authenticated user.
type Session struct {
	UserID    string
	IsAdmin   bool
	ThemeVibe string
}

// Manager resolves and caches user sessions against the profile store.
type Manager struct {
	store  *store.Store
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(st *store.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		store:    st,
		logger:   logger.With().Str("component", "appstate").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Init resolves the session for a user, creating a profile row on first
// sight. The admin flag comes from the stored profile, never from the
// caller.
func (m *Manager) Init(userID string) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("init session: empty user id")
	}

	m.mu.RLock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	p, err := m.store.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if p == nil {
		p = &models.UserProfile{UserID: userID}
		if err := m.store.SaveProfile(p); err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
		m.logger.Info().Str("user_id", userID).Msg("profile created")
	}

	s := &Session{UserID: userID, IsAdmin: p.IsAdmin, ThemeVibe: p.ThemeVibe}

	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
	return s, nil
}

// SetThemeVibe persists the user's theme choice and updates the cached
// session.
func (m *Manager) SetThemeVibe(userID, vibe string) error {
	if err := m.store.SetThemeVibe(userID, vibe); err != nil {
		return err
	}
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		s.ThemeVibe = vibe
	}
	m.mu.Unlock()
	return nil
}

// Teardown drops a cached session, forcing the next Init to re-read the
// profile. Used on logout and after admin flag changes.
func (m *Manager) Teardown(userID string) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}
