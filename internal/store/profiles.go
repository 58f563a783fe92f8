package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// SaveProfile inserts or replaces a user profile.
func (s *Store) SaveProfile(p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO user_profiles (user_id, email, is_admin, theme_vibe, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.UserID, p.Email, p.IsAdmin, p.ThemeVibe, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a user profile. Returns nil when not found.
func (s *Store) GetProfile(userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &models.UserProfile{}
	err := s.db.QueryRow(
		`SELECT user_id, email, is_admin, theme_vibe, created_at FROM user_profiles WHERE user_id = ?`,
		userID).Scan(&p.UserID, &p.Email, &p.IsAdmin, &p.ThemeVibe, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// SetThemeVibe updates the stored theme for a user, creating the profile row
// if needed.
func (s *Store) SetThemeVibe(userID, vibe string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	_, err := s.db.Exec(
		`INSERT INTO user_profiles (user_id, theme_vibe, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET theme_vibe = excluded.theme_vibe`,
		userID, vibe, now)
	if err != nil {
		return fmt.Errorf("failed to set theme vibe: %w", err)
	}
	return nil
}
