package store

import (
	"database/sql"
	"fmt"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// GetUserStreak retrieves the single global streak row for a user. Returns
// nil when the user has no streak record yet.
func (s *Store) GetUserStreak(userID string) (*models.UserStreak, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	us := &models.UserStreak{}
	err := s.db.QueryRow(
		`SELECT user_id, current_streak, longest_streak, last_completed_date FROM user_streaks WHERE user_id = ?`,
		userID).Scan(&us.UserID, &us.CurrentStreak, &us.LongestStreak, &us.LastCompletedDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user streak: %w", err)
	}
	return us, nil
}

// SaveUserStreak inserts or replaces the user's streak row.
func (s *Store) SaveUserStreak(us *models.UserStreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO user_streaks (user_id, current_streak, longest_streak, last_completed_date)
		 VALUES (?, ?, ?, ?)`,
		us.UserID, us.CurrentStreak, us.LongestStreak, us.LastCompletedDate)
	if err != nil {
		return fmt.Errorf("failed to save user streak: %w", err)
	}
	return nil
}
