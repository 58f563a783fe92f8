package store

import (
	"fmt"
	"time"
)

// DashboardStats are the back-office aggregate counters.
type DashboardStats struct {
	Loops       int `json:"loops"`
	Tasks       int `json:"tasks"`
	Templates   int `json:"templates"`
	Creators    int `json:"creators"`
	Reviews     int `json:"reviews"`
	Generations int `json:"generations"`
}

// TemplatePerformance summarizes one template's library performance.
type TemplatePerformance struct {
	TemplateID string  `json:"template_id"`
	Name       string  `json:"name"`
	UseCount   int     `json:"use_count"`
	Reviews    int     `json:"reviews"`
	AvgRating  float64 `json:"avg_rating"`
}

// UserSummary aggregates a single user's activity.
type UserSummary struct {
	UserID        string `json:"user_id"`
	Loops         int    `json:"loops"`
	TemplatesUsed int    `json:"templates_used"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// GetDashboardStats returns whole-system counts for the admin dashboard.
func (s *Store) GetDashboardStats() (*DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &DashboardStats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM loops`, &stats.Loops},
		{`SELECT COUNT(*) FROM tasks`, &stats.Tasks},
		{`SELECT COUNT(*) FROM loop_templates`, &stats.Templates},
		{`SELECT COUNT(*) FROM template_creators`, &stats.Creators},
		{`SELECT COUNT(*) FROM template_reviews`, &stats.Reviews},
		{`SELECT COUNT(*) FROM ai_generations`, &stats.Generations},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
		}
	}
	return stats, nil
}

// GetTemplatePerformance returns per-template usage and review aggregates,
// most used first.
func (s *Store) GetTemplatePerformance() ([]*TemplatePerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT t.id, t.name, t.use_count,
	       COUNT(r.id), COALESCE(AVG(r.rating), 0)
	FROM loop_templates t
	LEFT JOIN template_reviews r ON r.template_id = t.id
	GROUP BY t.id
	ORDER BY t.use_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query template performance: %w", err)
	}
	defer rows.Close()

	var out []*TemplatePerformance
	for rows.Next() {
		p := &TemplatePerformance{}
		if err := rows.Scan(&p.TemplateID, &p.Name, &p.UseCount, &p.Reviews, &p.AvgRating); err != nil {
			return nil, fmt.Errorf("failed to scan template performance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetUserSummary returns one user's aggregate activity.
func (s *Store) GetUserSummary(userID string) (*UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &UserSummary{UserID: userID}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM loops WHERE owner_id = ?`, userID).Scan(&sum.Loops); err != nil {
		return nil, fmt.Errorf("failed to count user loops: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM user_template_usage WHERE user_id = ?`, userID).Scan(&sum.TemplatesUsed); err != nil {
		return nil, fmt.Errorf("failed to count template usage: %w", err)
	}
	// Streak row is optional.
	_ = s.db.QueryRow(
		`SELECT current_streak, longest_streak FROM user_streaks WHERE user_id = ?`,
		userID).Scan(&sum.CurrentStreak, &sum.LongestStreak)
	return sum, nil
}

// RecordGeneration logs a successful or attempted AI generation for rate
// accounting.
func (s *Store) RecordGeneration(id, userID, prompt, loopID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO ai_generations (id, user_id, prompt, loop_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, prompt, nullStr(loopID), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// CountGenerationsSince counts a user's generation attempts after the cutoff.
func (s *Store) CountGenerationsSince(userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM ai_generations WHERE user_id = ? AND created_at >= ?`,
		userID, since.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return n, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
