package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// SaveCreator inserts or replaces a template creator.
func (s *Store) SaveCreator(c *models.TemplateCreator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO template_creators (id, name, bio, avatar_url, verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Bio, c.AvatarURL, c.Verified, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save creator: %w", err)
	}
	return nil
}

// GetCreator retrieves a creator by id. Returns nil when not found.
func (s *Store) GetCreator(id string) (*models.TemplateCreator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &models.TemplateCreator{}
	err := s.db.QueryRow(
		`SELECT id, name, bio, avatar_url, verified, created_at FROM template_creators WHERE id = ?`,
		id).Scan(&c.ID, &c.Name, &c.Bio, &c.AvatarURL, &c.Verified, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	return c, nil
}

// ListCreators returns all creators, verified first.
func (s *Store) ListCreators() ([]*models.TemplateCreator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, name, bio, avatar_url, verified, created_at FROM template_creators ORDER BY verified DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list creators: %w", err)
	}
	defer rows.Close()

	var creators []*models.TemplateCreator
	for rows.Next() {
		c := &models.TemplateCreator{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Bio, &c.AvatarURL, &c.Verified, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan creator: %w", err)
		}
		creators = append(creators, c)
	}
	return creators, rows.Err()
}

// DeleteCreator removes a creator.
func (s *Store) DeleteCreator(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM template_creators WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete creator: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("creator %s not found", id)
	}
	return nil
}

// SaveTemplate inserts or replaces a loop template.
func (s *Store) SaveTemplate(t *models.LoopTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO loop_templates (
			id, creator_id, name, description, color, category, reset_rule,
			published, use_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CreatorID, t.Name, t.Description, t.Color, t.Category,
		string(t.ResetRule), t.Published, t.UseCount, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by id. Returns nil when not found.
func (s *Store) GetTemplate(id string) (*models.LoopTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTemplateFrom(s.db.QueryRow(templateSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns templates, optionally only published ones.
func (s *Store) ListTemplates(publishedOnly bool) ([]*models.LoopTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := templateSelect + ` ORDER BY use_count DESC, name`
	if publishedOnly {
		query = templateSelect + ` WHERE published = 1 ORDER BY use_count DESC, name`
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.LoopTemplate
	for rows.Next() {
		t, err := scanTemplateFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes a template and, via cascade, its tasks and reviews.
func (s *Store) DeleteTemplate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM loop_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template %s not found", id)
	}
	return nil
}

// IncrementTemplateUse bumps a template's use counter.
func (s *Store) IncrementTemplateUse(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE loop_templates SET use_count = use_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment template use: %w", err)
	}
	return nil
}

// SaveTemplateTask inserts or replaces a template task.
func (s *Store) SaveTemplateTask(t *models.TemplateTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO template_tasks (id, template_id, description, notes, is_recurring, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.TemplateID, t.Description, t.Notes, t.IsRecurring, t.Order)
	if err != nil {
		return fmt.Errorf("failed to save template task: %w", err)
	}
	return nil
}

// ListTemplateTasks returns a template's tasks in display order.
func (s *Store) ListTemplateTasks(templateID string) ([]*models.TemplateTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, template_id, description, notes, is_recurring, sort_order
		 FROM template_tasks WHERE template_id = ? ORDER BY sort_order`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.TemplateTask
	for rows.Next() {
		t := &models.TemplateTask{}
		if err := rows.Scan(&t.ID, &t.TemplateID, &t.Description, &t.Notes, &t.IsRecurring, &t.Order); err != nil {
			return nil, fmt.Errorf("failed to scan template task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTemplateTask removes a template task.
func (s *Store) DeleteTemplateTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM template_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template task %s not found", id)
	}
	return nil
}

// SaveReview inserts or replaces a template review.
func (s *Store) SaveReview(r *models.TemplateReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO template_reviews (id, template_id, user_id, rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.TemplateID, r.UserID, r.Rating, r.Comment, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}
	return nil
}

// ListReviews returns a template's reviews, newest first.
func (s *Store) ListReviews(templateID string) ([]*models.TemplateReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, template_id, user_id, rating, comment, created_at
		 FROM template_reviews WHERE template_id = ? ORDER BY created_at DESC`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.TemplateReview
	for rows.Next() {
		r := &models.TemplateReview{}
		if err := rows.Scan(&r.ID, &r.TemplateID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// DeleteReview removes a review.
func (s *Store) DeleteReview(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM template_reviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("review %s not found", id)
	}
	return nil
}

// RecordTemplateUsage logs that a user instantiated a template into a loop.
func (s *Store) RecordTemplateUsage(id, userID, templateID, loopID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO user_template_usage (id, user_id, template_id, loop_id, used_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, templateID, loopID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record template usage: %w", err)
	}
	return nil
}

const templateSelect = `
	SELECT id, creator_id, name, description, color, category, reset_rule,
	       published, use_count, created_at, updated_at
	FROM loop_templates`

func scanTemplateFrom(sc rowScanner) (*models.LoopTemplate, error) {
	t := &models.LoopTemplate{}
	var rule string
	err := sc.Scan(&t.ID, &t.CreatorID, &t.Name, &t.Description, &t.Color,
		&t.Category, &rule, &t.Published, &t.UseCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.ResetRule = models.ResetRule(rule)
	return t, nil
}
