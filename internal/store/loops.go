package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// SaveLoop inserts or replaces a loop row.
func (s *Store) SaveLoop(l *models.LoopRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if l.CreatedAt == 0 {
		l.CreatedAt = now
	}
	l.UpdatedAt = now

	query := `
	INSERT OR REPLACE INTO loops (
		id, owner_id, title, description, color, reset_rule, next_reset_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		l.ID, l.OwnerID, l.Title, l.Description, l.Color,
		string(l.ResetRule), l.NextResetAt, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save loop: %w", err)
	}
	return nil
}

// GetLoop retrieves a loop row by id. Returns nil when not found.
func (s *Store) GetLoop(id string) (*models.LoopRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanLoop(s.db.QueryRow(`
	SELECT id, owner_id, title, description, color, reset_rule, next_reset_at, created_at, updated_at
	FROM loops WHERE id = ?`, id))
}

// ListLoops returns all loops owned by a user, newest first.
func (s *Store) ListLoops(ownerID string) ([]*models.LoopRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, owner_id, title, description, color, reset_rule, next_reset_at, created_at, updated_at
	FROM loops WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loops: %w", err)
	}
	defer rows.Close()

	var loops []*models.LoopRow
	for rows.Next() {
		l, err := s.scanLoopRows(rows)
		if err != nil {
			return nil, err
		}
		loops = append(loops, l)
	}
	return loops, rows.Err()
}

// ListDailyLoops returns all loops of a user with the daily reset rule.
func (s *Store) ListDailyLoops(ownerID string) ([]*models.LoopRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, owner_id, title, description, color, reset_rule, next_reset_at, created_at, updated_at
	FROM loops WHERE owner_id = ? AND reset_rule = 'daily'`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily loops: %w", err)
	}
	defer rows.Close()

	var loops []*models.LoopRow
	for rows.Next() {
		l, err := s.scanLoopRows(rows)
		if err != nil {
			return nil, err
		}
		loops = append(loops, l)
	}
	return loops, rows.Err()
}

// ListOverdueLoops returns daily/weekly loops whose next_reset_at has passed.
func (s *Store) ListOverdueLoops(nowMillis int64) ([]*models.LoopRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, owner_id, title, description, color, reset_rule, next_reset_at, created_at, updated_at
	FROM loops WHERE reset_rule IN ('daily', 'weekly') AND next_reset_at <= ?`, nowMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loops: %w", err)
	}
	defer rows.Close()

	var loops []*models.LoopRow
	for rows.Next() {
		l, err := s.scanLoopRows(rows)
		if err != nil {
			return nil, err
		}
		loops = append(loops, l)
	}
	return loops, rows.Err()
}

// UpdateLoopNextReset sets a loop's next_reset_at and bumps updated_at.
func (s *Store) UpdateLoopNextReset(id string, nextResetAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE loops SET next_reset_at = ?, updated_at = ? WHERE id = ?`,
		nextResetAt, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update loop next reset: %w", err)
	}
	return nil
}

// DeleteLoop removes a loop and, via cascade, its tasks.
func (s *Store) DeleteLoop(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM loops WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete loop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("loop %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanLoop(row *sql.Row) (*models.LoopRow, error) {
	l, err := scanLoopFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loop: %w", err)
	}
	return l, nil
}

func (s *Store) scanLoopRows(rows *sql.Rows) (*models.LoopRow, error) {
	l, err := scanLoopFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan loop: %w", err)
	}
	return l, nil
}

func scanLoopFrom(sc rowScanner) (*models.LoopRow, error) {
	l := &models.LoopRow{}
	var rule string
	err := sc.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Color,
		&rule, &l.NextResetAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.ResetRule = models.ResetRule(rule)
	return l, nil
}
