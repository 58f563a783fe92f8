package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/myerscreative/doloop-sub000/internal/models"
)

// SaveTask inserts or replaces a task row.
func (s *Store) SaveTask(t *models.TaskRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = models.TaskPending
	}

	query := `
	INSERT OR REPLACE INTO tasks (
		id, loop_id, description, notes, status, is_recurring, is_one_time,
		priority, due_date, reminder_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		t.ID, t.LoopID, t.Description, t.Notes, string(t.Status),
		t.IsRecurring, t.IsOneTime, t.Priority,
		nullInt64(t.DueDate), nullInt64(t.ReminderAt),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by id. Returns nil when not found.
func (s *Store) GetTask(id string) (*models.TaskRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTaskFrom(s.db.QueryRow(taskSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasks returns all tasks of a loop ordered by priority then creation.
func (s *Store) ListTasks(loopID string) ([]*models.TaskRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(taskSelect+` WHERE loop_id = ? ORDER BY priority DESC, created_at`, loopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.TaskRow
	for rows.Next() {
		t, err := scanTaskFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus sets a task's status.
func (s *Store) UpdateTaskStatus(id string, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// ResetLoopTasks marks every task of a loop pending.
func (s *Store) ResetLoopTasks(loopID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE tasks SET status = 'pending', updated_at = ? WHERE loop_id = ?`,
		time.Now().UnixMilli(), loopID)
	if err != nil {
		return fmt.Errorf("failed to reset loop tasks: %w", err)
	}
	return nil
}

// ArchiveDoneOneTimeTasks moves a loop's completed one-time tasks into
// archived_tasks and deletes them from the live table. The remote variant
// archives where the local variant physically removes.
func (s *Store) ArchiveDoneOneTimeTasks(loopID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	rows, err := s.db.Query(
		`SELECT id, description, notes FROM tasks WHERE loop_id = ? AND is_one_time = 1 AND status = 'done'`,
		loopID)
	if err != nil {
		return 0, fmt.Errorf("failed to select tasks to archive: %w", err)
	}

	type archived struct{ id, description, notes string }
	var toArchive []archived
	for rows.Next() {
		var a archived
		if err := rows.Scan(&a.id, &a.description, &a.notes); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan task to archive: %w", err)
		}
		toArchive = append(toArchive, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate tasks to archive: %w", err)
	}

	for _, a := range toArchive {
		if _, err := s.db.Exec(
			`INSERT INTO archived_tasks (id, loop_id, description, notes, archived_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), loopID, a.description, a.notes, now); err != nil {
			return 0, fmt.Errorf("failed to archive task: %w", err)
		}
		if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, a.id); err != nil {
			return 0, fmt.Errorf("failed to delete archived task: %w", err)
		}
	}
	return len(toArchive), nil
}

// DeleteDueOneTimeTasks removes pending one-time tasks whose due date has
// passed. Returns the number removed.
func (s *Store) DeleteDueOneTimeTasks(loopID string, nowMillis int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM tasks WHERE loop_id = ? AND is_one_time = 1 AND due_date IS NOT NULL AND due_date <= ?`,
		loopID, nowMillis)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// CountTasks returns the total and done task counts of a loop.
func (s *Store) CountTasks(loopID string) (total, done int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0) FROM tasks WHERE loop_id = ?`,
		loopID).Scan(&total, &done)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return total, done, nil
}

const taskSelect = `
	SELECT id, loop_id, description, notes, status, is_recurring, is_one_time,
	       priority, due_date, reminder_at, created_at, updated_at
	FROM tasks`

func scanTaskFrom(sc rowScanner) (*models.TaskRow, error) {
	t := &models.TaskRow{}
	var status string
	var due, reminder sql.NullInt64
	err := sc.Scan(&t.ID, &t.LoopID, &t.Description, &t.Notes, &status,
		&t.IsRecurring, &t.IsOneTime, &t.Priority, &due, &reminder,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	if due.Valid {
		t.DueDate = &due.Int64
	}
	if reminder.Valid {
		t.ReminderAt = &reminder.Int64
	}
	return t, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
