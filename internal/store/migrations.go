package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS loops (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT NOT NULL,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		color         TEXT NOT NULL DEFAULT 'teal',
		reset_rule    TEXT NOT NULL DEFAULT 'manual',
		next_reset_at INTEGER NOT NULL,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loops_owner ON loops(owner_id);
	CREATE INDEX IF NOT EXISTS idx_loops_next_reset ON loops(next_reset_at);

	CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		loop_id      TEXT NOT NULL REFERENCES loops(id) ON DELETE CASCADE,
		description  TEXT NOT NULL,
		notes        TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'pending',
		is_recurring INTEGER NOT NULL DEFAULT 1,
		is_one_time  INTEGER NOT NULL DEFAULT 0,
		priority     INTEGER NOT NULL DEFAULT 0,
		due_date     INTEGER,
		reminder_at  INTEGER,
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_loop ON tasks(loop_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(loop_id, status);

	CREATE TABLE IF NOT EXISTS archived_tasks (
		id          TEXT PRIMARY KEY,
		loop_id     TEXT NOT NULL,
		description TEXT NOT NULL,
		notes       TEXT NOT NULL DEFAULT '',
		archived_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_archived_loop ON archived_tasks(loop_id);

	CREATE TABLE IF NOT EXISTS user_streaks (
		user_id             TEXT PRIMARY KEY,
		current_streak      INTEGER NOT NULL DEFAULT 0,
		longest_streak      INTEGER NOT NULL DEFAULT 0,
		last_completed_date TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id    TEXT PRIMARY KEY,
		email      TEXT NOT NULL DEFAULT '',
		is_admin   INTEGER NOT NULL DEFAULT 0,
		theme_vibe TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	return nil
}

// schemaVersion reads the meta row as an integer so version ordering
// survives double digits.
func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT CAST(value AS INTEGER) FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) migrateV2() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version >= 2 {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS template_creators (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		bio        TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		verified   INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loop_templates (
		id          TEXT PRIMARY KEY,
		creator_id  TEXT NOT NULL REFERENCES template_creators(id),
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color       TEXT NOT NULL DEFAULT 'teal',
		category    TEXT NOT NULL DEFAULT '',
		reset_rule  TEXT NOT NULL DEFAULT 'manual',
		published   INTEGER NOT NULL DEFAULT 0,
		use_count   INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_creator ON loop_templates(creator_id);
	CREATE INDEX IF NOT EXISTS idx_templates_published ON loop_templates(published);

	CREATE TABLE IF NOT EXISTS template_tasks (
		id           TEXT PRIMARY KEY,
		template_id  TEXT NOT NULL REFERENCES loop_templates(id) ON DELETE CASCADE,
		description  TEXT NOT NULL,
		notes        TEXT NOT NULL DEFAULT '',
		is_recurring INTEGER NOT NULL DEFAULT 1,
		sort_order   INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_template_tasks ON template_tasks(template_id, sort_order);

	CREATE TABLE IF NOT EXISTS template_reviews (
		id          TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES loop_templates(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		rating      INTEGER NOT NULL,
		comment     TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_template ON template_reviews(template_id);

	CREATE TABLE IF NOT EXISTS user_template_usage (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		template_id TEXT NOT NULL,
		loop_id     TEXT NOT NULL,
		used_at     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_user ON user_template_usage(user_id);
	CREATE INDEX IF NOT EXISTS idx_usage_template ON user_template_usage(template_id);

	CREATE TABLE IF NOT EXISTS affiliate_clicks (
		id           TEXT PRIMARY KEY,
		creator_id   TEXT NOT NULL,
		ref_code     TEXT NOT NULL,
		visitor_id   TEXT NOT NULL DEFAULT '',
		converted_at INTEGER,
		created_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_affiliate_ref ON affiliate_clicks(ref_code);

	CREATE TABLE IF NOT EXISTS ai_generations (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		prompt     TEXT NOT NULL,
		loop_id    TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ai_generations_user ON ai_generations(user_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v2: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}
