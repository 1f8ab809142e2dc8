package sqlite

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	up      string
}

// migrations is the ordered list of schema changes. Each one runs exactly once.
var migrations = []migration{
	{
		version: 1,
		name:    "create_post_types_table",
		up: `
			CREATE TABLE IF NOT EXISTS post_types (
				slug TEXT PRIMARY KEY,
				label TEXT NOT NULL,
				singular_label TEXT NOT NULL,
				public INTEGER NOT NULL DEFAULT 0,
				position INTEGER NOT NULL
			);

			INSERT OR IGNORE INTO post_types (slug, label, singular_label, public, position) VALUES
				('post', 'Posts', 'Post', 1, 0),
				('page', 'Pages', 'Page', 1, 1),
				('attachment', 'Media', 'Media', 1, 2),
				('revision', 'Revisions', 'Revision', 0, 3),
				('nav_menu_item', 'Navigation Menu Items', 'Navigation Menu Item', 0, 4);
		`,
	},
	{
		version: 2,
		name:    "create_posts_table",
		up: `
			CREATE TABLE IF NOT EXISTS posts (
				id INTEGER PRIMARY KEY,
				post_type TEXT NOT NULL REFERENCES post_types(slug),
				status TEXT NOT NULL,
				title TEXT NOT NULL,
				slug TEXT NOT NULL,
				content_html TEXT NOT NULL,
				snippet TEXT NOT NULL,
				post_date TEXT NOT NULL,
				updated_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_posts_type_status
			ON posts(post_type, status);

			CREATE INDEX IF NOT EXISTS idx_posts_post_date
			ON posts(post_date DESC);
		`,
	},
	{
		version: 3,
		name:    "create_terms_tables",
		up: `
			CREATE TABLE IF NOT EXISTS terms (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				taxonomy TEXT NOT NULL,
				slug TEXT NOT NULL,
				name TEXT NOT NULL,
				parent_id INTEGER REFERENCES terms(id),
				UNIQUE (taxonomy, slug)
			);

			CREATE TABLE IF NOT EXISTS post_terms (
				post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				term_id INTEGER NOT NULL REFERENCES terms(id) ON DELETE CASCADE,
				PRIMARY KEY (post_id, term_id)
			);

			CREATE INDEX IF NOT EXISTS idx_post_terms_term
			ON post_terms(term_id);
		`,
	},
}

func runMigrations(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		if err := applyMigration(conn, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(conn *sql.DB, m migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
	}

	if _, err := tx.Exec(m.up); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
	}

	_, err = tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}

	return nil
}
