package state

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS playback_session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			location TEXT NOT NULL,
			sub_path TEXT NOT NULL DEFAULT '',
			title TEXT,
			position_ms INTEGER NOT NULL DEFAULT 0,
			track_mode TEXT,
			navigation_mode TEXT,
			saved_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
