// Package registry provides the SQLite-backed version metadata store.
//
// The registry is the source of truth for which version is active: the
// on-disk pointer is switched only after the registry row is durable, and
// startup reconciliation repoints the filesystem from these rows.
package registry

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS versions (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL,
	version_number    TEXT NOT NULL,
	snapshot_path     TEXT NOT NULL,
	parent_version_id TEXT,
	change_class      TEXT NOT NULL,
	changelog         TEXT NOT NULL DEFAULT '',
	is_active         INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(project_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_versions_project ON versions(project_id);

CREATE TABLE IF NOT EXISTS version_files (
	version_id TEXT NOT NULL,
	path       TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	UNIQUE(version_id, path)
);

CREATE INDEX IF NOT EXISTS idx_version_files_version ON version_files(version_id);
`

// DB wraps a sql.DB with registry-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("registry: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
