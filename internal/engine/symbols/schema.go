package symbols

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 2

// migrateSchema creates the store tables or upgrades them to schemaVersion.
func migrateSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS files (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  mtime INTEGER NOT NULL DEFAULT 0,
  format TEXT NOT NULL DEFAULT '',
  program_id TEXT NOT NULL DEFAULT '',
  aborted INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, file_path)
);

CREATE TABLE IF NOT EXISTS symbols (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  kind TEXT NOT NULL,
  symbol_name TEXT NOT NULL,
  canonical_name TEXT NOT NULL,
  line_number INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, file_path, kind, canonical_name)
);
CREATE INDEX IF NOT EXISTS idx_symbols_project_canonical ON symbols(project_key, canonical_name);

CREATE TABLE IF NOT EXISTS file_blobs (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  blob BLOB NOT NULL,
  PRIMARY KEY (project_key, file_path)
);

PRAGMA user_version = 1;
`)
		if err != nil {
			return fmt.Errorf("create v1 schema: %w", err)
		}
		version = 1
	}

	if version < 2 {
		_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS refs (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  canonical_name TEXT NOT NULL,
  kind TEXT NOT NULL,
  ref_file TEXT NOT NULL DEFAULT '',
  line_number INTEGER NOT NULL DEFAULT 0,
  column_number INTEGER NOT NULL DEFAULT 0,
  length INTEGER NOT NULL DEFAULT 0,
  style TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_refs_project_canonical ON refs(project_key, canonical_name);
CREATE INDEX IF NOT EXISTS idx_refs_project_file ON refs(project_key, file_path);

CREATE TABLE IF NOT EXISTS copybook_deps (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  copybook_path TEXT NOT NULL,
  mtime INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (project_key, file_path, copybook_path)
);
CREATE INDEX IF NOT EXISTS idx_copybook_deps_copybook ON copybook_deps(project_key, copybook_path);

PRAGMA user_version = 2;
`)
		if err != nil {
			return fmt.Errorf("schema v2 migration: %w", err)
		}
	}
	return nil
}
