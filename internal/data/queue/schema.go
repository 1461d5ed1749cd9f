package queue

import (
	"database/sql"

	cerrors "cobolscan/internal/core/errors"
)

// spoolPayloadVersion is bumped whenever the JSON layout of a spooled
// WriteRequest changes. Rows with another version are discarded on dequeue.
const spoolPayloadVersion = 3

func migrateSpoolSchema(db *sql.DB) error {
	if db == nil {
		return cerrors.New(cerrors.CodeInternal, "spool db is nil")
	}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS pending_symbol_writes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  project_key TEXT NOT NULL,
  request_id TEXT NOT NULL DEFAULT '',
  operation TEXT NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  program_id TEXT NOT NULL DEFAULT '',
  payload_version INTEGER NOT NULL,
  request BLOB NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  next_attempt_at INTEGER NOT NULL,
  queued_at INTEGER NOT NULL,
  last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_pending_symbol_writes_due ON pending_symbol_writes(project_key, next_attempt_at, id);
CREATE INDEX IF NOT EXISTS idx_pending_symbol_writes_file ON pending_symbol_writes(project_key, file_path);
`)
	if err != nil {
		return cerrors.Wrap(err, cerrors.CodeInternal, "migrate spool schema")
	}
	return nil
}
