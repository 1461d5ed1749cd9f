package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/core/ports"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

var _ ports.WriteSpoolPort = (*SQLiteSpool)(nil)

func errSpoolClosed() error {
	return cerrors.New(cerrors.CodeInternal, "symbol write spool not initialized")
}

// SQLiteSpool keeps symbol store writes that overflowed the memory queue or
// failed to apply, so they survive a restart. At most one upsert or delete
// per source file is pending: a newer request for the file replaces the
// older row. Prunes are never superseded.
type SQLiteSpool struct {
	db         *sql.DB
	projectKey string
}

// SpoolStats describes the backlog for health reporting.
type SpoolStats struct {
	Pending   int
	Retrying  int
	LastError string
}

func OpenSQLiteSpool(path string, projectKey string) (*SQLiteSpool, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, cerrors.New(cerrors.CodeValidationError, "spool path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, cerrors.AddContext(cerrors.New(cerrors.CodeValidationError, "spool path is a directory"), cerrors.CtxPath, cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "create spool directory"), cerrors.CtxPath, dir)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "open spool"), cerrors.CtxPath, cleanPath)
	}
	// one writer; the worker and the enqueue path serialize on it
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "ping spool"), cerrors.CtxPath, cleanPath)
	}
	if err := migrateSpoolSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}
	return &SQLiteSpool{db: db, projectKey: key}, nil
}

func (s *SQLiteSpool) Enqueue(req ports.WriteRequest) error {
	if s == nil || s.db == nil {
		return errSpoolClosed()
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return cerrors.Wrap(err, cerrors.CodeInternal, "encode spooled write")
	}
	programID := ""
	if req.File != nil {
		programID = req.File.ProgramID
	}
	now := time.Now().UTC().UnixMilli()

	return s.inTx(context.Background(), "enqueue", func(tx *sql.Tx) error {
		if req.Operation != ports.WriteOperationPruneToPaths && req.FilePath != "" {
			if _, err := tx.Exec(`DELETE FROM pending_symbol_writes WHERE project_key = ? AND file_path = ? AND operation != ?`,
				s.projectKey, req.FilePath, string(ports.WriteOperationPruneToPaths)); err != nil {
				return cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "supersede pending write"), cerrors.CtxPath, req.FilePath)
			}
		}
		_, err := tx.Exec(`
INSERT INTO pending_symbol_writes
  (project_key, request_id, operation, file_path, program_id, payload_version, request, attempts, next_attempt_at, queued_at, last_error)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, '')
`, s.projectKey, req.ID, string(req.Operation), req.FilePath, programID, spoolPayloadVersion, raw, now, now)
		if err != nil {
			return cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "spool write"), cerrors.CtxOperation, string(req.Operation))
		}
		return nil
	})
}

// DequeueBatch returns up to maxItems writes whose retry time has come, in
// the order they were spooled. Rows are only removed by Ack.
func (s *SQLiteSpool) DequeueBatch(ctx context.Context, maxItems int) ([]ports.SpoolRow, error) {
	if s == nil || s.db == nil {
		return nil, errSpoolClosed()
	}
	if maxItems <= 0 {
		maxItems = 1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, payload_version, request, attempts
FROM pending_symbol_writes
WHERE project_key = ? AND next_attempt_at <= ?
ORDER BY id ASC
LIMIT ?
`, s.projectKey, time.Now().UTC().UnixMilli(), maxItems)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeInternal, "read pending writes")
	}
	defer rows.Close()

	out := make([]ports.SpoolRow, 0, maxItems)
	var stale []int64
	for rows.Next() {
		var (
			row     ports.SpoolRow
			version int
			raw     []byte
		)
		if err := rows.Scan(&row.ID, &version, &raw, &row.Attempts); err != nil {
			return nil, cerrors.Wrap(err, cerrors.CodeInternal, "scan pending write")
		}
		if version != spoolPayloadVersion {
			stale = append(stale, row.ID)
			continue
		}
		if err := json.Unmarshal(raw, &row.Request); err != nil {
			stale = append(stale, row.ID)
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeInternal, "iterate pending writes")
	}
	rows.Close()

	if err := s.Ack(stale); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteSpool) Ack(ids []int64) error {
	if s == nil || s.db == nil {
		return errSpoolClosed()
	}
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(context.Background(), "ack", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`DELETE FROM pending_symbol_writes WHERE project_key = ? AND id = ?`)
		if err != nil {
			return cerrors.Wrap(err, cerrors.CodeInternal, "prepare ack")
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.Exec(s.projectKey, id); err != nil {
				return cerrors.Wrap(err, cerrors.CodeInternal, fmt.Sprintf("ack pending write %d", id))
			}
		}
		return nil
	})
}

// Nack records a failed attempt and pushes the rows back to nextAttemptAt.
func (s *SQLiteSpool) Nack(rows []ports.SpoolRow, nextAttemptAt time.Time, lastErr string) error {
	if s == nil || s.db == nil {
		return errSpoolClosed()
	}
	if len(rows) == 0 {
		return nil
	}
	next := nextAttemptAt.UTC().UnixMilli()
	return s.inTx(context.Background(), "nack", func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
UPDATE pending_symbol_writes
SET attempts = ?, next_attempt_at = ?, last_error = ?
WHERE project_key = ? AND id = ?
`)
		if err != nil {
			return cerrors.Wrap(err, cerrors.CodeInternal, "prepare nack")
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.Exec(row.Attempts+1, next, lastErr, s.projectKey, row.ID); err != nil {
				return cerrors.Wrap(err, cerrors.CodeInternal, fmt.Sprintf("nack pending write %d", row.ID))
			}
		}
		return nil
	})
}

func (s *SQLiteSpool) PendingCount(ctx context.Context) (int, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Pending, nil
}

// Stats counts the backlog and reports the most recent failure, if any.
func (s *SQLiteSpool) Stats(ctx context.Context) (SpoolStats, error) {
	if s == nil || s.db == nil {
		return SpoolStats{}, errSpoolClosed()
	}
	var stats SpoolStats
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(1), COALESCE(SUM(CASE WHEN attempts > 0 THEN 1 ELSE 0 END), 0)
FROM pending_symbol_writes WHERE project_key = ?
`, s.projectKey).Scan(&stats.Pending, &stats.Retrying)
	if err != nil {
		return SpoolStats{}, cerrors.Wrap(err, cerrors.CodeInternal, "count pending writes")
	}
	if stats.Retrying == 0 {
		return stats, nil
	}
	err = s.db.QueryRowContext(ctx, `
SELECT last_error FROM pending_symbol_writes
WHERE project_key = ? AND attempts > 0
ORDER BY next_attempt_at DESC, id DESC LIMIT 1
`, s.projectKey).Scan(&stats.LastError)
	if err != nil && err != sql.ErrNoRows {
		return SpoolStats{}, cerrors.Wrap(err, cerrors.CodeInternal, "read last spool error")
	}
	return stats, nil
}

func (s *SQLiteSpool) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSpool) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "begin spool transaction"), cerrors.CtxOperation, op)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "commit spool transaction"), cerrors.CtxOperation, op)
	}
	return nil
}
