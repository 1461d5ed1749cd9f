package symbols

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// Symbol kinds stored in the symbols table.
const (
	KindVariable  = "variable"
	KindLabel     = "label"
	KindCallable  = "callable"
	KindEntry     = "entry"
	KindClass     = "class"
	KindInterface = "interface"
	KindEnum      = "enum"
)

// SymbolRecord is one row of a symbol lookup.
type SymbolRecord struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// SQLiteStore persists FileSymbols per project in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	projectKey string
	lookupStmt *sql.Stmt

	cacheMu     sync.RWMutex
	lookupCache map[string][]SymbolRecord
}

// StoreOption adjusts how OpenSQLiteStore connects.
type StoreOption func(*storeOptions)

type storeOptions struct {
	busyTimeout time.Duration
}

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

func OpenSQLiteStore(path, projectKey string, opts ...StoreOption) (*SQLiteStore, error) {
	o := storeOptions{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("symbol store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("symbol store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create symbol store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, o.busyTimeout.Milliseconds())
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite symbol store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite symbol store %q: %w", cleanPath, err)
	}
	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	lookupStmt, err := db.Prepare(`SELECT symbol_name, kind, file_path, line_number
FROM symbols
WHERE project_key = ? AND canonical_name = ?
ORDER BY file_path, kind, line_number`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}

	return &SQLiteStore{
		db:          db,
		projectKey:  key,
		lookupStmt:  lookupStmt,
		lookupCache: make(map[string][]SymbolRecord),
	}, nil
}

func (s *SQLiteStore) clearCache() {
	s.cacheMu.Lock()
	s.lookupCache = make(map[string][]SymbolRecord)
	s.cacheMu.Unlock()
}

// Batch groups writes into one transaction.
type Batch struct {
	tx    *sql.Tx
	store *SQLiteStore
}

func (s *SQLiteStore) BeginBatch() (*Batch, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &Batch{tx: tx, store: s}, nil
}

func (b *Batch) UpsertFile(file *FileSymbols) error {
	if file == nil {
		return nil
	}
	if err := upsertFile(b.tx, b.store.projectKey, file); err != nil {
		return err
	}
	b.store.clearCache()
	return nil
}

func (b *Batch) DeleteFile(path string) error {
	if err := deletePath(b.tx, b.store.projectKey, path); err != nil {
		return err
	}
	b.store.clearCache()
	return nil
}

func (b *Batch) PruneToPaths(paths []string) error {
	if err := pruneToPaths(b.tx, b.store.projectKey, paths); err != nil {
		return err
	}
	b.store.clearCache()
	return nil
}

func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *Batch) Rollback() error {
	return b.tx.Rollback()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("symbol store is closed")
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.lookupStmt != nil {
		_ = s.lookupStmt.Close()
	}
	return s.db.Close()
}

// inTx runs fn in its own transaction and clears the lookup cache on success.
func (s *SQLiteStore) inTx(op string, fn func(tx *sql.Tx) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", op, err)
	}
	s.clearCache()
	return nil
}

func (s *SQLiteStore) UpsertFile(file *FileSymbols) error {
	if file == nil {
		return nil
	}
	return s.inTx("symbol upsert", func(tx *sql.Tx) error {
		return upsertFile(tx, s.projectKey, file)
	})
}

func (s *SQLiteStore) DeleteFile(path string) error {
	return s.inTx("symbol delete", func(tx *sql.Tx) error {
		return deletePath(tx, s.projectKey, path)
	})
}

// PruneToPaths removes every file not listed in paths.
func (s *SQLiteStore) PruneToPaths(paths []string) error {
	return s.inTx("symbol prune", func(tx *sql.Tx) error {
		return pruneToPaths(tx, s.projectKey, paths)
	})
}

// LoadFile returns the stored FileSymbols of path, or nil when absent.
func (s *SQLiteStore) LoadFile(path string) (*FileSymbols, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM file_blobs WHERE project_key = ? AND file_path = ?`, s.projectKey, path).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load file blob: %w", err)
	}
	var file FileSymbols
	if err := json.Unmarshal(blob, &file); err != nil {
		return nil, fmt.Errorf("unmarshal file blob: %w", err)
	}
	return &file, nil
}

// Files lists the stored source paths with their timestamps.
func (s *SQLiteStore) Files(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, mtime FROM files WHERE project_key = ? ORDER BY file_path`, s.projectKey)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			path  string
			mtime int64
		)
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		out[path] = mtime
	}
	return out, rows.Err()
}

// Lookup returns every stored definition of name, any kind.
func (s *SQLiteStore) Lookup(name string) []SymbolRecord {
	if s == nil || s.db == nil || s.lookupStmt == nil {
		return nil
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil
	}

	s.cacheMu.RLock()
	if res, ok := s.lookupCache[key]; ok {
		s.cacheMu.RUnlock()
		return res
	}
	s.cacheMu.RUnlock()

	rows, err := s.lookupStmt.Query(s.projectKey, key)
	if err != nil {
		return nil
	}
	defer rows.Close()

	res := make([]SymbolRecord, 0)
	for rows.Next() {
		var rec SymbolRecord
		if err := rows.Scan(&rec.Name, &rec.Kind, &rec.File, &rec.Line); err != nil {
			continue
		}
		res = append(res, rec)
	}

	s.cacheMu.Lock()
	s.lookupCache[key] = res
	s.cacheMu.Unlock()
	return res
}

// References returns the stored usages of name.
func (s *SQLiteStore) References(ctx context.Context, name string) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT canonical_name, kind, ref_file, line_number, column_number, length, style, reason
FROM refs
WHERE project_key = ? AND canonical_name = ?
ORDER BY ref_file, line_number, column_number`, s.projectKey, strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.Name, &r.Kind, &r.File, &r.Line, &r.Column, &r.Length, &r.Style, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan reference row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dependents returns the files scanned with the copybook at path.
func (s *SQLiteStore) Dependents(ctx context.Context, copybookPath string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT file_path FROM copybook_deps
WHERE project_key = ? AND copybook_path = ?
ORDER BY file_path`, s.projectKey, copybookPath)
	if err != nil {
		return nil, fmt.Errorf("query copybook dependents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan dependent row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func upsertFile(tx *sql.Tx, projectKey string, file *FileSymbols) error {
	if err := deletePath(tx, projectKey, file.Path); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO files (project_key, file_path, mtime, format, program_id, aborted) VALUES (?, ?, ?, ?, ?, ?)`,
		projectKey, file.Path, file.ModTime, file.Format, file.ProgramID, boolToInt(file.Aborted)); err != nil {
		return fmt.Errorf("insert file row: %w", err)
	}
	if err := insertSymbols(tx, projectKey, file); err != nil {
		return err
	}
	if err := insertReferences(tx, projectKey, file); err != nil {
		return err
	}
	for _, dep := range file.Copybooks {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO copybook_deps (project_key, file_path, copybook_path, mtime) VALUES (?, ?, ?, ?)`,
			projectKey, file.Path, dep.Path, dep.ModTime); err != nil {
			return fmt.Errorf("insert copybook dependency: %w", err)
		}
	}

	blob, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal file blob: %w", err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO file_blobs (project_key, file_path, blob) VALUES (?, ?, ?)`, projectKey, file.Path, blob); err != nil {
		return fmt.Errorf("upsert file blob: %w", err)
	}
	return nil
}

func insertSymbols(tx *sql.Tx, projectKey string, file *FileSymbols) error {
	stmt, err := tx.Prepare(`INSERT INTO symbols (project_key, file_path, kind, symbol_name, canonical_name, line_number) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare symbol insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range file.Definitions() {
		// copybook definitions stay in the file blob
		if row.File != file.Path {
			continue
		}
		if _, err := stmt.Exec(projectKey, file.Path, row.Kind, row.Name, strings.ToLower(row.Name), row.Line); err != nil {
			return fmt.Errorf("insert symbol row (%s:%s): %w", file.Path, row.Name, err)
		}
	}
	return nil
}

func insertReferences(tx *sql.Tx, projectKey string, file *FileSymbols) error {
	if len(file.References) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO refs (project_key, file_path, canonical_name, kind, ref_file, line_number, column_number, length, style, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare reference insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range file.References {
		if _, err := stmt.Exec(projectKey, file.Path, r.Name, r.Kind, r.File, r.Line, r.Column, r.Length, r.Style, r.Reason); err != nil {
			return fmt.Errorf("insert reference row (%s:%s): %w", file.Path, r.Name, err)
		}
	}
	return nil
}

var fileTables = []string{"files", "symbols", "refs", "copybook_deps", "file_blobs"}

func deletePath(tx *sql.Tx, projectKey, path string) error {
	for _, table := range fileTables {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE project_key = ? AND file_path = ?`, projectKey, path); err != nil {
			return fmt.Errorf("delete %s rows for path %q: %w", table, path, err)
		}
	}
	return nil
}

func pruneToPaths(tx *sql.Tx, projectKey string, paths []string) error {
	if len(paths) == 0 {
		for _, table := range fileTables {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE project_key = ?`, projectKey); err != nil {
				return fmt.Errorf("clear %s for empty path set: %w", table, err)
			}
		}
		return nil
	}
	if err := loadTempPaths(tx, projectKey, paths); err != nil {
		return err
	}
	for _, table := range fileTables {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE project_key = ? AND file_path NOT IN (SELECT file_path FROM current_paths WHERE project_key = ?)`, projectKey, projectKey); err != nil {
			return fmt.Errorf("delete stale %s rows: %w", table, err)
		}
	}
	return nil
}

func loadTempPaths(tx *sql.Tx, projectKey string, paths []string) error {
	if _, err := tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS current_paths (
  project_key TEXT NOT NULL,
  file_path TEXT NOT NULL,
  PRIMARY KEY (project_key, file_path)
)`); err != nil {
		return fmt.Errorf("create temp paths table: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM current_paths WHERE project_key = ?`, projectKey); err != nil {
		return fmt.Errorf("clear temp paths table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO current_paths (project_key, file_path) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare temp path insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range paths {
		if _, err := stmt.Exec(projectKey, p); err != nil {
			return fmt.Errorf("insert temp path: %w", err)
		}
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
