package ports

import (
	"context"
	"time"

	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/engine/symbols"
)

// LineSource gives the scanner line access to one document.
type LineSource = scanner.LineSource

// FileProbe answers existence and timestamp questions for copybook lookup.
// Local probes ignore ctx; remote probes honour it for every request.
type FileProbe interface {
	Exists(ctx context.Context, path string) (bool, error)
	IsDirectory(ctx context.Context, path string) (bool, error)
	// ModTime returns an opaque comparable timestamp, 0 when unknown.
	ModTime(ctx context.Context, path string) (int64, error)
}

// SymbolStore persists per-file symbol tables.
type SymbolStore interface {
	UpsertFile(file *symbols.FileSymbols) error
	DeleteFile(path string) error
	PruneToPaths(paths []string) error
	LoadFile(path string) (*symbols.FileSymbols, error)
	Close() error
}

type WriteOperation string

const (
	WriteOperationUpsertFile   WriteOperation = "upsert_file"
	WriteOperationDeleteFile   WriteOperation = "delete_file"
	WriteOperationPruneToPaths WriteOperation = "prune_to_paths"
)

// WriteRequest is one pending symbol store mutation.
type WriteRequest struct {
	ID         string               `json:"id"`
	Operation  WriteOperation       `json:"operation"`
	ProjectKey string               `json:"project_key,omitempty"`
	FilePath   string               `json:"file_path,omitempty"`
	File       *symbols.FileSymbols `json:"file,omitempty"`
	Paths      []string             `json:"paths,omitempty"`
}

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// WriteQueuePort is the bounded in-memory side of the write pipeline.
type WriteQueuePort interface {
	Enqueue(req WriteRequest) EnqueueResult
	DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]WriteRequest, error)
	Close() error
}

// SpoolRow is a persisted WriteRequest awaiting (re)application.
type SpoolRow struct {
	ID       int64
	Request  WriteRequest
	Attempts int
}

// WriteSpoolPort holds requests that overflowed the memory queue or failed.
type WriteSpoolPort interface {
	Enqueue(req WriteRequest) error
	DequeueBatch(ctx context.Context, maxItems int) ([]SpoolRow, error)
	Ack(ids []int64) error
	Nack(rows []SpoolRow, nextAttemptAt time.Time, lastErr string) error
	PendingCount(ctx context.Context) (int, error)
	Close() error
}

// ScanReport summarises one processed file.
type ScanReport struct {
	SessionID   string
	Path        string
	Format      string
	Tokens      int
	Copybooks   int
	Diagnostics []scanner.Diagnostic
	Aborted     bool
	Cached      bool
	Duration    time.Duration
}

// WatchUpdate is emitted after the watcher has rescanned a batch of files.
type WatchUpdate struct {
	Reports   []ScanReport
	FileCount int
}

// QueryService exposes read-only lookups over the workspace caches.
type QueryService interface {
	Symbols(ctx context.Context, name string) ([]symbols.SymbolRecord, error)
	References(ctx context.Context, name string) ([]symbols.Reference, error)
	Files(ctx context.Context) ([]FileStatus, error)
	Outline(ctx context.Context, path string) ([]*scanner.Token, error)
}

// FileStatus is the last known scan state of one workspace file.
type FileStatus struct {
	Path        string `json:"path"`
	Format      string `json:"format"`
	ProgramID   string `json:"program_id,omitempty"`
	Aborted     bool   `json:"aborted,omitempty"`
	Copybooks   int    `json:"copybooks"`
	Diagnostics int    `json:"diagnostics"`
}
