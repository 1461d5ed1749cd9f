package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cobolscan/internal/core/config"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/data/queue"
	"cobolscan/internal/engine/symbols"
)

func TestWriteWorker_AppliesQueuedUpsert(t *testing.T) {
	store := newTestSymbolStore(t)
	app := &App{
		Config:      testWriteQueueConfig(8, 2, 20*time.Millisecond),
		symbolStore: store,
	}
	if err := app.initWriteQueue(); err != nil {
		t.Fatalf("initWriteQueue failed: %v", err)
	}
	defer func() {
		_ = app.stopWriteWorker(context.Background())
		_ = store.Close()
	}()

	req := ports.WriteRequest{
		Operation: ports.WriteOperationUpsertFile,
		FilePath:  "a.cbl",
		File:      testFileSymbols("a.cbl", "A"),
	}
	if err := app.enqueueSymbolWrite(req); err != nil {
		t.Fatalf("enqueueSymbolWrite failed: %v", err)
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		loaded, err := store.LoadFile("a.cbl")
		if err == nil && loaded != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for queued upsert to reach symbol store")
}

func TestWriteWorker_StopDrainsPendingMemoryWrites(t *testing.T) {
	store := newTestSymbolStore(t)
	app := &App{
		Config:      testWriteQueueConfig(8, 8, 5*time.Second),
		symbolStore: store,
	}
	if err := app.initWriteQueue(); err != nil {
		t.Fatalf("initWriteQueue failed: %v", err)
	}
	defer store.Close()

	if err := app.enqueueSymbolWrite(ports.WriteRequest{
		Operation: ports.WriteOperationUpsertFile,
		FilePath:  "drain.cbl",
		File:      testFileSymbols("drain.cbl", "DRAIN"),
	}); err != nil {
		t.Fatalf("enqueueSymbolWrite failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.stopWriteWorker(ctx); err != nil {
		t.Fatalf("stopWriteWorker failed: %v", err)
	}

	loaded, err := store.LoadFile("drain.cbl")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected pending write to be drained before worker stop")
	}
	if loaded.ProgramID != "DRAIN" {
		t.Fatalf("expected program DRAIN, got %q", loaded.ProgramID)
	}
}

func TestWriteWorker_FullQueueSpillsToSpool(t *testing.T) {
	store := newTestSymbolStore(t)
	defer store.Close()

	cfg := testWriteQueueConfig(1, 8, time.Second)
	spool, err := queue.OpenSQLiteSpool(filepath.Join(t.TempDir(), "spool.db"), "default")
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	app := &App{
		Config:      cfg,
		symbolStore: store,
		writeQueue:  queue.NewMemoryQueue(1),
		writeSpool:  spool,
	}

	for _, name := range []string{"first.cbl", "second.cbl"} {
		if err := app.enqueueSymbolWrite(ports.WriteRequest{
			Operation: ports.WriteOperationUpsertFile,
			FilePath:  name,
			File:      testFileSymbols(name, "P"),
		}); err != nil {
			t.Fatalf("enqueue %s: %v", name, err)
		}
	}
	pending, err := spool.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected 1 spooled request, got %d", pending)
	}

	if err := app.stopWriteWorker(context.Background()); err != nil {
		t.Fatalf("stopWriteWorker failed: %v", err)
	}
	for _, name := range []string{"first.cbl", "second.cbl"} {
		loaded, err := store.LoadFile(name)
		if err != nil || loaded == nil {
			t.Fatalf("expected %s in store, got %v (err %v)", name, loaded, err)
		}
	}
}

func TestWriteWorker_DeleteAfterUpsertWins(t *testing.T) {
	store := newTestSymbolStore(t)
	defer store.Close()
	app := &App{
		Config:      testWriteQueueConfig(8, 8, 5*time.Second),
		symbolStore: store,
	}
	if err := store.UpsertFile(testFileSymbols("gone.cbl", "GONE")); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := app.initWriteQueue(); err != nil {
		t.Fatalf("initWriteQueue failed: %v", err)
	}

	_ = app.enqueueSymbolWrite(ports.WriteRequest{
		Operation: ports.WriteOperationUpsertFile,
		FilePath:  "gone.cbl",
		File:      testFileSymbols("gone.cbl", "GONE"),
	})
	_ = app.enqueueSymbolWrite(ports.WriteRequest{
		Operation: ports.WriteOperationDeleteFile,
		FilePath:  "gone.cbl",
	})
	if err := app.stopWriteWorker(context.Background()); err != nil {
		t.Fatalf("stopWriteWorker failed: %v", err)
	}

	loaded, err := store.LoadFile("gone.cbl")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected the delete to win over the earlier upsert")
	}
}

func TestWriteWorker_FailedBatchIsSpooledForRetry(t *testing.T) {
	store := newTestSymbolStore(t)
	defer store.Close()
	spool, err := queue.OpenSQLiteSpool(filepath.Join(t.TempDir(), "spool.db"), "default")
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	defer spool.Close()
	app := &App{
		Config:      testWriteQueueConfig(8, 8, time.Second),
		symbolStore: store,
		writeSpool:  spool,
	}

	bad := ports.WriteRequest{ID: "bad", Operation: "rename_file", FilePath: "odd.cbl"}
	if err := app.commitWrites(writeBatch{requests: []ports.WriteRequest{bad}, memory: []ports.WriteRequest{bad}}); err == nil {
		t.Fatal("expected the unsupported operation to fail the batch")
	}
	rows, err := spool.DequeueBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(rows) != 1 || rows[0].Request.ID != "bad" {
		t.Fatalf("expected the failed write in the spool, got %+v", rows)
	}

	if err := app.commitWrites(writeBatch{requests: []ports.WriteRequest{rows[0].Request}, spooled: rows}); err == nil {
		t.Fatal("expected the replayed write to fail again")
	}
	stats, err := spool.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Pending != 1 || stats.Retrying != 1 || stats.LastError == "" {
		t.Fatalf("expected one rescheduled write, got %+v", stats)
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := config.WriteQueueConfig{RetryBaseDelay: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	cases := map[int]time.Duration{
		0: 100 * time.Millisecond,
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: time.Second,
		9: time.Second,
	}
	for attempts, want := range cases {
		if got := backoffDelay(cfg, attempts); got != want {
			t.Fatalf("backoffDelay(%d) = %s, want %s", attempts, got, want)
		}
	}
}

func newTestSymbolStore(t *testing.T) *symbols.SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	store, err := symbols.OpenSQLiteStore(filepath.Join(dir, "symbols.db"), "default")
	if err != nil {
		t.Fatalf("open symbol store: %v", err)
	}
	return store
}

func testFileSymbols(path, program string) *symbols.FileSymbols {
	return &symbols.FileSymbols{
		Path:      path,
		ModTime:   1,
		Format:    "fixed",
		ProgramID: program,
		Table:     symbols.NewSymbolTable(path, 1),
		Callables: []symbols.Symbol{{Name: program, Line: 1}},
	}
}

func testWriteQueueConfig(memoryCap, batchSize int, flushInterval time.Duration) *config.Config {
	enabled := true
	disabled := false
	return &config.Config{
		DB: config.Database{ProjectKey: "default"},
		WriteQueue: config.WriteQueueConfig{
			Enabled:              &enabled,
			MemoryCapacity:       memoryCap,
			PersistentEnabled:    &disabled,
			BatchSize:            batchSize,
			FlushInterval:        flushInterval,
			ShutdownDrainTimeout: 2 * time.Second,
			RetryBaseDelay:       10 * time.Millisecond,
			RetryMaxDelay:        100 * time.Millisecond,
			SyncFallback:         &enabled,
		},
	}
}
