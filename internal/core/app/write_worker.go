package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cobolscan/internal/core/config"
	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/data/queue"
	"cobolscan/internal/engine/symbols"
	"cobolscan/internal/shared/observability"
)

// symbolWriter is implemented by both the store and one of its batches.
type symbolWriter interface {
	UpsertFile(file *symbols.FileSymbols) error
	DeleteFile(path string) error
	PruneToPaths(paths []string) error
}

// writeBatch is one unit of work for the symbol store: requests taken from
// the memory queue plus rows replayed from the spool.
type writeBatch struct {
	requests []ports.WriteRequest
	memory   []ports.WriteRequest
	spooled  []ports.SpoolRow
	closed   bool
}

func (b writeBatch) empty() bool { return len(b.requests) == 0 }

func (a *App) initWriteQueue() error {
	if a == nil || a.Config == nil || a.symbolStore == nil {
		return nil
	}
	wq := a.Config.WriteQueue
	if !wq.QueueEnabled() {
		return nil
	}
	a.writeQueue = queue.NewMemoryQueue(wq.MemoryCapacity)
	if wq.PersistentQueueEnabled() {
		spool, err := queue.OpenSQLiteSpool(a.resolveWriteSpoolPath(a.Config), a.projectKey())
		if err != nil {
			return err
		}
		a.writeSpool = spool
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	go a.runWriteWorker(ctx)
	return nil
}

// resolveWriteSpoolPath places a relative spool path under the project
// state directory.
func (a *App) resolveWriteSpoolPath(cfg *config.Config) string {
	spoolPath := strings.TrimSpace(cfg.WriteQueue.SpoolPath)
	if spoolPath == "" {
		return ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		return spoolPath
	}
	resolved, err := config.ResolvePaths(cfg, cwd)
	if err != nil || resolved.SpoolPath == "" {
		return spoolPath
	}
	return resolved.SpoolPath
}

func (a *App) batchSize() int {
	if n := a.Config.WriteQueue.BatchSize; n > 0 {
		return n
	}
	return 1
}

func (a *App) runWriteWorker(ctx context.Context) {
	defer close(a.workerDone)

	flushInterval := a.Config.WriteQueue.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 100 * time.Millisecond
	}
	for ctx.Err() == nil {
		batch, err := a.collectWrites(ctx, flushInterval)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			slog.Warn("collecting symbol writes failed", "error", err)
		}
		if !batch.empty() {
			_ = a.commitWrites(batch)
		}
		a.updateQueueMetrics()
		if batch.closed && batch.empty() {
			return
		}
	}
}

// collectWrites fills one batch, waiting up to wait for the memory queue and
// topping it up from due spool rows. A spool failure still returns the
// memory part.
func (a *App) collectWrites(ctx context.Context, wait time.Duration) (writeBatch, error) {
	size := a.batchSize()
	var batch writeBatch
	if a.writeQueue != nil {
		reqs, err := a.writeQueue.DequeueBatch(ctx, size, wait)
		switch {
		case errors.Is(err, io.EOF):
			batch.closed = true
		case err != nil:
			return batch, err
		}
		batch.memory = reqs
		batch.requests = append(batch.requests, reqs...)
	}
	if a.writeSpool == nil || len(batch.requests) >= size {
		return batch, nil
	}
	rows, err := a.writeSpool.DequeueBatch(ctx, size-len(batch.requests))
	if err != nil {
		return batch, err
	}
	batch.spooled = rows
	for _, row := range rows {
		batch.requests = append(batch.requests, row.Request)
	}
	return batch, nil
}

// commitWrites applies batch in one transaction. On failure the memory part
// is spilled to the spool and the spooled part is rescheduled with backoff.
func (a *App) commitWrites(batch writeBatch) error {
	started := time.Now()
	if err := a.applyWriteBatch(batch.requests); err != nil {
		observability.WriteQueueApplyErrorsTotal.Inc()
		slog.Warn("symbol store write failed", "error", err, "batch_size", len(batch.requests))
		a.requeueFailed(batch, err)
		return err
	}
	observability.WriteQueueProcessedTotal.Add(float64(len(batch.requests)))
	observability.WriteQueueFlushLatencySeconds.Observe(time.Since(started).Seconds())

	if len(batch.spooled) == 0 {
		return nil
	}
	ids := make([]int64, len(batch.spooled))
	for i, row := range batch.spooled {
		ids[i] = row.ID
	}
	if err := a.writeSpool.Ack(ids); err != nil {
		slog.Warn("acknowledging spooled writes failed", "error", err, "count", len(ids))
		return err
	}
	return nil
}

func (a *App) requeueFailed(batch writeBatch, cause error) {
	if a.writeSpool == nil {
		return
	}
	for _, req := range batch.memory {
		if err := a.writeSpool.Enqueue(req); err != nil {
			slog.Warn("spilling symbol write failed", "error", err, "operation", req.Operation, "path", req.FilePath)
			continue
		}
		observability.WriteQueueSpilledTotal.Inc()
	}
	if len(batch.spooled) == 0 {
		return
	}
	attempts := 0
	for _, row := range batch.spooled {
		attempts = max(attempts, row.Attempts)
	}
	next := time.Now().Add(backoffDelay(a.Config.WriteQueue, attempts+1))
	if err := a.writeSpool.Nack(batch.spooled, next, cause.Error()); err != nil {
		slog.Warn("rescheduling spooled writes failed", "error", err, "count", len(batch.spooled))
		return
	}
	observability.WriteQueueRetryTotal.Add(float64(len(batch.spooled)))
}

// backoffDelay doubles the base delay per attempt, capped at the max delay.
func backoffDelay(cfg config.WriteQueueConfig, attempts int) time.Duration {
	delay := cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := cfg.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	for i := 1; i < attempts && delay < maxDelay; i++ {
		delay *= 2
	}
	return min(delay, maxDelay)
}

// enqueueSymbolWrite hands req to the write pipeline. With the queue
// disabled the write is applied inline.
func (a *App) enqueueSymbolWrite(req ports.WriteRequest) error {
	if a == nil || a.symbolStore == nil {
		return nil
	}
	if a.writeQueue == nil {
		return applyWrite(a.symbolStore, req)
	}
	if req.ProjectKey == "" {
		req.ProjectKey = a.projectKey()
	}

	switch result := a.writeQueue.Enqueue(req); result {
	case ports.EnqueueAccepted:
		observability.WriteQueueEnqueuedTotal.Inc()
		a.updateQueueMetrics()
		return nil
	case ports.EnqueueDropped:
		observability.WriteQueueDroppedTotal.Inc()
		return a.overflowWrite(req)
	default:
		return cerrors.New(cerrors.CodeInternal, fmt.Sprintf("unknown enqueue result %q", result))
	}
}

// overflowWrite handles a request the memory queue had no room for.
func (a *App) overflowWrite(req ports.WriteRequest) error {
	var spoolErr error
	if a.writeSpool != nil {
		if spoolErr = a.writeSpool.Enqueue(req); spoolErr == nil {
			observability.WriteQueueSpilledTotal.Inc()
			a.updateQueueMetrics()
			return nil
		}
	}
	if a.Config.WriteQueue.SyncFallbackEnabled() {
		return applyWrite(a.symbolStore, req)
	}
	if spoolErr != nil {
		return spoolErr
	}
	return cerrors.AddContext(
		cerrors.New(cerrors.CodeConflict, "write queue full and sync fallback disabled"),
		cerrors.CtxPath, req.FilePath)
}

func (a *App) applyWriteBatch(reqs []ports.WriteRequest) error {
	if a == nil || a.symbolStore == nil || len(reqs) == 0 {
		return nil
	}
	b, err := a.symbolStore.BeginBatch()
	if err != nil {
		return err
	}
	defer b.Rollback()

	for _, req := range reqs {
		if err := applyWrite(b, req); err != nil {
			return err
		}
	}
	return b.Commit()
}

func applyWrite(w symbolWriter, req ports.WriteRequest) error {
	var err error
	switch req.Operation {
	case ports.WriteOperationUpsertFile:
		err = w.UpsertFile(req.File)
	case ports.WriteOperationDeleteFile:
		err = w.DeleteFile(req.FilePath)
	case ports.WriteOperationPruneToPaths:
		err = w.PruneToPaths(req.Paths)
	default:
		return cerrors.New(cerrors.CodeNotSupported, fmt.Sprintf("unsupported write operation %q", req.Operation))
	}
	if err != nil && req.FilePath != "" {
		return cerrors.AddContext(err, cerrors.CtxPath, req.FilePath)
	}
	return err
}

// stopWriteWorker stops the worker, flushes every pending write and closes
// the queue and spool.
func (a *App) stopWriteWorker(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.workerCancel != nil {
		a.workerCancel()
		a.workerCancel = nil
	}
	if a.workerDone != nil {
		select {
		case <-a.workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
		a.workerDone = nil
	}
	if err := a.drainWriteQueue(ctx); err != nil {
		return err
	}
	if a.writeQueue != nil {
		if err := a.writeQueue.Close(); err != nil {
			return err
		}
		a.writeQueue = nil
	}
	if a.writeSpool != nil {
		if err := a.writeSpool.Close(); err != nil {
			return err
		}
		a.writeSpool = nil
	}
	return nil
}

func (a *App) drainWriteQueue(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := a.collectWrites(ctx, 0)
		if err != nil {
			return err
		}
		if batch.empty() {
			return nil
		}
		if err := a.commitWrites(batch); err != nil {
			return err
		}
	}
}

func (a *App) updateQueueMetrics() {
	if a == nil {
		return
	}
	if mq, ok := a.writeQueue.(*queue.MemoryQueue); ok {
		observability.WriteQueueDepth.Set(float64(mq.Len()))
	}
	if a.writeSpool != nil {
		if count, err := a.writeSpool.PendingCount(context.Background()); err == nil {
			observability.WriteSpoolDepth.Set(float64(count))
		}
	}
}

func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	drainTimeout := 10 * time.Second
	if a.Config != nil && a.Config.WriteQueue.ShutdownDrainTimeout > 0 {
		drainTimeout = a.Config.WriteQueue.ShutdownDrainTimeout
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, drainTimeout)
		defer cancel()
	}
	if err := a.StopWatcher(); err != nil {
		slog.Warn("failed to stop watcher", "error", err)
	}
	a.closeProbe()
	if err := a.stopWriteWorker(ctx); err != nil {
		return err
	}
	if a.symbolStore != nil {
		if err := a.symbolStore.Close(); err != nil {
			return err
		}
		a.symbolStore = nil
	}
	return nil
}
