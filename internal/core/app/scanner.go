package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"cobolscan/internal/core/app/helpers"
	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/engine/symbols"
	"cobolscan/internal/shared/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InitialScan scans every source under the watch paths and prunes persisted
// rows of files that are gone.
func (a *App) InitialScan(ctx context.Context) error {
	ctx, span := observability.Tracer.Start(ctx, "App.InitialScan")
	defer span.End()

	roots := helpers.UniqueScanRoots(a.Config.WatchPaths)
	files, err := a.ScanDirectories(roots)
	if err != nil {
		return cerrors.AddContext(err, cerrors.CtxOperation, "scan_directories")
	}

	started := time.Now()
	reports := a.ProcessFiles(ctx, files)
	if err := ctx.Err(); err != nil {
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeScanAborted, "initial scan cancelled"), cerrors.CtxOperation, "initial_scan")
	}
	slog.Info("initial scan complete", "files", len(files), "duration", time.Since(started).Round(time.Millisecond))

	if err := a.enqueueSymbolWrite(ports.WriteRequest{
		ID:        uuid.NewString(),
		Operation: ports.WriteOperationPruneToPaths,
		Paths:     files,
	}); err != nil {
		slog.Warn("failed to prune persisted symbol rows after initial scan", "error", err)
	}
	a.emitUpdate(ports.WatchUpdate{Reports: reports, FileCount: a.fileCount()})
	return nil
}

// ScanDirectories lists the source files under paths, honouring the
// exclude globs.
func (a *App) ScanDirectories(paths []string) ([]string, error) {
	a.cfgMu.RLock()
	dirGlobs, fileGlobs := a.excludeDirs, a.excludeFiles
	a.cfgMu.RUnlock()

	var files []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && helpers.MatchesAny(dirGlobs, path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !a.isSourcePath(path) || helpers.MatchesAny(fileGlobs, path) {
				return nil
			}
			files = append(files, filepath.Clean(path))
			return nil
		})
		if err != nil {
			return nil, cerrors.AddContext(
				cerrors.Wrap(err, cerrors.CodeNotFound, "walk watch path"), cerrors.CtxPath, root)
		}
	}
	return files, nil
}

// ProcessFiles scans files on the configured number of workers. Reports come
// back in input order; files skipped after cancellation are left out.
func (a *App) ProcessFiles(ctx context.Context, files []string) []ports.ScanReport {
	workers := a.Config.App.ScanWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	reports := make([]ports.ScanReport, len(files))
	jobs := make(chan int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report, err := a.ProcessFile(ctx, files[i])
				if err != nil {
					slog.Warn("failed to process file", "path", files[i], "error", err)
				}
				reports[i] = report
			}
		}()
	}

feed:
	for i := range files {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	out := reports[:0]
	for _, r := range reports {
		if r.Path != "" {
			out = append(out, r)
		}
	}
	return out
}

// ProcessFile scans one source file, records its symbols in the workspace
// caches and queues them for persistence. A scan still current in the scan
// cache or the store is reused.
func (a *App) ProcessFile(ctx context.Context, path string) (ports.ScanReport, error) {
	ctx, span := observability.Tracer.Start(ctx, "App.ProcessFile",
		trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	path = filepath.Clean(path)
	report := ports.ScanReport{SessionID: a.SessionID, Path: path}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	started := time.Now()
	settings, resolver, open := a.scanSetup()

	if f, ok := a.reuseScan(path, resolver.ModTime); ok {
		a.remember(f)
		report = reportFor(a.SessionID, f)
		report.Cached = true
		report.Duration = time.Since(started)
		return report, nil
	}

	src, err := scanner.LoadFile(path, nil)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	rec := symbols.NewRecorder(a.cache, settings.ParseCopybooksForReferences)
	sc := scanner.New(src, scanner.Options{
		Settings: settings,
		Resolver: resolver,
		Events:   rec,
		Open:     open,
	})

	scanErr := sc.Scan(ctx)
	switch {
	case scanErr != nil && !cerrors.IsCode(scanErr, cerrors.CodeScanAborted):
		a.cache.RemoveFile(path)
		span.RecordError(scanErr)
		return report, scanErr
	case scanErr != nil && ctx.Err() != nil:
		// Cancelled part way; keep whatever the previous scan recorded.
		a.cache.RemoveFile(path)
		report.Aborted = true
		return report, scanErr
	case scanErr == nil && !sc.LooksLikeCOBOL:
		slog.Debug("skipping non-COBOL file", "path", path)
		a.forget(path)
		report.Duration = time.Since(started)
		return report, nil
	}

	f := symbols.Build(sc, rec.Table())
	if f.Aborted {
		// The scan events never finished, so the cache holds partial symbols.
		a.cache.RemoveFile(path)
		slog.Warn("scan aborted", "path", path, "error", scanErr)
	}
	a.scanCache.Put(f)
	a.remember(f)
	if err := a.enqueueSymbolWrite(ports.WriteRequest{
		ID:        uuid.NewString(),
		Operation: ports.WriteOperationUpsertFile,
		FilePath:  path,
		File:      f,
	}); err != nil {
		slog.Warn("failed to persist symbols", "path", path, "error", err)
	}

	report = reportFor(a.SessionID, f)
	report.Tokens = len(sc.Tokens())
	report.Duration = time.Since(started)
	return report, nil
}

// reuseScan returns a previous scan of path that is still current, first
// from the scan cache and then, once per session, from the store.
func (a *App) reuseScan(path string, modTime symbols.ModTimeFunc) (*symbols.FileSymbols, bool) {
	if f, ok := a.scanCache.Get(path, modTime); ok {
		return f, true
	}
	if a.symbolStore == nil {
		return nil, false
	}
	if _, seen := a.cache.FileModTime(path); seen {
		return nil, false
	}
	f, err := a.symbolStore.LoadFile(path)
	if err != nil {
		slog.Warn("failed to load persisted symbols", "path", path, "error", err)
		return nil, false
	}
	if f == nil || f.Aborted || !f.Current(modTime) {
		return nil, false
	}
	a.cache.Restore(f)
	a.scanCache.Put(f)
	return f, true
}

func reportFor(sessionID string, f *symbols.FileSymbols) ports.ScanReport {
	return ports.ScanReport{
		SessionID:   sessionID,
		Path:        f.Path,
		Format:      f.Format,
		Copybooks:   len(f.Copybooks),
		Diagnostics: f.Diagnostics,
		Aborted:     f.Aborted,
	}
}

// Outline scans path without touching the workspace caches and returns its
// tokens in source order.
func (a *App) Outline(ctx context.Context, path string) ([]*scanner.Token, error) {
	settings, resolver, open := a.scanSetup()
	src, err := scanner.LoadFile(path, nil)
	if err != nil {
		return nil, err
	}
	sc := scanner.New(src, scanner.Options{Settings: settings, Resolver: resolver, Open: open})
	if err := sc.Scan(ctx); err != nil {
		return sc.Tokens(), err
	}
	if !sc.LooksLikeCOBOL {
		return nil, cerrors.AddContext(
			cerrors.New(cerrors.CodeValidationError, fmt.Sprintf("%s does not look like COBOL", path)),
			cerrors.CtxPath, path)
	}
	return sc.Tokens(), nil
}
