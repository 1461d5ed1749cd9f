package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"cobolscan/internal/core/ports"
	"cobolscan/internal/core/watcher"
	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/shared/util"
)

func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(watcher.Options{
		Debounce:     a.Config.Watch.Debounce,
		ExcludeDirs:  a.Config.Exclude.Dirs,
		ExcludeFiles: a.Config.Exclude.Files,
		Extensions:   a.watchedExtensions(),
	}, a.HandleChanges)
	if err != nil {
		return err
	}
	a.activeWatcher = w
	return w.Watch(a.Config.WatchPaths)
}

func (a *App) StopWatcher() error {
	if a.activeWatcher == nil {
		return nil
	}
	err := a.activeWatcher.Close()
	a.activeWatcher = nil
	return err
}

// HandleChanges is the watcher callback.
func (a *App) HandleChanges(changes []watcher.Change) {
	a.Rescan(context.Background(), changes)
}

// Rescan brings the workspace up to date with changes: removed files are
// forgotten, changed sources are rescanned, and so is every file that
// includes a changed copybook. A newly created file may satisfy a COPY that
// was missing, so files with missing copybooks are retried as well.
func (a *App) Rescan(ctx context.Context, changes []watcher.Change) []ports.ScanReport {
	if len(changes) == 0 {
		return nil
	}
	slog.Info("detected changes", "count", len(changes))
	started := time.Now()

	a.cfgMu.RLock()
	resolver, limiter := a.resolver, a.rescanLimiter
	a.cfgMu.RUnlock()
	resolver.Invalidate()

	removed := make(map[string]bool)
	targets := make(map[string]bool)
	created := false
	for _, ch := range changes {
		path := filepath.Clean(ch.Path)
		for _, dep := range a.dependentsOf(ctx, path) {
			targets[dep] = true
		}
		a.scanCache.Invalidate(path)
		if ch.Removed {
			removed[path] = true
			continue
		}
		if _, known := a.cache.FileModTime(path); !known {
			created = true
		}
		if a.isSourcePath(path) {
			targets[path] = true
		}
	}
	if created {
		for _, path := range a.filesMissingCopybooks() {
			targets[path] = true
		}
	}

	for path := range removed {
		a.forget(path)
		delete(targets, path)
	}

	paths := util.SortedStringKeys(targets)
	reports := make([]ports.ScanReport, 0, len(paths))
	for _, path := range paths {
		if !limiter.Allow(1) {
			slog.Debug("rescan rate limit reached", "path", path)
			if err := limiter.Wait(ctx, 1); err != nil {
				slog.Warn("rescan interrupted", "remaining", len(paths)-len(reports), "error", err)
				break
			}
		}
		a.scanCache.Invalidate(path)
		report, err := a.ProcessFile(ctx, path)
		if err != nil {
			slog.Warn("failed to re-process file", "path", path, "error", err)
			continue
		}
		reports = append(reports, report)
	}

	slog.Info("rescan complete", "files", len(reports), "removed", len(removed), "duration", time.Since(started).Round(time.Millisecond))
	a.emitUpdate(ports.WatchUpdate{Reports: reports, FileCount: a.fileCount()})
	return reports
}

// dependentsOf returns the files scanned with the copybook at path, as known
// to the cache or the store.
func (a *App) dependentsOf(ctx context.Context, path string) []string {
	deps := a.cache.Dependents(path)
	if a.symbolStore == nil {
		return deps
	}
	stored, err := a.symbolStore.Dependents(ctx, path)
	if err != nil {
		slog.Warn("failed to load copybook dependents", "path", path, "error", err)
		return deps
	}
	return append(deps, stored...)
}

func (a *App) filesMissingCopybooks() []string {
	var out []string
	for _, f := range a.indexedFiles() {
		for _, d := range f.Diagnostics {
			if d.Code == scanner.CodeMissingCopybook {
				out = append(out, f.Path)
				break
			}
		}
	}
	return out
}
