package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cobolscan/internal/core/app/helpers"
	"cobolscan/internal/core/config"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/core/watcher"
	"cobolscan/internal/engine/copybook"
	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/engine/symbols"
	"cobolscan/internal/shared/observability"
	"cobolscan/internal/shared/util"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

// App owns the workspace: the shared symbol caches, the copybook resolver,
// the persisted symbol store and its write pipeline, and the watcher.
type App struct {
	Config    *config.Config
	SessionID string

	cache     *symbols.GlobalCache
	scanCache *symbols.ScanCache

	// cfgMu guards the scan setup, which is swapped on config reload.
	cfgMu         sync.RWMutex
	settings      scanner.Settings
	resolver      *copybook.Resolver
	urlProbe      *copybook.URLProbe
	excludeDirs   []glob.Glob
	excludeFiles  []glob.Glob
	sourceExts    map[string]bool
	watchExts     map[string]bool
	rescanLimiter *util.Limiter

	indexMu sync.RWMutex
	index   map[string]*symbols.FileSymbols

	symbolStore  *symbols.SQLiteStore
	writeQueue   ports.WriteQueuePort
	writeSpool   ports.WriteSpoolPort
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	activeWatcher *watcher.Watcher

	updateMu sync.RWMutex
	onUpdate func(ports.WatchUpdate)
}

var _ ports.SymbolStore = (*symbols.SQLiteStore)(nil)

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		Config:    cfg,
		SessionID: uuid.NewString(),
		cache:     symbols.NewGlobalCache(),
		scanCache: symbols.NewScanCache(cfg.App.ScanCacheSize),
		index:     make(map[string]*symbols.FileSymbols),
	}
	if err := a.applyConfig(cfg); err != nil {
		return nil, err
	}
	if err := a.initSymbolStore(); err != nil {
		a.closeProbe()
		return nil, err
	}
	if err := a.initWriteQueue(); err != nil {
		_ = a.symbolStore.Close()
		a.closeProbe()
		return nil, err
	}
	return a, nil
}

// applyConfig rebuilds everything a scan reads from cfg and installs it.
func (a *App) applyConfig(cfg *config.Config) error {
	excludeDirs, err := helpers.CompileGlobs(cfg.Exclude.Dirs, "exclude dir")
	if err != nil {
		return err
	}
	excludeFiles, err := helpers.CompileGlobs(cfg.Exclude.Files, "exclude file")
	if err != nil {
		return err
	}

	var urlProbe *copybook.URLProbe
	res := copybook.NewResolver(cfg.Copybook, projectRoot(cfg), copybook.OSProbe{})
	if hasRemoteDirs(cfg.Copybook.Dirs) {
		urlProbe = copybook.NewURLProbe(nil, cfg.Copybook.RemoteProbeRate, cfg.Copybook.RemoteProbeBurst)
		res.WithRemote(copybook.NewURLResolver(cfg.Copybook, urlProbe))
	}

	a.cfgMu.Lock()
	previous := a.urlProbe
	a.Config = cfg
	a.settings = scanner.SettingsFromConfig(cfg.Scanner)
	a.resolver = res
	a.urlProbe = urlProbe
	a.excludeDirs = excludeDirs
	a.excludeFiles = excludeFiles
	a.sourceExts = helpers.ExtensionSet(cfg.Scanner.Extensions)
	a.watchExts = helpers.ExtensionSet(cfg.Scanner.Extensions, cfg.Copybook.Extensions)
	a.rescanLimiter = util.NewLimiter(cfg.Watch.RescanRate, cfg.Watch.RescanBurst)
	a.cfgMu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

// UpdateConfig switches scanning to cfg. Cached scans are dropped since they
// were produced with the old settings. Store and write queue settings only
// take effect on restart.
func (a *App) UpdateConfig(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cfg == nil {
		return os.ErrInvalid
	}
	if cfg.DB != a.Config.DB {
		slog.Warn("database settings changed; restart to apply them")
	}
	if err := a.applyConfig(cfg); err != nil {
		return err
	}
	a.scanCache.Clear()
	if a.activeWatcher != nil {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
		a.activeWatcher.SetExtensions(a.watchedExtensions())
	}
	slog.Info("configuration applied", "watch_paths", len(cfg.WatchPaths))
	return nil
}

func projectRoot(cfg *config.Config) string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	resolved, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return cwd
	}
	return resolved.ProjectRoot
}

func hasRemoteDirs(dirs []string) bool {
	for _, d := range dirs {
		if util.IsURL(d) {
			return true
		}
	}
	return false
}

// scanSetup returns the settings, resolver and copybook opener for one scan.
func (a *App) scanSetup() (scanner.Settings, *copybook.Resolver, scanner.OpenFunc) {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	var open scanner.OpenFunc
	if a.urlProbe != nil {
		open = a.urlProbe.OpenFunc(nil)
	}
	return a.settings, a.resolver, open
}

func (a *App) isSourcePath(path string) bool {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.sourceExts[strings.ToLower(filepath.Ext(path))]
}

func (a *App) watchedExtensions() []string {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return util.SortedStringKeys(a.watchExts)
}

func (a *App) SetUpdateHandler(handler func(ports.WatchUpdate)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update ports.WatchUpdate) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

// CurrentUpdate reports the last scan of every indexed file.
func (a *App) CurrentUpdate() ports.WatchUpdate {
	files := a.indexedFiles()
	reports := make([]ports.ScanReport, 0, len(files))
	for _, f := range files {
		reports = append(reports, reportFor(a.SessionID, f))
	}
	return ports.WatchUpdate{Reports: reports, FileCount: len(files)}
}

// Cache exposes the workspace symbol cache.
func (a *App) Cache() *symbols.GlobalCache { return a.cache }

// remember records f as the latest scan of its file.
func (a *App) remember(f *symbols.FileSymbols) {
	a.indexMu.Lock()
	a.index[f.Path] = f
	n := len(a.index)
	a.indexMu.Unlock()
	observability.WorkspaceFiles.Set(float64(n))
}

// forget drops everything known about path, in memory and on disk.
func (a *App) forget(path string) {
	a.cache.ForgetFile(path)
	a.scanCache.Invalidate(path)
	a.indexMu.Lock()
	delete(a.index, path)
	n := len(a.index)
	a.indexMu.Unlock()
	observability.WorkspaceFiles.Set(float64(n))

	if err := a.enqueueSymbolWrite(ports.WriteRequest{
		ID:        uuid.NewString(),
		Operation: ports.WriteOperationDeleteFile,
		FilePath:  path,
	}); err != nil {
		slog.Warn("failed to delete persisted symbols", "path", path, "error", err)
	}
}

func (a *App) indexed(path string) (*symbols.FileSymbols, bool) {
	a.indexMu.RLock()
	defer a.indexMu.RUnlock()
	f, ok := a.index[path]
	return f, ok
}

func (a *App) indexedFiles() []*symbols.FileSymbols {
	a.indexMu.RLock()
	defer a.indexMu.RUnlock()
	out := make([]*symbols.FileSymbols, 0, len(a.index))
	for _, path := range util.SortedStringKeys(a.index) {
		out = append(out, a.index[path])
	}
	return out
}

func (a *App) fileCount() int {
	a.indexMu.RLock()
	defer a.indexMu.RUnlock()
	return len(a.index)
}

func (a *App) closeProbe() {
	a.cfgMu.Lock()
	p := a.urlProbe
	a.urlProbe = nil
	a.cfgMu.Unlock()
	if p != nil {
		p.Close()
	}
}
