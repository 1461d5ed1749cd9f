package watcher

import (
	"crypto/sha256"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cobolscan/internal/shared/observability"
	"cobolscan/internal/shared/util"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Change is one settled file system change. Removed is set when the file
// no longer exists at flush time.
type Change struct {
	Path    string
	Removed bool
}

type Options struct {
	Debounce     time.Duration
	ExcludeDirs  []string
	ExcludeFiles []string
	// Extensions limits events to COBOL sources and copybooks. Entries may
	// be given with or without the leading dot.
	Extensions []string
}

// Watcher watches directory trees for COBOL source and copybook changes.
// Events are debounced and a write that leaves the content unchanged is
// dropped.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	onChange     func([]Change)
	callbackMu   sync.Mutex

	mu       sync.Mutex
	debounce time.Duration
	exts     map[string]bool
	pending  map[string]struct{}
	hashes   map[string][sha256.Size]byte
	timer    *time.Timer
	closed   bool
}

func NewWatcher(opts Options, onChange func([]Change)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	dirs, err := compileGlobs(opts.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	files, err := compileGlobs(opts.ExcludeFiles)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:    fsw,
		excludeDirs:  dirs,
		excludeFiles: files,
		onChange:     onChange,
		debounce:     opts.Debounce,
		pending:      make(map[string]struct{}),
		hashes:       make(map[string][sha256.Size]byte),
	}
	w.SetExtensions(opts.Extensions)
	return w, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// SetExtensions replaces the extension filter. An empty list accepts every
// file.
func (w *Watcher) SetExtensions(extensions []string) {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		exts[normalized] = true
	}
	w.mu.Lock()
	w.exts = exts
	w.mu.Unlock()
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = debounce
}

// Watch adds every non-excluded directory below paths and starts the
// event loop. Existing files are hashed so an unchanged rewrite is not
// reported.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path, false); err != nil {
			return err
		}
	}
	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string, schedule bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		if schedule {
			w.scheduleChange(path)
		} else if sum, ok := hashFile(path); ok {
			w.mu.Lock()
			w.hashes[path] = sum
			w.mu.Unlock()
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name, true); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.mu.Lock()
	paths := util.SortedStringKeys(w.pending)
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	changes := make([]Change, 0, len(paths))
	for _, path := range paths {
		sum, ok := hashFile(path)

		w.mu.Lock()
		prev, known := w.hashes[path]
		if !ok {
			delete(w.hashes, path)
		} else {
			w.hashes[path] = sum
		}
		w.mu.Unlock()

		switch {
		case !ok:
			if !fileExists(path) {
				changes = append(changes, Change{Path: path, Removed: true})
			} else {
				slog.Warn("unable to read changed file", "path", path)
			}
		case known && prev == sum:
			slog.Debug("ignoring unchanged file", "path", path)
		default:
			changes = append(changes, Change{Path: path})
		}
	}

	if len(changes) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(changes)
	}
}

func hashFile(path string) ([sha256.Size]byte, bool) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, false
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, false
	}
	copy(sum[:], h.Sum(nil))
	return sum, true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	normalized := util.NormalizePatternPath(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) || g.Match(normalized) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := filepath.Base(path)

	w.mu.Lock()
	exts := w.exts
	w.mu.Unlock()
	if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(base))] {
		return true
	}

	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsWatcher.Close()
}
