package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads the configuration file when its content changes and hands
// every config that loads and validates to the callback. Saves that leave
// the bytes unchanged are ignored.
type Watcher struct {
	path     string
	callback func(*Config)
	adjust   []func(*Config)

	reloadMu sync.Mutex
	digest   []byte

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWatcher(path string, callback func(*Config)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		callback: callback,
		stop:     make(chan struct{}),
	}
}

// Adjust registers fn to run on every reloaded config before the callback,
// so command-line overrides survive a reload.
func (w *Watcher) Adjust(fn func(*Config)) *Watcher {
	w.adjust = append(w.adjust, fn)
	return w
}

func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors save atomically by replacing the file, so watch the directory.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	w.digest = fileDigest(w.path)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fsw.Close()
		slog.Debug("starting config watcher", "path", w.path)

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, w.reload)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *Watcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	digest := fileDigest(w.path)
	if digest == nil || bytes.Equal(digest, w.digest) {
		return
	}
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("keeping current configuration; reload failed", "path", w.path, "error", err)
		return
	}
	w.digest = digest
	for _, fn := range w.adjust {
		fn(cfg)
	}
	slog.Info("configuration reloaded", "path", w.path)
	if w.callback != nil {
		w.callback(cfg)
	}
}

func fileDigest(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	sum := sha256.Sum256(data)
	return sum[:]
}
