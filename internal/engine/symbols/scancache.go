package symbols

// ModTimeFunc returns the current timestamp of path, 0 when it is gone.
type ModTimeFunc func(path string) int64

// ScanCache keeps the results of recent scans keyed by source path. An entry
// is only served while the source and every copybook it was scanned with
// still carry the recorded timestamps.
type ScanCache struct {
	lru *LRUCache[string, *FileSymbols]
}

func NewScanCache(capacity int) *ScanCache {
	return &ScanCache{lru: NewLRUCache[string, *FileSymbols](capacity)}
}

// Get returns the cached scan of path when it is still current.
func (c *ScanCache) Get(path string, modTime ModTimeFunc) (*FileSymbols, bool) {
	f, ok := c.lru.Get(path)
	if !ok {
		return nil, false
	}
	if !f.Current(modTime) {
		c.lru.Remove(path)
		return nil, false
	}
	return f, true
}

// Current reports whether f was built from the file and copybook versions
// that modTime reports now.
func (f *FileSymbols) Current(modTime ModTimeFunc) bool {
	if f.ModTime == 0 || modTime(f.Path) != f.ModTime {
		return false
	}
	for _, dep := range f.Copybooks {
		if dep.ModTime != 0 && modTime(dep.Path) != dep.ModTime {
			return false
		}
	}
	return true
}

// Put stores f unless the scan was aborted.
func (c *ScanCache) Put(f *FileSymbols) {
	if f == nil || f.Aborted {
		return
	}
	c.lru.Put(f.Path, f)
}

func (c *ScanCache) Invalidate(path string) { c.lru.Remove(path) }

func (c *ScanCache) Len() int { return c.lru.Len() }

// Clear drops every entry, for example after the scanner settings changed.
func (c *ScanCache) Clear() { c.lru.Clear() }
