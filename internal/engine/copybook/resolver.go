package copybook

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cobolscan/internal/core/config"
	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/shared/observability"
	"cobolscan/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
)

// remoteTimeout bounds a remote fallback lookup made from Resolve.
const remoteTimeout = 10 * time.Second

// Resolver maps a logical copybook name to a file. It satisfies
// scanner.CopybookResolver and is safe for concurrent scans.
type Resolver struct {
	dirs        []string
	perFileDirs []string
	exts        []string
	probe       ports.FileProbe
	remote      *URLResolver

	mu    sync.RWMutex
	cache map[string]string
}

var _ scanner.CopybookResolver = (*Resolver)(nil)

// NewResolver joins relative copybook directories onto root. URL entries
// in cfg.Dirs are left to the remote resolver.
func NewResolver(cfg config.Copybook, root string, probe ports.FileProbe) *Resolver {
	if probe == nil {
		probe = OSProbe{}
	}
	r := &Resolver{
		exts:  append([]string(nil), cfg.Extensions...),
		probe: probe,
		cache: make(map[string]string),
	}
	for _, d := range cfg.Dirs {
		if util.IsURL(d) {
			continue
		}
		r.dirs = append(r.dirs, rooted(root, d))
	}
	for _, d := range cfg.PerFileDirs {
		if strings.Contains(d, util.FileDirnameVar) {
			r.perFileDirs = append(r.perFileDirs, d)
			continue
		}
		r.perFileDirs = append(r.perFileDirs, rooted(root, d))
	}
	return r
}

func rooted(root, dir string) string {
	if root == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// WithRemote adds u as a fallback once the local directories miss.
func (r *Resolver) WithRemote(u *URLResolver) *Resolver {
	r.remote = u
	return r
}

// Resolve returns the path of the copybook, or "" when it cannot be found.
func (r *Resolver) Resolve(name, inDirectory, sourceFilename string) string {
	name = cleanupFilename(name)
	if name == "" {
		return ""
	}
	inDirectory = cleanupFilename(inDirectory)
	key := name + "\x00" + inDirectory + "\x00" + filepath.Dir(sourceFilename)

	r.mu.RLock()
	path, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		observability.CopybookLookupsTotal.WithLabelValues("cached").Inc()
		return path
	}

	path = r.find(name, inDirectory, sourceFilename)
	if path == "" {
		observability.CopybookLookupsTotal.WithLabelValues("miss").Inc()
	} else {
		observability.CopybookLookupsTotal.WithLabelValues("hit").Inc()
	}

	r.mu.Lock()
	r.cache[key] = path
	r.mu.Unlock()
	return path
}

func (r *Resolver) find(name, inDirectory, sourceFilename string) string {
	ctx := context.Background()
	if filepath.IsAbs(name) && r.isFile(ctx, name) {
		return name
	}

	for _, d := range r.perFileDirs {
		dir := util.ExpandFileDirname(d, sourceFilename)
		if p := r.firstFile(ctx, candidates(dir, name, r.exts, filepath.Join)); p != "" {
			return p
		}
	}
	for _, d := range r.dirs {
		dir := d
		if inDirectory != "" {
			dir = filepath.Join(d, inDirectory)
		}
		if p := r.firstFile(ctx, candidates(dir, name, r.exts, filepath.Join)); p != "" {
			return filepath.Clean(p)
		}
	}

	if r.remote != nil && len(r.remote.roots) > 0 {
		ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		p, err := r.remote.ResolveURL(ctx, name, inDirectory)
		if err != nil && !cerrors.IsCode(err, cerrors.CodeNotFound) {
			slog.Warn("remote copybook lookup failed", "copybook", name, "error", err)
		}
		return p
	}
	return ""
}

func (r *Resolver) firstFile(ctx context.Context, paths []string) string {
	for _, p := range paths {
		if r.isFile(ctx, p) {
			return p
		}
	}
	return ""
}

func (r *Resolver) isFile(ctx context.Context, path string) bool {
	ok, err := r.probe.Exists(ctx, path)
	if err != nil {
		slog.Debug("copybook probe failed", "path", path, "error", err)
		return false
	}
	if !ok {
		return false
	}
	dir, err := r.probe.IsDirectory(ctx, path)
	return err == nil && !dir
}

// ModTime returns the timestamp of a resolved copybook, 0 when unknown.
func (r *Resolver) ModTime(path string) int64 {
	if util.IsURL(path) {
		if r.remote == nil {
			return 0
		}
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		t, err := r.remote.probe.ModTime(ctx, path)
		if err != nil {
			slog.Debug("remote copybook mtime failed", "path", path, "error", err)
		}
		return t
	}
	t, err := r.probe.ModTime(context.Background(), path)
	if err != nil {
		slog.Debug("copybook mtime failed", "path", path, "error", err)
		return 0
	}
	return t
}

// Invalidate forgets every cached lookup. Call it when copybook files
// appear or disappear.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
}

// candidates lists name, then name.ext for each extension when name has
// no extension of its own.
func candidates(dir, name string, exts []string, join func(...string) string) []string {
	out := []string{join(dir, name)}
	if util.HasExtension(name) {
		return out
	}
	for _, ext := range exts {
		out = append(out, join(dir, name+"."+ext))
	}
	return out
}

// cleanupFilename trims name and strips one pair of surrounding quotes.
func cleanupFilename(name string) string {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return trimmed[1 : len(trimmed)-1]
		}
	}
	return trimmed
}

// URLResolver looks copybooks up under http(s) roots.
type URLResolver struct {
	roots []string
	exts  []string
	probe ports.FileProbe
}

// NewURLResolver keeps the URL entries of cfg.Dirs.
func NewURLResolver(cfg config.Copybook, probe ports.FileProbe) *URLResolver {
	u := &URLResolver{exts: append([]string(nil), cfg.Extensions...), probe: probe}
	for _, d := range cfg.Dirs {
		if util.IsURL(d) {
			u.roots = append(u.roots, strings.TrimRight(strings.TrimSpace(d), "/"))
		}
	}
	return u
}

func (u *URLResolver) Roots() []string { return u.roots }

func joinURL(parts ...string) string {
	return strings.Join(parts, "/")
}

// ResolveURL probes each root in order and returns the first location that
// answers. A miss is a NotFound error.
func (u *URLResolver) ResolveURL(ctx context.Context, name, inDirectory string) (string, error) {
	ctx, span := observability.Tracer.Start(ctx, "copybook.ResolveURL")
	defer span.End()
	span.SetAttributes(attribute.String("copybook", name))

	name = cleanupFilename(name)
	inDirectory = strings.Trim(cleanupFilename(inDirectory), "/")
	if name == "" {
		return "", cerrors.New(cerrors.CodeValidationError, "empty copybook name")
	}

	var lastErr error
	for _, root := range u.roots {
		dir := root
		if inDirectory != "" {
			dir = joinURL(root, inDirectory)
		}
		for _, candidate := range candidates(dir, name, u.exts, joinURL) {
			if err := ctx.Err(); err != nil {
				return "", cerrors.Wrap(err, cerrors.CodeInternal, "remote copybook lookup cancelled")
			}
			ok, err := u.probe.Exists(ctx, candidate)
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				observability.CopybookLookupsTotal.WithLabelValues("remote_hit").Inc()
				span.SetAttributes(attribute.String("url", candidate))
				return candidate, nil
			}
		}
	}

	observability.CopybookLookupsTotal.WithLabelValues("remote_miss").Inc()
	if lastErr != nil {
		err := cerrors.Wrap(lastErr, cerrors.CodeInternal, "remote copybook lookup failed")
		span.RecordError(err)
		return "", cerrors.AddContext(err, cerrors.CtxCopybook, name)
	}
	return "", cerrors.AddContext(cerrors.New(cerrors.CodeNotFound, "copybook not found under remote roots"), cerrors.CtxCopybook, name)
}
