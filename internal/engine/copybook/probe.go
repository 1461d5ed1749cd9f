package copybook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/shared/util"
)

// OSProbe answers file questions from the local file system. Timestamps
// are UnixNano.
type OSProbe struct{}

var _ ports.FileProbe = OSProbe{}

func (OSProbe) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (OSProbe) IsDirectory(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (OSProbe) ModTime(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}

const limiterIdleTTL = 5 * time.Minute

// URLProbe checks remote copybooks with HEAD requests. Requests are
// throttled per host.
type URLProbe struct {
	client   *http.Client
	limiters *util.LimiterRegistry
}

var _ ports.FileProbe = (*URLProbe)(nil)

// NewURLProbe uses http.DefaultClient when client is nil. A non-positive
// rate disables throttling.
func NewURLProbe(client *http.Client, rate float64, burst int) *URLProbe {
	if client == nil {
		client = http.DefaultClient
	}
	return &URLProbe{
		client:   client,
		limiters: util.NewLimiterRegistry(rate, burst, limiterIdleTTL),
	}
}

func (p *URLProbe) Close() { p.limiters.Close() }

func (p *URLProbe) head(ctx context.Context, raw string) (*http.Response, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse copybook url %q: %w", raw, err)
	}
	if err := p.limiters.Get(u.Host).Wait(ctx, 1); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build HEAD request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD %s: %w", raw, err)
	}
	resp.Body.Close()
	return resp, nil
}

// Exists is true for a 2xx answer and false for 404 or 410. Any other
// status is an error.
func (p *URLProbe) Exists(ctx context.Context, raw string) (bool, error) {
	resp, err := p.head(ctx, raw)
	if err != nil {
		return false, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return false, nil
	}
	return false, fmt.Errorf("HEAD %s: unexpected status %s", raw, resp.Status)
}

// IsDirectory is always false; remote roots are never listed.
func (p *URLProbe) IsDirectory(context.Context, string) (bool, error) {
	return false, nil
}

// ModTime reads Last-Modified, 0 when the server does not send it.
func (p *URLProbe) ModTime(ctx context.Context, raw string) (int64, error) {
	resp, err := p.head(ctx, raw)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, nil
	}
	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return 0, nil
	}
	t, err := http.ParseTime(lm)
	if err != nil {
		return 0, nil
	}
	return t.UnixNano(), nil
}

// maxRemoteCopybookSize caps a downloaded copybook.
const maxRemoteCopybookSize = 16 << 20

// Fetch downloads a remote copybook. The source carries the Last-Modified
// time, or 0 when the server does not send one.
func (p *URLProbe) Fetch(ctx context.Context, raw string, filter *regexp.Regexp) (*scanner.FileSource, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeValidationError, "parse copybook url")
	}
	if err := p.limiters.Get(u.Host).Wait(ctx, 1); err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeInternal, "wait for copybook host")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeInternal, "build GET request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "fetch copybook"), cerrors.CtxPath, raw)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := cerrors.CodeInternal
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			code = cerrors.CodeNotFound
		}
		return nil, cerrors.AddContext(cerrors.New(code, "fetch copybook: "+resp.Status), cerrors.CtxPath, raw)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteCopybookSize))
	if err != nil {
		return nil, cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "read copybook body"), cerrors.CtxPath, raw)
	}

	var modTime int64
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		modTime = t.UnixNano()
	}
	return scanner.NewFilteredSource(raw, string(body), modTime, filter), nil
}

// OpenFunc serves URL paths through Fetch and everything else through
// next. A nil next opens local files.
func (p *URLProbe) OpenFunc(next scanner.OpenFunc) scanner.OpenFunc {
	if next == nil {
		next = func(path string, filter *regexp.Regexp) (scanner.LineSource, error) {
			src, err := scanner.LoadFile(path, filter)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
	}
	return func(path string, filter *regexp.Regexp) (scanner.LineSource, error) {
		if !util.IsURL(path) {
			return next(path, filter)
		}
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		src, err := p.Fetch(ctx, path, filter)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}
