package copybook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cobolscan/internal/core/config"
	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/engine/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lastModified = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// copybookServer serves files by URL path and records every request.
type copybookServer struct {
	mu       sync.Mutex
	files    map[string]string
	requests []string
}

func (s *copybookServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	body, ok := s.files[r.URL.Path]
	s.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, ".err") {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte(body))
	}
}

func (s *copybookServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func newRemote(t *testing.T, files map[string]string) (*copybookServer, *httptest.Server, *URLProbe) {
	t.Helper()
	cs := &copybookServer{files: files}
	srv := httptest.NewServer(cs)
	t.Cleanup(srv.Close)
	probe := NewURLProbe(srv.Client(), 0, 0)
	t.Cleanup(probe.Close)
	return cs, srv, probe
}

func TestResolveURL_ProbesInOrder(t *testing.T) {
	cs, srv, probe := newRemote(t, map[string]string{"/b/LIB/CUST.cpy": "01 A."})
	u := NewURLResolver(config.Copybook{
		Dirs:       []string{srv.URL + "/a/", "local/dir", srv.URL + "/b"},
		Extensions: []string{"cbl", "cpy"},
	}, probe)
	require.Len(t, u.Roots(), 2)

	got, err := u.ResolveURL(context.Background(), "CUST", "LIB")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/b/LIB/CUST.cpy", got)
	assert.Equal(t, []string{
		"HEAD /a/LIB/CUST",
		"HEAD /a/LIB/CUST.cbl",
		"HEAD /a/LIB/CUST.cpy",
		"HEAD /b/LIB/CUST",
		"HEAD /b/LIB/CUST.cbl",
		"HEAD /b/LIB/CUST.cpy",
	}, cs.seen())
}

func TestResolveURL_Miss(t *testing.T) {
	_, srv, probe := newRemote(t, nil)
	u := NewURLResolver(config.Copybook{Dirs: []string{srv.URL}, Extensions: []string{"cpy"}}, probe)

	_, err := u.ResolveURL(context.Background(), "NOPE", "")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeNotFound))
}

func TestResolveURL_ServerErrorIsNotAMiss(t *testing.T) {
	_, srv, probe := newRemote(t, nil)
	u := NewURLResolver(config.Copybook{Dirs: []string{srv.URL}}, probe)

	_, err := u.ResolveURL(context.Background(), "BROKEN.err", "")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeInternal))
}

func TestResolver_RemoteFallbackAndFetch(t *testing.T) {
	_, srv, probe := newRemote(t, map[string]string{"/copy/CUST.cpy": "       01 CUST-ID PIC 9(5).\n"})
	cfg := config.Copybook{Dirs: []string{"missing-local", srv.URL + "/copy"}, Extensions: []string{"cpy"}}
	r := NewResolver(cfg, t.TempDir(), OSProbe{}).WithRemote(NewURLResolver(cfg, probe))

	path := r.Resolve("CUST", "", "main.cbl")
	require.Equal(t, srv.URL+"/copy/CUST.cpy", path)
	assert.Equal(t, lastModified.UnixNano(), r.ModTime(path))

	open := probe.OpenFunc(nil)
	src, err := open(path, nil)
	require.NoError(t, err)
	require.Equal(t, 2, src.LineCount())
	line, ok := src.Line(0, true)
	require.True(t, ok)
	assert.Contains(t, line, "CUST-ID")
	assert.Equal(t, lastModified.UnixNano(), src.ModTime())

	_, err = open(srv.URL+"/copy/NOPE.cpy", nil)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeNotFound))
}

func TestResolver_RemoteCopybookInScan(t *testing.T) {
	_, srv, probe := newRemote(t, map[string]string{"/copy/CUSTREC.cpy": "       01 CUST-ID PIC 9(5).\n"})
	cfg := config.Copybook{Dirs: []string{srv.URL + "/copy"}, Extensions: []string{"cpy"}}
	r := NewResolver(cfg, "", OSProbe{}).WithRemote(NewURLResolver(cfg, probe))

	text := strings.Join([]string{
		"       IDENTIFICATION DIVISION.",
		"       PROGRAM-ID. MAIN.",
		"       DATA DIVISION.",
		"       WORKING-STORAGE SECTION.",
		"       COPY CUSTREC.",
	}, "\n")
	sc := scanner.New(scanner.NewMemorySource("main.cbl", text, 1), scanner.Options{
		Settings: scanner.DefaultSettings(),
		Resolver: r,
		Open:     probe.OpenFunc(nil),
	})
	require.NoError(t, sc.Scan(context.Background()))

	assert.Contains(t, sc.References().ConstantsOrVariables, "cust-id")
	assert.Contains(t, sc.References().CopyBooksUsed, srv.URL+"/copy/CUSTREC.cpy")
	assert.Empty(t, sc.MissingCopybooks())
}

func TestURLProbe_ModTimeWithoutHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	probe := NewURLProbe(srv.Client(), 100, 1)
	t.Cleanup(probe.Close)

	ok, err := probe.Exists(context.Background(), srv.URL+"/X")
	require.NoError(t, err)
	assert.True(t, ok)
	mt, err := probe.ModTime(context.Background(), srv.URL+"/X")
	require.NoError(t, err)
	assert.Equal(t, int64(0), mt)
	isDir, err := probe.IsDirectory(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, isDir)
}
