package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/engine/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scannedWorkspace(t *testing.T) (workspace, *App) {
	t.Helper()
	ws := newWorkspace(t)
	ws.write(t, "copy/EMPREC.cpy", empRecSource)
	ws.write(t, "src/payroll.cbl", payrollSource)
	ws.write(t, "src/ledger.cbl", ledgerSource)
	a := newTestApp(t, ws.config(false))
	require.NoError(t, a.InitialScan(context.Background()))
	return ws, a
}

func TestQueryService_Symbols(t *testing.T) {
	ws, a := scannedWorkspace(t)
	svc := a.QueryService()

	recs, err := svc.Symbols(context.Background(), "ws-total")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, filepath.Join(ws.src, "ledger.cbl"), recs[0].File)
	assert.Equal(t, filepath.Join(ws.src, "payroll.cbl"), recs[1].File)
	for _, rec := range recs {
		assert.Equal(t, symbols.KindVariable, rec.Kind)
	}

	recs, err = svc.Symbols(context.Background(), "PAYROLL")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, symbols.KindCallable, recs[0].Kind)

	_, err = svc.Symbols(context.Background(), "  ")
	if !cerrors.IsCode(err, cerrors.CodeValidationError) {
		t.Fatalf("expected validation error for a blank name, got %v", err)
	}
}

func TestQueryService_SymbolsIncludeCopybookItems(t *testing.T) {
	ws, a := scannedWorkspace(t)

	recs, err := a.QueryService().Symbols(context.Background(), "EMP-ID")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, symbols.KindVariable, recs[0].Kind)
	assert.Equal(t, filepath.Join(ws.copybook, "EMPREC.cpy"), recs[0].File)
	assert.Equal(t, 0, recs[0].Line)

	outline, err := a.QueryService().Outline(context.Background(), filepath.Join(ws.src, "payroll.cbl"))
	require.NoError(t, err)
	for _, tok := range outline {
		if tok.NameLower == "emp-id" {
			assert.True(t, tok.IgnoreInOutlineView, "copybook items stay out of the outline")
		}
	}
}

func TestQueryService_SharedCopybookItemReportedOnce(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "copy/EMPREC.cpy", empRecSource)
	ws.write(t, "src/payroll.cbl", payrollSource)
	ws.write(t, "src/audit.cbl", fixedSource(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. AUDIT.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"COPY EMPREC.",
	))
	a := newTestApp(t, ws.config(false))
	require.NoError(t, a.InitialScan(context.Background()))

	recs, err := a.QueryService().Symbols(context.Background(), "emp-id")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, filepath.Join(ws.copybook, "EMPREC.cpy"), recs[0].File)
}

func TestQueryService_References(t *testing.T) {
	_, a := scannedWorkspace(t)

	refs, err := a.QueryService().References(context.Background(), "CALC-PARA")
	require.NoError(t, err)
	require.NotEmpty(t, refs)
	for _, ref := range refs {
		// references are keyed by the lower-cased name
		assert.Equal(t, "calc-para", ref.Name)
	}

	lower, err := a.QueryService().References(context.Background(), "calc-para")
	require.NoError(t, err)
	assert.Equal(t, refs, lower)

	refs, err = a.QueryService().References(context.Background(), "NO-SUCH-NAME")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestQueryService_Files(t *testing.T) {
	ws, a := scannedWorkspace(t)

	files, err := a.QueryService().Files(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(ws.src, "ledger.cbl"), files[0].Path)
	assert.Equal(t, "LEDGER", files[0].ProgramID)
	assert.Equal(t, 1, files[1].Copybooks)
}

func TestQueryService_OutlineOutsideWorkspace(t *testing.T) {
	ws, a := scannedWorkspace(t)

	_, err := a.QueryService().Outline(context.Background(), filepath.Join(ws.copybook, "EMPREC.cpy"))
	if !cerrors.IsCode(err, cerrors.CodePermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	toks, err := a.QueryService().Outline(context.Background(), filepath.Join(ws.src, "ledger.cbl"))
	require.NoError(t, err)
	assert.NotEmpty(t, toks)
}

func TestApp_ExportImportCache(t *testing.T) {
	ws, a := scannedWorkspace(t)
	out := filepath.Join(ws.root, "export", "cache.dat")
	require.NoError(t, a.ExportCache(out))
	assert.False(t, a.Cache().IsDirty())

	fresh := newTestApp(t, ws.config(false))
	require.NoError(t, fresh.ImportCache(out))
	assert.NotEmpty(t, fresh.Cache().Callables("PAYROLL"))
	assert.NotEmpty(t, fresh.Cache().Callables("LEDGER"))
}

func TestApp_ImportCache_DropsChangedFiles(t *testing.T) {
	ws, a := scannedWorkspace(t)
	out := filepath.Join(ws.root, "cache.dat")
	require.NoError(t, a.ExportCache(out))

	ws.write(t, "src/ledger.cbl", ledgerSource+fixedSource("*> edited"))
	fresh := newTestApp(t, ws.config(false))
	require.NoError(t, fresh.ImportCache(out))
	assert.Empty(t, fresh.Cache().Callables("LEDGER"))
	assert.NotEmpty(t, fresh.Cache().Callables("PAYROLL"))
}

func TestApp_ImportCache_MissingFileIsNotAnError(t *testing.T) {
	ws := newWorkspace(t)
	a := newTestApp(t, ws.config(false))
	if err := a.ImportCache(filepath.Join(ws.root, "absent.dat")); err != nil {
		t.Fatalf("expected no error for a missing cache file, got %v", err)
	}
}

func TestFormatReport(t *testing.T) {
	_, a := scannedWorkspace(t)
	report, err := a.ProcessFile(context.Background(), a.indexedFiles()[0].Path)
	require.NoError(t, err)
	line := FormatReport(report)
	assert.Contains(t, line, "cached")
	assert.Contains(t, line, "ledger.cbl")
}

func TestLoadAPIDocument(t *testing.T) {
	doc, err := LoadAPIDocument(context.Background())
	require.NoError(t, err)
	for _, path := range []string{"/api/symbols", "/api/references", "/api/files", "/api/outline"} {
		if doc.Paths.Value(path) == nil {
			t.Fatalf("expected %s in the API document", path)
		}
	}
}

func newTestServer(t *testing.T, a *App) *httptest.Server {
	t.Helper()
	srv, err := NewServer(context.Background(), "127.0.0.1:0", a)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, rawURL string, into any) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestServer_SymbolsEndpoint(t *testing.T) {
	_, a := scannedWorkspace(t)
	ts := newTestServer(t, a)

	var recs []symbols.SymbolRecord
	status := getJSON(t, ts.URL+"/api/symbols?name=WS-TOTAL", &recs)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, recs, 2)

	var body map[string]string
	status = getJSON(t, ts.URL+"/api/symbols", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
}

func TestServer_FilesAndOutline(t *testing.T) {
	ws, a := scannedWorkspace(t)
	ts := newTestServer(t, a)

	var files []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/files", &files))
	assert.Len(t, files, 2)

	var toks []outlineToken
	q := url.Values{"path": {filepath.Join(ws.src, "payroll.cbl")}}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/outline?"+q.Encode(), &toks))
	var names []string
	for _, tok := range toks {
		names = append(names, tok.Name)
	}
	assert.Contains(t, names, "MAIN-PARA")

	var body map[string]string
	q = url.Values{"path": {filepath.Join(ws.copybook, "EMPREC.cpy")}}
	assert.Equal(t, http.StatusForbidden, getJSON(t, ts.URL+"/api/outline?"+q.Encode(), &body))
	assert.Equal(t, string(cerrors.CodePermissionDenied), body["code"])
}

func TestServer_UnknownRoute(t *testing.T) {
	_, a := scannedWorkspace(t)
	ts := newTestServer(t, a)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/nothing", nil))

	resp, err := http.Post(ts.URL+"/api/files", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Health(t *testing.T) {
	_, a := scannedWorkspace(t)
	ts := newTestServer(t, a)

	var status HealthStatus
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &status))
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, a.SessionID, status.SessionID)
	assert.Contains(t, status.Components["workspace"], "2 files")
}

func TestHealthService_StoreComponents(t *testing.T) {
	ws := newWorkspace(t)
	cfg := ws.config(true)
	persistent := true
	cfg.WriteQueue.PersistentEnabled = &persistent
	a := newTestApp(t, cfg)

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "ok", status.Components["symbol_store"])
	assert.Contains(t, status.Components["write_queue"], "0 pending")
	assert.Contains(t, status.Components, "write_spool")
}

func TestServer_StartStop(t *testing.T) {
	ws := newWorkspace(t)
	a := newTestApp(t, ws.config(false))
	srv, err := NewServer(context.Background(), "127.0.0.1:0", a)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer func() { _ = srv.Stop(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
