package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cobolscan/internal/core/app"
	"cobolscan/internal/core/config"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/engine/symbols"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(lines ...string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "       " + l
	}
	return strings.Join(out, "\n") + "\n"
}

func createTestFiles(t *testing.T, tmpDir string) {
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "copy"), 0o755))

	program := fixed(
		"IDENTIFICATION DIVISION.",
		"PROGRAM-ID. BILLING.",
		"DATA DIVISION.",
		"WORKING-STORAGE SECTION.",
		"COPY CUSTREC.",
		"01 WS-COUNT PIC 9(4).",
		"PROCEDURE DIVISION.",
		"MAIN-PARA.",
		"    MOVE CUST-ID TO WS-COUNT",
		"    STOP RUN.",
	)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "src", "billing.cbl"), []byte(program), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "copy", "CUSTREC.cpy"), []byte(fixed("01 CUST-ID PIC 9(8).")), 0o644))
}

func writeConfig(t *testing.T, tmpDir string) string {
	toml := fmt.Sprintf(`version = 1
watch_paths = [%q]

[watch]
debounce = "50ms"

[scanner]
extensions = [".cbl"]

[copybook]
dirs = [%q]

[paths]
project_root = %q

[db]
enabled = true
path = "symbols.db"
`, filepath.Join(tmpDir, "src"), filepath.Join(tmpDir, "copy"), tmpDir)
	path := filepath.Join(tmpDir, "cobolscan.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))
	return path
}

func TestFullPipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFiles(t, tmpDir)

	cfg, err := config.Load(writeConfig(t, tmpDir))
	require.NoError(t, err)

	appInstance, err := app.New(cfg)
	require.NoError(t, err)
	defer appInstance.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, appInstance.InitialScan(ctx))

	recs, err := appInstance.QueryService().Symbols(ctx, "CUST-ID")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, symbols.KindVariable, recs[0].Kind)
	assert.Equal(t, filepath.Join(tmpDir, "copy", "CUSTREC.cpy"), recs[0].File)

	// A copybook edit must reach the including program through the watcher.
	updates := make(chan ports.WatchUpdate, 4)
	appInstance.SetUpdateHandler(func(u ports.WatchUpdate) { updates <- u })
	require.NoError(t, appInstance.StartWatcher())

	cpy := filepath.Join(tmpDir, "copy", "CUSTREC.cpy")
	require.NoError(t, os.WriteFile(cpy, []byte(fixed("01 CUST-ID PIC 9(8).", "01 CUST-NAME PIC X(40).")), 0o644))

	select {
	case u := <-updates:
		require.NotEmpty(t, u.Reports)
		assert.Equal(t, filepath.Join(tmpDir, "src", "billing.cbl"), u.Reports[0].Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the copybook change to be rescanned")
	}

	recs, err = appInstance.QueryService().Symbols(ctx, "CUST-NAME")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestQueryServerIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFiles(t, tmpDir)

	cfg, err := config.Load(writeConfig(t, tmpDir))
	require.NoError(t, err)
	appInstance, err := app.New(cfg)
	require.NoError(t, err)
	defer appInstance.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, appInstance.InitialScan(ctx))

	server, err := app.NewServer(ctx, "127.0.0.1:0", appInstance)
	require.NoError(t, err)
	require.NoError(t, server.Start(ctx))
	defer server.Stop(ctx)

	resp, err := http.Get("http://" + server.Addr() + "/api/references?name=WS-COUNT")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refs []symbols.Reference
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refs))
	assert.NotEmpty(t, refs)

	health, err := http.Get("http://" + server.Addr() + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
