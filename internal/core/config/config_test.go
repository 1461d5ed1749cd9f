package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cobolscan.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
watch_paths = ["./src"]

[exclude]
dirs = [".git"]
files = ["*.bak"]

[watch]
debounce = "1s"

[scanner]
source_format_strategy = "ALWAYS_FIXED"
pre_scan_line_limit = 50
scan_timeout = "2s"
parse_copybooks_for_references = false
extensions = ["CBL", ".cob"]

[[scanner.file_format]]
pattern = "*.free.cbl"
format = "Free"

[copybook]
dirs = ["copy", " ", "lib"]
perfile_dirs = ["${fileDirname}/copy"]
extensions = [".cpy", "CPY"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Watch.Debounce != time.Second {
		t.Fatalf("expected debounce 1s, got %v", cfg.Watch.Debounce)
	}
	if cfg.Scanner.SourceFormatStrategy != "always_fixed" {
		t.Fatalf("expected normalized strategy, got %q", cfg.Scanner.SourceFormatStrategy)
	}
	if cfg.Scanner.PreScanLineLimit != 50 {
		t.Fatalf("expected pre_scan_line_limit 50, got %d", cfg.Scanner.PreScanLineLimit)
	}
	if cfg.Scanner.CopybooksForReferences() {
		t.Fatal("expected parse_copybooks_for_references=false to be honoured")
	}
	if !cfg.Scanner.TextReplacementEnabled() {
		t.Fatal("expected text replacement to default to enabled")
	}
	if got := strings.Join(cfg.Scanner.Extensions, ","); got != ".cbl,.cob" {
		t.Fatalf("unexpected program extensions %q", got)
	}
	if cfg.Scanner.FileFormats[0].Format != "free" {
		t.Fatalf("expected lower-cased file format, got %q", cfg.Scanner.FileFormats[0].Format)
	}
	if got := strings.Join(cfg.Copybook.Dirs, ","); got != "copy,lib" {
		t.Fatalf("expected blank copybook dirs dropped, got %q", got)
	}
	if got := strings.Join(cfg.Copybook.Extensions, ","); got != "cpy,CPY" {
		t.Fatalf("expected leading dots stripped and case kept, got %q", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ``))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scanner.PreScanLineLimit != DefaultPreScanLineLimit {
		t.Fatalf("expected default pre-scan limit, got %d", cfg.Scanner.PreScanLineLimit)
	}
	if cfg.Scanner.CopybookDepthLimit != DefaultCopybookDepthLimit {
		t.Fatalf("expected default depth limit, got %d", cfg.Scanner.CopybookDepthLimit)
	}
	if cfg.Scanner.ScanTimeout != DefaultScanTimeout {
		t.Fatalf("expected default scan timeout, got %v", cfg.Scanner.ScanTimeout)
	}
	if cfg.Scanner.ScanCommentCopybookToken != "source-dependency" {
		t.Fatalf("unexpected comment copybook token %q", cfg.Scanner.ScanCommentCopybookToken)
	}
	if len(cfg.Copybook.Extensions) == 0 || cfg.Copybook.Extensions[0] != "cpy" {
		t.Fatalf("expected cpy as first default copybook extension, got %v", cfg.Copybook.Extensions)
	}
	if !cfg.WriteQueue.QueueEnabled() || cfg.WriteQueue.PersistentQueueEnabled() {
		t.Fatal("expected memory queue on and persistent spool off by default")
	}
	if cfg.App.ScanWorkers != 4 {
		t.Fatalf("expected 4 scan workers, got %d", cfg.App.ScanWorkers)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bad strategy",
			content: "[scanner]\nsource_format_strategy = \"sometimes\"\n",
			want:    "scanner.source_format_strategy",
		},
		{
			name:    "bad file format",
			content: "[[scanner.file_format]]\npattern = \"*.cbl\"\nformat = \"columnar\"\n",
			want:    "scanner.file_format[0].format",
		},
		{
			name:    "duplicate file format",
			content: "[[scanner.file_format]]\npattern = \"*.cbl\"\nformat = \"fixed\"\n[[scanner.file_format]]\npattern = \"*.cbl\"\nformat = \"free\"\n",
			want:    "duplicate scanner.file_format",
		},
		{
			name:    "unknown placeholder",
			content: "[copybook]\nperfile_dirs = [\"${workspaceFolder}/copy\"]\n",
			want:    "unknown placeholder",
		},
		{
			name:    "depth limit",
			content: "[scanner]\ncopybook_depth_limit = 1000\n",
			want:    "copybook_depth_limit",
		},
		{
			name:    "future version",
			content: "version = 3\n",
			want:    "unsupported config version",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Scanner.SourceFormatStrategy = "bogus"
	cfg.App.ScanWorkers = 0
	errs := Validate(cfg)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("COBOLSCAN_SCANNER_SCAN_TIMEOUT", "750ms")
	t.Setenv("COBOLSCAN_COPYBOOK_DIRS", "a"+string(os.PathListSeparator)+"b")

	cfg, err := Load(writeConfig(t, ``))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scanner.ScanTimeout != 750*time.Millisecond {
		t.Fatalf("expected env override for scan timeout, got %v", cfg.Scanner.ScanTimeout)
	}
	if strings.Join(cfg.Copybook.Dirs, ",") != "a,b" {
		t.Fatalf("expected env override for copybook dirs, got %v", cfg.Copybook.Dirs)
	}
}

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "cobolscan.toml"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.WatchPaths = []string{root}

	resolved, err := ResolvePaths(cfg, root)
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if resolved.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, resolved.ProjectRoot)
	}
	if resolved.DBPath != filepath.Join(root, "data", "database", "symbols.db") {
		t.Fatalf("unexpected db path %q", resolved.DBPath)
	}
	if resolved.SpoolPath != filepath.Join(root, "data", "state", "write_spool.db") {
		t.Fatalf("unexpected spool path %q", resolved.SpoolPath)
	}
}
