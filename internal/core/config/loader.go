package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPreScanLineLimit   = 25
	DefaultMaxLineLength      = 20000
	DefaultCopybookDepthLimit = 20
	DefaultScanTimeout        = 5 * time.Second
)

var (
	defaultProgramExtensions  = []string{".cbl", ".cob", ".cobol", ".cpy", ".ccp", ".scbl", ".pco", ".sqb"}
	defaultCopybookExtensions = []string{"cpy", "CPY", "cbl", "CBL", "cob", "COB", "dds", "ss", "wks"}
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}
	ApplyEnvOverrides(&cfg)

	applyDefaults(&cfg)
	normalizeScanner(&cfg)
	normalizeCopybook(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalizeScanner(cfg)
	normalizeCopybook(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = "data/state"
	}
	if strings.TrimSpace(cfg.Paths.DatabaseDir) == "" {
		cfg.Paths.DatabaseDir = "data/database"
	}

	if len(cfg.WatchPaths) == 0 {
		cfg.WatchPaths = []string{"."}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RescanRate <= 0 {
		cfg.Watch.RescanRate = 50
	}
	if cfg.Watch.RescanBurst <= 0 {
		cfg.Watch.RescanBurst = 10
	}

	s := &cfg.Scanner
	if strings.TrimSpace(s.SourceFormatStrategy) == "" {
		s.SourceFormatStrategy = "normal"
	}
	if s.PreScanLineLimit <= 0 {
		s.PreScanLineLimit = DefaultPreScanLineLimit
	}
	if s.MaxLineLength <= 0 {
		s.MaxLineLength = DefaultMaxLineLength
	}
	if s.ScanTimeout <= 0 {
		s.ScanTimeout = DefaultScanTimeout
	}
	if s.CopybookDepthLimit <= 0 {
		s.CopybookDepthLimit = DefaultCopybookDepthLimit
	}
	if strings.TrimSpace(s.ScanCommentCopybookToken) == "" {
		s.ScanCommentCopybookToken = "source-dependency"
	}
	if strings.TrimSpace(s.LanguageID) == "" {
		s.LanguageID = "cobol"
	}
	if len(s.Extensions) == 0 {
		s.Extensions = append([]string(nil), defaultProgramExtensions...)
	}

	if len(cfg.Copybook.Extensions) == 0 {
		cfg.Copybook.Extensions = append([]string(nil), defaultCopybookExtensions...)
	}
	if cfg.Copybook.RemoteProbeRate <= 0 {
		cfg.Copybook.RemoteProbeRate = 20
	}
	if cfg.Copybook.RemoteProbeBurst <= 0 {
		cfg.Copybook.RemoteProbeBurst = 5
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "symbols.db"
	}
	if strings.TrimSpace(cfg.DB.ProjectKey) == "" {
		cfg.DB.ProjectKey = "default"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}

	q := &cfg.WriteQueue
	if q.MemoryCapacity <= 0 {
		q.MemoryCapacity = 256
	}
	if q.BatchSize <= 0 {
		q.BatchSize = 32
	}
	if q.FlushInterval <= 0 {
		q.FlushInterval = 100 * time.Millisecond
	}
	if q.RetryBaseDelay <= 0 {
		q.RetryBaseDelay = 500 * time.Millisecond
	}
	if q.RetryMaxDelay <= 0 {
		q.RetryMaxDelay = 30 * time.Second
	}
	if q.ShutdownDrainTimeout <= 0 {
		q.ShutdownDrainTimeout = 10 * time.Second
	}
	if strings.TrimSpace(q.SpoolPath) == "" {
		q.SpoolPath = "data/state/write_spool.db"
	}

	if strings.TrimSpace(cfg.Server.Address) == "" {
		cfg.Server.Address = "127.0.0.1:9464"
	}
	if strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
		cfg.Tracing.ServiceName = "cobolscan"
	}
	if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		cfg.Tracing.Endpoint = "localhost:4317"
	}

	if cfg.App.ScanWorkers <= 0 {
		cfg.App.ScanWorkers = 4
	}
	if cfg.App.ScanCacheSize <= 0 {
		cfg.App.ScanCacheSize = 512
	}
}

func normalizeScanner(cfg *Config) {
	s := &cfg.Scanner
	s.SourceFormatStrategy = strings.ToLower(strings.TrimSpace(s.SourceFormatStrategy))
	s.LanguageID = strings.ToLower(strings.TrimSpace(s.LanguageID))
	s.ScanCommentCopybookToken = strings.TrimSpace(s.ScanCommentCopybookToken)

	exts := make([]string, 0, len(s.Extensions))
	for _, ext := range s.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	s.Extensions = exts

	for i := range s.FileFormats {
		s.FileFormats[i].Pattern = strings.TrimSpace(s.FileFormats[i].Pattern)
		s.FileFormats[i].Format = strings.ToLower(strings.TrimSpace(s.FileFormats[i].Format))
	}
}

// normalizeCopybook trims entries and strips a leading dot from extensions.
// Extension case is preserved.
func normalizeCopybook(cfg *Config) {
	c := &cfg.Copybook
	c.Dirs = trimNonEmpty(c.Dirs)
	c.PerFileDirs = trimNonEmpty(c.PerFileDirs)

	exts := make([]string, 0, len(c.Extensions))
	for _, ext := range trimNonEmpty(c.Extensions) {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	c.Extensions = exts
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
