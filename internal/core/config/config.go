package config

import (
	"time"
)

type Config struct {
	Version    int              `toml:"version"`
	Paths      Paths            `toml:"paths"`
	WatchPaths []string         `toml:"watch_paths"`
	Exclude    Exclude          `toml:"exclude"`
	Watch      Watch            `toml:"watch"`
	Scanner    Scanner          `toml:"scanner"`
	Copybook   Copybook         `toml:"copybook"`
	DB         Database         `toml:"db"`
	WriteQueue WriteQueueConfig `toml:"write_queue"`
	Server     Server           `toml:"server"`
	Tracing    Tracing          `toml:"tracing"`
	App        AppSettings      `toml:"app"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
	DatabaseDir string `toml:"database_dir"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RescanRate caps watcher-triggered file rescans per second.
	RescanRate  float64 `toml:"rescan_rate"`
	RescanBurst int     `toml:"rescan_burst"`
}

// Scanner holds the read-only options consumed during a scan.
type Scanner struct {
	SourceFormatStrategy          string        `toml:"source_format_strategy"`
	CheckFileFormatBeforeFileScan bool          `toml:"check_file_format_before_file_scan"`
	PreScanLineLimit              int           `toml:"pre_scan_line_limit"`
	MaxLineLength                 int           `toml:"max_line_length"`
	ScanTimeout                   time.Duration `toml:"scan_timeout"`
	CopybookDepthLimit            int           `toml:"copybook_depth_limit"`
	ParseCopybooksForReferences   *bool         `toml:"parse_copybooks_for_references"`
	EnableTextReplacement         *bool         `toml:"enable_text_replacement"`
	CopybooksNested               bool          `toml:"copybooks_nested"`
	ScanCommentsForHints          *bool         `toml:"scan_comments_for_hints"`
	ScanCommentCopybookToken      string        `toml:"scan_comment_copybook_token"`
	LinterIgnoreMissingCopybook   bool          `toml:"linter_ignore_missing_copybook"`
	LinterIgnoreMalformedUsing    bool          `toml:"linter_ignore_malformed_using"`
	EnableSourcePorter            bool          `toml:"enable_source_porter"`
	LanguageID                    string        `toml:"language_id"`
	Extensions                    []string      `toml:"extensions"`
	FileFormats                   []FileFormat  `toml:"file_format"`
}

// FileFormat forces a source format for files whose name matches Pattern.
type FileFormat struct {
	Pattern string `toml:"pattern"`
	Format  string `toml:"format"`
}

type Copybook struct {
	Dirs             []string `toml:"dirs"`
	PerFileDirs      []string `toml:"perfile_dirs"`
	Extensions       []string `toml:"extensions"`
	RemoteProbeRate  float64  `toml:"remote_probe_rate"`
	RemoteProbeBurst int      `toml:"remote_probe_burst"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	ProjectKey  string        `toml:"project_key"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type WriteQueueConfig struct {
	Enabled              *bool         `toml:"enabled"`
	MemoryCapacity       int           `toml:"memory_capacity"`
	BatchSize            int           `toml:"batch_size"`
	FlushInterval        time.Duration `toml:"flush_interval"`
	PersistentEnabled    *bool         `toml:"persistent_enabled"`
	SpoolPath            string        `toml:"spool_path"`
	RetryBaseDelay       time.Duration `toml:"retry_base_delay"`
	RetryMaxDelay        time.Duration `toml:"retry_max_delay"`
	SyncFallback         *bool         `toml:"sync_fallback"`
	ShutdownDrainTimeout time.Duration `toml:"shutdown_drain_timeout"`
}

type Server struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

type Tracing struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
}

type AppSettings struct {
	ScanWorkers   int `toml:"scan_workers"`
	ScanCacheSize int `toml:"scan_cache_size"`
}

func (s Scanner) CopybooksForReferences() bool {
	if s.ParseCopybooksForReferences == nil {
		return true
	}
	return *s.ParseCopybooksForReferences
}

func (s Scanner) TextReplacementEnabled() bool {
	if s.EnableTextReplacement == nil {
		return true
	}
	return *s.EnableTextReplacement
}

func (s Scanner) CommentHintsEnabled() bool {
	if s.ScanCommentsForHints == nil {
		return true
	}
	return *s.ScanCommentsForHints
}

func (q WriteQueueConfig) QueueEnabled() bool {
	if q.Enabled == nil {
		return true
	}
	return *q.Enabled
}

func (q WriteQueueConfig) PersistentQueueEnabled() bool {
	if q.PersistentEnabled == nil {
		return false
	}
	return *q.PersistentEnabled
}

func (q WriteQueueConfig) SyncFallbackEnabled() bool {
	if q.SyncFallback == nil {
		return true
	}
	return *q.SyncFallback
}
