package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

var validFormatStrategies = map[string]bool{
	"normal":          true,
	"always_fixed":    true,
	"always_variable": true,
	"always_free":     true,
	"always_terminal": true,
}

var validFileFormats = map[string]bool{
	"fixed":    true,
	"variable": true,
	"free":     true,
	"terminal": true,
}

func validate(cfg *Config) error {
	validators := []func(*Config) error{
		validateVersion,
		validateScanner,
		validateFileFormats,
		validateCopybook,
		validateDatabase,
		validateWriteQueue,
		validateServer,
		validateApp,
	}
	for _, v := range validators {
		if err := v(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs every validator and collects all failures instead of
// stopping at the first one.
func Validate(cfg *Config) []error {
	var errs []error
	for _, v := range []func(*Config) error{
		validateVersion,
		validateScanner,
		validateFileFormats,
		validateCopybook,
		validateDatabase,
		validateWriteQueue,
		validateServer,
		validateApp,
	} {
		if err := v(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateScanner(cfg *Config) error {
	s := cfg.Scanner
	if !validFormatStrategies[s.SourceFormatStrategy] {
		return fmt.Errorf("scanner.source_format_strategy must be one of: normal, always_fixed, always_variable, always_free, always_terminal; got %q", s.SourceFormatStrategy)
	}
	if s.PreScanLineLimit < 1 {
		return fmt.Errorf("scanner.pre_scan_line_limit must be >= 1")
	}
	if s.MaxLineLength < 80 {
		return fmt.Errorf("scanner.max_line_length must be >= 80")
	}
	if s.ScanTimeout < 10*time.Millisecond {
		return fmt.Errorf("scanner.scan_timeout must be >= 10ms")
	}
	if s.CopybookDepthLimit < 1 || s.CopybookDepthLimit > 256 {
		return fmt.Errorf("scanner.copybook_depth_limit must be between 1 and 256")
	}
	if strings.ContainsAny(s.ScanCommentCopybookToken, " \t") {
		return fmt.Errorf("scanner.scan_comment_copybook_token must not contain whitespace")
	}
	if len(s.Extensions) == 0 {
		return fmt.Errorf("scanner.extensions must not be empty")
	}
	return nil
}

func validateFileFormats(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Scanner.FileFormats))
	for i, ff := range cfg.Scanner.FileFormats {
		ref := fmt.Sprintf("scanner.file_format[%d]", i)
		if ff.Pattern == "" {
			return fmt.Errorf("%s.pattern must not be empty", ref)
		}
		if _, err := glob.Compile(strings.ToLower(ff.Pattern)); err != nil {
			return fmt.Errorf("%s.pattern %q is invalid: %w", ref, ff.Pattern, err)
		}
		if !validFileFormats[ff.Format] {
			return fmt.Errorf("%s.format must be one of: fixed, variable, free, terminal", ref)
		}
		if seen[ff.Pattern] {
			return fmt.Errorf("duplicate scanner.file_format pattern %q", ff.Pattern)
		}
		seen[ff.Pattern] = true
	}
	return nil
}

func validateCopybook(cfg *Config) error {
	c := cfg.Copybook
	if len(c.Extensions) == 0 {
		return fmt.Errorf("copybook.extensions must not be empty")
	}
	for _, ext := range c.Extensions {
		if strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("copybook.extensions entry %q must not contain path separators", ext)
		}
	}
	for _, dir := range c.PerFileDirs {
		if strings.Contains(dir, "${") && !strings.Contains(dir, "${fileDirname}") {
			return fmt.Errorf("copybook.perfile_dirs entry %q uses an unknown placeholder; only ${fileDirname} is supported", dir)
		}
	}
	if c.RemoteProbeRate <= 0 {
		return fmt.Errorf("copybook.remote_probe_rate must be > 0")
	}
	if c.RemoteProbeBurst < 1 {
		return fmt.Errorf("copybook.remote_probe_burst must be >= 1")
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func validateWriteQueue(cfg *Config) error {
	q := cfg.WriteQueue
	if q.MemoryCapacity < 1 {
		return fmt.Errorf("write_queue.memory_capacity must be >= 1")
	}
	if q.BatchSize < 1 {
		return fmt.Errorf("write_queue.batch_size must be >= 1")
	}
	if q.FlushInterval < 10*time.Millisecond {
		return fmt.Errorf("write_queue.flush_interval must be >= 10ms")
	}
	if q.ShutdownDrainTimeout < time.Second {
		return fmt.Errorf("write_queue.shutdown_drain_timeout must be >= 1s")
	}
	if q.RetryBaseDelay < 10*time.Millisecond {
		return fmt.Errorf("write_queue.retry_base_delay must be >= 10ms")
	}
	if q.RetryMaxDelay < q.RetryBaseDelay {
		return fmt.Errorf("write_queue.retry_max_delay must be >= write_queue.retry_base_delay")
	}
	if q.PersistentQueueEnabled() && strings.TrimSpace(q.SpoolPath) == "" {
		return fmt.Errorf("write_queue.spool_path must not be empty when write_queue.persistent_enabled=true")
	}
	return nil
}

func validateServer(cfg *Config) error {
	if cfg.Server.Enabled && strings.TrimSpace(cfg.Server.Address) == "" {
		return fmt.Errorf("server.address must not be empty when server.enabled=true")
	}
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return fmt.Errorf("tracing.endpoint must not be empty when tracing.enabled=true")
	}
	return nil
}

func validateApp(cfg *Config) error {
	if cfg.App.ScanWorkers < 1 || cfg.App.ScanWorkers > 64 {
		return fmt.Errorf("app.scan_workers must be between 1 and 64")
	}
	if cfg.App.ScanCacheSize < 1 {
		return fmt.Errorf("app.scan_cache_size must be >= 1")
	}
	return nil
}
