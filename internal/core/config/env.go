package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: COBOLSCAN_[SECTION]_[KEY] (e.g., COBOLSCAN_SCANNER_SCAN_TIMEOUT).
func ApplyEnvOverrides(cfg *Config) {
	// Scanner
	setEnvString(&cfg.Scanner.SourceFormatStrategy, "COBOLSCAN_SCANNER_SOURCE_FORMAT_STRATEGY")
	setEnvInt(&cfg.Scanner.PreScanLineLimit, "COBOLSCAN_SCANNER_PRE_SCAN_LINE_LIMIT")
	setEnvInt(&cfg.Scanner.MaxLineLength, "COBOLSCAN_SCANNER_MAX_LINE_LENGTH")
	setEnvDuration(&cfg.Scanner.ScanTimeout, "COBOLSCAN_SCANNER_SCAN_TIMEOUT")
	setEnvInt(&cfg.Scanner.CopybookDepthLimit, "COBOLSCAN_SCANNER_COPYBOOK_DEPTH_LIMIT")
	setEnvString(&cfg.Scanner.LanguageID, "COBOLSCAN_SCANNER_LANGUAGE_ID")

	// Copybook search path, separated like PATH.
	setEnvList(&cfg.Copybook.Dirs, "COBOLSCAN_COPYBOOK_DIRS")

	// Database
	setEnvBool(&cfg.DB.Enabled, "COBOLSCAN_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "COBOLSCAN_DB_PATH")
	setEnvString(&cfg.DB.ProjectKey, "COBOLSCAN_DB_PROJECT_KEY")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "COBOLSCAN_WATCH_DEBOUNCE")

	// Server and tracing
	setEnvBool(&cfg.Server.Enabled, "COBOLSCAN_SERVER_ENABLED")
	setEnvString(&cfg.Server.Address, "COBOLSCAN_SERVER_ADDRESS")
	setEnvBool(&cfg.Tracing.Enabled, "COBOLSCAN_TRACING_ENABLED")
	setEnvString(&cfg.Tracing.Endpoint, "COBOLSCAN_TRACING_ENDPOINT")

	setEnvInt(&cfg.App.ScanWorkers, "COBOLSCAN_APP_SCAN_WORKERS")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, string(os.PathListSeparator))
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
