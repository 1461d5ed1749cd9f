package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "cobolscan/internal/core/app"
	"cobolscan/internal/core/config"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/shared/observability"
)

func Run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Printf("cobolscan v%s\n", versionString)
		return 0
	}

	cleanupLogs := configureLogging(opts.ui, opts.verbose)
	defer cleanupLogs()

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if err := applyModeOptions(&opts, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, cfg.Tracing)
		if err != nil {
			slog.Error("failed to initialize tracing", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	app, err := coreapp.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}()

	if opts.outline != "" {
		toks, err := app.Outline(ctx, opts.outline)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return 1
		}
		fmt.Print(formatOutline(toks))
		return 0
	}

	started := time.Now()
	var reports []string
	app.SetUpdateHandler(func(update ports.WatchUpdate) {
		for _, r := range update.Reports {
			reports = append(reports, coreapp.FormatReport(r))
		}
	})
	if err := app.InitialScan(ctx); err != nil {
		slog.Error("initial scan failed", "error", err)
		return 1
	}
	app.SetUpdateHandler(nil)

	if opts.exportCache != "" {
		if err := app.ExportCache(opts.exportCache); err != nil {
			slog.Error("failed to export cache", "error", err)
			return 1
		}
	}

	if done, code := runSingleCommand(ctx, app, opts); done {
		return code
	}

	if !opts.ui {
		for _, line := range reports {
			fmt.Println(line)
		}
		fmt.Printf("Scanned %d files in %s\n", len(reports), time.Since(started).Round(time.Millisecond))
	}

	if opts.once {
		return 0
	}

	if cfg.Server.Enabled {
		server, err := coreapp.NewServer(ctx, cfg.Server.Address, app)
		if err != nil {
			slog.Error("failed to build query server", "error", err)
			return 1
		}
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start query server", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	if cfgPath != "" {
		cfgWatcher := config.NewWatcher(cfgPath, func(next *config.Config) {
			if err := app.UpdateConfig(ctx, next); err != nil {
				slog.Error("failed to apply reloaded config", "error", err)
			}
		})
		if len(opts.args) > 0 {
			cfgWatcher.Adjust(func(next *config.Config) { next.WatchPaths = []string{opts.args[0]} })
		}
		if err := cfgWatcher.Start(ctx); err != nil {
			slog.Warn("config hot reload unavailable", "path", cfgPath, "error", err)
		} else {
			defer cfgWatcher.Stop()
		}
	}

	if err := app.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}

	if opts.ui {
		if err := runUI(app); err != nil {
			slog.Error("failed to run UI", "error", err)
			return 1
		}
		return 0
	}

	app.SetUpdateHandler(func(update ports.WatchUpdate) {
		for _, r := range update.Reports {
			fmt.Println(coreapp.FormatReport(r))
		}
	})
	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}

func runSingleCommand(ctx context.Context, app *coreapp.App, opts cliOptions) (bool, int) {
	if opts.refs == "" {
		return false, 0
	}

	svc := app.QueryService()
	defs, err := svc.Symbols(ctx, opts.refs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return true, 1
	}
	refs, err := svc.References(ctx, opts.refs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return true, 1
	}

	fmt.Printf("Definitions (%d):\n", len(defs))
	for _, d := range defs {
		fmt.Printf("  %s %s %s:%d\n", d.Kind, d.Name, d.File, d.Line)
	}
	fmt.Printf("References (%d):\n", len(refs))
	for _, r := range refs {
		fmt.Printf("  %s %s:%d:%d %s\n", r.Kind, r.File, r.Line, r.Column, r.Style)
	}
	return true, 0
}

// formatOutline renders the outline tokens indented by nesting depth.
func formatOutline(toks []*scanner.Token) string {
	var b strings.Builder
	for _, e := range outlineEntries(toks) {
		fmt.Fprintf(&b, "%s%-6d %s (%s)\n", strings.Repeat("  ", e.depth), e.line, e.name, e.style)
	}
	return b.String()
}

// loadConfig reads the config at path. A missing file at the default path
// falls back to built-in defaults and disables config hot reload.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	candidates, err := discoverDefaultConfig(cwd)
	if err != nil {
		return nil, "", err
	}
	for _, candidate := range candidates {
		cfg, loadErr := config.Load(candidate)
		if loadErr == nil {
			return cfg, candidate, nil
		}
		if os.IsNotExist(loadErr) {
			continue
		}
		return nil, "", loadErr
	}

	slog.Info("no config file found; using defaults")
	cfg := config.Default()
	config.ApplyEnvOverrides(cfg)
	return cfg, "", nil
}

func discoverDefaultConfig(cwd string) ([]string, error) {
	if strings.TrimSpace(cwd) == "" {
		return nil, fmt.Errorf("cwd must not be empty")
	}
	return []string{
		filepath.Clean(filepath.Join(cwd, "cobolscan.toml")),
		filepath.Clean(filepath.Join(cwd, "data/config/cobolscan.toml")),
	}, nil
}

func applyModeOptions(opts *cliOptions, cfg *config.Config) error {
	if opts.outline != "" && opts.refs != "" {
		return fmt.Errorf("--outline and --refs cannot be combined")
	}
	if opts.outline != "" && (opts.ui || opts.exportCache != "") {
		return fmt.Errorf("--outline cannot be combined with --ui or --export-cache")
	}
	if opts.refs != "" && opts.ui {
		return fmt.Errorf("--refs cannot be combined with --ui")
	}
	if len(opts.args) > 1 {
		return fmt.Errorf("at most one path argument is accepted, got %d", len(opts.args))
	}
	if len(opts.args) > 0 {
		cfg.WatchPaths = []string{opts.args[0]}
	}
	return nil
}

func configureLogging(uiMode, verbose bool) func() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stderr
	var closeFn func() = func() {}
	if uiMode {
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
				fmt.Fprintf(os.Stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
			} else {
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err == nil {
					output = f
					closeFn = func() { _ = f.Close() }
				} else {
					fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
				}
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return closeFn
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cobolscan", "cobolscan.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "cobolscan", "cobolscan.log")
	}

	return "cobolscan.log"
}
