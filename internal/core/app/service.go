package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"cobolscan/internal/core/app/helpers"
	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/engine/scanner"
	"cobolscan/internal/engine/symbols"
	"cobolscan/internal/shared/observability"
	"cobolscan/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type queryService struct {
	app *App
}

var _ ports.QueryService = (*queryService)(nil)

func NewQueryService(app *App) ports.QueryService {
	return &queryService{app: app}
}

func (a *App) QueryService() ports.QueryService {
	return NewQueryService(a)
}

func validName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", cerrors.New(cerrors.CodeValidationError, "name is required")
	}
	return trimmed, nil
}

func (s *queryService) Symbols(ctx context.Context, name string) ([]symbols.SymbolRecord, error) {
	_, span := observability.Tracer.Start(ctx, "queryService.Symbols",
		trace.WithAttributes(attribute.String("name", name)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := validName(name)
	if err != nil {
		return nil, err
	}

	out := make([]symbols.SymbolRecord, 0)
	// a copybook shared by several programs is reported once
	seen := make(map[symbols.SymbolRecord]struct{})
	for _, f := range s.app.indexedFiles() {
		for _, rec := range f.Definitions() {
			if !strings.EqualFold(rec.Name, name) {
				continue
			}
			if _, dup := seen[rec]; dup {
				continue
			}
			seen[rec] = struct{}{}
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

func (s *queryService) References(ctx context.Context, name string) ([]symbols.Reference, error) {
	_, span := observability.Tracer.Start(ctx, "queryService.References",
		trace.WithAttributes(attribute.String("name", name)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := validName(name)
	if err != nil {
		return nil, err
	}

	out := make([]symbols.Reference, 0)
	for _, f := range s.app.indexedFiles() {
		for _, ref := range f.References {
			if strings.EqualFold(ref.Name, name) {
				out = append(out, ref)
			}
		}
	}
	return out, nil
}

func (s *queryService) Files(ctx context.Context) ([]ports.FileStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files := s.app.indexedFiles()
	out := make([]ports.FileStatus, 0, len(files))
	for _, f := range files {
		out = append(out, ports.FileStatus{
			Path:        f.Path,
			Format:      f.Format,
			ProgramID:   f.ProgramID,
			Aborted:     f.Aborted,
			Copybooks:   len(f.Copybooks),
			Diagnostics: len(f.Diagnostics),
		})
	}
	return out, nil
}

func (s *queryService) Outline(ctx context.Context, path string) ([]*scanner.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, cerrors.New(cerrors.CodeValidationError, "path is required")
	}
	if _, err := helpers.FindContainingWatchPath(path, s.app.Config.WatchPaths); err != nil {
		return nil, cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodePermissionDenied, "outline outside the workspace"), cerrors.CtxPath, path)
	}
	return s.app.Outline(ctx, path)
}

// ExportCache writes the workspace cache as delimited records to path.
func (a *App) ExportCache(path string) error {
	var buf bytes.Buffer
	if err := symbols.WriteRecords(&buf, a.cache.Records()); err != nil {
		return cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "encode cache records"), cerrors.CtxPath, path)
	}
	if err := util.WriteFileWithDirs(path, buf.Bytes(), 0o644); err != nil {
		return cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "write cache records"), cerrors.CtxPath, path)
	}
	a.cache.ClearDirty()
	slog.Info("cache exported", "path", path)
	return nil
}

// ImportCache merges records written by ExportCache. Entries of files that
// changed or vanished since the export are dropped. A missing file is not an
// error.
func (a *App) ImportCache(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return cerrors.AddContext(cerrors.Wrap(err, cerrors.CodeInternal, "open cache records"), cerrors.CtxPath, path)
	}
	defer f.Close()

	records, err := symbols.ReadRecords(f)
	if err != nil {
		return cerrors.AddContext(err, cerrors.CtxPath, path)
	}
	a.cache.LoadRecords(records, func(file string, modTime int64) bool {
		info, err := os.Stat(file)
		return err == nil && info.ModTime().UnixNano() == modTime
	})
	a.cache.ClearDirty()
	slog.Info("cache imported", "path", path, "files", len(records.Files))
	return nil
}

// FormatReport renders a one-line summary of report.
func FormatReport(report ports.ScanReport) string {
	state := "scanned"
	switch {
	case report.Aborted:
		state = "aborted"
	case report.Cached:
		state = "cached"
	case report.Format == "":
		state = "skipped"
	}
	return fmt.Sprintf("%-8s %s format=%s tokens=%d copybooks=%d diagnostics=%d",
		state, report.Path, report.Format, report.Tokens, report.Copybooks, len(report.Diagnostics))
}
