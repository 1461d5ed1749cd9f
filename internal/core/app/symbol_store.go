package app

import (
	"fmt"
	"os"
	"strings"

	"cobolscan/internal/core/config"
	"cobolscan/internal/engine/symbols"
)

func (a *App) initSymbolStore() error {
	if a == nil || a.Config == nil || !a.Config.DB.Enabled {
		return nil
	}
	dbPath := strings.TrimSpace(a.Config.DB.Path)
	if dbPath == "" {
		return nil
	}
	cwd, err := os.Getwd()
	if err == nil {
		if resolved, pathErr := config.ResolvePaths(a.Config, cwd); pathErr == nil {
			dbPath = resolved.DBPath
		}
	}
	store, err := symbols.OpenSQLiteStore(dbPath, a.projectKey(), symbols.WithBusyTimeout(a.Config.DB.BusyTimeout))
	if err != nil {
		return fmt.Errorf("open sqlite symbol store: %w", err)
	}
	a.symbolStore = store
	return nil
}

func (a *App) projectKey() string {
	key := strings.TrimSpace(a.Config.DB.ProjectKey)
	if key == "" {
		return "default"
	}
	return key
}
