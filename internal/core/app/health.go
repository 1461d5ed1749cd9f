package app

import (
	"context"
	"fmt"
	"time"

	"cobolscan/internal/data/queue"
	"cobolscan/internal/shared/util"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	SessionID  string            `json:"session_id"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		SessionID:  s.app.SessionID,
		Components: make(map[string]string),
	}

	status.Components["workspace"] = fmt.Sprintf("ok (%d files, %d cached scans)", s.app.fileCount(), s.app.scanCache.Len())

	if s.app.symbolStore != nil {
		if err := s.app.symbolStore.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Components["symbol_store"] = "error: " + err.Error()
		} else {
			status.Components["symbol_store"] = "ok"
		}
	} else if s.app.Config.DB.Enabled {
		status.Status = "degraded"
		status.Components["symbol_store"] = "missing but enabled in config"
	}

	if mq, ok := s.app.writeQueue.(*queue.MemoryQueue); ok {
		status.Components["write_queue"] = fmt.Sprintf("ok (%d pending)", mq.Len())
	}
	if spool, ok := s.app.writeSpool.(*queue.SQLiteSpool); ok {
		stats, err := spool.Stats(ctx)
		switch {
		case err != nil:
			status.Status = "degraded"
			status.Components["write_spool"] = "error: " + err.Error()
		case stats.Retrying > 0:
			status.Status = "degraded"
			status.Components["write_spool"] = fmt.Sprintf("retrying (%d pending, %d failed, last error: %s)", stats.Pending, stats.Retrying, stats.LastError)
		default:
			status.Components["write_spool"] = fmt.Sprintf("ok (%d pending)", stats.Pending)
		}
	}

	if s.app.activeWatcher != nil {
		status.Components["watcher"] = "ok"
	}
	status.Components["memory"] = fmt.Sprintf("%d MB heap", util.HeapAllocMB())
	return status
}
