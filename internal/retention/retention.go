package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"promptstudio/pkg/config"
	"promptstudio/pkg/eventlog"
	"promptstudio/pkg/logger"
	"promptstudio/pkg/state"
)

// Start starts the event-log retention scheduler if enabled. Returns a
// cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult, events *eventlog.Log) (context.CancelFunc, error) {
	ret := eff.Config.Retention

	if !ret.Enabled || events == nil {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	retentionPath := state.PathsVar.Retention
	if err := os.MkdirAll(retentionPath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", retentionPath, "error", err.Error())
		return nil, err
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	days := eff.Config.EventLog.RetentionDays
	logger.Info("retention_enabled", "cron", cronExpr, "days", days, "path", retentionPath)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, events, days, retentionPath, cronExpr)
	logger.Info("retention_scheduler_started", "path", retentionPath)
	return cancel, nil
}

// RunOnce performs a single purge pass and stamps the retention directory.
// Exposed so operators can trigger a run outside the schedule.
func RunOnce(events *eventlog.Log, days int, retentionPath string) error {
	if err := events.Purge(days); err != nil {
		return err
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339) + "\n")
	if err := os.WriteFile(filepath.Join(retentionPath, "last_run"), stamp, 0o644); err != nil {
		logger.Warn("retention_stamp_failed", "error", err.Error())
	}
	return nil
}

// runScheduler computes the next cron tick with gronx and sleeps until then.
func runScheduler(ctx context.Context, events *eventlog.Log, days int, retentionPath, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err.Error())
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			if err := RunOnce(events, days, retentionPath); err != nil {
				logger.Error("retention_run_error", "error", err.Error())
			}
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			if err := RunOnce(events, days, retentionPath); err != nil {
				logger.Error("retention_run_error", "error", err.Error())
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}
