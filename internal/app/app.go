package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"promptstudio/internal/retention"
	"promptstudio/pkg/banner"
	"promptstudio/pkg/config"
	"promptstudio/pkg/eventlog"
	"promptstudio/pkg/logger"
	"promptstudio/pkg/state"
	"promptstudio/pkg/store"
	"promptstudio/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	cat       *store.Catalog
	events    *eventlog.Log
	retCancel context.CancelFunc

	srv *http.Server
}

// New initializes resources that do not require a running context: config
// validation, runtime keys, state directories, the catalog store and its
// seed data, and the event log. Call Run to start the scheduler and HTTP
// server and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	telemetry.SetSampleRate(eff.Config.Telemetry.SampleRate)
	telemetry.SetSlowThreshold(eff.Config.Telemetry.SlowThreshold.Duration())

	// backend API keys double as user-signature signing secrets
	runtimeCfg := &config.RuntimeConfig{SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	if err := state.Init(eff.Config.Storage.StateDir); err != nil {
		return nil, fmt.Errorf("failed to prepare state dir: %w", err)
	}

	cat, err := store.Open(store.Options{Path: eff.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog at %q: %w", eff.DBPath, err)
	}
	if err := cat.Seed(seedData(eff.Config)); err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	var events *eventlog.Log
	if eff.Config.EventLog.Enabled {
		dir := eff.Config.EventLog.Dir
		if dir == "" {
			dir = state.PathsVar.EventLog
		}
		events, err = eventlog.New(dir, int64(eff.Config.EventLog.MaxFileSize))
		if err != nil {
			cat.Close()
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate, cat: cat, events: events}, nil
}

// Run starts the retention scheduler and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	cancel, err := retention.Start(ctx, a.eff, a.events)
	if err != nil {
		return err
	}
	a.retCancel = cancel

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close releases everything Run and New started. Safe to call after a
// canceled Run.
func (a *App) Close() {
	if a.retCancel != nil {
		a.retCancel()
	}
	if a.srv != nil {
		timeout := a.eff.Config.Server.ShutdownTimeout.Duration()
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		_ = a.srv.Shutdown(shutCtx)
		cancel()
	}
	if a.events != nil {
		_ = a.events.Close()
	}
	if a.cat != nil {
		_ = a.cat.Close()
	}
	logger.Info("server_stopped")
}

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" && a.commit != "" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" && a.buildDate != "" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// seedData maps the config seed block onto store seed records.
func seedData(cfg *config.Config) store.SeedData {
	var data store.SeedData
	for _, f := range cfg.Seeds.Functions {
		data.Functions = append(data.Functions, store.SeedFunction{ID: f.ID, Name: f.Name, Icon: f.Icon})
	}
	for _, c := range cfg.Seeds.Categories {
		data.Categories = append(data.Categories, store.SeedCategory{FunctionID: c.FunctionID, Name: c.Name})
	}
	for _, a := range cfg.Seeds.Authors {
		data.Authors = append(data.Authors, store.SeedAuthor{ID: a.ID, DisplayName: a.DisplayName})
	}
	return data
}
