package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/synopticspread/core/internal/alerthook"
	"github.com/synopticspread/core/internal/arraystore"
	"github.com/synopticspread/core/internal/config"
	"github.com/synopticspread/core/internal/fetcher"
	"github.com/synopticspread/core/internal/models"
	"github.com/synopticspread/core/internal/obsmetrics"
	"github.com/synopticspread/core/internal/orchestrator"
	"github.com/synopticspread/core/internal/scheduler"
	"github.com/synopticspread/core/internal/store"

	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrated", "path", cfg.DatabasePath)

	as := arraystore.New(cfg.ArrayStorePath)

	fetchers := map[string]fetcher.ModelFetcher{
		"GFS":   fetcher.NewGFSFetcher(cfg.GFSBaseURL, cfg.FetchTimeout, logger),
		"NAM":   fetcher.NewNAMFetcher(cfg.NAMBaseURL, cfg.FetchTimeout, logger),
		"ECMWF": fetcher.NewECMWFFetcher(cfg.ECMWFBaseURL, cfg.FetchTimeout, logger),
		"HRRR":  fetcher.NewHRRRFetcher(cfg.HRRRBaseURL, cfg.FetchTimeout, logger),
		"AIGFS": fetcher.NewAIGFSFetcher(cfg.AIGFSBaseURL, cfg.FetchTimeout, logger),
		"RRFS":  fetcher.NewRRFSFetcher(cfg.RRFSBaseURL, cfg.FetchTimeout, logger),
	}

	leadHours := map[string][]int{
		"GFS":   fetcher.GFSDefaultLeadHours,
		"NAM":   fetcher.NAMDefaultLeadHours,
		"ECMWF": fetcher.ECMWFDefaultLeadHours,
		"HRRR":  fetcher.HRRRDefaultLeadHours,
		"AIGFS": fetcher.AIGFSDefaultLeadHours,
		"RRFS":  fetcher.RRFSDefaultLeadHours,
	}

	metrics := obsmetrics.NewMetrics()

	var hook alerthook.Hook
	if cfg.AlertWebhookURL != "" {
		webhook := alerthook.NewWebhookHook(cfg.AlertWebhookURL, defaultAlertRules(), 10*time.Second, logger)
		webhook.Metrics = metrics
		hook = webhook
		logger.Info("alert webhook enabled")
	} else {
		logger.Info("alert webhook disabled")
	}

	clock := clockwork.NewRealClock()
	o := orchestrator.New(st, as, fetchers, leadHours, cfg.MonitorPoints, clock, logger, metrics, hook, cfg.JobDeadline)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.SchedulerEnabled {
		logger.Info("scheduler disabled, idle")
		<-ctx.Done()
		return
	}

	sched := scheduler.New(o, clock, logger, metrics)
	for _, ms := range scheduler.DefaultSchedules {
		if _, ok := fetchers[ms.ModelName]; !ok {
			continue
		}
		if err := sched.Register(ms); err != nil {
			logger.Error("register schedule", "model", ms.ModelName, "error", err)
			os.Exit(1)
		}
	}

	sched.Start()
	logger.Info("scheduler started", "models", len(fetchers))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.JobDeadline)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}

// newLogger builds the structured logger cfg.LogFormat/LogLevel name,
// following the pack's config-driven slog setup.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// defaultAlertRules flags the divergence conditions worth a webhook ping:
// large ensemble spread on precip and wind speed, tracked globally rather
// than scoped to a monitor point.
func defaultAlertRules() []alerthook.Rule {
	return []alerthook.Rule{
		{Variable: variableOrPanic("precip"), Metric: alerthook.MetricSpread, Threshold: 15, Comparison: alerthook.GreaterThan},
		{Variable: variableOrPanic("wind_speed"), Metric: alerthook.MetricSpread, Threshold: 10, Comparison: alerthook.GreaterThan},
	}
}

func variableOrPanic(name string) models.Variable {
	v, ok := models.ParseVariable(name)
	if !ok {
		panic(fmt.Sprintf("unknown default alert rule variable %q", name))
	}
	return v
}
