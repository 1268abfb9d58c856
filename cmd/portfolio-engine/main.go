package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kellyfolio/portfolio-engine/internal/adapters"
	"github.com/kellyfolio/portfolio-engine/internal/config"
	"github.com/kellyfolio/portfolio-engine/internal/engine"
	"github.com/kellyfolio/portfolio-engine/internal/httpapi"
	"github.com/kellyfolio/portfolio-engine/internal/observ"
	"github.com/kellyfolio/portfolio-engine/internal/scheduler"
	"github.com/kellyfolio/portfolio-engine/internal/stats"
	"github.com/kellyfolio/portfolio-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	refreshNow := flag.Bool("refresh-now", false, "run a full refresh immediately on startup")
	once := flag.Bool("once", false, "refresh once and exit (no server, no scheduler)")
	flag.Parse()

	if err := run(*configPath, *refreshNow, *once); err != nil {
		observ.Error("fatal", err, nil)
		os.Exit(1)
	}
}

func run(configPath string, refreshNow, once bool) error {
	// .env is optional; explicit environment still wins below.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.Store.DataDir = dir
	}

	var seriesStore store.SeriesStore
	switch cfg.Store.Backend {
	case "sqlite":
		sq, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer sq.Close()
		seriesStore = sq
	default:
		js, err := store.NewJSONStore(cfg.Store.DataDir)
		if err != nil {
			return fmt.Errorf("open json store: %w", err)
		}
		seriesStore = js
	}

	provider := adapters.NewNasdaqClient(adapters.NasdaqConfig{
		BaseURL:            cfg.Provider.BaseURL,
		RateLimitPerMinute: cfg.Provider.RateLimitPerMinute,
		DailyCap:           cfg.Provider.DailyCap,
		TimeoutSeconds:     cfg.Provider.TimeoutSeconds,
		MaxRetries:         cfg.Provider.MaxRetries,
		BackoffBaseMs:      cfg.Provider.BackoffBaseMs,
	})

	eng := engine.New(
		seriesStore,
		provider,
		stats.NewEstimator(cfg.Estimator),
		store.NewSettingsFile(cfg.Store.SettingsPath),
		engine.Config{
			Years:               cfg.Years,
			RiskFreeRate:        cfg.RiskFreeRate,
			KellyMultiplier:     cfg.KellyMultiplier,
			SyntheticVolatility: cfg.Synthetic.Volatility,
			SyntheticReturn:     cfg.Synthetic.ExpectedReturn,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(ctx, eng, cfg.Symbols)
	if once {
		sched.RunRefreshNow()
		return nil
	}
	if err := sched.RegisterAll(cfg.Schedule.DailyRefresh, cfg.Schedule.WeeklyCorrelation); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if refreshNow {
		go sched.RunRefreshNow()
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(eng, cfg.Symbols).Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		observ.Log("http_listening", map[string]any{"addr": cfg.HTTPAddr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		observ.Error("http_shutdown_error", err, nil)
	}
	observ.Log("shutdown_complete", nil)
	return nil
}
