package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"OptionSentinel/internal/analyzer"
	"OptionSentinel/internal/collector"
	"OptionSentinel/internal/config"
	"OptionSentinel/internal/density"
	"OptionSentinel/internal/logger"
	"OptionSentinel/internal/metrics"
	"OptionSentinel/internal/portfolio"
	"OptionSentinel/internal/recorder"
	"OptionSentinel/internal/scanner"
	"OptionSentinel/internal/scheduler"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Filename: cfg.Log.Filename,
	})
	if err != nil {
		log.Fatalf("[FATAL] init logger: %v", err)
	}
	lg.Info("OptionSentinel starting...")

	// Init fetcher
	var fetcher collector.ChainFetcher
	switch cfg.DataSource.Kind {
	case "mock":
		fetcher = collector.NewMockFetcher(cfg.DataSource.MockSpots)
	default:
		fetcher = collector.NewFileFetcher(cfg.DataSource.ChainDir)
	}
	lg.WithField("source", fetcher.Name()).Info("data source ready")
	col := collector.NewCollector(fetcher, lg)

	m := metrics.New()

	ext := density.NewExtractor(cfg.Pricing.RiskFreeRate, lg)
	ext.NumPoints = cfg.Density.NumPoints
	ext.SmoothingFactor = cfg.Density.SmoothingFactor
	an := analyzer.New(ext, lg, m)
	sc := scanner.New(an, cfg.Scanner, lg, m)

	var book *portfolio.Book
	if len(cfg.Portfolio.Positions) > 0 {
		book, err = portfolio.NewBook(cfg.Portfolio.Positions, an.Pricing, lg, m)
		if err != nil {
			lg.WithError(err).Fatal("init portfolio")
		}
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, lg)
		if err != nil {
			lg.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				lg.WithError(err).Error("metrics server stopped")
			}
		}()
		lg.WithField("addr", cfg.Metrics.Addr).Info("metrics server started")
	}

	sched := scheduler.NewScheduler(ctx, col, sc, book, rec, lg, scheduler.Options{
		Watchlist:       cfg.Watchlist,
		ExpirationIndex: cfg.DataSource.ExpirationIndex,
		MinAlertScore:   cfg.Scanner.MinAlertScore,
	})
	if err := sched.RegisterAll(cfg.Schedule.ScanCron, cfg.Schedule.PortfolioCron); err != nil {
		lg.WithError(err).Fatal("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Schedule.RunOnStart {
		lg.Info("run_on_start enabled, executing scan now")
		go func() {
			sched.RunScanNow()
			sched.RunPortfolioNow()
		}()
	}

	lg.Info("OptionSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutdown signal received, stopping...")
	cancel()
}
