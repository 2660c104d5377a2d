package scheduler

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"OptionSentinel/internal/collector"
	"OptionSentinel/internal/portfolio"
	"OptionSentinel/internal/recorder"
	"OptionSentinel/internal/report"
	"OptionSentinel/internal/scanner"
)

// Options selects what the jobs scan.
type Options struct {
	Watchlist       []string
	ExpirationIndex int
	MinAlertScore   int
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Scanner   *scanner.Scanner
	Book      *portfolio.Book
	Recorder  recorder.Recorder
	Logger    logrus.FieldLogger
	Options   Options
	Out       io.Writer
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler. book may be nil when no positions are configured.
func NewScheduler(ctx context.Context, col *collector.Collector, sc *scanner.Scanner, book *portfolio.Book,
	rec recorder.Recorder, logger logrus.FieldLogger, opts Options) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.PrintfLogger(logger)))),
		Collector: col,
		Scanner:   sc,
		Book:      book,
		Recorder:  rec,
		Logger:    logger,
		Options:   opts,
		Out:       os.Stdout,
		Ctx:       ctx,
	}
}

// RegisterAll registers the scan task and, when a book is set, the portfolio task.
func (s *Scheduler) RegisterAll(scanCron, portfolioCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if s.Book == nil {
		return nil
	}
	if _, err := s.Cron.AddFunc(portfolioCron, s.portfolioTask); err != nil {
		return fmt.Errorf("register portfolio task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.WithField("jobs", len(s.Cron.Entries())).Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunScanNow executes the scan task immediately (for RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scanTask()
}

// RunPortfolioNow executes the portfolio task immediately.
func (s *Scheduler) RunPortfolioNow() {
	if s.Book != nil {
		s.portfolioTask()
	}
}

func (s *Scheduler) scanTask() {
	runID := recorder.NewRunID()
	log := s.Logger.WithField("run_id", runID)
	start := time.Now()
	log.Info("running scan task")

	chains := s.Collector.CollectAll(s.Ctx, s.Options.Watchlist, s.Options.ExpirationIndex)
	if len(chains) == 0 {
		log.Error("scan task: no chains collected")
		return
	}

	analyses := s.Scanner.Analyzer.AnalyzeAll(s.Ctx, chains)
	for _, a := range analyses {
		if err := s.Recorder.RecordAnalysis(&recorder.AnalysisRecord{RunID: runID, Analysis: a}); err != nil {
			log.WithError(err).Error("record analysis")
		}
	}

	results := s.Scanner.EvaluateAll(analyses)
	for _, r := range scanner.Significant(results, s.Options.MinAlertScore) {
		for _, a := range r.Alerts {
			log.WithFields(logrus.Fields{
				"symbol": r.Symbol,
				"kind":   a.Kind,
				"score":  r.Score(),
			}).Warn(a.Message)
		}
	}
	s.write(report.FormatScan(results, start))

	if err := s.Recorder.RecordScan(&recorder.ScanRecord{RunID: runID, Results: results}); err != nil {
		log.WithError(err).Error("record scan")
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("scan task done")
}

func (s *Scheduler) portfolioTask() {
	runID := recorder.NewRunID()
	log := s.Logger.WithField("run_id", runID)
	log.Info("running portfolio task")

	rep, err := s.Book.Evaluate(s.Ctx, s.Collector)
	if err != nil {
		log.WithError(err).Error("portfolio task")
		return
	}
	s.write(report.FormatPortfolioGreeks(rep))

	if err := s.Recorder.RecordPortfolio(&recorder.PortfolioRecord{RunID: runID, Report: rep}); err != nil {
		log.WithError(err).Error("record portfolio")
	}
}

func (s *Scheduler) write(text string) {
	if s.Out == nil {
		return
	}
	if _, err := fmt.Fprintln(s.Out, text); err != nil {
		s.Logger.WithError(err).Error("write report")
	}
}
