package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"OptionSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger logrus.FieldLogger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while scans write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			run_id           TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			expiration       TEXT,
			days_to_exp      INTEGER,
			spot             REAL,
			has_distribution INTEGER,
			fit_method       TEXT,
			expected_price   REAL,
			std_dev          REAL,
			skewness         REAL,
			kurtosis         REAL,
			atm_iv           REAL,
			prob_above       REAL,
			prob_below       REAL,
			range1_lower     REAL,
			range1_upper     REAL,
			put_call_ratio   REAL,
			total_oi         REAL,
			iv_mean          REAL,
			iv_median        REAL,
			iv_std           REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_symbol_ts ON analyses(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS scan_results (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp         INTEGER NOT NULL,
			run_id            TEXT NOT NULL,
			symbol            TEXT NOT NULL,
			current_price     REAL,
			expected_move_pct REAL,
			atm_iv            REAL,
			skewness          REAL,
			prob_up           REAL,
			prob_down         REAL,
			put_call_ratio    REAL,
			total_volume      REAL,
			total_oi          REAL,
			volume_oi_ratio   REAL,
			iv_change         REAL,
			skew_change       REAL,
			score             INTEGER,
			alerts            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_symbol_ts ON scan_results(symbol, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_run ON scan_results(run_id)`,

		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			run_id      TEXT NOT NULL,
			positions   INTEGER,
			skipped     INTEGER,
			delta       REAL,
			gamma       REAL,
			theta       REAL,
			vega        REAL,
			rho         REAL,
			total_value TEXT,
			total_cost  TEXT,
			total_pnl   TEXT,
			pnl_pct     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_portfolio_ts ON portfolio_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAnalysis(rec *AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := rec.Analysis
	chain, sum := a.Chain, a.Summary
	fitMethod := ""
	if a.Distribution != nil {
		fitMethod = a.Distribution.FitMethod
	}

	_, err := r.db.Exec(`INSERT INTO analyses
		(timestamp, run_id, symbol, expiration, days_to_exp, spot, has_distribution, fit_method,
		 expected_price, std_dev, skewness, kurtosis, atm_iv, prob_above, prob_below,
		 range1_lower, range1_upper, put_call_ratio, total_oi, iv_mean, iv_median, iv_std)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.now().Unix(), rec.RunID, chain.Symbol, chain.Expiration.Format(model.DateLayout),
		chain.DaysToExpiration, chain.Spot, sum.HasDistribution, fitMethod,
		sum.ExpectedPrice, sum.ExpectedMove, sum.Skewness, sum.Kurtosis, sum.ATMIV,
		sum.ProbAbove, sum.ProbBelow, sum.Range1Sigma.Lower, sum.Range1Sigma.Upper,
		sum.PutCallRatio, sum.TotalOI, sum.IVMean, sum.IVMedian, sum.IVStd,
	)
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", chain.Symbol, err)
	}
	return nil
}

// RecordScan writes every result of one scan in a single transaction.
func (r *SQLiteRecorder) RecordScan(rec *ScanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin scan tx: %w", err)
	}
	defer tx.Rollback()

	for _, res := range rec.Results {
		kinds := make([]string, len(res.Alerts))
		for i, a := range res.Alerts {
			kinds[i] = string(a.Kind)
		}
		_, err := tx.Exec(`INSERT INTO scan_results
			(timestamp, run_id, symbol, current_price, expected_move_pct, atm_iv, skewness,
			 prob_up, prob_down, put_call_ratio, total_volume, total_oi, volume_oi_ratio,
			 iv_change, skew_change, score, alerts)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			res.Timestamp.Unix(), rec.RunID, res.Symbol, res.CurrentPrice, res.ExpectedMovePct,
			res.ATMIV, res.Skewness, res.ProbUp, res.ProbDown, res.PutCallRatio,
			res.TotalVolume, res.TotalOI, res.VolumeOIRatio,
			nullable(res.IVChange), nullable(res.SkewChange), res.Score(), strings.Join(kinds, ","),
		)
		if err != nil {
			return fmt.Errorf("insert scan result %s: %w", res.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordPortfolio(rec *PortfolioRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := rec.Report
	g := rep.Greeks
	_, err := r.db.Exec(`INSERT INTO portfolio_snapshots
		(timestamp, run_id, positions, skipped, delta, gamma, theta, vega, rho,
		 total_value, total_cost, total_pnl, pnl_pct)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.Timestamp.Unix(), rec.RunID, len(rep.Lines), len(rep.Skipped),
		g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho,
		rep.TotalValue.StringFixed(2), rep.TotalCost.StringFixed(2), rep.TotalPnL.StringFixed(2),
		rep.TotalPnLPct,
	)
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
