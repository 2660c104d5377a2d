package recorder

import (
	"github.com/google/uuid"

	"OptionSentinel/internal/analyzer"
	"OptionSentinel/internal/model"
	"OptionSentinel/internal/portfolio"
)

// AnalysisRecord is one analyzed chain.
type AnalysisRecord struct {
	RunID    string
	Analysis *analyzer.Analysis
}

// ScanRecord is the ranked output of one watchlist scan.
type ScanRecord struct {
	RunID   string
	Results []*model.ScanResult
}

// PortfolioRecord is one valuation of the book.
type PortfolioRecord struct {
	RunID  string
	Report *portfolio.Report
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordAnalysis(rec *AnalysisRecord) error
	RecordScan(rec *ScanRecord) error
	RecordPortfolio(rec *PortfolioRecord) error
	Close() error
}

// NewRunID returns an identifier shared by every row written for one job run.
func NewRunID() string {
	return uuid.NewString()
}
