// Package metrics exposes Prometheus collectors for extraction, scanning and
// portfolio risk. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"OptionSentinel/internal/model"
)

const namespace = "optionsentinel"

// Extraction outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeInsufficient = "insufficient"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	extractions       *prometheus.CounterVec
	extractionSeconds prometheus.Histogram
	alerts            *prometheus.CounterVec
	ivUnavailable     prometheus.Counter
	scans             prometheus.Counter
	lastScan          prometheus.Gauge
	portfolioGreeks   *prometheus.GaugeVec
}

// New creates and registers every collector.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Density extractions by outcome",
		}, []string{"outcome"}),
		extractionSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_seconds",
			Help:      "Time spent extracting one implied distribution",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Scanner alerts raised by kind",
		}, []string{"kind"}),
		ivUnavailable: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iv_unavailable_total",
			Help:      "Implied volatility inversions that found no solution",
		}),
		scans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed watchlist scans",
		}),
		lastScan: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time of the last completed scan",
		}),
		portfolioGreeks: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_greek",
			Help:      "Aggregate portfolio Greeks",
		}, []string{"greek"}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveExtraction counts one extraction and its duration.
func (m *Metrics) ObserveExtraction(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.extractionSeconds.Observe(d.Seconds())
}

// IVUnavailable counts failed implied volatility inversions.
func (m *Metrics) IVUnavailable(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ivUnavailable.Add(float64(n))
}

// ObserveScan records the alerts of one scan run.
func (m *Metrics) ObserveScan(results []*model.ScanResult, at time.Time) {
	if m == nil {
		return
	}
	for _, r := range results {
		for _, a := range r.Alerts {
			m.alerts.WithLabelValues(string(a.Kind)).Inc()
		}
	}
	m.scans.Inc()
	m.lastScan.Set(float64(at.Unix()))
}

// SetPortfolioGreeks publishes the latest aggregate Greeks.
func (m *Metrics) SetPortfolioGreeks(g model.Greeks) {
	if m == nil {
		return
	}
	m.portfolioGreeks.WithLabelValues("delta").Set(g.Delta)
	m.portfolioGreeks.WithLabelValues("gamma").Set(g.Gamma)
	m.portfolioGreeks.WithLabelValues("theta").Set(g.Theta)
	m.portfolioGreeks.WithLabelValues("vega").Set(g.Vega)
	m.portfolioGreeks.WithLabelValues("rho").Set(g.Rho)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
