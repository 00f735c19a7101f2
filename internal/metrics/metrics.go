package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "autorepay"

// Metrics groups the bot's collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	cycles           prometheus.Counter
	cycleFailures    prometheus.Counter
	cycleDuration    prometheus.Histogram
	monitoredUsers   prometheus.Gauge
	candidates       *prometheus.CounterVec
	rebalances       *prometheus.CounterVec
	attempts         *prometheus.HistogramVec
	dryRunFailures   *prometheus.CounterVec
	quotes           *prometheus.CounterVec
	lastScannedBlock prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Number of completed monitoring cycles",
	})
	m.cycleFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycle_failures_total",
		Help:      "Number of cycles aborted by an infrastructure error",
	})
	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a monitoring cycle",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	m.monitoredUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "monitored_users",
		Help:      "Borrowers with configured thresholds",
	})
	m.candidates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Borrowers selected for a rebalance pass",
	}, []string{"direction"})
	m.rebalances = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebalances_total",
		Help:      "Rebalance outcomes by direction and status",
	}, []string{"direction", "status"})
	m.attempts = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rebalance_attempts",
		Help:      "Attempts used per rebalance",
		Buckets:   []float64{1, 2, 3, 4, 5},
	}, []string{"direction"})
	m.dryRunFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dry_run_failures_total",
		Help:      "Failed gas-estimation dry runs",
	}, []string{"variant"})
	m.quotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_total",
		Help:      "Exchange quotes by result",
	}, []string{"result"})
	m.lastScannedBlock = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_scanned_block",
		Help:      "Last block covered by the event scanner",
	})

	m.registry.MustRegister(
		m.cycles,
		m.cycleFailures,
		m.cycleDuration,
		m.monitoredUsers,
		m.candidates,
		m.rebalances,
		m.attempts,
		m.dryRunFailures,
		m.quotes,
		m.lastScannedBlock,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	if err != nil {
		m.cycleFailures.Inc()
	}
}

// SetMonitoredUsers sets the monitored-borrower gauge.
func (m *Metrics) SetMonitoredUsers(n int) {
	if m == nil {
		return
	}
	m.monitoredUsers.Set(float64(n))
}

// SetLastScannedBlock sets the scanner progress gauge.
func (m *Metrics) SetLastScannedBlock(block uint64) {
	if m == nil {
		return
	}
	m.lastScannedBlock.Set(float64(block))
}

// AddCandidates counts borrowers picked for a pass.
func (m *Metrics) AddCandidates(direction string, n int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(direction).Add(float64(n))
}

// ObserveRebalance records the outcome of one rebalance.
func (m *Metrics) ObserveRebalance(direction, status string, attempts int) {
	if m == nil {
		return
	}
	m.rebalances.WithLabelValues(direction, status).Inc()
	m.attempts.WithLabelValues(direction).Observe(float64(attempts))
}

// IncDryRunFailure counts a failed dry run for the flash-loan or direct variant.
func (m *Metrics) IncDryRunFailure(variant string) {
	if m == nil {
		return
	}
	m.dryRunFailures.WithLabelValues(variant).Inc()
}

// ObserveQuote counts a quote attempt.
func (m *Metrics) ObserveQuote(viable bool) {
	if m == nil {
		return
	}
	result := "viable"
	if !viable {
		result = "not_viable"
	}
	m.quotes.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
