package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

// SweepMetrics are the Prometheus metrics of parameter sweeps. A nil
// *SweepMetrics records nothing.
type SweepMetrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	EventsProcessed *prometheus.CounterVec
	Anomalies       *prometheus.CounterVec
	ActiveRuns      prometheus.Gauge
	BestReturn      *prometheus.GaugeVec
	BenchmarkReturn *prometheus.GaugeVec
}

// NewSweepMetrics creates the sweep metrics and registers them with registerer.
func NewSweepMetrics(registerer prometheus.Registerer) *SweepMetrics {
	metrics := &SweepMetrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkback_sweep_runs_total",
				Help: "Total number of sweep runs by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inkback_sweep_run_duration_seconds",
				Help:    "Duration of a single backtest run in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"strategy"},
		),

		EventsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkback_events_processed_total",
				Help: "Total number of market events replayed by strategy",
			},
			[]string{"strategy"},
		),

		Anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inkback_anomalies_total",
				Help: "Total number of absorbed anomalies by strategy and kind",
			},
			[]string{"strategy", "kind"},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inkback_active_runs",
				Help: "Number of backtest runs currently executing",
			},
		),

		BestReturn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inkback_sweep_best_return_percent",
				Help: "Best total return percent of the last sweep by strategy",
			},
			[]string{"strategy"},
		),

		BenchmarkReturn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inkback_sweep_benchmark_return_percent",
				Help: "Buy and hold return percent of the last sweep by strategy",
			},
			[]string{"strategy"},
		),
	}

	registerer.MustRegister(
		metrics.RunsTotal,
		metrics.RunDuration,
		metrics.EventsProcessed,
		metrics.Anomalies,
		metrics.ActiveRuns,
		metrics.BestReturn,
		metrics.BenchmarkReturn,
	)

	return metrics
}

func (m *SweepMetrics) runStarted() {
	if m == nil {
		return
	}

	m.ActiveRuns.Inc()
}

func (m *SweepMetrics) runSucceeded(strategy string, duration time.Duration, result types.BacktestResult) {
	if m == nil {
		return
	}

	m.ActiveRuns.Dec()
	m.RunsTotal.WithLabelValues(strategy, "ok").Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	m.EventsProcessed.WithLabelValues(strategy).Add(float64(result.EventsProcessed))

	anomalies := result.Anomalies
	for kind, count := range map[string]int{
		"non_finite_pnl":    anomalies.NonFinitePnL,
		"non_finite_equity": anomalies.NonFiniteEquity,
		"skipped_fill":      anomalies.SkippedFills,
		"zero_size_fill":    anomalies.ZeroSizeFills,
		"ignored_order":     anomalies.IgnoredOrders,
		"malformed_event":   anomalies.MalformedEvents,
		"non_finite_cost":   anomalies.NonFiniteCosts,
	} {
		if count > 0 {
			m.Anomalies.WithLabelValues(strategy, kind).Add(float64(count))
		}
	}
}

// runFailed counts a failed run under the failure class of err.
func (m *SweepMetrics) runFailed(strategy string, started bool, err error) {
	if m == nil {
		return
	}

	if started {
		m.ActiveRuns.Dec()
	}

	m.RunsTotal.WithLabelValues(strategy, failureOutcome(err)).Inc()
}

// sweepFinished records the ranked results and the benchmark, which may be nil.
func (m *SweepMetrics) sweepFinished(strategy string, results []types.BacktestResult, benchmark *types.BacktestResult) {
	if m == nil {
		return
	}

	if benchmark != nil {
		m.BenchmarkReturn.WithLabelValues(strategy).Set(benchmark.TotalReturnPercent)
	}

	if len(results) > 0 {
		m.BestReturn.WithLabelValues(strategy).Set(results[0].TotalReturnPercent)
	}
}

func failureOutcome(err error) string {
	switch {
	case errors.IsConfigurationError(err):
		return "configuration_error"
	case errors.IsDataError(err):
		return "data_error"
	default:
		return "failed"
	}
}
