// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SoapMaker101/solana-strategy-tester-sub000/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	BlueprintsReplayed prometheus.Counter
	PositionsOpened    prometheus.Counter
	PositionsClosed    *prometheus.CounterVec
	PartialExits       prometheus.Counter
	RiskSkips          prometheus.Counter
	ProfitResets       prometheus.Counter
	PruneEpisodes      prometheus.Counter

	// Audit metrics
	AuditFindings *prometheus.CounterVec
	RunsBlocked   prometheus.Counter

	// Stream metrics
	StreamSubscribers     prometheus.Gauge
	StreamPayloadsDropped prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "portfolio_sim"
	}

	return &Metrics{
		// Simulation metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		BlueprintsReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "blueprints_replayed_total",
			Help:      "Total number of trade blueprints replayed",
		}),
		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed by reason",
		}, []string{"reason"}),
		PartialExits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "partial_exits_total",
			Help:      "Total number of partial exits executed",
		}),
		RiskSkips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "risk_skips_total",
			Help:      "Total number of blueprints rejected by the capacity controller",
		}),
		ProfitResets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "profit_resets_total",
			Help:      "Total number of profit-reset episodes",
		}),
		PruneEpisodes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "prune_episodes_total",
			Help:      "Total number of capacity-prune episodes",
		}),

		// Audit metrics
		AuditFindings: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "findings_total",
			Help:      "Total number of audit findings by severity",
		}, []string{"severity"}),
		RunsBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_blocked_total",
			Help:      "Total number of runs blocked by P0 findings",
		}),

		// Stream metrics
		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Current number of websocket subscribers",
		}),
		StreamPayloadsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "payloads_dropped_total",
			Help:      "Total number of payloads dropped by slow subscribers",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records one finished simulation run from its summary.
func RecordRun(status string, durationSeconds float64, summary *domain.RunSummary) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	if summary == nil {
		return
	}

	DefaultMetrics.BlueprintsReplayed.Add(float64(summary.BlueprintCount))
	DefaultMetrics.PositionsOpened.Add(float64(summary.PositionsOpened))
	DefaultMetrics.PartialExits.Add(float64(summary.PartialExits))
	DefaultMetrics.RiskSkips.Add(float64(summary.RiskSkipped))
	DefaultMetrics.ProfitResets.Add(float64(summary.ProfitResets))
	DefaultMetrics.PruneEpisodes.Add(float64(summary.PruneEpisodes))

	closed := DefaultMetrics.PositionsClosed
	closed.WithLabelValues(string(domain.ReasonStrategyExit)).Add(float64(summary.ClosedStrategyExit))
	closed.WithLabelValues(string(domain.ReasonProfitReset)).Add(float64(summary.ClosedProfitReset))
	closed.WithLabelValues(string(domain.ReasonCapacityPrune)).Add(float64(summary.ClosedCapacityPrune))
	closed.WithLabelValues(string(domain.ReasonMaxHold)).Add(float64(summary.ClosedMaxHold))
	closed.WithLabelValues(string(domain.ReasonEndOfData)).Add(float64(summary.ClosedEndOfData))
}

// RecordAudit records audit severity counts for one run.
func RecordAudit(p0, p1, p2 int) {
	DefaultMetrics.AuditFindings.WithLabelValues("P0").Add(float64(p0))
	DefaultMetrics.AuditFindings.WithLabelValues("P1").Add(float64(p1))
	DefaultMetrics.AuditFindings.WithLabelValues("P2").Add(float64(p2))
	if p0 > 0 {
		DefaultMetrics.RunsBlocked.Inc()
	}
}

// UpdateStreamSubscribers updates the websocket subscriber gauge.
func UpdateStreamSubscribers(n int) {
	DefaultMetrics.StreamSubscribers.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
