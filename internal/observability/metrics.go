// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	CoinsObserved *prometheus.CounterVec
	CoinsStored   *prometheus.CounterVec
	ItemErrors    *prometheus.CounterVec

	// Alerting metrics
	AlertsCreated      *prometheus.CounterVec
	AlertsSuppressed   *prometheus.CounterVec
	MigrationsRecorded prometheus.Counter

	// Scan loop metrics
	ScanRunsTotal      *prometheus.CounterVec
	ScanDuration       *prometheus.HistogramVec
	LastSuccessfulScan *prometheus.GaugeVec

	// Backfill metrics
	BackfillCoins      prometheus.Gauge
	BackfillCreators   prometheus.Gauge
	BackfillMigrations prometheus.Gauge
	BackfillErrors     prometheus.Gauge
	BackfillDuration   prometheus.Gauge

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// Identity and statistics metrics
	IdentityResolutions *prometheus.CounterVec
	Recomputes          prometheus.Counter
	RecomputeErrors     prometheus.Counter

	// Push listener metrics
	ListenerState  prometheus.Gauge
	TrackedWallets prometheus.Gauge
	PushEvents     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "padre"
	}

	return &Metrics{
		CoinsObserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "coins_observed_total",
			Help:      "Total number of upstream coin records observed by loop",
		}, []string{"loop"}),
		CoinsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "coins_stored_total",
			Help:      "Total number of coin upserts by loop",
		}, []string{"loop"}),
		ItemErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "item_errors_total",
			Help:      "Total number of skipped items by loop and phase",
		}, []string{"loop", "phase"}),

		AlertsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Total number of alerts created by source",
		}, []string{"source"}),
		AlertsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Total number of alert attempts that hit an existing alert",
		}, []string{"source"}),
		MigrationsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "migrations_recorded_total",
			Help:      "Total number of migration events recorded",
		}),

		ScanRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "scan_runs_total",
			Help:      "Total number of scans by loop and status",
		}, []string{"loop", "status"}),
		ScanDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "scan_duration_seconds",
			Help:      "Scan duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"loop"}),
		LastSuccessfulScan: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last successful scan",
		}, []string{"loop"}),

		BackfillCoins: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "coins_scanned",
			Help:      "Coins scanned by the last backfill",
		}),
		BackfillCreators: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "creators",
			Help:      "Distinct creators found by the last backfill",
		}),
		BackfillMigrations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "migrations_recorded",
			Help:      "Migration events recorded by the last backfill",
		}),
		BackfillErrors: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "errors",
			Help:      "Errors counted by the last backfill",
		}),
		BackfillDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of the last backfill",
		}),

		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream HTTP requests by service and status",
		}, []string{"service", "status"}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_latency_seconds",
			Help:      "Upstream request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service"}),

		IdentityResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Total number of identity resolutions by mode and outcome",
		}, []string{"mode", "outcome"}),
		Recomputes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "recomputes_total",
			Help:      "Total number of creator statistic recomputes",
		}),
		RecomputeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "recompute_errors_total",
			Help:      "Total number of failed creator statistic recomputes",
		}),

		ListenerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "state",
			Help:      "Push listener state (0 disconnected, 1 connecting, 2 subscribed, 3 disabled)",
		}),
		TrackedWallets: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "tracked_wallets",
			Help:      "Number of migrator wallets subscribed",
		}),
		PushEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "events_total",
			Help:      "Total number of push notifications by outcome",
		}, []string{"outcome"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCoinObserved increments the observed coins counter for a loop.
func RecordCoinObserved(loop string) {
	DefaultMetrics.CoinsObserved.WithLabelValues(loop).Inc()
}

// RecordCoinStored increments the stored coins counter for a loop.
func RecordCoinStored(loop string) {
	DefaultMetrics.CoinsStored.WithLabelValues(loop).Inc()
}

// RecordItemError records a skipped item.
func RecordItemError(loop, phase string) {
	DefaultMetrics.ItemErrors.WithLabelValues(loop, phase).Inc()
}

// RecordAlert records an alert attempt.
func RecordAlert(source string, created bool) {
	if created {
		DefaultMetrics.AlertsCreated.WithLabelValues(source).Inc()
		return
	}
	DefaultMetrics.AlertsSuppressed.WithLabelValues(source).Inc()
}

// RecordMigration increments the migrations recorded counter.
func RecordMigration() {
	DefaultMetrics.MigrationsRecorded.Inc()
}

// RecordScan records a scan run.
func RecordScan(loop string, durationSeconds float64, err error, nowUnix float64) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		DefaultMetrics.LastSuccessfulScan.WithLabelValues(loop).Set(nowUnix)
	}
	DefaultMetrics.ScanRunsTotal.WithLabelValues(loop, status).Inc()
	DefaultMetrics.ScanDuration.WithLabelValues(loop).Observe(durationSeconds)
}

// RecordBackfill publishes the counters of a finished backfill.
func RecordBackfill(coins, creators, migrations, errors int, durationSeconds float64) {
	DefaultMetrics.BackfillCoins.Set(float64(coins))
	DefaultMetrics.BackfillCreators.Set(float64(creators))
	DefaultMetrics.BackfillMigrations.Set(float64(migrations))
	DefaultMetrics.BackfillErrors.Set(float64(errors))
	DefaultMetrics.BackfillDuration.Set(durationSeconds)
}

// RecordUpstream records an upstream request.
func RecordUpstream(service, status string, seconds float64) {
	DefaultMetrics.UpstreamRequests.WithLabelValues(service, status).Inc()
	DefaultMetrics.UpstreamLatency.WithLabelValues(service).Observe(seconds)
}

// RecordIdentityResolution records a resolver outcome.
func RecordIdentityResolution(mode, outcome string) {
	DefaultMetrics.IdentityResolutions.WithLabelValues(mode, outcome).Inc()
}

// RecordRecompute records a statistics recompute.
func RecordRecompute(err error) {
	DefaultMetrics.Recomputes.Inc()
	if err != nil {
		DefaultMetrics.RecomputeErrors.Inc()
	}
}

// SetListenerState publishes the push listener state.
func SetListenerState(state int) {
	DefaultMetrics.ListenerState.Set(float64(state))
}

// SetTrackedWallets publishes the number of subscribed wallets.
func SetTrackedWallets(n int) {
	DefaultMetrics.TrackedWallets.Set(float64(n))
}

// RecordPushEvent records a push notification outcome.
func RecordPushEvent(outcome string) {
	DefaultMetrics.PushEvents.WithLabelValues(outcome).Inc()
}
