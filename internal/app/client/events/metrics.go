package events

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics переводит события шины в prometheus метрики.
type Metrics struct {
	reg *prometheus.Registry

	runsStarted   *prometheus.CounterVec
	runsCompleted prometheus.Counter
	runErrors     prometheus.Counter
	records       *prometheus.CounterVec
	failedLast    prometheus.Gauge
	lastCompleted prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		runsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "possync_runs_started_total",
			Help: "Sync runs started, by mode",
		}, []string{"mode"}),
		runsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "possync_runs_completed_total",
			Help: "Sync runs that reached completion",
		}),
		runErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "possync_run_errors_total",
			Help: "Sync runs aborted by an orchestrator failure",
		}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "possync_records_total",
			Help: "Records reconciled, by collection and kind",
		}, []string{"collection", "kind"}),
		failedLast: f.NewGauge(prometheus.GaugeOpts{
			Name: "possync_failed_collections",
			Help: "Collections that failed in the last completed run",
		}),
		lastCompleted: f.NewGauge(prometheus.GaugeOpts{
			Name: "possync_last_completed_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}
}

// Handle - подписчик шины
func (m *Metrics) Handle(e Event) {
	switch ev := e.(type) {
	case SyncStarted:
		m.runsStarted.WithLabelValues(ev.Mode).Inc()
	case CollectionSynced:
		m.records.WithLabelValues(ev.Collection, "updated").Add(float64(ev.Updated))
		m.records.WithLabelValues(ev.Collection, "deleted").Add(float64(ev.Deleted))
	case SyncCompleted:
		m.runsCompleted.Inc()
		m.failedLast.Set(float64(ev.Failed))
		m.lastCompleted.Set(float64(ev.Summary.Timestamp.Unix()))
	case SyncError:
		m.runErrors.Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
