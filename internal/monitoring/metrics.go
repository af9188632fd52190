package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/research-writer/internal/model"
)

// Metrics holds the Prometheus collectors for article runs. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageTotal    *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	documents     *prometheus.CounterVec
	costUSD       prometheus.Counter
}

// NewMetrics registers the run collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "writer",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution time in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		stageTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writer",
			Subsystem: "pipeline",
			Name:      "stages_total",
			Help:      "Stages executed by outcome",
		}, []string{"stage", "status"}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writer",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Article runs by terminal status",
		}, []string{"status"}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "writer",
			Subsystem: "acquire",
			Name:      "documents_total",
			Help:      "Documents seen during acquisition by outcome",
		}, []string{"outcome"}),
		costUSD: f.NewCounter(prometheus.CounterOpts{
			Namespace: "writer",
			Subsystem: "pipeline",
			Name:      "cost_usd_total",
			Help:      "Estimated API spend in USD",
		}),
	}
}

// ObserveStage records one finished stage.
func (m *Metrics) ObserveStage(stage model.Stage, status model.StageStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	m.stageTotal.WithLabelValues(string(stage), string(status)).Inc()
}

// ObserveRun records a finished run and its spend.
func (m *Metrics) ObserveRun(status model.RunStatus, usage model.TokenUsage) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(status)).Inc()
	if usage.Cost > 0 {
		m.costUSD.Add(usage.Cost)
	}
}

// ObserveDocuments counts acquisition outcomes ("loaded", "unusable",
// "selected").
func (m *Metrics) ObserveDocuments(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.documents.WithLabelValues(outcome).Add(float64(n))
}
