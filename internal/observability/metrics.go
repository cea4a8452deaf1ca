package observability

import (
	"time"

	"flexi-posture/internal/posture"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flexi_posture"

// Metrics prometheus collectors fed by engine events; implements posture.Observer
type Metrics struct {
	samplesProcessed prometheus.Counter
	samplesRejected  prometheus.Counter
	alertsRaised     *prometheus.CounterVec
	currentScore     prometheus.Gauge
	currentStatus    *prometheus.GaugeVec
	poorMinutes      prometheus.Gauge
	lastSample       prometheus.Gauge
	scoreHistogram   prometheus.Histogram
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samplesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "samples_processed_total",
			Help:      "Orientation samples scored by the engine.",
		}),
		samplesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "samples_rejected_total",
			Help:      "Orientation samples rejected for non-finite angles.",
		}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "raised_total",
			Help:      "Alerts raised, labeled by kind.",
		}, []string{"kind"}),
		currentScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "current_score",
			Help:      "Posture score of the latest sample, 0 to 100.",
		}),
		currentStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "current_status",
			Help:      "1 for the current posture status, 0 otherwise.",
		}, []string{"status"}),
		poorMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "poor_posture_minutes",
			Help:      "Whole minutes of closed poor-posture intervals since the last reset.",
		}),
		lastSample: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "last_sample_timestamp_seconds",
			Help:      "Unix timestamp of the most recent processed sample.",
		}),
		scoreHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "score",
			Help:      "Distribution of sample posture scores.",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
	}

	reg.MustRegister(
		m.samplesProcessed,
		m.samplesRejected,
		m.alertsRaised,
		m.currentScore,
		m.currentStatus,
		m.poorMinutes,
		m.lastSample,
		m.scoreHistogram,
	)
	return m
}

var statuses = []posture.Status{posture.StatusGood, posture.StatusNeedsImprovement, posture.StatusPoor}

func (m *Metrics) SampleProcessed(s posture.Snapshot) {
	m.samplesProcessed.Inc()
	m.currentScore.Set(s.CurrentScore)
	m.scoreHistogram.Observe(s.CurrentScore)
	m.poorMinutes.Set(float64(s.PoorPostureDurationMinutes))
	for _, status := range statuses {
		v := 0.0
		if status == s.CurrentStatus {
			v = 1
		}
		m.currentStatus.WithLabelValues(status.String()).Set(v)
	}
	if !s.LastReadingAt.IsZero() {
		m.lastSample.Set(float64(s.LastReadingAt.UnixNano()) / float64(time.Second))
	}
}

func (m *Metrics) SampleRejected() {
	m.samplesRejected.Inc()
}

func (m *Metrics) AlertRaised(a posture.Alert) {
	m.alertsRaised.WithLabelValues(a.Kind).Inc()
}
