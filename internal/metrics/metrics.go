package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics carries the pipeline's prometheus instruments. Instruments are
// registered against the given registerer so tests can use isolated
// registries.
type Metrics struct {
	Registry *prometheus.Registry

	ClipsAnalyzed     prometheus.Counter
	AnomaliesDetected prometheus.Counter
	ClassifierCalls   prometheus.Counter
	AlertsRaised      prometheus.Counter
	Suppressed        prometheus.Counter
	CooldownActive    prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ClipsAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentryvision_clips_analyzed_total",
			Help: "Total number of clips run through the analysis pipeline",
		}),
		AnomaliesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentryvision_anomalies_detected_total",
			Help: "Total number of clips whose motion statistics crossed the anomaly cutoff",
		}),
		ClassifierCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentryvision_classifier_calls_total",
			Help: "Total number of semantic classifier invocations",
		}),
		AlertsRaised: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentryvision_alerts_raised_total",
			Help: "Total number of alerts created",
		}),
		Suppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentryvision_suppressed_total",
			Help: "Total number of analyze calls answered while the cooldown gate was suppressed",
		}),
		CooldownActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentryvision_cooldown_active",
			Help: "Whether the cooldown gate is currently suppressed (1) or open (0)",
		}),
	}
}
