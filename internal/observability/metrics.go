package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// frost alert service.
type Metrics struct {
	PredictRequests *prometheus.CounterVec // labels: outcome={ok,invalid_input,out_of_coverage,superseded,weather_error,classifier_error,assessment_error}
	RiskClasses     *prometheus.CounterVec // labels: class
	AIFallbacks     prometheus.Counter

	AlertsSent      prometheus.Counter
	AlertFailures   prometheus.Counter
	AlertsPublished prometheus.Counter

	// External collaborator metrics.
	CollaboratorDuration *prometheus.HistogramVec // labels: collaborator={weather,classifier,ai,sms}
	WeatherCache         *prometheus.CounterVec   // labels: result={hit,miss,error}
	GeminiEnabled        prometheus.Gauge
	SMSEnabled           prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PredictRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frost_alert",
			Name:      "predict_requests_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		RiskClasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frost_alert",
			Name:      "risk_class_total",
			Help:      "Completed assessments by reconciled risk class.",
		}, []string{"class"}),
		AIFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frost_alert",
			Name:      "ai_fallbacks_total",
			Help:      "Assessments degraded to ML-only because the AI analysis was unavailable.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frost_alert",
			Name:      "alerts_sent_total",
			Help:      "SMS alerts dispatched successfully.",
		}),
		AlertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frost_alert",
			Name:      "alert_failures_total",
			Help:      "SMS dispatch failures (non-fatal to the assessment).",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frost_alert",
			Name:      "alert_events_published_total",
			Help:      "Audit events published to the alert topic.",
		}),
		CollaboratorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frost_alert",
			Name:      "collaborator_duration_seconds",
			Help:      "External collaborator request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"collaborator"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frost_alert",
			Name:      "weather_cache_total",
			Help:      "Weather snapshot cache lookups by result.",
		}, []string{"result"}),
		GeminiEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frost_alert",
			Name:      "gemini_enabled",
			Help:      "1 when AI analysis is enabled, 0 otherwise.",
		}),
		SMSEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frost_alert",
			Name:      "sms_enabled",
			Help:      "1 when SMS dispatch is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.PredictRequests,
		m.RiskClasses,
		m.AIFallbacks,
		m.AlertsSent,
		m.AlertFailures,
		m.AlertsPublished,
		m.CollaboratorDuration,
		m.WeatherCache,
		m.GeminiEnabled,
		m.SMSEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PredictRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "frost_alert", Name: "predict_requests_total"}, []string{"outcome"}),
		RiskClasses:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "frost_alert", Name: "risk_class_total"}, []string{"class"}),
		AIFallbacks:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "frost_alert", Name: "ai_fallbacks_total"}),
		AlertsSent:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "frost_alert", Name: "alerts_sent_total"}),
		AlertFailures:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "frost_alert", Name: "alert_failures_total"}),
		AlertsPublished:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "frost_alert", Name: "alert_events_published_total"}),
		CollaboratorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "frost_alert", Name: "collaborator_duration_seconds"}, []string{"collaborator"}),
		WeatherCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "frost_alert", Name: "weather_cache_total"}, []string{"result"}),
		GeminiEnabled:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "frost_alert", Name: "gemini_enabled"}),
		SMSEnabled:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "frost_alert", Name: "sms_enabled"}),
	}
}
