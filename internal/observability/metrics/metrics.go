// Package metrics registers the service's Prometheus collectors once and
// exposes typed helpers so callers never touch label strings directly.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "aquawatch_"

	ResultSuccess  = "success"
	ResultError    = "error"
	ResultRejected = "rejected"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	verdicts *prometheus.CounterVec

	alertsLogged    *prometheus.CounterVec
	alertsDelivered *prometheus.CounterVec
	alertsDeduped   prometheus.Counter

	anomalyFailures prometheus.Counter

	forecastRequests *prometheus.CounterVec
	forecastLatency  *prometheus.HistogramVec
)

// Init registers all collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		verdicts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "verdicts_total",
				Help: "Total verdicts by status and reason",
			},
			[]string{"status", "reason"},
		)
		alertsLogged = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_logged_total",
				Help: "Total audit log appends by result",
			},
			[]string{"result"},
		)
		alertsDelivered = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_delivered_total",
				Help: "Total outward delivery attempts by result",
			},
			[]string{"result"},
		)
		alertsDeduped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_deduplicated_total",
				Help: "Total alert events suppressed by the dedup key",
			},
		)
		anomalyFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomaly_signal_failures_total",
				Help: "Total readings decided without the anomaly signal",
			},
		)
		forecastRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "forecast_requests_total",
				Help: "Total forecast requests by result",
			},
			[]string{"result"},
		)
		forecastLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "forecast_latency_seconds",
				Help:    "Forecast latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			verdicts,
			alertsLogged,
			alertsDelivered,
			alertsDeduped,
			anomalyFailures,
			forecastRequests,
			forecastLatency,
		)
	})
}

// ObserveIngest records one ingest request.
func ObserveIngest(result string, elapsed time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(result).Inc()
	ingestLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// IncVerdict records one decision outcome.
func IncVerdict(status, reason string) {
	if verdicts == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	verdicts.WithLabelValues(status, reason).Inc()
}

// IncAlertLogged records one audit append attempt.
func IncAlertLogged(result string) {
	if alertsLogged == nil {
		return
	}
	alertsLogged.WithLabelValues(result).Inc()
}

// IncAlertDelivered records one outward delivery attempt.
func IncAlertDelivered(result string) {
	if alertsDelivered == nil {
		return
	}
	alertsDelivered.WithLabelValues(result).Inc()
}

// IncAlertDeduplicated records one suppressed duplicate.
func IncAlertDeduplicated() {
	if alertsDeduped == nil {
		return
	}
	alertsDeduped.Inc()
}

// IncAnomalySignalFailure records a verdict made without the anomaly signal.
func IncAnomalySignalFailure() {
	if anomalyFailures == nil {
		return
	}
	anomalyFailures.Inc()
}

// ObserveForecast records one forecast request.
func ObserveForecast(result string, elapsed time.Duration) {
	if forecastRequests == nil {
		return
	}
	forecastRequests.WithLabelValues(result).Inc()
	forecastLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}
