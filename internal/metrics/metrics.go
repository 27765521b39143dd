package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "drec_"

// Metrics holds the worker's instrumentation. A single instance is created
// at startup and shared.
type Metrics struct {
	ReadsAccepted           prometheus.Counter
	ReadsRejected           *prometheus.CounterVec
	ReadsDroppedImplausible prometheus.Counter
	IssueLogsRecorded       prometheus.Counter
	CertificatesReconciled  prometheus.Counter
	CertificatesSkipped     prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers the worker metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		ReadsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "reads_accepted_total",
			Help: "Meter reads accepted and stored",
		}),
		ReadsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "reads_rejected_total",
			Help: "Meter read submissions rejected, by rejection kind",
		}, []string{"kind"}),
		ReadsDroppedImplausible: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "reads_dropped_implausible_total",
			Help: "Meter reads silently dropped by the plausibility envelope",
		}),
		IssueLogsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "certificate_issue_logs_total",
			Help: "Certificate issue log entries recorded",
		}),
		CertificatesReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "certificates_reconciled_total",
			Help: "Certificates successfully matched to per-device logs",
		}),
		CertificatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "certificates_skipped_total",
			Help: "Certificates skipped due to malformed metadata",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.ReadsAccepted,
		m.ReadsRejected,
		m.ReadsDroppedImplausible,
		m.IssueLogsRecorded,
		m.CertificatesReconciled,
		m.CertificatesSkipped,
	)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
