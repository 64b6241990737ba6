// Package metrics provides Prometheus-based metrics recording for the complaint dialogue.
package metrics

import (
	"net/http"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements flow.Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	eventsTotal        *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	appendDuration     prometheus.Histogram
	deliveryFailures   prometheus.Counter
}

// NewPrometheusRecorder registers the collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "complaintdesk_events_total",
				Help: "Total number of inbound events by kind",
			},
			[]string{"kind"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "complaintdesk_step_transitions_total",
				Help: "Total number of dialogue step transitions",
			},
			[]string{"from", "to"},
		),
		validationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "complaintdesk_validation_failures_total",
				Help: "Total number of rejected inputs by field",
			},
			[]string{"field"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "complaintdesk_submissions_total",
				Help: "Total number of complaint submissions by status",
			},
			[]string{"status"},
		),
		appendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "complaintdesk_report_append_duration_seconds",
				Help:    "Duration of report store appends in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		deliveryFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "complaintdesk_delivery_failures_total",
				Help: "Total number of replies that could not be delivered",
			},
		),
	}
}

// ObserveEvent counts an inbound event.
func (p *PrometheusRecorder) ObserveEvent(kind models.EventKind) {
	p.eventsTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveTransition counts a step change.
func (p *PrometheusRecorder) ObserveTransition(from, to models.Step) {
	p.transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveValidationFailure counts a rejected input.
func (p *PrometheusRecorder) ObserveValidationFailure(field string) {
	p.validationFailures.WithLabelValues(field).Inc()
}

// ObserveSubmission records an append attempt and its latency.
func (p *PrometheusRecorder) ObserveSubmission(success bool, d time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	p.submissionsTotal.WithLabelValues(status).Inc()
	p.appendDuration.Observe(d.Seconds())
}

// IncDeliveryFailure counts a reply the transport failed to send.
func (p *PrometheusRecorder) IncDeliveryFailure() {
	p.deliveryFailures.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
