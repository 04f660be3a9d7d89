package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spm_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spm_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spm_workflow_transitions_total",
			Help: "Workflow transitions by document type, stage and action",
		},
		[]string{"document", "stage", "action"},
	)

	transitionRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spm_workflow_rejections_total",
			Help: "Workflow attempts refused before any write, by reason",
		},
		[]string{"document", "reason"},
	)

	stepUpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spm_step_up_verifications_total",
			Help: "PIN/OTP verifications by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	notificationDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spm_notification_dispatch_total",
			Help: "External notification sends by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(transitionRejectionsTotal)
	prometheus.MustRegister(stepUpTotal)
	prometheus.MustRegister(notificationDispatchTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordTransition(document, stage, action string) {
	transitionsTotal.WithLabelValues(document, stage, action).Inc()
}

func RecordRejection(document, reason string) {
	transitionRejectionsTotal.WithLabelValues(document, reason).Inc()
}

func RecordStepUp(purpose, outcome string) {
	stepUpTotal.WithLabelValues(purpose, outcome).Inc()
}

func RecordNotificationDispatch(channel string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	notificationDispatchTotal.WithLabelValues(channel, outcome).Inc()
}
