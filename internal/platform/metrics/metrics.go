// Package metrics holds the Prometheus collectors for outbound notification mail.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EventVerifyEmail    = "verify_email"
	EventTripDates      = "trip_dates_modified"
	EventPendingRequest = "pending_request"
)

var (
	EmailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_notifier_emails_sent_total",
		Help: "Total number of notification emails accepted by the mail provider",
	}, []string{"event"})
	// kind is the notification error kind (dispatch_failure, template_unavailable, ...).
	EmailsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_notifier_emails_failed_total",
		Help: "Total number of notification emails that could not be sent",
	}, []string{"event", "kind"})
	EmailsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trip_notifier_emails_skipped_total",
		Help: "Total number of notifications skipped because the dispatcher is unavailable or nothing resolved",
	}, []string{"event", "reason"})
	BatchRecipients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trip_notifier_batch_recipients",
		Help:    "Number of recipients per trip date-change batch after the creator is excluded",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})
)

func init() {
	prometheus.MustRegister(
		EmailsSent,
		EmailsFailed,
		EmailsSkipped,
		BatchRecipients,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
