package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	sessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "wizard_sessions_total",
			Help:      "Booking wizard sessions started.",
		},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "bookings_created_total",
			Help:      "Bookings successfully created via the public flow.",
		},
	)

	notificationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "notification_attempts_total",
			Help:      "Post-booking notification attempts by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookflow",
			Name:      "status_transitions_total",
			Help:      "Staff-driven booking status transitions by target status.",
		},
		[]string{"to"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			sessionsStarted,
			bookingsCreated,
			notificationAttempts,
			statusTransitions,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSessionStarted counts a new wizard session.
func IncSessionStarted() {
	sessionsStarted.Inc()
}

// IncBookingCreated counts a successful booking creation.
func IncBookingCreated() {
	bookingsCreated.Inc()
}

// IncNotificationAttempt counts one notification attempt result.
func IncNotificationAttempt(kind, outcome string) {
	notificationAttempts.WithLabelValues(kind, outcome).Inc()
}

// IncStatusTransition counts a status transition to the given status.
func IncStatusTransition(to string) {
	statusTransitions.WithLabelValues(to).Inc()
}
