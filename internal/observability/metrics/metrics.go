// Package metrics exposes Prometheus instrumentation for the scheduling
// core. All methods are nil-safe so tests can pass a nil receiver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vaxclinic"

// BookingMetrics counts booking and lifecycle outcomes.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	bookingDuration  prometheus.Histogram
}

// NewBookingMetrics registers the booking collectors on reg.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Lifecycle transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		bookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_duration_seconds",
			Help:      "End-to-end booking latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.bookingDuration)
	}
	return m
}

// RecordBooking counts one booking attempt.
func (m *BookingMetrics) RecordBooking(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingDuration.Observe(took.Seconds())
}

// RecordTransition counts one lifecycle action.
func (m *BookingMetrics) RecordTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}
