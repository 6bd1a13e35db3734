package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slotTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slot_transitions_total",
			Help: "Slot state transitions by operation and outcome",
		},
		[]string{"op", "result"},
	)
	notificationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slot_notification_failures_total",
			Help: "Booking notifications that could not be delivered",
		},
	)
)

func observeTransition(op string, err error) {
	slotTransitionsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrTemporalViolation):
		return "temporal_violation"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
