package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shop"

var (
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_total",
		Help:      "Reservation attempts by result (held, insufficient, committed, released, error).",
	}, []string{"result"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transitions by edge and result.",
	}, []string{"from", "to", "result"})

	ScrapEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scrap_entries_total",
		Help:      "Scrap entries logged.",
	})

	ScheduleConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_conflicts_total",
		Help:      "Schedule/reschedule requests rejected because of an overlap.",
	})

	ConsistencyFaults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consistency_faults_total",
		Help:      "Operations aborted because an assumed invariant did not hold.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

