package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_events_processed_total",
			Help: "Total number of log events consumed by detection cycles",
		},
	)

	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	AlertsMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_alerts_merged_total",
			Help: "Total number of candidates merged into existing alerts",
		},
		[]string{"type"},
	)

	RuleEvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_rule_evaluation_errors_total",
			Help: "Total number of rule evaluation errors (caught, cycle continued)",
		},
		[]string{"rule"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_cycle_duration_seconds",
			Help:    "Duration of detection, correlation, and escalation cycles",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cycle"},
	)

	CyclesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_cycles_skipped_total",
			Help: "Cycles skipped because the previous run was still in flight",
		},
		[]string{"cycle"},
	)

	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_notifications_enqueued_total",
			Help: "Total number of notification intents enqueued",
		},
		[]string{"reason"},
	)

	NotificationEnqueueFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_notification_enqueue_failures_total",
			Help: "Total number of failed notification enqueues",
		},
	)

	EscalationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_escalations_enqueued_total",
			Help: "Total number of escalation notifications enqueued",
		},
		[]string{"tier"},
	)

	DedupConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_dedup_conflicts_total",
			Help: "Optimistic-concurrency conflicts on the alert merge path",
		},
	)
)
