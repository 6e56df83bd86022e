// Package notify defines the boundary to the external notification
// dispatcher. The engine only enqueues intents; channel delivery, retries,
// and at-least-once bookkeeping belong to the dispatcher behind this
// interface.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"vigil/metrics"
)

// Channel identifies a delivery channel owned by the dispatcher
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSlack     Channel = "slack"
	ChannelPagerDuty Channel = "pagerduty"
	ChannelWebhook   Channel = "webhook"
)

// Intent is a fire-and-forget request to notify about an alert
type Intent struct {
	AlertID   string    `json:"alert_id"`
	Channels  []Channel `json:"channels"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Enqueuer accepts notification intents for asynchronous delivery
type Enqueuer interface {
	Enqueue(ctx context.Context, intent Intent) error
}

// ErrQueueFull is returned when the intent queue has no capacity left
var ErrQueueFull = errors.New("notification intent queue is full")

// Queue is a bounded in-process intent queue. The external dispatcher drains
// it via Intents(); the engine never blocks on a slow consumer.
type Queue struct {
	intents chan Intent
	logger  *zap.SugaredLogger
}

// NewQueue creates a bounded intent queue
func NewQueue(capacity int, logger *zap.SugaredLogger) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{
		intents: make(chan Intent, capacity),
		logger:  logger,
	}
}

// Enqueue adds an intent without blocking. A full queue is an error for the
// caller to log; the escalation monitor re-raises dropped notifications on
// its next scan.
func (q *Queue) Enqueue(ctx context.Context, intent Intent) error {
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}

	select {
	case q.intents <- intent:
		metrics.NotificationsEnqueued.WithLabelValues(intent.Reason).Inc()
		return nil
	default:
		metrics.NotificationEnqueueFailures.Inc()
		return ErrQueueFull
	}
}

// Intents exposes the queue for the dispatcher to consume
func (q *Queue) Intents() <-chan Intent {
	return q.intents
}

// Len returns the number of queued intents
func (q *Queue) Len() int {
	return len(q.intents)
}
