package storage

import (
	"context"
	"time"

	"vigil/core"
)

// EventRepository provides read access to the append-only log event store.
// Ingestion writes events; this engine only queries them and flips the
// processed flag.
type EventRepository interface {
	// QueryUnprocessed returns events with processed=false and a timestamp
	// at or after since, ordered by timestamp ascending.
	QueryUnprocessed(ctx context.Context, since time.Time) ([]*core.LogEvent, error)

	// QueryEvents returns all events with a timestamp at or after since,
	// regardless of processed state.
	QueryEvents(ctx context.Context, since time.Time) ([]*core.LogEvent, error)

	// MarkProcessed flips the processed flag on the given event IDs.
	MarkProcessed(ctx context.Context, ids []string) error
}

// AlertFilter narrows alert queries. Zero-valued fields are ignored.
type AlertFilter struct {
	Status        core.AlertStatus
	Severity      core.AlertSeverity
	CreatedBefore time.Time
	CreatedAfter  time.Time
}

// AlertRepository provides persistence for materialized alerts
type AlertRepository interface {
	// QueryAlerts returns alerts matching the filter, newest first.
	QueryAlerts(ctx context.Context, filter AlertFilter) ([]*core.Alert, error)

	// FindOpenByDedupKey returns the open (active or investigating) alert
	// with the given dedup key created at or after windowStart, or
	// ErrAlertNotFound.
	FindOpenByDedupKey(ctx context.Context, key string, windowStart time.Time) (*core.Alert, error)

	// InsertAlert persists a new alert.
	InsertAlert(ctx context.Context, alert *core.Alert) error

	// UpdateAlert persists a mutated alert. The write only succeeds when the
	// stored version matches alert.Version; on success the version is
	// incremented, on mismatch ErrConflict is returned.
	UpdateAlert(ctx context.Context, alert *core.Alert) error
}
