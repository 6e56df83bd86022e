package core

import (
	"time"

	"github.com/google/uuid"
)

// LogLevel represents the log level of an ingested event
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarn     LogLevel = "warn"
	LevelError    LogLevel = "error"
	LevelCritical LogLevel = "critical"
)

// EventCategory classifies the origin of a log event
type EventCategory string

const (
	CategorySecurity    EventCategory = "security"
	CategorySystem      EventCategory = "system"
	CategoryApplication EventCategory = "application"
	CategoryNetwork     EventCategory = "network"
	CategoryDatabase    EventCategory = "database"
)

// LogEvent represents the common schema for all normalized security events.
// Events are immutable after ingestion; only the Processed flag is flipped
// once the detection engine has consumed them.
type LogEvent struct {
	ID        string                 `json:"id" bson:"_id"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
	Level     LogLevel               `json:"level" bson:"level"`
	Source    string                 `json:"source" bson:"source"`
	Message   string                 `json:"message" bson:"message"`
	Category  EventCategory          `json:"category" bson:"category"`
	Severity  int                    `json:"severity" bson:"severity"` // 1-10
	SourceIP  string                 `json:"source_ip,omitempty" bson:"source_ip,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
	Processed bool                   `json:"processed" bson:"processed"`
}

// NewLogEvent creates a new LogEvent with a generated UUID
func NewLogEvent() *LogEvent {
	return &LogEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Details:   make(map[string]interface{}),
	}
}

// DetailString extracts a string value from the event details map
func (e *LogEvent) DetailString(key string) string {
	if e.Details == nil {
		return ""
	}
	if v, ok := e.Details[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// DetailInt64 extracts a numeric value from the event details map.
// JSON decoding yields float64, Mongo decoding may yield int32/int64,
// so all numeric shapes are accepted.
func (e *LogEvent) DetailInt64(key string) int64 {
	if e.Details == nil {
		return 0
	}
	switch v := e.Details[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
