package models

import "time"

// NotificationLevel classifies a user-facing notification.
type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient message shown to the user. IDs are issued by
// the notifying service and are only unique within one process.
type Notification struct {
	ID        uint64            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
}

// GradingEvent reports a grading status change for one submission.
type GradingEvent struct {
	SubmissionID string        `json:"submission_id"`
	Status       GradingStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	DurationMs   int64         `json:"duration_ms,omitempty"`
	At           time.Time     `json:"at"`
}
