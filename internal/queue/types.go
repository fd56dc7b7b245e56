package queue

import (
	"time"
)

// Job is a provisioning work item. Once enqueued it is immutable except
// for AttemptCount, which the queue increments on every delivery, and
// DeliveredAt, which the queue stamps for visibility-timeout recovery.
type Job struct {
	ID             string     `json:"id"`
	ServiceID      string     `json:"service_id"`
	Domain         string     `json:"domain"`
	Username       string     `json:"username"`
	TargetEndpoint string     `json:"target_endpoint"`
	PanelPackage   string     `json:"panel_package"`
	ContactEmail   string     `json:"contact_email"`
	EnqueuedAt     time.Time  `json:"enqueued_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	AttemptCount   int        `json:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts"`
}

// Exhausted reports whether the job has used up its retry budget
func (j *Job) Exhausted() bool {
	return j.AttemptCount >= j.MaxAttempts
}
