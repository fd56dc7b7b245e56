package models

import (
	"time"
)

// ProvisionLog is an audit entry recorded on every provisioning attempt
// and state transition of a service
type ProvisionLog struct {
	ID        string
	ServiceID string
	Action    string
	Status    string
	Message   string
	CreatedAt time.Time
}
