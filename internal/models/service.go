package models

import (
	"time"
)

// Service record status constants
const (
	StatusPendingProvision = "pending_provision"
	StatusActive           = "active"
	StatusFailed           = "failed"
	StatusSuspended        = "suspended"
)

// allowedTransitions is the forward-only provisioning state machine.
// A record never returns to pending_provision once it has left it.
var allowedTransitions = map[string][]string{
	StatusPendingProvision: {StatusActive, StatusFailed},
	StatusActive:           {StatusSuspended},
	StatusFailed:           {},
	StatusSuspended:        {},
}

// canTransition reports whether a status change is permitted. The
// repository enforces this with status predicates on its UPDATEs; this
// map is the single written-down form of the machine those predicates
// implement, and the tests check them against each other.
func canTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ServiceRecord is the durable representation of a customer's hosting
// instance, created at order time and mutated by the worker's outcome
type ServiceRecord struct {
	ID             string
	Domain         string
	PlanID         string
	PlanName       string
	NodeID         string
	NodeEndpoint   string
	NodeLocation   string
	Status         string
	SSLEnabled     bool
	CPanelURL      string
	PHPVersion     string
	DiskUsage      int
	BandwidthUsage int
	ClientID       *string
	ClientName     *string
	FailureReason  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ActivatedAt    *time.Time
}
