package models

import (
	"time"
)

// Node status constants
const (
	NodeStatusOnline      = "online"
	NodeStatusMaintenance = "maintenance"
	NodeStatusOffline     = "offline"
)

// Plan is a purchasable hosting plan bound to one node and one
// control-panel package name. Read-only to the provisioning path.
type Plan struct {
	ID           string
	Name         string
	MonthlyPrice float64
	NodeID       string
	PanelPackage string
	Disk         string
	Transfer     string
	Features     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Node is a physical or virtual server running a control-plane agent.
// Utilization fields are informational; provisioning does not gate on them.
type Node struct {
	ID          string
	Location    string
	Endpoint    string
	Status      string
	Software    string
	LoadPercent int
	RAMGB       int
	StorageFree int
	Accounts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
