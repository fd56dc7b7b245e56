package models

// ==================== Order API DTOs ====================

// ProvisionRequest is the order-accepted call from the dashboard/billing layer
type ProvisionRequest struct {
	Domain   string `json:"domain" binding:"required"`
	PlanID   string `json:"plan_id" binding:"required"`
	ClientID string `json:"client_id,omitempty"`
}

// ProvisionResponse is returned synchronously once the order is accepted
// and the job is queued; the eventual outcome is observed via the record
type ProvisionResponse struct {
	Service *ServiceResponse `json:"service"`
	JobID   string           `json:"job_id"`
	Message string           `json:"message"`
}

// ServiceResponse is the wire representation of a ServiceRecord
type ServiceResponse struct {
	ID             string  `json:"id"`
	Domain         string  `json:"domain"`
	PlanID         string  `json:"plan_id"`
	PlanName       string  `json:"plan_name"`
	NodeID         string  `json:"node_id"`
	NodeLocation   string  `json:"node_location,omitempty"`
	Status         string  `json:"status"`
	SSLEnabled     bool    `json:"ssl_enabled"`
	CPanelURL      string  `json:"cpanel_url,omitempty"`
	PHPVersion     string  `json:"php_version,omitempty"`
	DiskUsage      int     `json:"disk_usage"`
	BandwidthUsage int     `json:"bandwidth_usage"`
	ClientID       *string `json:"client_id,omitempty"`
	ClientName     *string `json:"client_name,omitempty"`
	FailureReason  *string `json:"failure_reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
	ActivatedAt    *string `json:"activated_at,omitempty"`
}

// ==================== Catalog API DTOs ====================

// PlanRequest creates or replaces a catalog plan (admin)
type PlanRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name" binding:"required"`
	MonthlyPrice float64  `json:"monthly_price"`
	NodeID       string   `json:"node_id" binding:"required"`
	PanelPackage string   `json:"panel_package" binding:"required"`
	Disk         string   `json:"disk"`
	Transfer     string   `json:"transfer"`
	Features     []string `json:"features"`
}

// PlanResponse is the wire representation of a Plan
type PlanResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MonthlyPrice float64  `json:"monthly_price"`
	NodeID       string   `json:"node_id"`
	PanelPackage string   `json:"panel_package"`
	Disk         string   `json:"disk,omitempty"`
	Transfer     string   `json:"transfer,omitempty"`
	Features     []string `json:"features,omitempty"`
}

// NodeResponse is the wire representation of a Node
type NodeResponse struct {
	ID          string `json:"id"`
	Location    string `json:"location"`
	Endpoint    string `json:"endpoint"`
	Status      string `json:"status"`
	Software    string `json:"software,omitempty"`
	LoadPercent int    `json:"load"`
	RAMGB       int    `json:"ram"`
	StorageFree int    `json:"storage"`
	Accounts    int    `json:"accounts"`
}

// ==================== Misc DTOs ====================

// SSOResponse carries a panel login URL for a service
type SSOResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// LogResponse is the wire representation of a ProvisionLog entry
type LogResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// HubCallback is pushed to the central hub when a service reaches a
// terminal provisioning state
type HubCallback struct {
	ServiceID     string  `json:"service_id"`
	Domain        string  `json:"domain"`
	Status        string  `json:"status"`
	NodeID        string  `json:"node_id"`
	FailureReason *string `json:"failure_reason,omitempty"`
}
