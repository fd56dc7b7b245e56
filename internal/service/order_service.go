package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qhosting/provisioning-service/internal/models"
	"github.com/qhosting/provisioning-service/internal/queue"
)

// ServiceStore is what the order path needs from the record store
type ServiceStore interface {
	Create(ctx context.Context, svc *models.ServiceRecord) error
	GetByID(ctx context.Context, id string) (*models.ServiceRecord, error)
	List(ctx context.Context) ([]*models.ServiceRecord, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	Suspend(ctx context.Context, id string) (bool, error)
}

// AuditLog records provisioning audit entries
type AuditLog interface {
	Create(ctx context.Context, entry *models.ProvisionLog) error
	GetByServiceID(ctx context.Context, serviceID string, limit int) ([]*models.ProvisionLog, error)
}

// JobEnqueuer is the producer side of the job queue
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) (string, error)
}

// OrderService handles the synchronous order path: resolve the plan,
// create the service record, enqueue the provisioning job. Slow external
// work never happens here.
type OrderService struct {
	resolver     *Resolver
	services     ServiceStore
	logs         AuditLog
	jobs         JobEnqueuer
	contactEmail string
}

func NewOrderService(resolver *Resolver, services ServiceStore, logs AuditLog, jobs JobEnqueuer, contactEmail string) *OrderService {
	return &OrderService{
		resolver:     resolver,
		services:     services,
		logs:         logs,
		jobs:         jobs,
		contactEmail: contactEmail,
	}
}

// Provision accepts an order. On success the caller gets the record in
// pending_provision plus the queued job id; the eventual outcome arrives
// asynchronously through the record's status.
func (s *OrderService) Provision(ctx context.Context, req *models.ProvisionRequest) (*models.ProvisionResponse, error) {
	log.Printf("[order] Provision requested: domain=%s plan=%s", req.Domain, req.PlanID)

	plan, node, err := s.resolver.Resolve(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	svc := &models.ServiceRecord{
		ID:           newServiceID(),
		Domain:       req.Domain,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		NodeID:       node.ID,
		NodeEndpoint: node.Endpoint,
		NodeLocation: node.Location,
		Status:       models.StatusPendingProvision,
		SSLEnabled:   false,
		CPanelURL:    fmt.Sprintf("https://%s/cpanel", req.Domain),
		PHPVersion:   "8.2",
	}
	if req.ClientID != "" {
		clientID := req.ClientID
		svc.ClientID = &clientID
	}

	// The record is the user-visible receipt; it exists before the job is
	// confirmed queued
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service record: %w", err)
	}

	s.logAction(ctx, svc.ID, "order_accepted", svc.Status,
		fmt.Sprintf("Order accepted for %s on node %s (package %s)", req.Domain, node.ID, plan.PanelPackage))

	job := &queue.Job{
		ServiceID:      svc.ID,
		Domain:         req.Domain,
		Username:       DeriveUsername(req.Domain),
		TargetEndpoint: node.Endpoint,
		PanelPackage:   plan.PanelPackage,
		ContactEmail:   s.contactEmail,
	}

	jobID, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		// Never leave a record pending with no job behind it
		reason := fmt.Sprintf("enqueue failed: %v", err)
		if _, ferr := s.services.MarkFailed(ctx, svc.ID, reason); ferr != nil {
			log.Printf("[order] Failed to mark %s failed after enqueue error: %v", svc.ID, ferr)
		}
		s.logAction(ctx, svc.ID, "enqueue_failed", models.StatusFailed, reason)
		return nil, fmt.Errorf("enqueue provisioning job: %w", err)
	}

	log.Printf("[order] Service %s created, job %s queued for %s", svc.ID, jobID, req.Domain)

	return &models.ProvisionResponse{
		Service: ToServiceResponse(svc),
		JobID:   jobID,
		Message: "Provisioning queued",
	}, nil
}

// GetService returns one service record
func (s *OrderService) GetService(ctx context.Context, id string) (*models.ServiceResponse, error) {
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToServiceResponse(svc), nil
}

// ListServices returns all service records, newest first
func (s *OrderService) ListServices(ctx context.Context) ([]*models.ServiceResponse, error) {
	records, err := s.services.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.ServiceResponse, 0, len(records))
	for _, svc := range records {
		responses = append(responses, ToServiceResponse(svc))
	}
	return responses, nil
}

// GetServiceLogs returns the provisioning audit trail for a service
func (s *OrderService) GetServiceLogs(ctx context.Context, id string, limit int) ([]*models.LogResponse, error) {
	if _, err := s.services.GetByID(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.logs.GetByServiceID(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.LogResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, &models.LogResponse{
			ID:        e.ID,
			Action:    e.Action,
			Status:    e.Status,
			Message:   e.Message,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return responses, nil
}

// SuspendService is the administrative active -> suspended transition
func (s *OrderService) SuspendService(ctx context.Context, id string) error {
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.services.Suspend(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("service %s is %s, only active services can be suspended", id, svc.Status)
	}

	s.logAction(ctx, id, "suspended", models.StatusSuspended, "Service suspended by administrator")
	return nil
}

// PanelLoginURL builds the panel SSO redirect for an active service
func (s *OrderService) PanelLoginURL(ctx context.Context, id string) (string, error) {
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if svc.Status != models.StatusActive {
		return "", fmt.Errorf("service %s is not active", id)
	}
	return fmt.Sprintf("%s/login/?user=%s", svc.CPanelURL, DeriveUsername(svc.Domain)), nil
}

func (s *OrderService) logAction(ctx context.Context, serviceID, action, status, message string) {
	err := s.logs.Create(ctx, &models.ProvisionLog{
		ServiceID: serviceID,
		Action:    action,
		Status:    status,
		Message:   message,
	})
	if err != nil {
		log.Printf("[order] Failed to write audit log for %s: %v", serviceID, err)
	}
}

// ToServiceResponse converts a record to its wire representation
func ToServiceResponse(svc *models.ServiceRecord) *models.ServiceResponse {
	resp := &models.ServiceResponse{
		ID:             svc.ID,
		Domain:         svc.Domain,
		PlanID:         svc.PlanID,
		PlanName:       svc.PlanName,
		NodeID:         svc.NodeID,
		NodeLocation:   svc.NodeLocation,
		Status:         svc.Status,
		SSLEnabled:     svc.SSLEnabled,
		CPanelURL:      svc.CPanelURL,
		PHPVersion:     svc.PHPVersion,
		DiskUsage:      svc.DiskUsage,
		BandwidthUsage: svc.BandwidthUsage,
		ClientID:       svc.ClientID,
		ClientName:     svc.ClientName,
		FailureReason:  svc.FailureReason,
		CreatedAt:      svc.CreatedAt.Format(time.RFC3339),
	}
	if svc.ActivatedAt != nil {
		activated := svc.ActivatedAt.Format(time.RFC3339)
		resp.ActivatedAt = &activated
	}
	return resp
}

func newServiceID() string {
	return "SRV-" + strings.ToUpper(uuid.New().String()[:8])
}
