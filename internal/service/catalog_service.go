package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/qhosting/provisioning-service/internal/models"
	"github.com/qhosting/provisioning-service/internal/repository"
)

// PlanStore is what catalog administration needs from the plan repository
type PlanStore interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	List(ctx context.Context) ([]*models.Plan, error)
	Upsert(ctx context.Context, plan *models.Plan) error
	Delete(ctx context.Context, id string) error
}

// NodeLister exposes the fleet inventory to the catalog API
type NodeLister interface {
	List(ctx context.Context) ([]*models.Node, error)
}

// CatalogService covers plan administration and node inventory reads.
// The provisioning path never writes through it.
type CatalogService struct {
	plans PlanStore
	nodes NodeInventory
	fleet NodeLister
}

func NewCatalogService(plans PlanStore, nodes NodeInventory, fleet NodeLister) *CatalogService {
	return &CatalogService{plans: plans, nodes: nodes, fleet: fleet}
}

// ListPlans returns the purchasable catalog
func (s *CatalogService) ListPlans(ctx context.Context) ([]*models.PlanResponse, error) {
	plans, err := s.plans.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.PlanResponse, 0, len(plans))
	for _, p := range plans {
		responses = append(responses, toPlanResponse(p))
	}
	return responses, nil
}

// SavePlan creates or replaces a plan. The referenced node must exist so
// a broken plan can never enter the catalog.
func (s *CatalogService) SavePlan(ctx context.Context, req *models.PlanRequest) (*models.PlanResponse, error) {
	if _, err := s.nodes.GetByID(ctx, req.NodeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: plan references node %s", ErrNodeUnavailable, req.NodeID)
		}
		return nil, fmt.Errorf("lookup node %s: %w", req.NodeID, err)
	}

	plan := &models.Plan{
		ID:           req.ID,
		Name:         req.Name,
		MonthlyPrice: req.MonthlyPrice,
		NodeID:       req.NodeID,
		PanelPackage: req.PanelPackage,
		Disk:         req.Disk,
		Transfer:     req.Transfer,
		Features:     req.Features,
	}
	if plan.ID == "" {
		plan.ID = "plan-" + strings.ToLower(uuid.New().String()[:8])
	}

	if err := s.plans.Upsert(ctx, plan); err != nil {
		return nil, err
	}
	return toPlanResponse(plan), nil
}

// DeletePlan removes a plan from the catalog
func (s *CatalogService) DeletePlan(ctx context.Context, id string) error {
	return s.plans.Delete(ctx, id)
}

// ListNodes returns the node inventory with utilization figures
func (s *CatalogService) ListNodes(ctx context.Context) ([]*models.NodeResponse, error) {
	nodes, err := s.fleet.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		responses = append(responses, &models.NodeResponse{
			ID:          n.ID,
			Location:    n.Location,
			Endpoint:    n.Endpoint,
			Status:      n.Status,
			Software:    n.Software,
			LoadPercent: n.LoadPercent,
			RAMGB:       n.RAMGB,
			StorageFree: n.StorageFree,
			Accounts:    n.Accounts,
		})
	}
	return responses, nil
}

func toPlanResponse(p *models.Plan) *models.PlanResponse {
	return &models.PlanResponse{
		ID:           p.ID,
		Name:         p.Name,
		MonthlyPrice: p.MonthlyPrice,
		NodeID:       p.NodeID,
		PanelPackage: p.PanelPackage,
		Disk:         p.Disk,
		Transfer:     p.Transfer,
		Features:     p.Features,
	}
}
