package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/qhosting/provisioning-service/internal/models"
	"github.com/qhosting/provisioning-service/internal/repository"
)

var (
	// ErrPlanNotFound means the requested plan id is not in the catalog
	ErrPlanNotFound = errors.New("plan not found")
	// ErrNodeUnavailable means the plan references a node that no longer
	// exists in the inventory. This is a data-integrity guard, distinct
	// from a node that is merely offline.
	ErrNodeUnavailable = errors.New("target node unavailable")
)

// CatalogSource provides plan lookups to the provisioning path
type CatalogSource interface {
	GetByID(ctx context.Context, id string) (*models.Plan, error)
}

// NodeInventory provides node lookups to the provisioning path
type NodeInventory interface {
	GetByID(ctx context.Context, id string) (*models.Node, error)
}

// Resolver maps a plan id to its concrete node and control-panel package.
// Pure lookup; runs synchronously on the order path so an invalid order is
// rejected immediately instead of silently queued.
type Resolver struct {
	catalog CatalogSource
	nodes   NodeInventory
}

func NewResolver(catalog CatalogSource, nodes NodeInventory) *Resolver {
	return &Resolver{catalog: catalog, nodes: nodes}
}

// Resolve returns the plan and its target node, or fails closed
func (r *Resolver) Resolve(ctx context.Context, planID string) (*models.Plan, *models.Node, error) {
	plan, err := r.catalog.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
		}
		return nil, nil, fmt.Errorf("lookup plan %s: %w", planID, err)
	}

	node, err := r.nodes.GetByID(ctx, plan.NodeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: plan %s references node %s", ErrNodeUnavailable, planID, plan.NodeID)
		}
		return nil, nil, fmt.Errorf("lookup node %s: %w", plan.NodeID, err)
	}

	return plan, node, nil
}
