package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qhosting/provisioning-service/internal/models"
	"github.com/qhosting/provisioning-service/internal/repository"
)

type fakePlanStore struct {
	plans map[string]*models.Plan
}

func (f *fakePlanStore) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	plan, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return plan, nil
}

func (f *fakePlanStore) List(ctx context.Context) ([]*models.Plan, error) {
	out := make([]*models.Plan, 0, len(f.plans))
	for _, p := range f.plans {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePlanStore) Upsert(ctx context.Context, plan *models.Plan) error {
	f.plans[plan.ID] = plan
	return nil
}

func (f *fakePlanStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.plans, id)
	return nil
}

func (f *fakeInventory) List(ctx context.Context) ([]*models.Node, error) {
	out := make([]*models.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	return out, nil
}

func TestSavePlan(t *testing.T) {
	ctx := context.Background()
	_, inventory := testCatalog()
	store := &fakePlanStore{plans: map[string]*models.Plan{}}
	catalog := NewCatalogService(store, inventory, inventory)

	t.Run("creates plan with generated id", func(t *testing.T) {
		resp, err := catalog.SavePlan(ctx, &models.PlanRequest{
			Name:         "Titan Basic",
			MonthlyPrice: 99,
			NodeID:       "N1",
			PanelPackage: "titan_basic_v1",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.ID)
		assert.Contains(t, store.plans, resp.ID)
	})

	t.Run("replaces plan with explicit id", func(t *testing.T) {
		_, err := catalog.SavePlan(ctx, &models.PlanRequest{
			ID:           "titan_pro",
			Name:         "Titan Pro",
			NodeID:       "N1",
			PanelPackage: "titan_pro_v3",
		})
		require.NoError(t, err)
		assert.Equal(t, "titan_pro_v3", store.plans["titan_pro"].PanelPackage)
	})

	t.Run("rejects node missing behind a wrapped error", func(t *testing.T) {
		wrapped := NewCatalogService(store, &fakeInventory{
			err: fmt.Errorf("query node: %w", repository.ErrNotFound),
		}, inventory)
		_, err := wrapped.SavePlan(ctx, &models.PlanRequest{
			Name:         "Broken",
			NodeID:       "N1",
			PanelPackage: "broken_v1",
		})
		assert.ErrorIs(t, err, ErrNodeUnavailable)
	})

	t.Run("rejects plan referencing unknown node", func(t *testing.T) {
		_, err := catalog.SavePlan(ctx, &models.PlanRequest{
			Name:         "Broken",
			NodeID:       "N404",
			PanelPackage: "broken_v1",
		})
		assert.ErrorIs(t, err, ErrNodeUnavailable)
		for _, p := range store.plans {
			assert.NotEqual(t, "Broken", p.Name)
		}
	})
}

func TestDeletePlan(t *testing.T) {
	ctx := context.Background()
	_, inventory := testCatalog()
	store := &fakePlanStore{plans: map[string]*models.Plan{
		"titan_pro": {ID: "titan_pro"},
	}}
	catalog := NewCatalogService(store, inventory, inventory)

	require.NoError(t, catalog.DeletePlan(ctx, "titan_pro"))
	assert.NotContains(t, store.plans, "titan_pro")

	err := catalog.DeletePlan(ctx, "titan_pro")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListNodes(t *testing.T) {
	ctx := context.Background()
	_, inventory := testCatalog()
	catalog := NewCatalogService(&fakePlanStore{plans: map[string]*models.Plan{}}, inventory, inventory)

	nodes, err := catalog.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "N1", nodes[0].ID)
	assert.Equal(t, "n1.nodes.qhosting.net", nodes[0].Endpoint)
}
