package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qhosting/provisioning-service/internal/models"
)

type PlanRepository struct {
	pool *pgxpool.Pool
}

func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

// GetByID retrieves a catalog plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	query := `
		SELECT id, name, monthly_price, node_id, panel_package, disk, transfer,
		       features, created_at, updated_at
		FROM provisioning.plans
		WHERE id = $1
	`

	plan := &models.Plan{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&plan.ID, &plan.Name, &plan.MonthlyPrice, &plan.NodeID, &plan.PanelPackage,
		&plan.Disk, &plan.Transfer, &plan.Features, &plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return plan, nil
}

// List retrieves all catalog plans
func (r *PlanRepository) List(ctx context.Context) ([]*models.Plan, error) {
	query := `
		SELECT id, name, monthly_price, node_id, panel_package, disk, transfer,
		       features, created_at, updated_at
		FROM provisioning.plans
		ORDER BY monthly_price
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan := &models.Plan{}
		err := rows.Scan(
			&plan.ID, &plan.Name, &plan.MonthlyPrice, &plan.NodeID, &plan.PanelPackage,
			&plan.Disk, &plan.Transfer, &plan.Features, &plan.CreatedAt, &plan.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Upsert creates or replaces a catalog plan (admin catalog management)
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.Plan) error {
	query := `
		INSERT INTO provisioning.plans (id, name, monthly_price, node_id, panel_package, disk, transfer, features)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			monthly_price = EXCLUDED.monthly_price,
			node_id = EXCLUDED.node_id,
			panel_package = EXCLUDED.panel_package,
			disk = EXCLUDED.disk,
			transfer = EXCLUDED.transfer,
			features = EXCLUDED.features,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		plan.ID, plan.Name, plan.MonthlyPrice, plan.NodeID, plan.PanelPackage,
		plan.Disk, plan.Transfer, plan.Features,
	)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// Delete removes a catalog plan
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM provisioning.plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
