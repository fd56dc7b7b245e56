package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qhosting/provisioning-service/internal/models"
)

var ErrNotFound = errors.New("not found")

type ServiceRepository struct {
	pool *pgxpool.Pool
}

func NewServiceRepository(pool *pgxpool.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

// Create inserts a new service record
func (r *ServiceRepository) Create(ctx context.Context, svc *models.ServiceRecord) error {
	query := `
		INSERT INTO provisioning.services (
			id, domain, plan_id, plan_name, node_id, node_endpoint, node_location,
			status, ssl_enabled, cpanel_url, php_version, disk_usage,
			bandwidth_usage, client_id, client_name, failure_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err := r.pool.Exec(ctx, query,
		svc.ID, svc.Domain, svc.PlanID, svc.PlanName, svc.NodeID, svc.NodeEndpoint, svc.NodeLocation,
		svc.Status, svc.SSLEnabled, svc.CPanelURL, svc.PHPVersion, svc.DiskUsage,
		svc.BandwidthUsage, svc.ClientID, svc.ClientName, svc.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}

	return nil
}

// GetByID retrieves a service record by ID
func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*models.ServiceRecord, error) {
	query := serviceSelect + ` WHERE id = $1`
	return r.scanService(r.pool.QueryRow(ctx, query, id))
}

// GetByDomain retrieves the most recent service record for a domain
func (r *ServiceRepository) GetByDomain(ctx context.Context, domain string) (*models.ServiceRecord, error) {
	query := serviceSelect + ` WHERE domain = $1 ORDER BY created_at DESC LIMIT 1`
	return r.scanService(r.pool.QueryRow(ctx, query, domain))
}

// List retrieves all service records, newest first
func (r *ServiceRepository) List(ctx context.Context) ([]*models.ServiceRecord, error) {
	query := serviceSelect + ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	return r.scanServices(rows)
}

// MarkActive transitions pending_provision -> active and flips SSL on.
// The status predicate makes the update a compare-and-set: a record that
// has already left pending_provision (suspend race, duplicate delivery)
// is not touched and false is returned.
func (r *ServiceRepository) MarkActive(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE provisioning.services
		SET status = $1, ssl_enabled = TRUE, failure_reason = NULL,
		    activated_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	tag, err := r.pool.Exec(ctx, query, models.StatusActive, id, models.StatusPendingProvision)
	if err != nil {
		return false, fmt.Errorf("mark active: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions pending_provision -> failed, preserving the
// rejection reason for operator review
func (r *ServiceRepository) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	query := `
		UPDATE provisioning.services
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	tag, err := r.pool.Exec(ctx, query, models.StatusFailed, reason, id, models.StatusPendingProvision)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Suspend transitions active -> suspended (administrative action)
func (r *ServiceRepository) Suspend(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE provisioning.services
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	tag, err := r.pool.Exec(ctx, query, models.StatusSuspended, id, models.StatusActive)
	if err != nil {
		return false, fmt.Errorf("suspend: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const serviceSelect = `
	SELECT id, domain, plan_id, plan_name, node_id, node_endpoint, node_location,
	       status, ssl_enabled, cpanel_url, php_version, disk_usage,
	       bandwidth_usage, client_id, client_name, failure_reason,
	       created_at, updated_at, activated_at
	FROM provisioning.services`

func (r *ServiceRepository) scanService(row pgx.Row) (*models.ServiceRecord, error) {
	svc := &models.ServiceRecord{}
	err := row.Scan(
		&svc.ID, &svc.Domain, &svc.PlanID, &svc.PlanName, &svc.NodeID, &svc.NodeEndpoint, &svc.NodeLocation,
		&svc.Status, &svc.SSLEnabled, &svc.CPanelURL, &svc.PHPVersion, &svc.DiskUsage,
		&svc.BandwidthUsage, &svc.ClientID, &svc.ClientName, &svc.FailureReason,
		&svc.CreatedAt, &svc.UpdatedAt, &svc.ActivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}
	return svc, nil
}

func (r *ServiceRepository) scanServices(rows pgx.Rows) ([]*models.ServiceRecord, error) {
	var services []*models.ServiceRecord
	for rows.Next() {
		svc := &models.ServiceRecord{}
		err := rows.Scan(
			&svc.ID, &svc.Domain, &svc.PlanID, &svc.PlanName, &svc.NodeID, &svc.NodeEndpoint, &svc.NodeLocation,
			&svc.Status, &svc.SSLEnabled, &svc.CPanelURL, &svc.PHPVersion, &svc.DiskUsage,
			&svc.BandwidthUsage, &svc.ClientID, &svc.ClientName, &svc.FailureReason,
			&svc.CreatedAt, &svc.UpdatedAt, &svc.ActivatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan service row: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}
