package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qhosting/provisioning-service/internal/models"
)

type NodeRepository struct {
	pool *pgxpool.Pool
}

func NewNodeRepository(pool *pgxpool.Pool) *NodeRepository {
	return &NodeRepository{pool: pool}
}

// GetByID retrieves a node from the fleet inventory
func (r *NodeRepository) GetByID(ctx context.Context, id string) (*models.Node, error) {
	query := `
		SELECT id, location, endpoint, status, software, load_percent, ram_gb,
		       storage_free, accounts, created_at, updated_at
		FROM provisioning.nodes
		WHERE id = $1
	`

	node := &models.Node{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&node.ID, &node.Location, &node.Endpoint, &node.Status, &node.Software,
		&node.LoadPercent, &node.RAMGB, &node.StorageFree, &node.Accounts,
		&node.CreatedAt, &node.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan node: %w", err)
	}
	return node, nil
}

// List retrieves the full node inventory
func (r *NodeRepository) List(ctx context.Context) ([]*models.Node, error) {
	query := `
		SELECT id, location, endpoint, status, software, load_percent, ram_gb,
		       storage_free, accounts, created_at, updated_at
		FROM provisioning.nodes
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*models.Node
	for rows.Next() {
		node := &models.Node{}
		err := rows.Scan(
			&node.ID, &node.Location, &node.Endpoint, &node.Status, &node.Software,
			&node.LoadPercent, &node.RAMGB, &node.StorageFree, &node.Accounts,
			&node.CreatedAt, &node.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}
